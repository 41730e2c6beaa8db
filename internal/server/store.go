package server

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	errRoomNotFound = errors.New("room not found")
	errRoomFull     = errors.New("room is full")
	errGameNotFound = errors.New("game not found")
)

// Store tracks waiting rooms and active games, both keyed by room code. All
// game mutation goes through UpdateGame so state changes are serialized
// under one lock.
type Store struct {
	mu           sync.Mutex
	nextPlayerID int
	quorum       int
	rooms        map[string]*Room
	games        map[string]*Game
}

func NewStore(quorum int) *Store {
	return &Store{
		nextPlayerID: 1,
		quorum:       quorum,
		rooms:        make(map[string]*Room),
		games:        make(map[string]*Game),
	}
}

// CreateRoom allocates a waiting room seeded with its creator. Codes come
// from a random generator with no uniqueness guarantee, so a code that is
// still live is regenerated.
func (s *Store) CreateRoom(name string) (*Room, *Player) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := newRoomCode()
	for {
		_, roomTaken := s.rooms[code]
		_, gameTaken := s.games[code]
		if !roomTaken && !gameTaken {
			break
		}
		code = newRoomCode()
	}

	player := s.newPlayerLocked(name)
	room := &Room{
		Code:      code,
		CreatedAt: time.Now().UTC(),
		Players:   []*Player{player},
	}
	s.rooms[code] = room
	return room, player
}

// AddPlayer joins a player to a waiting room. When the join fills the room to
// quorum the room is converted into a Game in the same critical section and
// the new game is returned; otherwise the game return is nil.
func (s *Store) AddPlayer(code, name string) (*Room, *Player, *Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, nil, errRoomNotFound
	}
	if len(room.Players) >= s.quorum {
		return nil, nil, nil, errRoomFull
	}

	player := s.newPlayerLocked(name)
	room.Players = append(room.Players, player)

	if len(room.Players) < s.quorum {
		return room, player, nil, nil
	}

	game := &Game{
		RoomCode: room.Code,
		DBID:     room.DBID,
		Phase:    phaseWaiting,
		Round:    1,
		Players:  room.Players,
	}
	delete(s.rooms, room.Code)
	s.games[room.Code] = game
	return room, player, game, nil
}

// RemovePlayerFromRoom drops a waiting player, discarding the room when it
// empties. Returns the room (nil if it was deleted) and whether the player
// was found.
func (s *Store) RemovePlayerFromRoom(code string, playerID int) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}
	found := false
	players := room.Players[:0]
	for _, p := range room.Players {
		if p.ID == playerID {
			found = true
			continue
		}
		players = append(players, p)
	}
	room.Players = players
	if !found {
		return room, false
	}
	if len(room.Players) == 0 {
		delete(s.rooms, code)
		return nil, true
	}
	return room, true
}

func (s *Store) GetRoom(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *Store) GetGame(code string) (*Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[code]
	return game, ok
}

func (s *Store) UpdateGame(code string, update func(game *Game) error) (*Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[code]
	if !ok {
		return nil, errGameNotFound
	}
	if err := update(game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *Store) RemoveGame(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, code)
}

func (s *Store) ListGameSummaries() []GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]GameSummary, 0, len(s.games))
	for _, game := range s.games {
		list = append(list, GameSummary{
			RoomCode: game.RoomCode,
			Phase:    game.Phase,
			Round:    game.Round,
			Alive:    game.AliveCount(),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].RoomCode < list[j].RoomCode
	})
	return list
}

func (s *Store) ListRoomSummaries() []RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]RoomSummary, 0, len(s.rooms))
	for _, room := range s.rooms {
		list = append(list, RoomSummary{
			Code:    room.Code,
			Players: len(room.Players),
			Quorum:  s.quorum,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Code < list[j].Code
	})
	return list
}

func (s *Store) newPlayerLocked(name string) *Player {
	player := &Player{
		ID:    s.nextPlayerID,
		Name:  name,
		Alive: true,
	}
	s.nextPlayerID++
	return player
}
