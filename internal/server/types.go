package server

import "time"

const (
	phaseWaiting  = "waiting"
	phasePlaying  = "playing"
	phaseRoundEnd = "round-end"
	phaseFinished = "finished"
)

const (
	eliminationFloor = -10
	minNumber        = 0
	maxNumber        = 100
	targetRatio      = 0.8
)

type RoomSummary struct {
	Code    string
	Players int
	Quorum  int
}

type GameSummary struct {
	RoomCode string
	Phase    string
	Round    int
	Alive    int
}

// Room is a lobby waiting to fill to quorum. Once full it is converted into
// a Game and removed from the registry; its Players move over by reference.
type Room struct {
	Code      string
	DBID      uint
	CreatedAt time.Time
	Players   []*Player
}

type Player struct {
	ID           int
	Name         string
	Points       int
	Alive        bool
	LastNumber   int
	Disconnected bool
	DBID         uint
}

// Game holds one active session. The player set is fixed at creation; only
// Points, Alive and connection state mutate afterwards. Players keeps join
// order, which makes submission iteration deterministic.
type Game struct {
	RoomCode       string
	DBID           uint
	Phase          string
	Round          int
	RoundStartedAt time.Time
	TimeLimit      int
	Eliminated     int
	WinnerID       int
	Players        []*Player
	Submissions    map[int]int
}

func (g *Game) AlivePlayers() []*Player {
	alive := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (g *Game) AliveCount() int {
	count := 0
	for _, p := range g.Players {
		if p.Alive {
			count++
		}
	}
	return count
}

func (g *Game) FindPlayer(playerID int) (*Player, bool) {
	for _, p := range g.Players {
		if p.ID == playerID {
			return p, true
		}
	}
	return nil, false
}
