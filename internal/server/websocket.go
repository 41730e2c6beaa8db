package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

const (
	eventRoomCreated        = "roomCreated"
	eventJoinedRoom         = "joinedRoom"
	eventPlayerJoined       = "playerJoined"
	eventPlayerDisconnected = "playerDisconnected"
	eventGameStart          = "gameStart"
	eventRoundStart         = "roundStart"
	eventRoundResults       = "roundResults"
	eventGameOver           = "gameOver"
	eventSubmitAck          = "submitAck"
	eventError              = "error"
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// wsClient wraps one connection with its write lock. gorilla/websocket allows
// a single concurrent writer per connection, and a read-loop send (ack,
// error) can target the same socket as a broadcast from another player's
// read loop or a timer callback.
type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// wsHub fans broadcasts out to every connection bound to a room code.
type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{
		groups: make(map[string]map[*wsClient]struct{}),
	}
}

func (h *wsHub) Add(code string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[code] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(code string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[code]
	if group == nil {
		return
	}
	delete(group, client)
	if len(group) == 0 {
		delete(h.groups, code)
	}
}

// DropGroup forgets a room's membership without closing the connections;
// clients keep their channel and can create or join another room on it.
func (h *wsHub) DropGroup(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, code)
}

func (h *wsHub) GroupSize(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[code])
}

func (h *wsHub) Send(client *wsClient, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = client.write(data)
}

func (h *wsHub) Broadcast(code string, payload any) {
	h.mu.Lock()
	group := h.groups[code]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.Remove(code, client)
		}
	}
}

func (s *Server) send(client *wsClient, eventType string, data any) {
	s.ws.Send(client, wsMessage{Type: eventType, Data: data})
}

func (s *Server) sendError(client *wsClient, message string) {
	s.send(client, eventError, map[string]string{"message": message})
}

func (s *Server) broadcast(code string, eventType string, data any) {
	s.ws.Broadcast(code, wsMessage{Type: eventType, Data: data})
}

// clientState is the server-side identity of one connection: at most one
// player in at most one room for the lifetime of the socket binding.
type clientState struct {
	playerID   int
	playerName string
	roomCode   string
}

type createRoomRequest struct {
	PlayerName string `json:"player_name"`
}

type joinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type submitNumberRequest struct {
	RoomCode string      `json:"room_code"`
	Number   json.Number `json:"number"`
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	log.Printf("ws connected remote=%s", r.RemoteAddr)
	go s.readWS(&wsClient{conn: conn})
}

func (s *Server) readWS(client *wsClient) {
	state := &clientState{}
	defer s.dropConnection(client, state)
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			log.Printf("ws disconnected room_code=%s player_id=%d error=%v", state.roomCode, state.playerID, err)
			return
		}
		var envelope wsEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			s.sendError(client, "Invalid message")
			continue
		}
		switch envelope.Type {
		case "createRoom":
			s.handleCreateRoom(client, state, envelope.Data)
		case "joinRoom":
			s.handleJoinRoom(client, state, envelope.Data)
		case "submitNumber":
			s.handleSubmitNumber(client, state, envelope.Data)
		default:
			s.sendError(client, "Unknown event")
		}
	}
}

func (s *Server) handleCreateRoom(client *wsClient, state *clientState, data json.RawMessage) {
	if state.roomCode != "" {
		s.sendError(client, "Already in a room")
		return
	}
	var req createRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(client, "Invalid message")
		return
	}
	name, err := validateName(req.PlayerName)
	if err != nil {
		s.sendError(client, wsErrorMessage(err))
		return
	}
	room, player := s.store.CreateRoom(name)
	state.playerID = player.ID
	state.playerName = player.Name
	state.roomCode = room.Code
	s.ws.Add(room.Code, client)
	if err := s.persistRoomCreated(room, player); err != nil {
		log.Printf("persist room failed room_code=%s error=%v", room.Code, err)
	}
	log.Printf("room created room_code=%s player=%s", room.Code, player.Name)
	s.send(client, eventRoomCreated, map[string]any{
		"room_code": room.Code,
		"player_id": player.ID,
	})
}

func (s *Server) handleJoinRoom(client *wsClient, state *clientState, data json.RawMessage) {
	if state.roomCode != "" {
		s.sendError(client, "Already in a room")
		return
	}
	var req joinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(client, "Invalid message")
		return
	}
	name, err := validateName(req.PlayerName)
	if err != nil {
		s.sendError(client, wsErrorMessage(err))
		return
	}
	room, player, game, err := s.store.AddPlayer(req.RoomCode, name)
	if err != nil {
		s.sendError(client, wsErrorMessage(err))
		return
	}
	state.playerID = player.ID
	state.playerName = player.Name
	state.roomCode = room.Code
	s.ws.Add(room.Code, client)
	if err := s.persistPlayerJoined(room, player); err != nil {
		log.Printf("persist player failed room_code=%s player=%s error=%v", room.Code, player.Name, err)
	}
	log.Printf("player joined room_code=%s player=%s count=%d", room.Code, player.Name, len(room.Players))
	s.send(client, eventJoinedRoom, map[string]any{
		"room_code": room.Code,
		"player_id": player.ID,
	})
	s.broadcast(room.Code, eventPlayerJoined, map[string]any{
		"players": playersPayload(room.Players),
	})
	if game != nil {
		s.beginGame(game.RoomCode)
	}
}

func (s *Server) handleSubmitNumber(client *wsClient, state *clientState, data json.RawMessage) {
	var req submitNumberRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(client, "Invalid message")
		return
	}
	// A socket that never joined, or that names a different room than it is
	// bound to, is stale client state, not a server fault.
	if state.roomCode == "" || req.RoomCode != state.roomCode {
		return
	}
	number, err := validateNumber(req.Number)
	if err != nil {
		s.sendError(client, wsErrorMessage(err))
		return
	}
	if accepted := s.submitNumber(state.roomCode, state.playerID, number); accepted {
		s.send(client, eventSubmitAck, map[string]any{
			"room_code": state.roomCode,
			"number":    number,
		})
	}
}

// dropConnection applies the disconnect policy: waiting players leave the
// room, in-game players stay in the game and forfeit rounds through the
// deadline path, and a room with no connections left is torn down.
func (s *Server) dropConnection(client *wsClient, state *clientState) {
	_ = client.conn.Close()
	if state.roomCode == "" {
		return
	}
	code := state.roomCode
	s.ws.Remove(code, client)

	if room, found := s.store.RemovePlayerFromRoom(code, state.playerID); found {
		if room != nil {
			s.broadcast(code, eventPlayerDisconnected, map[string]any{
				"player_id": state.playerID,
				"players":   playersPayload(room.Players),
			})
		}
		return
	}

	game, err := s.store.UpdateGame(code, func(game *Game) error {
		player, ok := game.FindPlayer(state.playerID)
		if !ok {
			return errors.New("player not found")
		}
		player.Disconnected = true
		return nil
	})
	if err != nil {
		return
	}
	s.broadcast(code, eventPlayerDisconnected, map[string]any{
		"player_id": state.playerID,
	})
	if s.ws.GroupSize(code) == 0 {
		log.Printf("game abandoned room_code=%s round=%d", code, game.Round)
		s.cancelGameTimer(code)
		s.store.RemoveGame(code)
		if err := s.persistGameAbandoned(game); err != nil {
			log.Printf("persist abandon failed room_code=%s error=%v", code, err)
		}
	}
}
