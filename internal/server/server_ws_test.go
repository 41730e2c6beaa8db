package server

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"death-game/internal/config"

	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(nil, config.Default())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Skipf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, eventType string, data any) {
	t.Helper()
	payload, err := json.Marshal(wsMessage{Type: eventType, Data: data})
	if err != nil {
		t.Fatalf("marshal %s: %v", eventType, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write %s: %v", eventType, err)
	}
}

// waitForEvent reads until the wanted event type arrives, discarding roster
// updates and acks that interleave with it.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", eventType, err)
		}
		var envelope wsEnvelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			t.Fatalf("bad frame while waiting for %s: %v", eventType, err)
		}
		if envelope.Type != eventType {
			continue
		}
		var data map[string]any
		if len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, &data); err != nil {
				t.Fatalf("bad %s data: %v", eventType, err)
			}
		}
		return data
	}
}

func createRoomWS(t *testing.T, conn *websocket.Conn, name string) (code string, playerID int) {
	t.Helper()
	sendEvent(t, conn, "createRoom", createRoomRequest{PlayerName: name})
	data := waitForEvent(t, conn, eventRoomCreated)
	code, _ = data["room_code"].(string)
	id, _ := data["player_id"].(float64)
	if code == "" || id == 0 {
		t.Fatalf("bad roomCreated payload: %v", data)
	}
	return code, int(id)
}

func joinRoomWS(t *testing.T, conn *websocket.Conn, code, name string) int {
	t.Helper()
	sendEvent(t, conn, "joinRoom", joinRoomRequest{RoomCode: code, PlayerName: name})
	data := waitForEvent(t, conn, eventJoinedRoom)
	id, _ := data["player_id"].(float64)
	if id == 0 {
		t.Fatalf("bad joinedRoom payload: %v", data)
	}
	return int(id)
}

func TestCreateRoomOverWS(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	code, playerID := createRoomWS(t, conn, "Ada")
	if len(code) != 6 {
		t.Fatalf("unexpected room code %q", code)
	}
	if playerID != 1 {
		t.Fatalf("unexpected player id %d", playerID)
	}

	// A bound socket cannot open a second room.
	sendEvent(t, conn, "createRoom", createRoomRequest{PlayerName: "Eve"})
	data := waitForEvent(t, conn, eventError)
	if data["message"] != "Already in a room" {
		t.Fatalf("unexpected error payload: %v", data)
	}
}

func TestJoinUnknownRoomOverWS(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	sendEvent(t, conn, "joinRoom", joinRoomRequest{RoomCode: "NOSUCH", PlayerName: "Ada"})
	data := waitForEvent(t, conn, eventError)
	if data["message"] != "Room not found" {
		t.Fatalf("unexpected error payload: %v", data)
	}
}

func TestInvalidNameOverWS(t *testing.T) {
	_, ts := newTestServer(t)
	conn := dialWS(t, ts)

	sendEvent(t, conn, "createRoom", createRoomRequest{PlayerName: "   "})
	data := waitForEvent(t, conn, eventError)
	if data["message"] != "Invalid name" {
		t.Fatalf("unexpected error payload: %v", data)
	}
}

func TestFullGameOverWS(t *testing.T) {
	_, ts := newTestServer(t)

	conns := make([]*websocket.Conn, 5)
	ids := make([]int, 5)
	conns[0] = dialWS(t, ts)
	code, creatorID := createRoomWS(t, conns[0], "p1")
	ids[0] = creatorID
	for i := 1; i < 5; i++ {
		conns[i] = dialWS(t, ts)
		ids[i] = joinRoomWS(t, conns[i], code, fmt.Sprintf("p%d", i+1))
	}

	for _, conn := range conns {
		data := waitForEvent(t, conn, eventGameStart)
		if data["room_code"] != code {
			t.Fatalf("gameStart for wrong room: %v", data)
		}
		if round, _ := data["round"].(float64); round != 1 {
			t.Fatalf("expected round 1, got %v", data["round"])
		}
	}

	numbers := []int{50, 50, 30, 70, 90}
	for i, conn := range conns {
		sendEvent(t, conn, "submitNumber", map[string]any{
			"room_code": code,
			"number":    numbers[i],
		})
		data := waitForEvent(t, conn, eventSubmitAck)
		if got, _ := data["number"].(float64); int(got) != numbers[i] {
			t.Fatalf("submitAck echoed %v, sent %d", data["number"], numbers[i])
		}
	}

	results := waitForEvent(t, conns[0], eventRoundResults)
	if avg, _ := results["average"].(float64); avg != 58 {
		t.Fatalf("expected average 58, got %v", results["average"])
	}
	if target, _ := results["target"].(float64); target != 46.4 {
		t.Fatalf("expected target 46.4, got %v", results["target"])
	}
	if winner, _ := results["winner"].(float64); int(winner) != ids[0] {
		t.Fatalf("expected winner %d, got %v", ids[0], results["winner"])
	}
	numbersOut, ok := results["numbers"].(map[string]any)
	if !ok || len(numbersOut) != 5 {
		t.Fatalf("bad numbers payload: %v", results["numbers"])
	}
	for i, id := range ids {
		if got, _ := numbersOut[strconv.Itoa(id)].(float64); int(got) != numbers[i] {
			t.Fatalf("player %d number %v, want %d", id, numbersOut[strconv.Itoa(id)], numbers[i])
		}
	}
	if gameOver, _ := results["game_over"].(bool); gameOver {
		t.Fatal("first round must not end the game")
	}
}

func TestInvalidSubmissionOverWS(t *testing.T) {
	_, ts := newTestServer(t)

	conns := make([]*websocket.Conn, 5)
	conns[0] = dialWS(t, ts)
	code, _ := createRoomWS(t, conns[0], "p1")
	for i := 1; i < 5; i++ {
		conns[i] = dialWS(t, ts)
		joinRoomWS(t, conns[i], code, fmt.Sprintf("p%d", i+1))
	}
	waitForEvent(t, conns[0], eventGameStart)

	cases := []struct {
		number any
		want   string
	}{
		{101, "Invalid submission"},
		{-1, "Invalid submission"},
		{12.5, "Invalid submission"},
		// A string is not a number at all; it fails envelope decoding.
		{"abc", "Invalid message"},
	}
	for _, tc := range cases {
		sendEvent(t, conns[0], "submitNumber", map[string]any{
			"room_code": code,
			"number":    tc.number,
		})
		data := waitForEvent(t, conns[0], eventError)
		if data["message"] != tc.want {
			t.Fatalf("number %v: unexpected error payload %v", tc.number, data)
		}
	}
}

// Exercised under the race detector: acks from read loops and broadcasts
// from timer callbacks share connections, and the per-connection write lock
// is what keeps those writers apart.
func TestConcurrentWritersOnOneConnection(t *testing.T) {
	s, ts := newTestServer(t)
	conn := dialWS(t, ts)
	code, _ := createRoomWS(t, conn, "Ada")

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		for i := 0; i < 100; i++ {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.broadcast(code, eventRoundStart, map[string]any{"round": j})
			}
		}()
	}
	wg.Wait()
	<-drained
}

func TestWaitingRoomDisconnectOverWS(t *testing.T) {
	s, ts := newTestServer(t)

	creator := dialWS(t, ts)
	code, _ := createRoomWS(t, creator, "p1")
	second := dialWS(t, ts)
	secondID := joinRoomWS(t, second, code, "p2")
	waitForEvent(t, creator, eventPlayerJoined)

	_ = second.Close()

	data := waitForEvent(t, creator, eventPlayerDisconnected)
	if id, _ := data["player_id"].(float64); int(id) != secondID {
		t.Fatalf("expected disconnect for %d, got %v", secondID, data)
	}
	players, ok := data["players"].([]any)
	if !ok || len(players) != 1 {
		t.Fatalf("expected one player left in the roster, got %v", data["players"])
	}

	room, found := s.store.GetRoom(code)
	if !found || len(room.Players) != 1 {
		t.Fatalf("expected the waiting room to shrink, got %v", room)
	}
}
