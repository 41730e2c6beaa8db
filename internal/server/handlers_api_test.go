package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func getJSON(t *testing.T, ts *httptest.Server, path string, wantStatus int) map[string]any {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, wantStatus)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("GET %s decode: %v", path, err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	body := getJSON(t, ts, "/", http.StatusOK)
	if body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}

	resp, err := http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatalf("GET /nope: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", resp.StatusCode)
	}
}

func TestListRooms(t *testing.T) {
	s, ts := newTestServer(t)

	body := getJSON(t, ts, "/api/rooms", http.StatusOK)
	if rooms, ok := body["rooms"].([]any); !ok || len(rooms) != 0 {
		t.Fatalf("expected empty rooms list, got %v", body["rooms"])
	}

	room, _ := s.store.CreateRoom("Ada")
	body = getJSON(t, ts, "/api/rooms", http.StatusOK)
	rooms, _ := body["rooms"].([]any)
	if len(rooms) != 1 {
		t.Fatalf("expected one room, got %v", body["rooms"])
	}
	entry, _ := rooms[0].(map[string]any)
	if entry["room_code"] != room.Code {
		t.Fatalf("unexpected room entry %v", entry)
	}
	if players, _ := entry["players"].(float64); players != 1 {
		t.Fatalf("expected 1 player, got %v", entry["players"])
	}
	if quorum, _ := entry["quorum"].(float64); quorum != 5 {
		t.Fatalf("expected quorum 5, got %v", entry["quorum"])
	}
}

func TestListGames(t *testing.T) {
	s, ts := newTestServer(t)
	code, _ := fillRoom(t, s)
	defer s.cancelGameTimer(code)

	body := getJSON(t, ts, "/api/games", http.StatusOK)
	games, _ := body["games"].([]any)
	if len(games) != 1 {
		t.Fatalf("expected one game, got %v", body["games"])
	}
	entry, _ := games[0].(map[string]any)
	if entry["room_code"] != code || entry["phase"] != phasePlaying {
		t.Fatalf("unexpected game entry %v", entry)
	}
	if alive, _ := entry["alive"].(float64); alive != 5 {
		t.Fatalf("expected 5 alive, got %v", entry["alive"])
	}
}

func TestGameResultsWithoutDatabase(t *testing.T) {
	_, ts := newTestServer(t)

	body := getJSON(t, ts, "/api/games/ABCDEF/results", http.StatusNotFound)
	if body["error"] != "match history is not configured" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestParseResultsPath(t *testing.T) {
	cases := []struct {
		path string
		code string
		ok   bool
	}{
		{"/api/games/ABCDEF/results", "ABCDEF", true},
		{"/api/games/ABCDEF", "", false},
		{"/api/games//results", "", false},
		{"/api/games/ABCDEF/other", "", false},
		{"/api/games/ABCDEF/results/extra", "", false},
	}
	for _, tc := range cases {
		code, ok := parseResultsPath(tc.path)
		if code != tc.code || ok != tc.ok {
			t.Errorf("parseResultsPath(%q) = %q, %v; want %q, %v", tc.path, code, ok, tc.code, tc.ok)
		}
	}
}
