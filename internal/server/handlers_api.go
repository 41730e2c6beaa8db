package server

import (
	"net/http"
	"strings"

	"death-game/internal/db"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]map[string]any, 0)
	for _, room := range s.store.ListRoomSummaries() {
		rooms = append(rooms, map[string]any{
			"room_code": room.Code,
			"players":   room.Players,
			"quorum":    room.Quorum,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := make([]map[string]any, 0)
	for _, game := range s.store.ListGameSummaries() {
		games = append(games, map[string]any{
			"room_code": game.RoomCode,
			"phase":     game.Phase,
			"round":     game.Round,
			"alive":     game.Alive,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": games})
}

// handleGameResults serves the stored history of a completed game:
// GET /api/games/{code}/results.
func (s *Server) handleGameResults(w http.ResponseWriter, r *http.Request) {
	code, ok := parseResultsPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if s.db == nil {
		writeError(w, http.StatusNotFound, "match history is not configured")
		return
	}
	var record db.Game
	if err := s.db.Preload("Players").Preload("Rounds").
		Where("room_code = ?", code).Order("id DESC").First(&record).Error; err != nil {
		writeError(w, http.StatusNotFound, "game not found")
		return
	}
	players := make([]map[string]any, 0, len(record.Players))
	var winner map[string]any
	for _, p := range record.Players {
		players = append(players, map[string]any{
			"name":   p.Name,
			"points": p.Points,
			"alive":  p.Alive,
		})
		if record.WinnerID != nil && p.ID == *record.WinnerID {
			winner = map[string]any{"name": p.Name, "points": p.Points}
		}
	}
	rounds := make([]map[string]any, 0, len(record.Rounds))
	for _, round := range record.Rounds {
		rounds = append(rounds, map[string]any{
			"number": round.Number,
			"result": round.Result,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room_code": record.RoomCode,
		"phase":     record.Phase,
		"winner":    winner,
		"players":   players,
		"rounds":    rounds,
	})
}

func parseResultsPath(path string) (string, bool) {
	trimmed := strings.TrimPrefix(path, "/api/games/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "results" {
		return "", false
	}
	return parts[0], true
}
