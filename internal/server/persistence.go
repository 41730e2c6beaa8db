package server

import (
	"encoding/json"
	"errors"
	"time"

	"death-game/internal/db"

	"github.com/jackc/pgconn"
	"gorm.io/datatypes"
)

// Match-history persistence. Every function is a no-op without a database;
// the live game never depends on these rows and they are never read back
// into a session.

func (s *Server) persistRoomCreated(room *Room, creator *Player) error {
	if s.db == nil {
		return nil
	}
	record := db.Game{
		RoomCode: room.Code,
		Phase:    phaseWaiting,
		Quorum:   s.cfg.Quorum,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	room.DBID = record.ID
	if err := s.persistPlayerRecord(room.DBID, creator); err != nil {
		return err
	}
	return s.persistEvent(room.DBID, nil, playerRef(creator), "room_created", EventPayload{
		RoomCode:   room.Code,
		PlayerName: creator.Name,
		PlayerID:   creator.ID,
	})
}

func (s *Server) persistPlayerJoined(room *Room, player *Player) error {
	if s.db == nil || room.DBID == 0 {
		return nil
	}
	if err := s.persistPlayerRecord(room.DBID, player); err != nil {
		return err
	}
	return s.persistEvent(room.DBID, nil, playerRef(player), "player_joined", EventPayload{
		PlayerName: player.Name,
		PlayerID:   player.ID,
	})
}

func (s *Server) persistPlayerRecord(gameDBID uint, player *Player) error {
	record := db.Player{
		GameID:   gameDBID,
		Name:     player.Name,
		Alive:    true,
		JoinedAt: time.Now().UTC(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.findPlayerDBID(gameDBID, player.Name)
			if lookupErr == nil && existing != 0 {
				player.DBID = existing
				return nil
			}
		}
		return err
	}
	player.DBID = record.ID
	return nil
}

func (s *Server) persistGameStarted(game *Game) error {
	if s.db == nil || game.DBID == 0 {
		return nil
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", game.DBID).Update("phase", game.Phase).Error; err != nil {
		return err
	}
	return s.persistEvent(game.DBID, nil, nil, "game_started", EventPayload{
		RoomCode: game.RoomCode,
		Round:    game.Round,
		Players:  len(game.Players),
	})
}

func (s *Server) persistRoundResult(game *Game, round int, result RoundResult) error {
	if s.db == nil || game.DBID == 0 {
		return nil
	}
	data, err := json.Marshal(roundResultsPayload(game, round, result))
	if err != nil {
		return err
	}
	record := db.Round{
		GameID: game.DBID,
		Number: round,
		Result: datatypes.JSON(data),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}
	for _, p := range game.Players {
		if p.DBID == 0 {
			continue
		}
		updates := map[string]any{
			"points": p.Points,
			"alive":  p.Alive,
		}
		if err := s.db.Model(&db.Player{}).Where("id = ?", p.DBID).Updates(updates).Error; err != nil {
			return err
		}
	}
	roundID := record.ID
	return s.persistEvent(game.DBID, &roundID, nil, "round_resolved", EventPayload{
		Round:    round,
		WinnerID: result.WinnerID,
	})
}

func (s *Server) persistGameFinished(game *Game) error {
	if s.db == nil || game.DBID == 0 {
		return nil
	}
	updates := map[string]any{"phase": phaseFinished}
	if p, ok := game.FindPlayer(game.WinnerID); ok && p.DBID != 0 {
		updates["winner_id"] = p.DBID
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", game.DBID).Updates(updates).Error; err != nil {
		return err
	}
	return s.persistEvent(game.DBID, nil, nil, "game_finished", EventPayload{
		Round:    game.Round,
		WinnerID: game.WinnerID,
	})
}

func (s *Server) persistGameAbandoned(game *Game) error {
	if s.db == nil || game.DBID == 0 {
		return nil
	}
	if err := s.db.Model(&db.Game{}).Where("id = ?", game.DBID).Update("phase", "abandoned").Error; err != nil {
		return err
	}
	return s.persistEvent(game.DBID, nil, nil, "game_abandoned", EventPayload{
		Round:  game.Round,
		Reason: "all connections dropped",
	})
}

func (s *Server) persistEvent(gameDBID uint, roundID *uint, playerID *uint, eventType string, payload EventPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := db.Event{
		GameID:   gameDBID,
		RoundID:  roundID,
		PlayerID: playerID,
		Type:     eventType,
		Payload:  datatypes.JSON(data),
	}
	return s.db.Create(&event).Error
}

func (s *Server) findPlayerDBID(gameDBID uint, name string) (uint, error) {
	var record db.Player
	if err := s.db.Where("game_id = ? AND name = ?", gameDBID, name).First(&record).Error; err != nil {
		return 0, err
	}
	return record.ID, nil
}

func playerRef(player *Player) *uint {
	if player == nil || player.DBID == 0 {
		return nil
	}
	id := player.DBID
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
