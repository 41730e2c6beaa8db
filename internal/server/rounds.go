package server

import (
	"errors"
	"log"
	"time"
)

var errSubmissionIgnored = errors.New("submission not accepted")

// beginGame moves a freshly converted game out of the waiting phase into its
// first round and announces it to the room.
func (s *Server) beginGame(code string) {
	game, err := s.store.UpdateGame(code, func(game *Game) error {
		if game.Phase != phaseWaiting {
			return errors.New("game already started")
		}
		s.startRoundLocked(game)
		return nil
	})
	if err != nil {
		return
	}
	if err := s.persistGameStarted(game); err != nil {
		log.Printf("persist game start failed room_code=%s error=%v", code, err)
	}
	log.Printf("game started room_code=%s players=%d time_limit=%d", code, len(game.Players), game.TimeLimit)
	s.broadcast(code, eventGameStart, roundStartPayload(game))
}

// startRoundLocked opens a submission window and arms the deadline in the
// same critical section. Arming after the store lock is released would let a
// full set of instant submissions resolve the round first, and the stale
// deadline arm would then displace the intermission timer and strand the game
// in round-end.
func (s *Server) startRoundLocked(game *Game) {
	game.Phase = phasePlaying
	game.Submissions = make(map[int]int)
	game.RoundStartedAt = time.Now().UTC()
	game.TimeLimit = s.roundAllowance(game)
	s.scheduleRoundDeadline(game)
}

// roundAllowance picks the round's time allowance: long on the first round
// and on the rounds right after the field shrinks into rule-change territory
// (two, three or four players left), short otherwise.
func (s *Server) roundAllowance(game *Game) int {
	total := len(game.Players)
	eliminated := game.Eliminated
	if game.Round == 1 || eliminated == total-4 || eliminated == total-3 || eliminated == total-2 {
		return s.cfg.LongRoundSeconds
	}
	return s.cfg.ShortRoundSeconds
}

// submitNumber records one submission. Submissions against an unknown or
// finished game, or from a dead player, are dropped without an error; a
// repeat submission in the same round overwrites the previous value. When the
// last alive player is in, the round resolves immediately.
func (s *Server) submitNumber(code string, playerID, number int) bool {
	ready := false
	round := 0
	_, err := s.store.UpdateGame(code, func(game *Game) error {
		if game.Phase != phasePlaying {
			return errSubmissionIgnored
		}
		player, ok := game.FindPlayer(playerID)
		if !ok || !player.Alive {
			return errSubmissionIgnored
		}
		game.Submissions[playerID] = number
		player.LastNumber = number
		round = game.Round
		ready = len(game.Submissions) == game.AliveCount()
		return nil
	})
	if err != nil {
		return false
	}
	if ready {
		s.resolveRound(code, round)
	}
	return true
}

// resolveRound runs the resolver over the current submissions and applies
// the outcome. The round guard makes the call a no-op when a deadline timer
// fires after the round already resolved (or the other way around).
func (s *Server) resolveRound(code string, expectedRound int) {
	var result RoundResult
	game, err := s.store.UpdateGame(code, func(game *Game) error {
		if game.Phase != phasePlaying {
			return errors.New("round not in progress")
		}
		if game.Round != expectedRound {
			return errors.New("round changed")
		}
		result = resolveRound(game.AlivePlayers(), game.Submissions)
		applyRoundResult(game, result)
		return nil
	})
	if err != nil {
		return
	}
	s.cancelGameTimer(code)
	if err := s.persistRoundResult(game, expectedRound, result); err != nil {
		log.Printf("persist round failed room_code=%s round=%d error=%v", code, expectedRound, err)
	}
	log.Printf("round resolved room_code=%s round=%d winner=%d eliminated=%d game_over=%v",
		code, expectedRound, result.WinnerID, len(result.Eliminated), result.GameOver)
	s.broadcast(code, eventRoundResults, roundResultsPayload(game, expectedRound, result))
	if game.Phase == phaseFinished {
		s.finishGame(game)
		return
	}
	s.scheduleIntermission(game)
}

// applyRoundResult writes a resolver outcome back onto the game. Must run
// inside an UpdateGame closure.
func applyRoundResult(game *Game, result RoundResult) {
	if !result.SuddenDeath {
		for id, penalty := range result.Penalties {
			if p, ok := game.FindPlayer(id); ok {
				p.Points -= penalty
			}
		}
		for _, id := range result.Eliminated {
			if p, ok := game.FindPlayer(id); ok && p.Alive {
				p.Alive = false
				game.Eliminated++
			}
		}
	}
	game.Phase = phaseRoundEnd
	if result.GameOver {
		game.Phase = phaseFinished
		game.WinnerID = finalWinnerID(game, result)
	}
}

func finalWinnerID(game *Game, result RoundResult) int {
	if result.SuddenDeath {
		return result.WinnerID
	}
	alive := game.AlivePlayers()
	if len(alive) == 1 {
		return alive[0].ID
	}
	return result.WinnerID
}

// advanceRound is the intermission callback: bump the round counter and open
// the next submission window.
func (s *Server) advanceRound(code string, expectedRound int) {
	game, err := s.store.UpdateGame(code, func(game *Game) error {
		if game.Phase != phaseRoundEnd {
			return errors.New("phase changed")
		}
		if game.Round != expectedRound {
			return errors.New("round changed")
		}
		game.Round++
		s.startRoundLocked(game)
		return nil
	})
	if err != nil {
		return
	}
	log.Printf("round started room_code=%s round=%d alive=%d time_limit=%d",
		code, game.Round, game.AliveCount(), game.TimeLimit)
	s.broadcast(code, eventRoundStart, roundStartPayload(game))
}

// finishGame finalizes a finished session: final scores out, history row
// written, registry entry and broadcast group dropped. The session is gone
// after this; late submissions against the code fall into the silent-ignore
// path.
func (s *Server) finishGame(game *Game) {
	s.cancelGameTimer(game.RoomCode)
	if err := s.persistGameFinished(game); err != nil {
		log.Printf("persist game finish failed room_code=%s error=%v", game.RoomCode, err)
	}
	log.Printf("game finished room_code=%s winner=%d rounds=%d", game.RoomCode, game.WinnerID, game.Round)
	s.broadcast(game.RoomCode, eventGameOver, gameOverPayload(game))
	s.store.RemoveGame(game.RoomCode)
	s.ws.DropGroup(game.RoomCode)
}
