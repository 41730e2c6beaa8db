package server

import (
	"log"
	"time"
)

// One timer per game: the round deadline while playing, the intermission
// while between rounds. Scheduling replaces whatever is armed; every
// callback revalidates phase and round inside the store lock, so a timer
// that lost the race is a no-op. Deadline arms run inside the store lock
// (startRoundLocked), before any submission for the round can be accepted;
// the lock order is store mutex, then timersMu, never the reverse.

func (s *Server) scheduleRoundDeadline(game *Game) {
	if !s.cfg.ForceResolve {
		return
	}
	code := game.RoomCode
	round := game.Round
	duration := time.Duration(game.TimeLimit) * time.Second
	s.armTimer(code, duration, func() {
		log.Printf("round deadline reached room_code=%s round=%d", code, round)
		s.resolveRound(code, round)
	})
}

func (s *Server) scheduleIntermission(game *Game) {
	code := game.RoomCode
	round := game.Round
	duration := time.Duration(s.cfg.IntermissionSeconds) * time.Second
	s.armTimer(code, duration, func() {
		s.advanceRound(code, round)
	})
}

func (s *Server) armTimer(code string, duration time.Duration, callback func()) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if existing, ok := s.timers[code]; ok {
		existing.Stop()
	}
	s.timers[code] = time.AfterFunc(duration, callback)
}

func (s *Server) cancelGameTimer(code string) {
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	if timer, ok := s.timers[code]; ok {
		timer.Stop()
		delete(s.timers, code)
	}
}
