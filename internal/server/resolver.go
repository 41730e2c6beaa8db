package server

import (
	"math"
	"sort"
)

// RoundResult is the outcome of one round over a fixed submission snapshot.
// It carries no side effects; applyRoundResult writes it back to the game.
// WinnerID 0 means nobody won the round.
type RoundResult struct {
	Numbers     map[int]int
	Average     float64
	Target      float64
	WinnerID    int
	Duplicates  []int
	Penalties   map[int]int
	Eliminated  []int
	GameOver    bool
	SuddenDeath bool
}

// resolveRound computes a round outcome for the given alive players and their
// submissions. players must be in join order: ties on distance go to the
// first player encountered, and that order is the only thing the outcome
// depends on besides the values themselves. Submissions may cover a subset of
// players when the round is force-resolved; a player without a submission
// cannot win and takes the normal penalty.
func resolveRound(players []*Player, submissions map[int]int) RoundResult {
	result := RoundResult{
		Numbers:    make(map[int]int, len(submissions)),
		Duplicates: make([]int, 0),
		Penalties:  make(map[int]int),
		Eliminated: make([]int, 0),
	}
	for id, number := range submissions {
		result.Numbers[id] = number
	}

	if len(submissions) > 0 {
		sum := 0
		for _, number := range submissions {
			sum += number
		}
		result.Average = float64(sum) / float64(len(submissions))
		result.Target = result.Average * targetRatio
	}

	// Head-to-head endgame: with two players left, {0, 100} means the 100
	// wins outright. No scoring pass runs on this branch.
	if len(players) == 2 && len(submissions) == 2 {
		hundredID := 0
		sawZero := false
		for id, number := range submissions {
			switch number {
			case maxNumber:
				hundredID = id
			case minNumber:
				sawZero = true
			}
		}
		if hundredID != 0 && sawZero {
			result.WinnerID = hundredID
			result.GameOver = true
			result.SuddenDeath = true
			return result
		}
	}

	counts := make(map[int]int, len(submissions))
	for _, number := range submissions {
		counts[number]++
	}
	for number, count := range counts {
		if count >= 2 {
			result.Duplicates = append(result.Duplicates, number)
		}
	}
	sort.Ints(result.Duplicates)

	// Duplicate values only stop a submission from winning once the field
	// has shrunk to four or fewer players.
	excludeDuplicates := len(players) <= 4
	bestDistance := 0.0
	for _, p := range players {
		number, ok := submissions[p.ID]
		if !ok {
			continue
		}
		if excludeDuplicates && counts[number] >= 2 {
			continue
		}
		distance := math.Abs(float64(number) - result.Target)
		if result.WinnerID == 0 || distance < bestDistance {
			result.WinnerID = p.ID
			bestDistance = distance
		}
	}

	for _, p := range players {
		if p.ID == result.WinnerID {
			continue
		}
		penalty := 1
		if len(players) == 3 {
			// Hitting the target exactly doubles the loss in three-player
			// rounds.
			if number, ok := submissions[p.ID]; ok && float64(number) == result.Target {
				penalty = 2
			}
		}
		result.Penalties[p.ID] = penalty
	}

	for _, p := range players {
		if p.Points-result.Penalties[p.ID] <= eliminationFloor {
			result.Eliminated = append(result.Eliminated, p.ID)
		}
	}
	result.GameOver = len(players)-len(result.Eliminated) <= 1

	return result
}
