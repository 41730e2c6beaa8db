package server

import "strconv"

func playersPayload(players []*Player) []map[string]any {
	list := make([]map[string]any, 0, len(players))
	for _, p := range players {
		list = append(list, map[string]any{
			"player_id": p.ID,
			"name":      p.Name,
			"points":    p.Points,
			"alive":     p.Alive,
		})
	}
	return list
}

func roundStartPayload(game *Game) map[string]any {
	return map[string]any{
		"room_code":         game.RoomCode,
		"round":             game.Round,
		"time_limit":        game.TimeLimit,
		"players_remaining": game.AliveCount(),
	}
}

func roundResultsPayload(game *Game, round int, result RoundResult) map[string]any {
	numbers := make(map[string]int, len(result.Numbers))
	for id, number := range result.Numbers {
		numbers[strconv.Itoa(id)] = number
	}
	return map[string]any{
		"room_code":    game.RoomCode,
		"round":        round,
		"numbers":      numbers,
		"average":      result.Average,
		"target":       result.Target,
		"winner":       result.WinnerID,
		"duplicates":   result.Duplicates,
		"eliminations": result.Eliminated,
		"game_over":    result.GameOver,
		"sudden_death": result.SuddenDeath,
		"players":      playersPayload(game.Players),
	}
}

func gameOverPayload(game *Game) map[string]any {
	var winner map[string]any
	if p, ok := game.FindPlayer(game.WinnerID); ok {
		winner = map[string]any{
			"player_id": p.ID,
			"name":      p.Name,
		}
	}
	return map[string]any{
		"room_code":    game.RoomCode,
		"winner":       winner,
		"final_scores": playersPayload(game.Players),
	}
}
