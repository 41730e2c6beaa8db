package server

type EventPayload struct {
	RoomCode   string `json:"room_code,omitempty"`
	PlayerName string `json:"player,omitempty"`
	PlayerID   int    `json:"player_id,omitempty"`
	Round      int    `json:"round,omitempty"`
	Phase      string `json:"phase,omitempty"`
	Reason     string `json:"reason,omitempty"`
	WinnerID   int    `json:"winner_id,omitempty"`
	Players    int    `json:"players,omitempty"`
}
