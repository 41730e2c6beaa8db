package db

import (
	"time"

	"gorm.io/datatypes"
)

type Game struct {
	ID        uint      `gorm:"primaryKey"`
	RoomCode  string    `gorm:"size:12;index;not null"`
	Phase     string    `gorm:"size:32;not null"`
	Quorum    int       `gorm:"not null;default:5"`
	WinnerID  *uint     `gorm:"index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
	Players   []Player
	Rounds    []Round
	Events    []Event
}

type Player struct {
	ID        uint      `gorm:"primaryKey"`
	GameID    uint      `gorm:"index;not null;uniqueIndex:idx_players_game_name"`
	Name      string    `gorm:"size:64;not null;uniqueIndex:idx_players_game_name"`
	Points    int       `gorm:"not null;default:0"`
	Alive     bool      `gorm:"not null;default:true"`
	JoinedAt  time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Round struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null;uniqueIndex:idx_rounds_game_number"`
	Number    int            `gorm:"not null;uniqueIndex:idx_rounds_game_number"`
	Result    datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

type Event struct {
	ID        uint           `gorm:"primaryKey"`
	GameID    uint           `gorm:"index;not null"`
	RoundID   *uint          `gorm:"index"`
	PlayerID  *uint          `gorm:"index"`
	Type      string         `gorm:"size:64;not null"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"not null"`
}
