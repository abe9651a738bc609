package models

import (
	"time"
)

// Bet is a stake on one side of a market. Claimed is the per-bet paid
// marker; it is the only field that changes after creation.
type Bet struct {
	ID        string     `gorm:"size:36;primaryKey" json:"id"`
	MarketID  string     `gorm:"size:36;not null;index" json:"market_id"`
	UserID    string     `gorm:"size:64;not null;index" json:"user_id"`
	Direction Outcome    `gorm:"size:3;not null" json:"direction"`
	Amount    int64      `gorm:"not null;check:amount > 0" json:"amount"`
	Claimed   bool       `gorm:"not null;default:false;index" json:"claimed"`
	Payout    int64      `gorm:"not null;default:0" json:"payout"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	CreatedAt time.Time  `json:"timestamp"`
}

// TableName specifies the table name for Bet model
func (Bet) TableName() string {
	return "bets"
}

// PlaceBetRequest is the body of POST /api/markets/:id/bets
type PlaceBetRequest struct {
	Direction string `json:"direction" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,min=1"`
}
