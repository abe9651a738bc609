package models

import (
	"time"
)

// TransactionType classifies a balance movement
type TransactionType string

const (
	TransactionTypeBetPlaced TransactionType = "bet_placed"
	TransactionTypeBetWon    TransactionType = "bet_won"
)

// Transaction is the balance ledger. It is written in the same database
// transaction as the balance change it records.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      string          `gorm:"size:64;not null;index" json:"user_id"`
	MarketID    string          `gorm:"size:36;index" json:"market_id"`
	BetID       string          `gorm:"size:36;index" json:"bet_id"`
	Type        TransactionType `gorm:"size:50;not null;index" json:"type"`
	Amount      int64           `gorm:"not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
