package models

import (
	"time"
)

// User holds a bettor's coin balance
type User struct {
	ID        string    `gorm:"size:64;primaryKey" json:"id"`
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"dao_coins"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
