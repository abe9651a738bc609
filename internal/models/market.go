package models

import (
	"strings"
	"time"
)

// MarketStatus is the lifecycle state of a market. The only transition is
// active -> resolved.
type MarketStatus string

const (
	MarketStatusActive   MarketStatus = "active"
	MarketStatusResolved MarketStatus = "resolved"
)

// Outcome is a side of a binary market. It doubles as a bet direction.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Valid reports whether o is YES or NO.
func (o Outcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo
}

// ParseOutcome accepts YES/NO in any case.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(strings.ToUpper(strings.TrimSpace(s))) {
	case OutcomeYes:
		return OutcomeYes, nil
	case OutcomeNo:
		return OutcomeNo, nil
	}
	return "", ErrInvalidOutcome
}

// VerifyData is the persisted form of a market's verification condition.
// Market.Spec decodes it into a VerifySpec.
type VerifyData struct {
	Asset    string  `gorm:"size:100" json:"asset,omitempty"`
	Operator string  `gorm:"size:2" json:"operator,omitempty"`
	Value    float64 `json:"value"`
}

// Market represents a binary prediction market
type Market struct {
	ID         string       `gorm:"size:36;primaryKey" json:"id"`
	Question   string       `gorm:"type:text;not null" json:"question"`
	Icon       string       `gorm:"size:32" json:"icon"`
	Deadline   time.Time    `gorm:"not null;index" json:"end_time"`
	Status     MarketStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	Outcome    *Outcome     `gorm:"size:3" json:"outcome"`
	TotalYes   int64        `gorm:"not null;default:0" json:"total_yes"`
	TotalNo    int64        `gorm:"not null;default:0" json:"total_no"`
	VerifyType VerifyKind   `gorm:"size:20;not null" json:"verify_type"`
	VerifyData VerifyData   `gorm:"embedded;embeddedPrefix:verify_" json:"verify_data"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// Expired reports whether the market deadline has passed at now.
func (m *Market) Expired(now time.Time) bool {
	return !now.Before(m.Deadline)
}

// TotalPool is the sum of both sides.
func (m *Market) TotalPool() int64 {
	return m.TotalYes + m.TotalNo
}

// PoolFor returns the staked total on one side.
func (m *Market) PoolFor(side Outcome) int64 {
	if side == OutcomeYes {
		return m.TotalYes
	}
	return m.TotalNo
}

// Spec decodes the stored verification condition.
func (m *Market) Spec() (VerifySpec, error) {
	return ParseVerifySpec(string(m.VerifyType), m.VerifyData.Asset, m.VerifyData.Operator, m.VerifyData.Value)
}

// SetSpec stores spec on the market.
func (m *Market) SetSpec(spec VerifySpec) {
	m.VerifyType = spec.Kind()
	switch s := spec.(type) {
	case PriceSpec:
		m.VerifyData = VerifyData{Asset: s.Asset, Operator: string(s.Operator), Value: s.Threshold}
	case ManualSpec:
		m.VerifyData = VerifyData{Asset: s.Asset, Operator: s.Operator, Value: s.Value}
	}
}
