// internal/storage/models/round.go
package models

import "time"

// Round is the audit record of one auction round. Exactly one row per
// auction id; the row is written once the round reaches a terminal
// outcome and never mutated afterwards.
type Round struct {
	BaseModel
	AuctionID    int64  `gorm:"uniqueIndex;not null"`
	Outcome      string `gorm:"not null;type:varchar(20)"`
	WinnerSolver string `gorm:"type:varchar(100)"`
	SolutionID   uint64
	Score        string `gorm:"type:varchar(80)"`
	Signature    string `gorm:"type:varchar(88)"`
	Route        string `gorm:"type:varchar(50)"`
	Attempts     int
	SettledAt    *time.Time `gorm:"index"`
}

// SolutionRecord is the audit record of one proposed solution, valid or
// rejected, kept for dispute resolution and solver accountability.
type SolutionRecord struct {
	BaseModel
	AuctionID  int64  `gorm:"index;not null"`
	Solver     string `gorm:"index;not null;type:varchar(100)"`
	SolutionID uint64
	Score      string `gorm:"type:varchar(80)"`
	Valid      bool   `gorm:"not null"`
	Error      string `gorm:"type:text"`
}
