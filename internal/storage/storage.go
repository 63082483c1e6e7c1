// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/matijamicunovic629/cowprotocol/internal/storage/models"
)

// Storage persists competition audit records.
type Storage interface {
	// Rounds
	SaveRound(ctx context.Context, round *models.Round) error
	GetRound(ctx context.Context, auctionID int64) (*models.Round, error)

	// Solutions
	SaveSolutionRecords(ctx context.Context, records []*models.SolutionRecord) error
	ListSolutionRecords(ctx context.Context, auctionID int64) ([]*models.SolutionRecord, error)

	// Migrations
	RunMigrations() error
}
