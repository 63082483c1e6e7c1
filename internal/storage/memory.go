// internal/storage/memory.go
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/matijamicunovic629/cowprotocol/internal/storage/models"
)

// memoryStorage keeps audit records in memory. Used when no database
// is configured and by tests.
type memoryStorage struct {
	mu        sync.RWMutex
	rounds    map[int64]*models.Round
	solutions map[int64][]*models.SolutionRecord
}

// NewMemoryStorage returns a Storage backed by process memory.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		rounds:    make(map[int64]*models.Round),
		solutions: make(map[int64][]*models.SolutionRecord),
	}
}

func (m *memoryStorage) SaveRound(_ context.Context, round *models.Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rounds[round.AuctionID]; exists {
		return fmt.Errorf("round for auction %d already recorded", round.AuctionID)
	}
	copied := *round
	m.rounds[round.AuctionID] = &copied
	return nil
}

func (m *memoryStorage) GetRound(_ context.Context, auctionID int64) (*models.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	round, ok := m.rounds[auctionID]
	if !ok {
		return nil, fmt.Errorf("round for auction %d not found", auctionID)
	}
	copied := *round
	return &copied, nil
}

func (m *memoryStorage) SaveSolutionRecords(_ context.Context, records []*models.SolutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, record := range records {
		copied := *record
		m.solutions[record.AuctionID] = append(m.solutions[record.AuctionID], &copied)
	}
	return nil
}

func (m *memoryStorage) ListSolutionRecords(_ context.Context, auctionID int64) ([]*models.SolutionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.solutions[auctionID]
	out := make([]*models.SolutionRecord, 0, len(records))
	for _, record := range records {
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryStorage) RunMigrations() error {
	return nil
}
