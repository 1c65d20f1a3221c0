package teamstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teamaction/geohunt/go/internal/models"
)

// Memory is an in-process team store for tests and single-node dev runs.
type Memory struct {
	mu    sync.Mutex
	teams map[string]*models.Team // gameID + "\x00" + teamKey
}

// NewMemory returns an empty in-memory team store.
func NewMemory() *Memory {
	return &Memory{teams: make(map[string]*models.Team)}
}

func (m *Memory) EnsureTeam(ctx context.Context, gameID, name, teamKey, captainDeviceID string) (*models.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := gameID + "\x00" + teamKey
	if existing, ok := m.teams[key]; ok {
		if existing.Name != name {
			return nil, fmt.Errorf("%w: %q vs existing %q", ErrTeamKeyCollision, name, existing.Name)
		}
		copied := *existing
		return &copied, nil
	}
	team := &models.Team{
		ID:              uuid.New(),
		GameID:          gameID,
		Name:            name,
		TeamKey:         teamKey,
		CaptainDeviceID: captainDeviceID,
		CreatedAt:       time.Now().UTC(),
	}
	m.teams[key] = team
	copied := *team
	return &copied, nil
}

func (m *Memory) GetCaptain(ctx context.Context, gameID, teamKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[gameID+"\x00"+teamKey]
	if !ok {
		return "", fmt.Errorf("get captain: team %s/%s not found", gameID, teamKey)
	}
	return team.CaptainDeviceID, nil
}

func (m *Memory) SetCaptain(ctx context.Context, gameID, teamKey, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[gameID+"\x00"+teamKey]
	if !ok {
		return fmt.Errorf("set captain: team %s/%s not found", gameID, teamKey)
	}
	team.CaptainDeviceID = deviceID
	return nil
}
