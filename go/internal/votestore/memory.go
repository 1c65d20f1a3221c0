package votestore

import (
	"context"
	"sync"

	"github.com/teamaction/geohunt/go/internal/models"
)

type memoryKey struct {
	gameID  string
	teamKey string
}

type memoryFeed struct {
	key memoryKey
	ch  chan models.TaskVote
}

// Memory is an in-process vote store for tests and single-node dev runs.
// Subscriptions are live the moment SubscribeVotes returns, so the
// subscribe-then-load contract holds the same way it does for the
// Postgres feed.
type Memory struct {
	mu    sync.Mutex
	rows  map[memoryKey]map[string]models.TaskVote // -> pointID+"\x00"+deviceID
	feeds []*memoryFeed
}

// NewMemory returns an empty in-memory vote store.
func NewMemory() *Memory {
	return &Memory{rows: make(map[memoryKey]map[string]models.TaskVote)}
}

func (m *Memory) UpsertVote(ctx context.Context, gameID, teamKey string, vote models.TaskVote) error {
	key := memoryKey{gameID, teamKey}
	m.mu.Lock()
	byPair, ok := m.rows[key]
	if !ok {
		byPair = make(map[string]models.TaskVote)
		m.rows[key] = byPair
	}
	byPair[vote.PointID+"\x00"+vote.DeviceID] = vote
	// Delivery stays under the lock so a concurrent cancel cannot close a
	// feed channel mid-send. Sends never block: a consumer that is behind
	// drops the notification and the broadcast path covers it.
	for _, f := range m.feeds {
		if f.key == key {
			select {
			case f.ch <- vote:
			default:
			}
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) ListVotes(ctx context.Context, gameID, teamKey string) ([]models.TaskVote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPair := m.rows[memoryKey{gameID, teamKey}]
	out := make([]models.TaskVote, 0, len(byPair))
	for _, v := range byPair {
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) SubscribeVotes(ctx context.Context, gameID, teamKey string) (<-chan models.TaskVote, func(), error) {
	feed := &memoryFeed{key: memoryKey{gameID, teamKey}, ch: make(chan models.TaskVote, 64)}
	m.mu.Lock()
	m.feeds = append(m.feeds, feed)
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		for i, f := range m.feeds {
			if f == feed {
				m.feeds = append(m.feeds[:i:i], m.feeds[i+1:]...)
				break
			}
		}
		m.mu.Unlock()
		close(feed.ch)
	}
	return feed.ch, cancel, nil
}
