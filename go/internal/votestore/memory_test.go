package votestore

import (
	"context"
	"testing"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
)

func TestMemoryUpsertReplacesByDeviceAndTask(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first := models.TaskVote{DeviceID: "d1", PointID: "p1", Answer: models.TextAnswer("oak"), Timestamp: 1}
	second := models.TaskVote{DeviceID: "d1", PointID: "p1", Answer: models.TextAnswer("birch"), Timestamp: 2}
	if err := m.UpsertVote(ctx, "g", "team", first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.UpsertVote(ctx, "g", "team", second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := m.ListVotes(ctx, "g", "team")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Answer.Text != "birch" {
		t.Fatalf("rows = %+v, want one row holding the later vote", rows)
	}
}

func TestMemoryFeedDeliversAfterSubscribe(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	feed, cancel, err := m.SubscribeVotes(ctx, "g", "team")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	vote := models.TaskVote{DeviceID: "d1", PointID: "p1", Answer: models.NumberAnswer(3), Timestamp: 1}
	if err := m.UpsertVote(ctx, "g", "team", vote); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	select {
	case got := <-feed:
		if got.DeviceID != "d1" || got.PointID != "p1" {
			t.Fatalf("feed delivered %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("feed never delivered the committed vote")
	}
}

func TestMemoryFeedScopedToTeam(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	feed, cancel, err := m.SubscribeVotes(ctx, "g", "red")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	vote := models.TaskVote{DeviceID: "d1", PointID: "p1", Answer: models.TextAnswer("x"), Timestamp: 1}
	if err := m.UpsertVote(ctx, "g", "blue", vote); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	select {
	case got := <-feed:
		t.Fatalf("feed for red delivered blue's vote: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryCancelClosesFeed(t *testing.T) {
	m := NewMemory()
	feed, cancel, err := m.SubscribeVotes(context.Background(), "g", "team")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cancel()

	if _, ok := <-feed; ok {
		t.Fatal("feed channel should be closed after cancel")
	}
	// Upserting after cancel must not panic on the closed channel.
	vote := models.TaskVote{DeviceID: "d1", PointID: "p1", Answer: models.TextAnswer("x"), Timestamp: 1}
	if err := m.UpsertVote(context.Background(), "g", "team", vote); err != nil {
		t.Fatalf("upsert after cancel: %v", err)
	}
}
