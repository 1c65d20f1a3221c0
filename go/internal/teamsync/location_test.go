package teamsync

import (
	"testing"
	"time"

	"github.com/teamaction/geohunt/go/internal/models"
)

func collectGlobalLocations(s *Session) (*[][]models.GlobalLocationEntry, func()) {
	var got [][]models.GlobalLocationEntry
	unsub := s.SubscribeGlobalLocations(func(entries []models.GlobalLocationEntry) {
		got = append(got, entries)
	})
	return &got, unsub
}

func TestGlobalLocationReachesOtherTeamsOnly(t *testing.T) {
	f := newFixture()
	red := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	blue := f.connect(t, quietConfig(), "game1", "Blue Team", "Bob")

	blueViews, unsubBlue := collectGlobalLocations(blue)
	defer unsubBlue()
	redViews, unsubRed := collectGlobalLocations(red)
	defer unsubRed()

	red.BroadcastGlobalLocation("Red Team", models.LatLng{Lat: 50.1, Lng: 8.6}, nil)

	views := *blueViews
	if len(views) != 2 {
		t.Fatalf("blue saw %d updates, want snapshot + broadcast", len(views))
	}
	latest := views[len(views)-1]
	if len(latest) != 1 || latest[0].TeamID != "Red_Team" {
		t.Fatalf("blue's view = %+v, want Red_Team entry", latest)
	}

	// The sender's own team never surfaces in its own view.
	for _, v := range *redViews {
		if len(v) != 0 {
			t.Fatalf("red's view contains entries: %+v", v)
		}
	}
}

func TestGlobalLocationCaptainOnly(t *testing.T) {
	f := newFixture()
	f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	member := f.connect(t, quietConfig(), "game1", "Red Team", "Bob")
	blue := f.connect(t, quietConfig(), "game1", "Blue Team", "Carol")

	views, unsub := collectGlobalLocations(blue)
	defer unsub()

	member.BroadcastGlobalLocation("Red Team", models.LatLng{Lat: 50.1, Lng: 8.6}, nil)

	if len(*views) != 1 {
		t.Fatalf("non-captain broadcast leaked: %d updates", len(*views))
	}
}

func TestGlobalLocationExpires(t *testing.T) {
	f := newFixture()
	red := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	blue := f.connect(t, quietConfig(), "game1", "Blue Team", "Bob")

	red.BroadcastGlobalLocation("Red Team", models.LatLng{Lat: 50.1, Lng: 8.6}, nil)

	f.clock.Advance(119 * time.Second)
	views, unsub := collectGlobalLocations(blue)
	unsub()
	if fresh := (*views)[0]; len(fresh) != 1 {
		t.Fatalf("entry inside the staleness window missing: %+v", fresh)
	}

	f.clock.Advance(2 * time.Second)
	views, unsub = collectGlobalLocations(blue)
	unsub()
	if stale := (*views)[0]; len(stale) != 0 {
		t.Fatalf("entry past the staleness window survived: %+v", stale)
	}
}

func TestGlobalLocationCoarsened(t *testing.T) {
	f := newFixture()
	red := f.connect(t, quietConfig(), "game1", "Red Team", "Alice")
	blue := f.connect(t, quietConfig(), "game1", "Blue Team", "Bob")

	views, unsub := collectGlobalLocations(blue)
	defer unsub()

	red.BroadcastGlobalLocation("Red Team", models.LatLng{Lat: 50.123456789, Lng: 8.687654321}, nil)

	latest := (*views)[len(*views)-1]
	if len(latest) != 1 {
		t.Fatalf("views = %+v", *views)
	}
	want := models.LatLng{Lat: 50.12346, Lng: 8.68765}
	if latest[0].Location != want {
		t.Fatalf("location = %v, want coarsened %v", latest[0].Location, want)
	}
}
