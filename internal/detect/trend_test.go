package detect

import (
	"context"
	"testing"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/logging"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

func newTrendForTest(st store.Store) *TrendIncrease {
	d := NewTrendIncrease(st, config.TrendConfig{MinIncreasePercent: 30}, newTestWriter(st), logging.Discard())
	d.now = func() time.Time { return testNow }
	return d
}

// seedMonths places counts into the three consecutive month buckets,
// oldest first.
func seedMonths(t *testing.T, st store.Store, farmID string, counts [3]int) {
	t.Helper()
	for i, n := range counts {
		at := testNow.Add(-time.Duration(3-i)*month + 15*24*time.Hour)
		seedUsage(t, st, farmID, n, at)
	}
}

func TestTrendIncreaseFires(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedMonths(t, st, "farm1", [3]int{4, 6, 8})

	d := newTrendForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 1 {
		t.Fatalf("alerts created = %d, want 1", sum.AlertsCreated)
	}
	alerts := openAlerts(t, st, "farm1", model.AlertTrendIncrease)
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	if got := alerts[0].Details["increasePercent"]; got != 100 {
		t.Fatalf("increasePercent = %v, want 100", got)
	}
	if alerts[0].Severity != model.SeverityMedium {
		t.Fatalf("severity = %s, want medium", alerts[0].Severity)
	}
}

// Month-over-month deltas are what matter: 10 -> 12 -> 11 is not a trend
// even though first-to-last growth could clear the floor.
func TestTrendIncreaseNonMonotonicNoFire(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedMonths(t, st, "farm1", [3]int{10, 12, 11})

	d := newTrendForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}

func TestTrendIncreaseBelowFloorNoFire(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	// Strictly increasing but only +25% over the span.
	seedMonths(t, st, "farm1", [3]int{8, 9, 10})

	d := newTrendForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}
