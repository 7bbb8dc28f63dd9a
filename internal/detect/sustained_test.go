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

func newSustainedForTest(st store.Store) *SustainedHighUsage {
	cfg := config.SustainedConfig{
		ConsecutiveWeeks: 4,
		LookbackWeeks:    8,
		BaselineWeeks:    26,
		IntensityFactor:  2.0,
		MinWeeklyEvents:  3,
	}
	d := NewSustainedHighUsage(st, cfg, newTestWriter(st), logging.Discard())
	d.now = func() time.Time { return testNow }
	return d
}

// seedWeeks seeds per-week counts, index 0 being the most recent week.
func seedWeeks(t *testing.T, st store.Store, farmID string, counts []int) {
	t.Helper()
	for i, n := range counts {
		at := testNow.Add(-time.Duration(i)*week - 3*24*time.Hour)
		seedUsage(t, st, farmID, n, at)
	}
}

func TestSustainedHighUsageFires(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedWeeks(t, st, "farm1", []int{5, 5, 5, 5})

	d := newSustainedForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 1 {
		t.Fatalf("alerts created = %d, want 1", sum.AlertsCreated)
	}
	alerts := openAlerts(t, st, "farm1", model.AlertSustainedHigh)
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	if got := alerts[0].Details["consecutiveWeeks"]; got != 4 {
		t.Fatalf("consecutiveWeeks = %v, want 4", got)
	}
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("severity = %s, want critical for a sustained streak", alerts[0].Severity)
	}
}

func TestSustainedHighUsageReportsFullStreak(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedWeeks(t, st, "farm1", []int{6, 6, 6, 6, 6, 6})

	d := newSustainedForTest(st)
	if _, err := d.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	alerts := openAlerts(t, st, "farm1", model.AlertSustainedHigh)
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	if got := alerts[0].Details["consecutiveWeeks"]; got != 6 {
		t.Fatalf("consecutiveWeeks = %v, want 6", got)
	}
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("severity = %s, want critical", alerts[0].Severity)
	}
}

// One quiet week resets the streak: above, above, below, above, above never
// reaches four consecutive weeks.
func TestSustainedHighUsageStreakResets(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedWeeks(t, st, "farm1", []int{5, 5, 0, 5, 5})

	d := newSustainedForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}
