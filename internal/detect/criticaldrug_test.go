package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/logging"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

func newCriticalForTest(st store.Store) *CriticalDrugUsage {
	d := NewCriticalDrugUsage(st, config.CriticalDrugConfig{MaxCriticalPercent: 40}, newTestWriter(st), logging.Discard())
	d.now = func() time.Time { return testNow }
	return d
}

// Unclassified drugs must not dilute the ratio: 3 watch vs 2 access is 60%
// critical even with 5 unclassified events alongside.
func TestCriticalDrugUsageExcludesUnclassified(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	at := testNow.AddDate(0, 0, -10)
	seedDrugUsage(t, st, "farm1", "enrofloxacin", 3, at)
	seedDrugUsage(t, st, "farm1", "amoxicillin", 2, at)
	seedDrugUsage(t, st, "farm1", "herbal tonic", 5, at)

	d := newCriticalForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 1 {
		t.Fatalf("alerts created = %d, want 1", sum.AlertsCreated)
	}
	alerts := openAlerts(t, st, "farm1", model.AlertCriticalDrug)
	if len(alerts) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if got := a.Details["criticalPercent"]; got != 60 {
		t.Fatalf("criticalPercent = %v, want 60", got)
	}
	if got := a.Details["drugClassBreakdown.unclassified"]; got != 5 {
		t.Fatalf("unclassified breakdown = %v, want 5", got)
	}
	if a.Severity != model.SeverityHigh {
		t.Fatalf("severity = %s, want high at 1.5x the limit", a.Severity)
	}
}

func TestCriticalDrugUsageBelowLimitNoFire(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	at := testNow.AddDate(0, 0, -10)
	seedDrugUsage(t, st, "farm1", "enrofloxacin", 2, at)
	seedDrugUsage(t, st, "farm1", "amoxicillin", 8, at)

	d := newCriticalForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}

// Only approved events enter the ratio. Five pending enrofloxacin courses
// would push the farm to 70% critical if counted; approved usage alone
// sits at 40%, which is not above the limit.
func TestCriticalDrugUsageIgnoresPendingEvents(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	at := testNow.AddDate(0, 0, -10)
	seedDrugUsage(t, st, "farm1", "enrofloxacin", 2, at)
	seedDrugUsage(t, st, "farm1", "amoxicillin", 3, at)
	for i := 0; i < 5; i++ {
		ev := model.UsageEvent{
			ID:        fmt.Sprintf("farm1-pending-%d", i),
			FarmID:    "farm1",
			DrugName:  "enrofloxacin",
			Status:    model.UsagePending,
			StartDate: at,
		}
		if err := st.InsertUsageEvent(context.Background(), ev); err != nil {
			t.Fatalf("seed pending usage: %v", err)
		}
	}

	d := newCriticalForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}

func TestCriticalDrugUsageOnlyUnclassifiedNoFire(t *testing.T) {
	st := newTestStore(t)
	seedFarm(t, st, model.Farm{ID: "farm1", Species: "cattle", HerdSize: 100})
	seedDrugUsage(t, st, "farm1", "mystery blend", 20, testNow.AddDate(0, 0, -5))

	d := newCriticalForTest(st)
	sum, err := d.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("alerts created = %d, want 0", sum.AlertsCreated)
	}
}
