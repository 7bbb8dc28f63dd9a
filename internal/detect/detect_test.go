package detect

import (
	"context"
	"fmt"
	"testing"
	"time"

	"amuguard/internal/logging"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

// Fixed reference time for every detector test.
var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	return store.NewMemory()
}

func newTestWriter(st store.Store) *AlertWriter {
	return NewAlertWriter(st, nil, logging.Discard())
}

func seedFarm(t *testing.T, st store.Store, farm model.Farm) {
	t.Helper()
	if err := st.UpsertFarm(context.Background(), farm); err != nil {
		t.Fatalf("seed farm %s: %v", farm.ID, err)
	}
}

// seedUsage inserts n approved events for the farm at the given time.
func seedUsage(t *testing.T, st store.Store, farmID string, n int, at time.Time) {
	t.Helper()
	seedDrugUsage(t, st, farmID, "amoxicillin", n, at)
}

func seedDrugUsage(t *testing.T, st store.Store, farmID, drug string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev := model.UsageEvent{
			ID:        fmt.Sprintf("%s-%s-%s-%d", farmID, drug, at.Format("20060102T1504"), i),
			FarmID:    farmID,
			DrugName:  drug,
			Status:    model.UsageApproved,
			StartDate: at,
		}
		if err := st.InsertUsageEvent(context.Background(), ev); err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}
}

func openAlerts(t *testing.T, st store.Store, farmID string, alertType model.AlertType) []model.AMUAlert {
	t.Helper()
	all, err := st.ListAMUAlerts(context.Background(), 0)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	var out []model.AMUAlert
	for _, a := range all {
		if a.FarmID == farmID && a.AlertType == alertType && a.Status == model.StatusNew {
			out = append(out, a)
		}
	}
	return out
}
