package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/detect"
	"amuguard/internal/logging"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

type fakeForecaster struct {
	calls   int
	byCoord map[location][]model.ForecastPeriod
	err     error
}

func (f *fakeForecaster) Forecast(_ context.Context, lat, lon float64) ([]model.ForecastPeriod, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.byCoord[location{lat: lat, lon: lon}], nil
}

func ptr(v float64) *float64 { return &v }

func newJobFixture(t *testing.T, fc *fakeForecaster) (*Job, store.Store) {
	t.Helper()
	st := store.NewMemory()
	logger := logging.Discard()
	writer := detect.NewAlertWriter(st, nil, logger)
	job := NewJob(st, fc, writer, config.WeatherConfig{CallInterval: 0}, logger)
	return job, st
}

func seedLocatedFarm(t *testing.T, st store.Store, id string, lat, lon float64) {
	t.Helper()
	err := st.UpsertFarm(context.Background(), model.Farm{
		ID: id, Name: id, Species: "cattle", HerdSize: 40,
		Latitude: ptr(lat), Longitude: ptr(lon),
	})
	if err != nil {
		t.Fatalf("seed farm %s: %v", id, err)
	}
}

func rainForecast() []model.ForecastPeriod {
	return periods(4, 18, 50, "light rain")
}

func TestJobFansOutToFarmsSharingLocation(t *testing.T) {
	loc := location{lat: 12.97, lon: 77.59}
	fc := &fakeForecaster{byCoord: map[location][]model.ForecastPeriod{loc: rainForecast()}}
	job, st := newJobFixture(t, fc)
	seedLocatedFarm(t, st, "farm-a", loc.lat, loc.lon)
	seedLocatedFarm(t, st, "farm-b", loc.lat, loc.lon)

	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", fc.calls)
	}
	if sum.FarmsChecked != 2 || sum.AlertsCreated != 2 {
		t.Fatalf("summary = %+v, want 2 checked 2 created", sum)
	}
	alerts, err := st.ListDiseaseAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %d, want 2", len(alerts))
	}
	for _, a := range alerts {
		if a.DiseaseName != "Black Quarter" {
			t.Fatalf("disease = %s, want Black Quarter", a.DiseaseName)
		}
	}
}

func TestJobSkipsFarmsWithInvalidCoordinates(t *testing.T) {
	fc := &fakeForecaster{byCoord: map[location][]model.ForecastPeriod{}}
	job, st := newJobFixture(t, fc)
	seedLocatedFarm(t, st, "farm-bad", 200, 77.59)
	if err := st.UpsertFarm(context.Background(), model.Farm{ID: "farm-nil", Species: "cattle", HerdSize: 10}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if fc.calls != 0 {
		t.Fatalf("provider calls = %d, want 0", fc.calls)
	}
	if sum.FarmsSkipped != 2 || sum.FarmsChecked != 0 {
		t.Fatalf("summary = %+v, want 2 skipped 0 checked", sum)
	}
}

func TestJobSecondRunCreatesNoDuplicates(t *testing.T) {
	loc := location{lat: 12.97, lon: 77.59}
	fc := &fakeForecaster{byCoord: map[location][]model.ForecastPeriod{loc: rainForecast()}}
	job, st := newJobFixture(t, fc)
	seedLocatedFarm(t, st, "farm-a", loc.lat, loc.lon)

	if sum, err := job.Run(context.Background()); err != nil || sum.AlertsCreated != 1 {
		t.Fatalf("first run = %+v err %v, want 1 created", sum, err)
	}
	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.AlertsCreated != 0 {
		t.Fatalf("second run created %d alerts, want 0", sum.AlertsCreated)
	}
	alerts, _ := st.ListDiseaseAlerts(context.Background(), 10)
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(alerts))
	}
}

func TestJobProviderFailureSkipsOnlyThatLocation(t *testing.T) {
	good := location{lat: 10, lon: 10}
	fc := &fakeForecaster{
		byCoord: map[location][]model.ForecastPeriod{good: rainForecast()},
	}
	job, st := newJobFixture(t, fc)
	// The failing location returns an empty forecast via the map miss; force
	// a hard error instead by wrapping the forecaster.
	seedLocatedFarm(t, st, "farm-good", good.lat, good.lon)
	seedLocatedFarm(t, st, "farm-broken", 20, 20)
	job.client = forecastFunc(func(ctx context.Context, lat, lon float64) ([]model.ForecastPeriod, error) {
		if lat == 20 {
			return nil, errors.New("provider unavailable")
		}
		return fc.Forecast(ctx, lat, lon)
	})

	sum, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.FarmsChecked != 1 || sum.FarmsSkipped != 1 || sum.AlertsCreated != 1 {
		t.Fatalf("summary = %+v, want 1 checked 1 skipped 1 created", sum)
	}
}

type forecastFunc func(ctx context.Context, lat, lon float64) ([]model.ForecastPeriod, error)

func (f forecastFunc) Forecast(ctx context.Context, lat, lon float64) ([]model.ForecastPeriod, error) {
	return f(ctx, lat, lon)
}

func TestJobHonoursContextCancellation(t *testing.T) {
	loc := location{lat: 12.97, lon: 77.59}
	fc := &fakeForecaster{byCoord: map[location][]model.ForecastPeriod{loc: rainForecast()}}
	job, st := newJobFixture(t, fc)
	job.interval = time.Hour
	seedLocatedFarm(t, st, "farm-a", loc.lat, loc.lon)
	seedLocatedFarm(t, st, "farm-b", 20, 20)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := job.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
