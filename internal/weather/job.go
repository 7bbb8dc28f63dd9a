package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/detect"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

// Forecaster is the provider contract the job depends on. Client satisfies
// it; tests substitute a canned implementation.
type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) ([]model.ForecastPeriod, error)
}

// Job fetches a forecast per distinct farm location, runs the disease rule
// cascade, and fans resulting risk out to every farm at that location.
type Job struct {
	store    store.Store
	client   Forecaster
	writer   *detect.AlertWriter
	logger   *slog.Logger
	interval time.Duration
}

func NewJob(st store.Store, client Forecaster, writer *detect.AlertWriter, cfg config.WeatherConfig, logger *slog.Logger) *Job {
	return &Job{
		store:    st,
		client:   client,
		writer:   writer,
		logger:   logger,
		interval: cfg.CallInterval,
	}
}

func (j *Job) Name() string { return "disease_prediction" }

type location struct {
	lat, lon float64
}

func (j *Job) Run(ctx context.Context) (detect.Summary, error) {
	farms, err := j.store.ListFarms(ctx)
	if err != nil {
		return detect.Summary{}, fmt.Errorf("list farms: %w", err)
	}

	// Farms sharing exact coordinates share one provider call.
	byLocation := make(map[location][]model.Farm)
	var order []location
	var sum detect.Summary
	for _, farm := range farms {
		if !farm.HasLocation() {
			if j.logger != nil {
				j.logger.Debug("farm skipped for disease prediction", "farm_id", farm.ID, "reason", "invalid or missing coordinates")
			}
			sum.FarmsSkipped++
			continue
		}
		loc := location{lat: *farm.Latitude, lon: *farm.Longitude}
		if _, seen := byLocation[loc]; !seen {
			order = append(order, loc)
		}
		byLocation[loc] = append(byLocation[loc], farm)
	}

	for i, loc := range order {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if i > 0 {
			// Fixed pause between provider calls; rate-limit courtesy,
			// not correctness.
			if !sleep(ctx, j.interval) {
				return sum, ctx.Err()
			}
		}
		res := j.runLocation(ctx, loc, byLocation[loc])
		sum.FarmsChecked += res.FarmsChecked
		sum.AlertsCreated += res.AlertsCreated
		sum.FarmsSkipped += res.FarmsSkipped
	}
	return sum, nil
}

func (j *Job) runLocation(ctx context.Context, loc location, farms []model.Farm) detect.Summary {
	var sum detect.Summary
	periods, err := j.client.Forecast(ctx, loc.lat, loc.lon)
	if err != nil {
		if j.logger != nil {
			j.logger.Warn("forecast fetch failed",
				"lat", loc.lat, "lon", loc.lon, "farms", len(farms), "err", err)
		}
		sum.FarmsSkipped += len(farms)
		return sum
	}
	result := Evaluate(periods)
	sum.FarmsChecked += len(farms)
	if result == nil {
		return sum
	}
	for _, farm := range farms {
		alert := &model.DiseaseAlert{
			FarmID:             farm.ID,
			DiseaseName:        result.DiseaseName,
			RiskLevel:          result.RiskLevel,
			Message:            result.Message,
			PreventiveMeasures: result.PreventiveMeasures,
		}
		created, err := j.writer.CreateDisease(ctx, alert)
		if err != nil {
			if j.logger != nil {
				j.logger.Warn("disease alert write failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		if created {
			sum.AlertsCreated++
		}
	}
	return sum
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
