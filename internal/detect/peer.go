package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/model"
	"amuguard/internal/store"
)

// PeerComparison flags farms whose last-month usage exceeds their peer
// group's average by more than SpikeFactor. Peer statistics are computed
// once per run and shared read-only across farms.
type PeerComparison struct {
	store  store.Store
	cfg    config.PeerConfig
	writer *AlertWriter
	logger *slog.Logger
	now    func() time.Time
}

func NewPeerComparison(st store.Store, cfg config.PeerConfig, writer *AlertWriter, logger *slog.Logger) *PeerComparison {
	return &PeerComparison{store: st, cfg: cfg, writer: writer, logger: logger, now: time.Now}
}

func (d *PeerComparison) Name() string { return "peer_comparison" }

func (d *PeerComparison) Run(ctx context.Context) (Summary, error) {
	farms, err := d.store.ListFarms(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list farms: %w", err)
	}
	now := d.now().UTC()
	from := now.Add(-month)
	usageByFarm, err := d.store.CountUsageByFarm(ctx, model.UsageApproved, from, now)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate usage: %w", err)
	}
	stats := ComputePeerGroups(farms, usageByFarm)

	var sum Summary
	for _, farm := range farms {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if farm.Species == "" || farm.HerdSize <= 0 {
			sum.FarmsSkipped++
			continue
		}
		key := model.PeerGroupKey{Species: farm.Species, Bucket: model.BucketForHerdSize(farm.HerdSize)}
		stat, ok := stats[key]
		if !ok {
			// No peers to compare against; skipped, not flagged.
			sum.FarmsSkipped++
			continue
		}
		sum.FarmsChecked++
		recent := usageByFarm[farm.ID]
		if recent == 0 || stat.AverageUsage <= 0 {
			continue
		}
		if float64(recent) <= stat.AverageUsage*d.cfg.SpikeFactor {
			continue
		}
		ratio := float64(recent) / stat.AverageUsage
		alert := &model.AMUAlert{
			FarmID:    farm.ID,
			AlertType: model.AlertPeerComparison,
			Severity:  peerSeverity(ratio),
			Message: fmt.Sprintf("Usage above peer group (%s/%s): %d treatments vs group average %.1f (%.1fx)",
				farm.Species, key.Bucket, recent, stat.AverageUsage, ratio),
			Details: map[string]float64{
				"recentTreatments": float64(recent),
				"peerAverage":      stat.AverageUsage,
				"peerFarmCount":    float64(stat.FarmCount),
				"ratio":            ratio,
			},
		}
		created, err := d.writer.CreateAMU(ctx, alert)
		if err != nil {
			if d.logger != nil {
				d.logger.Warn("peer comparison write failed", "farm_id", farm.ID, "err", err)
			}
			sum.FarmsSkipped++
			continue
		}
		if created {
			sum.AlertsCreated++
		}
	}
	return sum, nil
}

func peerSeverity(ratio float64) model.Severity {
	switch {
	case ratio >= 3:
		return model.SeverityCritical
	case ratio >= 2.25:
		return model.SeverityHigh
	case ratio >= 1.8:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}
