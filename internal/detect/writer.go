package detect

import (
	"context"
	"fmt"
	"log/slog"

	"amuguard/internal/model"
	"amuguard/internal/store"
)

// Publisher receives alerts that were actually created. Optional.
type Publisher interface {
	PublishAMUAlert(ctx context.Context, alert model.AMUAlert) error
	PublishDiseaseAlert(ctx context.Context, alert model.DiseaseAlert) error
}

// AlertWriter is the single path through which detectors persist alert
// candidates. The check-then-create pair is backed by the store's
// conditional insert, so concurrent runs cannot double-write.
type AlertWriter struct {
	store  store.Store
	pub    Publisher
	logger *slog.Logger
}

func NewAlertWriter(st store.Store, pub Publisher, logger *slog.Logger) *AlertWriter {
	return &AlertWriter{store: st, pub: pub, logger: logger}
}

func (w *AlertWriter) CreateAMU(ctx context.Context, alert *model.AMUAlert) (bool, error) {
	if !model.ValidAlertType(alert.AlertType) {
		return false, fmt.Errorf("invalid alert type %q", alert.AlertType)
	}
	existing, err := w.store.FindOpenAMUAlert(ctx, alert.FarmID, alert.AlertType)
	if err != nil {
		return false, fmt.Errorf("find open alert: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	created, err := w.store.CreateAMUAlert(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	if !created {
		return false, nil
	}
	if w.logger != nil {
		w.logger.Warn("amu alert created",
			"farm_id", alert.FarmID,
			"alert_type", alert.AlertType,
			"severity", alert.Severity,
		)
	}
	if w.pub != nil {
		if err := w.pub.PublishAMUAlert(ctx, *alert); err != nil && w.logger != nil {
			w.logger.Warn("publish amu alert failed", "err", err)
		}
	}
	return true, nil
}

func (w *AlertWriter) CreateDisease(ctx context.Context, alert *model.DiseaseAlert) (bool, error) {
	existing, err := w.store.FindOpenDiseaseAlert(ctx, alert.FarmID, alert.DiseaseName)
	if err != nil {
		return false, fmt.Errorf("find open alert: %w", err)
	}
	if existing != nil {
		return false, nil
	}
	created, err := w.store.CreateDiseaseAlert(ctx, alert)
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}
	if !created {
		return false, nil
	}
	if w.logger != nil {
		w.logger.Warn("disease alert created",
			"farm_id", alert.FarmID,
			"disease", alert.DiseaseName,
			"risk", alert.RiskLevel,
		)
	}
	if w.pub != nil {
		if err := w.pub.PublishDiseaseAlert(ctx, *alert); err != nil && w.logger != nil {
			w.logger.Warn("publish disease alert failed", "err", err)
		}
	}
	return true, nil
}
