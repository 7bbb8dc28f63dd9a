package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"amuguard/internal/config"
	"amuguard/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid alert status transition")
)

// Store is the boundary between the detection core and persistence. Usage
// events and farms are owned by surrounding systems; alerts are owned here.
type Store interface {
	Init(ctx context.Context) error
	Close() error

	ListFarms(ctx context.Context) ([]model.Farm, error)
	UpsertFarm(ctx context.Context, farm model.Farm) error
	InsertUsageEvent(ctx context.Context, ev model.UsageEvent) error

	CountUsageEvents(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (int, error)
	CountUsageByFarm(ctx context.Context, status model.UsageStatus, from, to time.Time) (map[string]int, error)
	CountUsageByDrug(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (map[string]int, error)

	FindOpenAMUAlert(ctx context.Context, farmID string, alertType model.AlertType) (*model.AMUAlert, error)
	// CreateAMUAlert inserts the alert unless an open alert with the same
	// (farm, type) already exists. Returns false when suppressed. The
	// check-and-insert is atomic with respect to concurrent runs.
	CreateAMUAlert(ctx context.Context, alert *model.AMUAlert) (bool, error)
	UpdateAMUAlertStatus(ctx context.Context, id int64, status model.AlertStatus) error
	ListAMUAlerts(ctx context.Context, limit int) ([]model.AMUAlert, error)

	FindOpenDiseaseAlert(ctx context.Context, farmID, diseaseName string) (*model.DiseaseAlert, error)
	CreateDiseaseAlert(ctx context.Context, alert *model.DiseaseAlert) (bool, error)
	ListDiseaseAlerts(ctx context.Context, limit int) ([]model.DiseaseAlert, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// validTransition encodes the alert lifecycle: new -> acknowledged -> resolved.
func validTransition(from, to model.AlertStatus) bool {
	switch from {
	case model.StatusNew:
		return to == model.StatusAcknowledged || to == model.StatusResolved
	case model.StatusAcknowledged:
		return to == model.StatusResolved
	default:
		return false
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func decodeDetails(raw string) map[string]float64 {
	if raw == "" {
		return nil
	}
	out := map[string]float64{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
