package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"amuguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/amuguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS farms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			species TEXT NOT NULL DEFAULT '',
			herd_size INTEGER NOT NULL DEFAULT 0,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		)`,
		`CREATE TABLE IF NOT EXISTS usage_events (
			id TEXT PRIMARY KEY,
			farm_id TEXT NOT NULL,
			drug_name TEXT NOT NULL,
			status TEXT NOT NULL,
			is_feed BOOLEAN NOT NULL DEFAULT FALSE,
			start_date TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_farm_start ON usage_events(farm_id, start_date)`,
		`CREATE TABLE IF NOT EXISTS amu_alerts (
			id BIGSERIAL PRIMARY KEY,
			farm_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			details_json JSONB,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_amu_open_unique
			ON amu_alerts(farm_id, alert_type) WHERE status = 'new'`,
		`CREATE TABLE IF NOT EXISTS disease_alerts (
			id BIGSERIAL PRIMARY KEY,
			farm_id TEXT NOT NULL,
			disease_name TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			message TEXT NOT NULL,
			measures_json JSONB,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_disease_open_unique
			ON disease_alerts(farm_id, disease_name) WHERE status = 'new'`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) ListFarms(ctx context.Context) ([]model.Farm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, species, herd_size, latitude, longitude FROM farms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Farm
	for rows.Next() {
		var f model.Farm
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.Name, &f.Species, &f.HerdSize, &lat, &lon); err != nil {
			return nil, err
		}
		if lat.Valid {
			v := lat.Float64
			f.Latitude = &v
		}
		if lon.Valid {
			v := lon.Float64
			f.Longitude = &v
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *postgresStore) UpsertFarm(ctx context.Context, farm model.Farm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO farms (id, name, species, herd_size, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			species = EXCLUDED.species,
			herd_size = EXCLUDED.herd_size,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude`,
		farm.ID, farm.Name, farm.Species, farm.HerdSize, nullFloat(farm.Latitude), nullFloat(farm.Longitude))
	return err
}

func (s *postgresStore) InsertUsageEvent(ctx context.Context, ev model.UsageEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, farm_id, drug_name, status, is_feed, start_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.FarmID, ev.DrugName, string(ev.Status), ev.IsFeed, ev.StartDate.UTC(), ev.CreatedAt.UTC())
	return err
}

func (s *postgresStore) CountUsageEvents(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM usage_events WHERE farm_id = $1 AND start_date >= $2 AND start_date < $3`
	args := []any{farmID, from.UTC(), to.UTC()}
	if status != "" {
		query += ` AND status = $4`
		args = append(args, string(status))
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *postgresStore) CountUsageByFarm(ctx context.Context, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	query := `SELECT farm_id, COUNT(*) FROM usage_events WHERE start_date >= $1 AND start_date < $2`
	args := []any{from.UTC(), to.UTC()}
	if status != "" {
		query += ` AND status = $3`
		args = append(args, string(status))
	}
	query += ` GROUP BY farm_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var farmID string
		var count int
		if err := rows.Scan(&farmID, &count); err != nil {
			return nil, err
		}
		out[farmID] = count
	}
	return out, rows.Err()
}

func (s *postgresStore) CountUsageByDrug(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	query := `SELECT drug_name, COUNT(*) FROM usage_events WHERE farm_id = $1 AND start_date >= $2 AND start_date < $3`
	args := []any{farmID, from.UTC(), to.UTC()}
	if status != "" {
		query += ` AND status = $4`
		args = append(args, string(status))
	}
	query += ` GROUP BY drug_name`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var drug string
		var count int
		if err := rows.Scan(&drug, &count); err != nil {
			return nil, err
		}
		out[drug] = count
	}
	return out, rows.Err()
}

func (s *postgresStore) FindOpenAMUAlert(ctx context.Context, farmID string, alertType model.AlertType) (*model.AMUAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, farm_id, alert_type, severity, message, COALESCE(details_json::TEXT, ''), status,
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
			to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM amu_alerts WHERE farm_id = $1 AND alert_type = $2 AND status = 'new'`,
		farmID, string(alertType))
	alert, err := scanAMUAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *postgresStore) CreateAMUAlert(ctx context.Context, alert *model.AMUAlert) (bool, error) {
	now := nowUTC()
	alert.Status = model.StatusNew
	alert.CreatedAt = now
	alert.UpdatedAt = now
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO amu_alerts (farm_id, alert_type, severity, message, details_json, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::JSONB, 'new', $6, $7)
		ON CONFLICT (farm_id, alert_type) WHERE status = 'new' DO NOTHING
		RETURNING id`,
		alert.FarmID, string(alert.AlertType), string(alert.Severity), alert.Message,
		encodeJSON(alert.Details), now, now).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	alert.ID = id
	return true, nil
}

func (s *postgresStore) UpdateAMUAlertStatus(ctx context.Context, id int64, status model.AlertStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var current string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM amu_alerts WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !validTransition(model.AlertStatus(current), status) {
		return ErrInvalidTransition
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE amu_alerts SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), nowUTC(), id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *postgresStore) ListAMUAlerts(ctx context.Context, limit int) ([]model.AMUAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, farm_id, alert_type, severity, message, COALESCE(details_json::TEXT, ''), status,
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"'),
			to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM amu_alerts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AMUAlert
	for rows.Next() {
		alert, err := scanAMUAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alert)
	}
	return out, rows.Err()
}

func (s *postgresStore) FindOpenDiseaseAlert(ctx context.Context, farmID, diseaseName string) (*model.DiseaseAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, farm_id, disease_name, risk_level, message, COALESCE(measures_json::TEXT, ''), status,
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM disease_alerts WHERE farm_id = $1 AND disease_name = $2 AND status = 'new'`,
		farmID, diseaseName)
	alert, err := scanDiseaseAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return alert, nil
}

func (s *postgresStore) CreateDiseaseAlert(ctx context.Context, alert *model.DiseaseAlert) (bool, error) {
	now := nowUTC()
	alert.Status = model.StatusNew
	alert.CreatedAt = now
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO disease_alerts (farm_id, disease_name, risk_level, message, measures_json, status, created_at)
		VALUES ($1, $2, $3, $4, $5::JSONB, 'new', $6)
		ON CONFLICT (farm_id, disease_name) WHERE status = 'new' DO NOTHING
		RETURNING id`,
		alert.FarmID, alert.DiseaseName, string(alert.RiskLevel), alert.Message,
		encodeJSON(alert.PreventiveMeasures), now).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	alert.ID = id
	return true, nil
}

func (s *postgresStore) ListDiseaseAlerts(ctx context.Context, limit int) ([]model.DiseaseAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, farm_id, disease_name, risk_level, message, COALESCE(measures_json::TEXT, ''), status,
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')
		FROM disease_alerts ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DiseaseAlert
	for rows.Next() {
		alert, err := scanDiseaseAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alert)
	}
	return out, rows.Err()
}
