package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"amuguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:amuguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS farms (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			species TEXT NOT NULL DEFAULT '',
			herd_size INTEGER NOT NULL DEFAULT 0,
			latitude REAL,
			longitude REAL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_events (
			id TEXT PRIMARY KEY,
			farm_id TEXT NOT NULL,
			drug_name TEXT NOT NULL,
			status TEXT NOT NULL,
			is_feed INTEGER NOT NULL DEFAULT 0,
			start_date TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_farm_start ON usage_events(farm_id, start_date)`,
		`CREATE TABLE IF NOT EXISTS amu_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			details_json TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_amu_open_unique
			ON amu_alerts(farm_id, alert_type) WHERE status = 'new'`,
		`CREATE TABLE IF NOT EXISTS disease_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			farm_id TEXT NOT NULL,
			disease_name TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			message TEXT NOT NULL,
			measures_json TEXT,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
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

func (s *sqliteStore) ListFarms(ctx context.Context) ([]model.Farm, error) {
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

func (s *sqliteStore) UpsertFarm(ctx context.Context, farm model.Farm) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO farms (id, name, species, herd_size, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			species = excluded.species,
			herd_size = excluded.herd_size,
			latitude = excluded.latitude,
			longitude = excluded.longitude`,
		farm.ID, farm.Name, farm.Species, farm.HerdSize, nullFloat(farm.Latitude), nullFloat(farm.Longitude))
	return err
}

func (s *sqliteStore) InsertUsageEvent(ctx context.Context, ev model.UsageEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, farm_id, drug_name, status, is_feed, start_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.FarmID, ev.DrugName, string(ev.Status), boolInt(ev.IsFeed),
		ev.StartDate.UTC().Format(time.RFC3339), ev.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *sqliteStore) CountUsageEvents(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM usage_events WHERE farm_id = ? AND start_date >= ? AND start_date < ?`
	args := []any{farmID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *sqliteStore) CountUsageByFarm(ctx context.Context, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	query := `SELECT farm_id, COUNT(*) FROM usage_events WHERE start_date >= ? AND start_date < ?`
	args := []any{from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if status != "" {
		query += ` AND status = ?`
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

func (s *sqliteStore) CountUsageByDrug(ctx context.Context, farmID string, status model.UsageStatus, from, to time.Time) (map[string]int, error) {
	query := `SELECT drug_name, COUNT(*) FROM usage_events WHERE farm_id = ? AND start_date >= ? AND start_date < ?`
	args := []any{farmID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339)}
	if status != "" {
		query += ` AND status = ?`
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

func (s *sqliteStore) FindOpenAMUAlert(ctx context.Context, farmID string, alertType model.AlertType) (*model.AMUAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, farm_id, alert_type, severity, message, details_json, status, created_at, updated_at
		FROM amu_alerts WHERE farm_id = ? AND alert_type = ? AND status = 'new'`,
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

func (s *sqliteStore) CreateAMUAlert(ctx context.Context, alert *model.AMUAlert) (bool, error) {
	now := nowUTC()
	alert.Status = model.StatusNew
	alert.CreatedAt = now
	alert.UpdatedAt = now
	// The insert races against the partial unique index; WHERE NOT EXISTS
	// plus ON CONFLICT keeps concurrent runs from erroring out.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO amu_alerts (farm_id, alert_type, severity, message, details_json, status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, 'new', ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM amu_alerts WHERE farm_id = ? AND alert_type = ? AND status = 'new'
		)
		ON CONFLICT DO NOTHING`,
		alert.FarmID, string(alert.AlertType), string(alert.Severity), alert.Message,
		encodeJSON(alert.Details), now.Format(time.RFC3339), now.Format(time.RFC3339),
		alert.FarmID, string(alert.AlertType))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		alert.ID = id
	}
	return true, nil
}

func (s *sqliteStore) UpdateAMUAlertStatus(ctx context.Context, id int64, status model.AlertStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM amu_alerts WHERE id = ?`, id).Scan(&current)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !validTransition(model.AlertStatus(current), status) {
		return ErrInvalidTransition
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE amu_alerts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowUTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) ListAMUAlerts(ctx context.Context, limit int) ([]model.AMUAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, farm_id, alert_type, severity, message, details_json, status, created_at, updated_at
		FROM amu_alerts ORDER BY id DESC LIMIT ?`, limit)
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

func (s *sqliteStore) FindOpenDiseaseAlert(ctx context.Context, farmID, diseaseName string) (*model.DiseaseAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, farm_id, disease_name, risk_level, message, measures_json, status, created_at
		FROM disease_alerts WHERE farm_id = ? AND disease_name = ? AND status = 'new'`,
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

func (s *sqliteStore) CreateDiseaseAlert(ctx context.Context, alert *model.DiseaseAlert) (bool, error) {
	now := nowUTC()
	alert.Status = model.StatusNew
	alert.CreatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO disease_alerts (farm_id, disease_name, risk_level, message, measures_json, status, created_at)
		SELECT ?, ?, ?, ?, ?, 'new', ?
		WHERE NOT EXISTS (
			SELECT 1 FROM disease_alerts WHERE farm_id = ? AND disease_name = ? AND status = 'new'
		)
		ON CONFLICT DO NOTHING`,
		alert.FarmID, alert.DiseaseName, string(alert.RiskLevel), alert.Message,
		encodeJSON(alert.PreventiveMeasures), now.Format(time.RFC3339),
		alert.FarmID, alert.DiseaseName)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		alert.ID = id
	}
	return true, nil
}

func (s *sqliteStore) ListDiseaseAlerts(ctx context.Context, limit int) ([]model.DiseaseAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, farm_id, disease_name, risk_level, message, measures_json, status, created_at
		FROM disease_alerts ORDER BY id DESC LIMIT ?`, limit)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAMUAlert(row rowScanner) (*model.AMUAlert, error) {
	var a model.AMUAlert
	var alertType, severity, status, details, created, updated string
	if err := row.Scan(&a.ID, &a.FarmID, &alertType, &severity, &a.Message, &details, &status, &created, &updated); err != nil {
		return nil, err
	}
	a.AlertType = model.AlertType(alertType)
	a.Severity = model.Severity(severity)
	a.Status = model.AlertStatus(status)
	a.Details = decodeDetails(details)
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &a, nil
}

func scanDiseaseAlert(row rowScanner) (*model.DiseaseAlert, error) {
	var a model.DiseaseAlert
	var risk, status, measures, created string
	if err := row.Scan(&a.ID, &a.FarmID, &a.DiseaseName, &risk, &a.Message, &measures, &status, &created); err != nil {
		return nil, err
	}
	a.RiskLevel = model.RiskLevel(risk)
	a.Status = model.AlertStatus(status)
	a.PreventiveMeasures = decodeStrings(measures)
	a.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &a, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
