package model

import "time"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
)

type AlertStatus string

const (
	StatusNew          AlertStatus = "new"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

type AlertType string

const (
	AlertHistoricalSpike   AlertType = "HISTORICAL_SPIKE"
	AlertPeerComparison    AlertType = "PEER_COMPARISON_SPIKE"
	AlertAbsoluteThreshold AlertType = "ABSOLUTE_THRESHOLD"
	AlertTrendIncrease     AlertType = "TREND_INCREASE"
	AlertCriticalDrug      AlertType = "CRITICAL_DRUG_USAGE"
	AlertSustainedHigh     AlertType = "SUSTAINED_HIGH_USAGE"
)

func ValidAlertType(t AlertType) bool {
	switch t {
	case AlertHistoricalSpike, AlertPeerComparison, AlertAbsoluteThreshold,
		AlertTrendIncrease, AlertCriticalDrug, AlertSustainedHigh:
		return true
	}
	return false
}

type UsageStatus string

const (
	UsageApproved UsageStatus = "approved"
	UsagePending  UsageStatus = "pending"
)

type Farm struct {
	ID        string   `json:"id"`
	Name      string   `json:"name,omitempty"`
	Species   string   `json:"species,omitempty"`
	HerdSize  int      `json:"herd_size,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasLocation reports whether both coordinates are set and inside the
// valid lat/lon ranges.
func (f Farm) HasLocation() bool {
	if f.Latitude == nil || f.Longitude == nil {
		return false
	}
	lat, lon := *f.Latitude, *f.Longitude
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

type UsageEvent struct {
	ID        string      `json:"id"`
	FarmID    string      `json:"farm_id"`
	DrugName  string      `json:"drug_name"`
	Status    UsageStatus `json:"status"`
	IsFeed    bool        `json:"is_feed,omitempty"`
	StartDate time.Time   `json:"start_date"`
	CreatedAt time.Time   `json:"created_at"`
}

type HerdSizeBucket string

const (
	HerdSmall  HerdSizeBucket = "small"
	HerdMedium HerdSizeBucket = "medium"
	HerdLarge  HerdSizeBucket = "large"
)

func BucketForHerdSize(size int) HerdSizeBucket {
	switch {
	case size <= 50:
		return HerdSmall
	case size <= 200:
		return HerdMedium
	default:
		return HerdLarge
	}
}

type PeerGroupKey struct {
	Species string         `json:"species"`
	Bucket  HerdSizeBucket `json:"bucket"`
}

// PeerGroupStat is derived per run and never persisted.
type PeerGroupStat struct {
	AverageUsage float64 `json:"average_usage"`
	FarmCount    int     `json:"farm_count"`
}

type AMUAlert struct {
	ID        int64              `json:"id,omitempty"`
	FarmID    string             `json:"farm_id"`
	AlertType AlertType          `json:"alert_type"`
	Severity  Severity           `json:"severity"`
	Message   string             `json:"message"`
	Details   map[string]float64 `json:"details,omitempty"`
	Status    AlertStatus        `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type DiseaseAlert struct {
	ID                 int64       `json:"id,omitempty"`
	FarmID             string      `json:"farm_id"`
	DiseaseName        string      `json:"disease_name"`
	RiskLevel          RiskLevel   `json:"risk_level"`
	Message            string      `json:"message"`
	PreventiveMeasures []string    `json:"preventive_measures,omitempty"`
	Status             AlertStatus `json:"status"`
	CreatedAt          time.Time   `json:"created_at"`
}

type ForecastPeriod struct {
	Timestamp       time.Time `json:"timestamp"`
	TemperatureC    float64   `json:"temperature_c"`
	HumidityPercent float64   `json:"humidity_percent"`
	Condition       string    `json:"condition"`
}
