package weather

import (
	"testing"
	"time"

	"amuguard/internal/model"
)

var forecastStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

// periods builds n forecast samples three hours apart from the start.
func periods(n int, temp, humidity float64, condition string) []model.ForecastPeriod {
	out := make([]model.ForecastPeriod, n)
	for i := range out {
		out[i] = model.ForecastPeriod{
			Timestamp:       forecastStart.Add(time.Duration(i) * 3 * time.Hour),
			TemperatureC:    temp,
			HumidityPercent: humidity,
			Condition:       condition,
		}
	}
	return out
}

func TestEvaluateNoMatch(t *testing.T) {
	if got := Evaluate(periods(8, 18, 40, "clear")); got != nil {
		t.Fatalf("expected nil, got %s", got.DiseaseName)
	}
	if got := Evaluate(nil); got != nil {
		t.Fatalf("expected nil for empty forecast")
	}
}

// A forecast that satisfies both the humidity rule and the rain rule must
// surface only the earlier one.
func TestEvaluatePrecedence(t *testing.T) {
	// 6 periods, humidity 85 and raining: qualifies rule 1 (>=5 humid
	// periods inside 72h) and rule 3 (>=4 rain periods).
	got := Evaluate(periods(6, 22, 85, "rain"))
	if got == nil {
		t.Fatalf("expected a result")
	}
	if got.DiseaseName != "Haemorrhagic Septicaemia" {
		t.Fatalf("disease = %s, want Haemorrhagic Septicaemia", got.DiseaseName)
	}
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("risk = %s, want high", got.RiskLevel)
	}
}

func TestEvaluateHumidityHorizon(t *testing.T) {
	// Five humid periods, but only four inside the 72h horizon; rule 1
	// must not fire and nothing else matches.
	ps := periods(4, 18, 85, "clear")
	ps = append(ps, model.ForecastPeriod{
		Timestamp:       forecastStart.Add(80 * time.Hour),
		TemperatureC:    18,
		HumidityPercent: 85,
		Condition:       "clear",
	})
	if got := Evaluate(ps); got != nil {
		t.Fatalf("rule fired outside its horizon: %s", got.DiseaseName)
	}
}

func TestEvaluateBlackQuarter(t *testing.T) {
	got := Evaluate(periods(4, 18, 50, "rain"))
	if got == nil || got.DiseaseName != "Black Quarter" {
		t.Fatalf("got %+v, want Black Quarter", got)
	}
	if got.RiskLevel != model.RiskHigh {
		t.Fatalf("risk = %s, want high", got.RiskLevel)
	}
	if len(got.PreventiveMeasures) == 0 {
		t.Fatalf("expected preventive measures")
	}
}

// Three rain periods are not enough for Black Quarter (needs 4) but do
// reach the later Anthrax rule (needs 3).
func TestEvaluateRainFallsThroughToAnthrax(t *testing.T) {
	got := Evaluate(periods(3, 18, 50, "rain"))
	if got == nil || got.DiseaseName != "Anthrax" {
		t.Fatalf("got %+v, want Anthrax", got)
	}
}

func TestEvaluateHeatStress(t *testing.T) {
	got := Evaluate(periods(4, 38, 65, "clear"))
	if got == nil || got.DiseaseName != "Heat Stress" {
		t.Fatalf("got %+v, want Heat Stress", got)
	}
	if got.RiskLevel != model.RiskModerate {
		t.Fatalf("risk = %s, want moderate", got.RiskLevel)
	}
}

func TestEvaluateFootAndMouth(t *testing.T) {
	got := Evaluate(periods(5, 30, 74, "clear"))
	if got == nil || got.DiseaseName != "Foot and Mouth Disease" {
		t.Fatalf("got %+v, want Foot and Mouth Disease", got)
	}
}

func TestEvaluateTickBorne(t *testing.T) {
	got := Evaluate(periods(5, 27, 68, "clear"))
	if got == nil || got.DiseaseName != "Tick-borne Disease" {
		t.Fatalf("got %+v, want Tick-borne Disease", got)
	}
}
