package weather

import (
	"strings"
	"time"

	"amuguard/internal/model"
)

// RiskResult is the outcome of evaluating a forecast against the disease
// rule cascade.
type RiskResult struct {
	DiseaseName        string
	RiskLevel          model.RiskLevel
	Message            string
	PreventiveMeasures []string
	QualifyingPeriods  int
}

// diseaseRule pairs a per-period predicate with the minimum number of
// qualifying periods needed to surface the disease. Horizon, when set,
// restricts which periods are considered relative to the first period in
// the forecast.
type diseaseRule struct {
	disease    string
	risk       model.RiskLevel
	minPeriods int
	horizon    time.Duration
	match      func(p model.ForecastPeriod) bool
	message    string
	measures   []string
}

func isRain(p model.ForecastPeriod) bool {
	return strings.Contains(strings.ToLower(p.Condition), "rain")
}

// rules is evaluated strictly in order: the first rule that reaches its
// minimum qualifying-period count wins and later rules are never consulted.
// Two rules can match the same forecast, so the order is load-bearing.
var rules = []diseaseRule{
	{
		disease:    "Haemorrhagic Septicaemia",
		risk:       model.RiskHigh,
		minPeriods: 5,
		horizon:    72 * time.Hour,
		match:      func(p model.ForecastPeriod) bool { return p.HumidityPercent > 80 },
		message:    "Sustained high humidity over the next three days favours Haemorrhagic Septicaemia outbreaks.",
		measures: []string{
			"Vaccinate all susceptible cattle and buffalo",
			"Keep animals out of waterlogged paddocks",
			"Isolate animals showing fever or throat swelling",
		},
	},
	{
		disease:    "Foot and Mouth Disease",
		risk:       model.RiskModerate,
		minPeriods: 5,
		match:      func(p model.ForecastPeriod) bool { return p.HumidityPercent > 70 && p.TemperatureC > 28 },
		message:    "Warm, humid conditions increase Foot and Mouth Disease transmission risk.",
		measures: []string{
			"Check vaccination status of the herd",
			"Restrict animal movement onto and off the farm",
			"Disinfect vehicles and equipment at entry points",
		},
	},
	{
		disease:    "Black Quarter",
		risk:       model.RiskHigh,
		minPeriods: 4,
		match:      isRain,
		message:    "Extended rainfall raises Black Quarter risk in young stock on pasture.",
		measures: []string{
			"Vaccinate animals between six months and two years of age",
			"Avoid grazing on freshly flooded pasture",
			"Bury or burn carcasses of suspected cases",
		},
	},
	{
		disease:    "Heat Stress",
		risk:       model.RiskModerate,
		minPeriods: 4,
		match:      func(p model.ForecastPeriod) bool { return p.TemperatureC > 35 && p.HumidityPercent > 60 },
		message:    "High temperature with humidity will stress livestock and suppress immunity.",
		measures: []string{
			"Provide shade and unrestricted access to cool water",
			"Shift feeding to early morning and late evening",
			"Avoid handling or transporting stock during peak heat",
		},
	},
	{
		disease:    "Bluetongue",
		risk:       model.RiskHigh,
		minPeriods: 4,
		match:      func(p model.ForecastPeriod) bool { return p.HumidityPercent > 75 && p.TemperatureC > 20 },
		message:    "Midge-friendly warm humid weather elevates Bluetongue risk for sheep.",
		measures: []string{
			"House sheep at dusk and dawn when midges feed",
			"Apply approved insect repellents",
			"Drain standing water near housing",
		},
	},
	{
		disease:    "Lumpy Skin Disease",
		risk:       model.RiskModerate,
		minPeriods: 3,
		match:      func(p model.ForecastPeriod) bool { return p.HumidityPercent > 70 && isRain(p) },
		message:    "Humid rainy spells boost biting-fly populations that spread Lumpy Skin Disease.",
		measures: []string{
			"Intensify fly and mosquito control around housing",
			"Inspect cattle daily for skin nodules",
			"Quarantine new arrivals for at least 28 days",
		},
	},
	{
		disease:    "Tick-borne Disease",
		risk:       model.RiskModerate,
		minPeriods: 5,
		match:      func(p model.ForecastPeriod) bool { return p.TemperatureC > 25 && p.HumidityPercent > 65 },
		message:    "Warm humid conditions accelerate tick activity and tick-borne disease spread.",
		measures: []string{
			"Apply acaricide treatment on schedule",
			"Rotate pastures to break the tick life cycle",
			"Check animals for tick burden at milking or handling",
		},
	},
	{
		disease:    "Anthrax",
		risk:       model.RiskHigh,
		minPeriods: 3,
		match:      isRain,
		message:    "Rain can expose buried anthrax spores; grazing risk is elevated.",
		measures: []string{
			"Vaccinate in known anthrax belts",
			"Do not open carcasses of sudden-death cases",
			"Report sudden livestock deaths to the veterinary authority",
		},
	},
	{
		disease:    "Enterotoxaemia",
		risk:       model.RiskModerate,
		minPeriods: 4,
		match:      isRain,
		message:    "Lush growth after rain predisposes sheep and goats to Enterotoxaemia.",
		measures: []string{
			"Vaccinate small ruminants against clostridial disease",
			"Introduce animals to fresh pasture gradually",
			"Avoid sudden changes in concentrate feeding",
		},
	},
	{
		disease:    "Mastitis",
		risk:       model.RiskHigh,
		minPeriods: 4,
		match:      func(p model.ForecastPeriod) bool { return p.HumidityPercent > 75 && isRain(p) },
		message:    "Wet humid conditions raise environmental mastitis pressure in dairy herds.",
		measures: []string{
			"Keep bedding dry and replace it frequently",
			"Use post-milking teat disinfection",
			"Strip and inspect foremilk for early detection",
		},
	},
}

// Evaluate runs the forecast through the ordered rule cascade and returns
// the first matching risk, or nil when nothing qualifies.
func Evaluate(periods []model.ForecastPeriod) *RiskResult {
	if len(periods) == 0 {
		return nil
	}
	start := periods[0].Timestamp
	for _, rule := range rules {
		qualifying := 0
		for _, p := range periods {
			if rule.horizon > 0 && p.Timestamp.After(start.Add(rule.horizon)) {
				continue
			}
			if rule.match(p) {
				qualifying++
			}
		}
		if qualifying >= rule.minPeriods {
			return &RiskResult{
				DiseaseName:        rule.disease,
				RiskLevel:          rule.risk,
				Message:            rule.message,
				PreventiveMeasures: rule.measures,
				QualifyingPeriods:  qualifying,
			}
		}
	}
	return nil
}
