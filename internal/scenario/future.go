package scenario

import "strings"

// FutureScenario is one combination of the future dataset variables.
type FutureScenario struct {
	Population        string `json:"population" yaml:"population"`
	ImpactModel       string `json:"impactModel" yaml:"impactModel"`
	ClimateModel      string `json:"climateModel" yaml:"climateModel"`
	ClimateExperiment string `json:"climateExperiment" yaml:"climateExperiment"`
	YieldGap          string `json:"yieldGap" yaml:"yieldGap"`
	DietChange        string `json:"dietChange" yaml:"dietChange"`
	FoodLossRed       string `json:"foodLossRed" yaml:"foodLossRed"`
	Trade             string `json:"trade" yaml:"trade"`
	AgriExp           string `json:"agriExp" yaml:"agriExp"`
	Reuse             string `json:"reuse" yaml:"reuse"`
	Alloc             string `json:"alloc" yaml:"alloc"`
}

// DefaultFutureScenario mirrors the first option of every variable in the
// published future dataset.
var DefaultFutureScenario = FutureScenario{
	Population:        "SSP2",
	ImpactModel:       "watergap",
	ClimateModel:      "gfdl-esm2m",
	ClimateExperiment: "rcp4p5",
	YieldGap:          "current",
	DietChange:        "current",
	FoodLossRed:       "current",
	Trade:             "current volume",
	AgriExp:           "current",
	Reuse:             "meetfood",
	Alloc:             "runoff",
}

func (s FutureScenario) values() [][2]string {
	return [][2]string{
		{"population", s.Population},
		{"impactModel", s.ImpactModel},
		{"climateModel", s.ClimateModel},
		{"climateExperiment", s.ClimateExperiment},
		{"yieldGap", s.YieldGap},
		{"dietChange", s.DietChange},
		{"foodLossRed", s.FoodLossRed},
		{"trade", s.Trade},
		{"agriExp", s.AgriExp},
		{"reuse", s.Reuse},
		{"alloc", s.Alloc},
	}
}

// ID joins the variable values in their canonical order.
func (s FutureScenario) ID() string {
	vals := s.values()
	parts := make([]string, 0, len(vals))
	for _, kv := range vals {
		parts = append(parts, kv[1])
	}
	return strings.Join(parts, "_")
}

// Expand fills {{variable}} placeholders in a dataset URL template.
func (s FutureScenario) Expand(template string) string {
	vals := s.values()
	pairs := make([]string, 0, len(vals)*2)
	for _, kv := range vals {
		pairs = append(pairs, "{{"+kv[0]+"}}", kv[1])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// WithDefaults fills blank variables from DefaultFutureScenario.
func (s FutureScenario) WithDefaults() FutureScenario {
	d := DefaultFutureScenario
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&s.Population, d.Population)
	fill(&s.ImpactModel, d.ImpactModel)
	fill(&s.ClimateModel, d.ClimateModel)
	fill(&s.ClimateExperiment, d.ClimateExperiment)
	fill(&s.YieldGap, d.YieldGap)
	fill(&s.DietChange, d.DietChange)
	fill(&s.FoodLossRed, d.FoodLossRed)
	fill(&s.Trade, d.Trade)
	fill(&s.AgriExp, d.AgriExp)
	fill(&s.Reuse, d.Reuse)
	fill(&s.Alloc, d.Alloc)
	return s
}
