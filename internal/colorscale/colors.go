package colorscale

import "strings"

// DataType tags one classified map variable.
type DataType string

const (
	DataTypeStress   DataType = "stress"
	DataTypeShortage DataType = "shortage"
	DataTypeScarcity DataType = "scarcity"
	DataTypeKcal     DataType = "kcal"
)

const (
	BelowThresholdColor = "#D2E2E6"
	MissingDataColor    = "#BDBDBD"
)

var allDataTypes = []DataType{
	DataTypeStress,
	DataTypeShortage,
	DataTypeScarcity,
	DataTypeKcal,
}

var dataTypeColors = map[DataType][]string{
	DataTypeStress:   {"#FDD5C1", "#F58C71", "#D6404D"},
	DataTypeShortage: {"#C14B3F", "#EE8A6A", "#FBC6A9"},
	DataTypeScarcity: {"#E37D59", "#7F2A2D", "#B25F55"},
	DataTypeKcal:     {"#A83A3A", "#D6714B", "#F1A96F", "#F9D39C", "#FCEBCB"},
}

var defaultThresholds = map[DataType][]float64{
	DataTypeStress:   {0.2, 0.4, 1},
	DataTypeShortage: {500, 1000, 1700},
	DataTypeScarcity: {1, 2, 3},
	DataTypeKcal:     {1000, 1845, 2355, 2894, 4000},
}

func AllDataTypes() []DataType {
	out := make([]DataType, len(allDataTypes))
	copy(out, allDataTypes)
	return out
}

func ParseDataType(raw string) (DataType, bool) {
	dt := DataType(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := dataTypeColors[dt]
	return dt, ok
}

// LargerIsBetter reports whether higher values mean safer conditions.
func LargerIsBetter(dt DataType) bool {
	return dt == DataTypeShortage || dt == DataTypeKcal
}

// Colors returns the band colors above the lowest threshold, ordered from
// the first band to the top band.
func Colors(dt DataType) []string {
	c := dataTypeColors[dt]
	out := make([]string, len(c))
	copy(out, c)
	return out
}

func DefaultThresholds(dt DataType) []float64 {
	t := defaultThresholds[dt]
	out := make([]float64, len(t))
	copy(out, t)
	return out
}

// GridVariable is one gridded variable shown in the zoomed-in view.
type GridVariable string

const (
	GridPopulation    GridVariable = "pop"
	GridElectric      GridVariable = "elec"
	GridDomestic      GridVariable = "dom"
	GridManufacturing GridVariable = "man"
	GridLivestock     GridVariable = "live"
	GridIrrigation    GridVariable = "irri"
)

var gridLabels = map[GridVariable]string{
	GridPopulation:    "Population",
	GridElectric:      "Electricity consumption",
	GridDomestic:      "Domestic consumption",
	GridManufacturing: "Manufacturing consumption",
	GridLivestock:     "Livestock consumption",
	GridIrrigation:    "Irrigation consumption",
}

var gridQuintileColors = map[GridVariable][]string{
	GridPopulation:    {"#FEF0D9", "#FDCC8A", "#FC8D59", "#E34A33", "#B30000", "#7F0000"},
	GridElectric:      {"#F2F0F7", "#CBC9E2", "#9E9AC8", "#756BB1", "#54278F", "#3F007D"},
	GridDomestic:      {"#EFF3FF", "#BDD7E7", "#6BAED6", "#3182BD", "#08519C", "#08306B"},
	GridManufacturing: {"#F7F7F7", "#CCCCCC", "#969696", "#636363", "#252525", "#000000"},
	GridLivestock:     {"#FFFFD4", "#FED98E", "#FE9929", "#D95F0E", "#993404", "#662506"},
	GridIrrigation:    {"#EDF8E9", "#BAE4B3", "#74C476", "#31A354", "#006D2C", "#00441B"},
}

func ParseGridVariable(raw string) (GridVariable, bool) {
	v := GridVariable(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := gridLabels[v]
	return v, ok
}

func GridLabel(v GridVariable) string {
	return gridLabels[v]
}

func GridQuintileColors(v GridVariable) []string {
	c := gridQuintileColors[v]
	out := make([]string, len(c))
	copy(out, c)
	return out
}
