package dataset

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"wasco/mapcore/internal/colorscale"
)

// Scarcity classes stored as values for the scarcity data type.
const (
	ScarcityNone     = 0
	ScarcityStress   = 1
	ScarcityBoth     = 2
	ScarcityShortage = 3
)

const maxMemoEntries = 256

// Values is the per-region value table the map colors by. A Values is
// never mutated after Select returns it.
type Values struct {
	StartYear int
	EndYear   int
	DataType  colorscale.DataType
	Data      map[int]float64
}

// Value returns the value for featureID, if the region has one.
func (v *Values) Value(featureID int) (float64, bool) {
	if v == nil {
		return 0, false
	}
	val, ok := v.Data[featureID]
	return val, ok
}

// Selection identifies one derived table.
type Selection struct {
	TimeIndex          int
	DataType           colorscale.DataType
	StressThresholds   []float64
	ShortageThresholds []float64
}

func (s Selection) memoKey() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(s.TimeIndex))
	sb.WriteByte('|')
	sb.WriteString(string(s.DataType))
	if s.DataType == colorscale.DataTypeScarcity {
		for _, t := range [][]float64{s.StressThresholds, s.ShortageThresholds} {
			sb.WriteByte('|')
			for i, v := range t {
				if i > 0 {
					sb.WriteByte(',')
				}
				sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
			}
		}
	}
	return sb.String()
}

// Selector derives Values from one statistics set. It is owned by one
// session and memoizes per Selection, so equal selections yield the same
// *Values and callers can detect data changes by identity.
type Selector struct {
	periods []TimeAggregate

	mu   sync.Mutex
	memo map[string]*Values
}

func NewSelector(periods []TimeAggregate) *Selector {
	return &Selector{periods: periods, memo: make(map[string]*Values)}
}

func (s *Selector) Periods() int {
	if s == nil {
		return 0
	}
	return len(s.periods)
}

// Period returns the start and end year of period i.
func (s *Selector) Period(i int) (int, int, bool) {
	if s == nil || i < 0 || i >= len(s.periods) {
		return 0, 0, false
	}
	return s.periods[i].StartYear, s.periods[i].EndYear, true
}

// Datum returns the raw statistics for one region in period i.
func (s *Selector) Datum(i, featureID int) (Datum, bool) {
	if s == nil || i < 0 || i >= len(s.periods) {
		return Datum{}, false
	}
	d, ok := s.periods[i].Data[featureID]
	return d, ok
}

// Select returns the value table for sel, or false when the time index is
// out of range.
func (s *Selector) Select(sel Selection) (*Values, bool) {
	if s == nil || sel.TimeIndex < 0 || sel.TimeIndex >= len(s.periods) {
		return nil, false
	}
	key := sel.memoKey()

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.memo[key]; ok {
		return v, true
	}
	if len(s.memo) >= maxMemoEntries {
		clear(s.memo)
	}
	v := derive(s.periods[sel.TimeIndex], sel)
	s.memo[key] = v
	return v, true
}

func derive(p TimeAggregate, sel Selection) *Values {
	out := &Values{
		StartYear: p.StartYear,
		EndYear:   p.EndYear,
		DataType:  sel.DataType,
		Data:      make(map[int]float64, len(p.Data)),
	}
	for id, d := range p.Data {
		if v, ok := valueFor(d, sel); ok {
			out.Data[id] = v
		}
	}
	return out
}

func valueFor(d Datum, sel Selection) (float64, bool) {
	switch sel.DataType {
	case colorscale.DataTypeStress:
		return deref(d.Stress)
	case colorscale.DataTypeShortage:
		return deref(d.Shortage)
	case colorscale.DataTypeKcal:
		return deref(d.Kcal)
	case colorscale.DataTypeScarcity:
		return Scarcity(d, sel.StressThresholds, sel.ShortageThresholds)
	default:
		return 0, false
	}
}

// Scarcity classifies a datum: stress counts at or above the first stress
// threshold and shortage at or below the last shortage threshold.
func Scarcity(d Datum, stressThresholds, shortageThresholds []float64) (float64, bool) {
	if d.Stress == nil || d.Shortage == nil || len(stressThresholds) == 0 || len(shortageThresholds) == 0 {
		return 0, false
	}
	stressed := *d.Stress >= stressThresholds[0]
	short := *d.Shortage <= slices.Max(shortageThresholds)
	switch {
	case stressed && short:
		return ScarcityBoth, true
	case stressed:
		return ScarcityStress, true
	case short:
		return ScarcityShortage, true
	default:
		return ScarcityNone, true
	}
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
