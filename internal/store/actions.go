package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/scenario"
)

// Action is one state transition. The reducer never mutates its input.
type Action interface {
	reduce(State) (State, bool)
}

type SetTimeIndex struct{ Value int }

func (a SetTimeIndex) reduce(s State) (State, bool) {
	if a.Value < 0 || a.Value == s.TimeIndex {
		return s, false
	}
	s = s.clone()
	s.TimeIndex = a.Value
	return s, true
}

type SetDataType struct{ DataType colorscale.DataType }

func (a SetDataType) reduce(s State) (State, bool) {
	if a.DataType == s.DataType {
		return s, false
	}
	s = s.clone()
	s.DataType = a.DataType
	return s, true
}

// SetWorldRegion selects the aggregate filter; 0 is global.
type SetWorldRegion struct{ ID int }

func (a SetWorldRegion) reduce(s State) (State, bool) {
	if a.ID == s.WorldRegion {
		return s, false
	}
	s = s.clone()
	s.WorldRegion = a.ID
	return s, true
}

// ToggleSelectedRegion selects ID, or clears the selection if ID is
// already selected.
type ToggleSelectedRegion struct{ ID int }

func (a ToggleSelectedRegion) reduce(s State) (State, bool) {
	if s.Region != nil && *s.Region == a.ID {
		return SetSelectedRegion{}.reduce(s)
	}
	return SetSelectedRegion{ID: &a.ID}.reduce(s)
}

// SetSelectedRegion replaces the selection. A nil ID clears it, which also
// clears the zoomed-in flag.
type SetSelectedRegion struct{ ID *int }

func (a SetSelectedRegion) reduce(s State) (State, bool) {
	switch {
	case a.ID == nil && s.Region == nil:
		return s, false
	case a.ID != nil && s.Region != nil && *a.ID == *s.Region:
		return s, false
	}
	s = s.clone()
	if a.ID == nil {
		s.Region = nil
		s.ZoomedIn = false
		return s, true
	}
	id := *a.ID
	s.Region = &id
	return s, true
}

// SetThresholds replaces the thresholds of one data type when they differ.
type SetThresholds struct {
	DataType   colorscale.DataType
	Thresholds []float64
}

func (a SetThresholds) reduce(s State) (State, bool) {
	if slices.Equal(s.Thresholds[a.DataType], a.Thresholds) {
		return s, false
	}
	s = s.clone()
	s.Thresholds[a.DataType] = slices.Clone(a.Thresholds)
	return s, true
}

type SetRegionZoom struct{ ZoomedIn bool }

func (a SetRegionZoom) reduce(s State) (State, bool) {
	// There is nothing to zoom into without a selection.
	if a.ZoomedIn == s.ZoomedIn || (a.ZoomedIn && s.Region == nil) {
		return s, false
	}
	s = s.clone()
	s.ZoomedIn = a.ZoomedIn
	return s, true
}

type SetGridVariable struct{ Variable colorscale.GridVariable }

func (a SetGridVariable) reduce(s State) (State, bool) {
	if a.Variable == s.GridVariable {
		return s, false
	}
	s = s.clone()
	s.GridVariable = a.Variable
	return s, true
}

// SetMode switches between historical and future data. The period index
// resets because the two modes have different periods.
type SetMode struct{ Mode scenario.AppMode }

func (a SetMode) reduce(s State) (State, bool) {
	if a.Mode == s.Mode {
		return s, false
	}
	s = s.clone()
	s.Mode = a.Mode
	s.TimeIndex = 0
	return s, true
}

type SetScenario struct{ Scenario scenario.FutureScenario }

func (a SetScenario) reduce(s State) (State, bool) {
	next := a.Scenario.WithDefaults()
	if next == s.Scenario {
		return s, false
	}
	s = s.clone()
	s.Scenario = next
	return s, true
}

// ErrUnknownAction is returned by DecodeAction for unrecognised types.
var ErrUnknownAction = errors.New("unknown action type")

type wireAction struct {
	Type       string                   `json:"type"`
	Value      *int                     `json:"value,omitempty"`
	ID         *int                     `json:"id,omitempty"`
	DataType   string                   `json:"data_type,omitempty"`
	Thresholds []float64                `json:"thresholds,omitempty"`
	ZoomedIn   *bool                    `json:"zoomed_in,omitempty"`
	Variable   string                   `json:"variable,omitempty"`
	Mode       string                   `json:"mode,omitempty"`
	Scenario   *scenario.FutureScenario `json:"scenario,omitempty"`
}

// DecodeAction parses the JSON form of a store action, e.g.
// {"type":"toggle_selected_region","id":42}.
func DecodeAction(data []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return w.action()
}

func (w wireAction) action() (Action, error) {
	switch w.Type {
	case "set_time_index":
		if w.Value == nil || *w.Value < 0 {
			return nil, errors.New("set_time_index requires a non-negative value")
		}
		return SetTimeIndex{Value: *w.Value}, nil
	case "set_data_type":
		dt, ok := colorscale.ParseDataType(w.DataType)
		if !ok {
			return nil, fmt.Errorf("unknown data type %q", w.DataType)
		}
		return SetDataType{DataType: dt}, nil
	case "set_world_region":
		if w.ID == nil {
			return SetWorldRegion{}, nil
		}
		return SetWorldRegion{ID: *w.ID}, nil
	case "toggle_selected_region":
		if w.ID == nil {
			return nil, errors.New("toggle_selected_region requires an id")
		}
		return ToggleSelectedRegion{ID: *w.ID}, nil
	case "set_selected_region":
		return SetSelectedRegion{ID: w.ID}, nil
	case "set_thresholds":
		dt, ok := colorscale.ParseDataType(w.DataType)
		if !ok {
			return nil, fmt.Errorf("unknown data type %q", w.DataType)
		}
		if len(w.Thresholds) == 0 || !slices.IsSorted(w.Thresholds) {
			return nil, errors.New("thresholds must be a non-empty ascending list")
		}
		return SetThresholds{DataType: dt, Thresholds: w.Thresholds}, nil
	case "set_region_zoom":
		if w.ZoomedIn == nil {
			return nil, errors.New("set_region_zoom requires zoomed_in")
		}
		return SetRegionZoom{ZoomedIn: *w.ZoomedIn}, nil
	case "set_grid_variable":
		v, ok := colorscale.ParseGridVariable(w.Variable)
		if !ok {
			return nil, fmt.Errorf("unknown grid variable %q", w.Variable)
		}
		return SetGridVariable{Variable: v}, nil
	case "set_mode":
		m, ok := scenario.ParseMode(w.Mode)
		if !ok {
			return nil, fmt.Errorf("unknown mode %q", w.Mode)
		}
		return SetMode{Mode: m}, nil
	case "set_scenario":
		if w.Scenario == nil {
			return nil, errors.New("set_scenario requires a scenario")
		}
		return SetScenario{Scenario: *w.Scenario}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownAction, w.Type)
	}
}
