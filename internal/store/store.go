// Package store holds the user's selections: period, data type, region,
// thresholds and zoom. Changes are made only through Dispatch.
package store

import (
	"maps"
	"slices"
	"sync"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/scenario"
)

// State is a snapshot of the selections. Snapshots handed out by the store
// share no memory with it.
type State struct {
	Version      uint64                            `json:"version"`
	Mode         scenario.AppMode                  `json:"mode"`
	Scenario     scenario.FutureScenario           `json:"scenario"`
	TimeIndex    int                               `json:"timeIndex"`
	DataType     colorscale.DataType               `json:"dataType"`
	WorldRegion  int                               `json:"worldRegion"`
	Region       *int                              `json:"region,omitempty"`
	Thresholds   map[colorscale.DataType][]float64 `json:"thresholds"`
	ZoomedIn     bool                              `json:"zoomedIn"`
	GridVariable colorscale.GridVariable           `json:"gridVariable"`
}

// DefaultState is the state of a fresh session.
func DefaultState() State {
	th := make(map[colorscale.DataType][]float64)
	for _, dt := range colorscale.AllDataTypes() {
		th[dt] = colorscale.DefaultThresholds(dt)
	}
	return State{
		Mode:         scenario.ModePast,
		Scenario:     scenario.DefaultFutureScenario,
		DataType:     colorscale.DataTypeStress,
		Thresholds:   th,
		GridVariable: colorscale.GridPopulation,
	}
}

// ThresholdsFor returns the thresholds for dt, falling back to defaults.
func (s State) ThresholdsFor(dt colorscale.DataType) []float64 {
	if t, ok := s.Thresholds[dt]; ok && len(t) > 0 {
		return t
	}
	return colorscale.DefaultThresholds(dt)
}

// ScenarioID is the scenario dimension of the current mode.
func (s State) ScenarioID() string {
	if !s.Mode.HasScenarios() {
		return ""
	}
	return s.Scenario.ID()
}

func (s State) clone() State {
	out := s
	if s.Region != nil {
		r := *s.Region
		out.Region = &r
	}
	out.Thresholds = make(map[colorscale.DataType][]float64, len(s.Thresholds))
	for k, v := range s.Thresholds {
		out.Thresholds[k] = slices.Clone(v)
	}
	return out
}

// Store applies actions and notifies subscribers of every change in
// dispatch order. Subscribers run outside the store lock and may dispatch;
// such nested dispatches are delivered after the current notification.
type Store struct {
	mu         sync.Mutex
	state      State
	subs       map[int]func(State)
	nextSub    int
	queue      []State
	delivering bool
}

// New returns a store holding initial. A zoom flag without a selected
// region is dropped.
func New(initial State) *Store {
	st := initial.clone()
	if st.Region == nil {
		st.ZoomedIn = false
	}
	return &Store{state: st, subs: make(map[int]func(State))}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn and returns a function removing it.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Dispatch applies a and reports whether the state changed.
func (s *Store) Dispatch(a Action) bool {
	s.mu.Lock()
	next, changed := a.reduce(s.state)
	if !changed {
		s.mu.Unlock()
		return false
	}
	next.Version = s.state.Version + 1
	s.state = next
	s.queue = append(s.queue, next.clone())
	if s.delivering {
		s.mu.Unlock()
		return true
	}
	s.delivering = true
	s.mu.Unlock()

	s.deliver()
	return true
}

func (s *Store) deliver() {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.delivering = false
			s.queue = nil
			s.mu.Unlock()
			panic(r)
		}
	}()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.delivering = false
			s.mu.Unlock()
			return
		}
		st := s.queue[0]
		s.queue = s.queue[1:]
		keys := slices.Sorted(maps.Keys(s.subs))
		subs := make([]func(State), 0, len(keys))
		for _, k := range keys {
			subs = append(subs, s.subs[k])
		}
		s.mu.Unlock()

		for _, fn := range subs {
			fn(st.clone())
		}
	}
}
