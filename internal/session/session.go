// Package session ties one selection store to one map instance, together
// with the statistics selector and region detail cache they use.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/dataset"
	"wasco/mapcore/internal/mapview"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scenario"
	"wasco/mapcore/internal/scene"
	"wasco/mapcore/internal/store"
)

// Catalog supplies the shared map assets.
//
// *dataset.Catalog satisfies this.
type Catalog interface {
	Base(ctx context.Context) (*dataset.Base, error)
	Stats(ctx context.Context, mode scenario.AppMode, fs scenario.FutureScenario) ([]dataset.TimeAggregate, error)
}

var (
	ErrInvalidWidth = errors.New("width must be positive")
	ErrBadAction    = errors.New("invalid action")
)

// Session is one map view with its own selections. Its methods are safe for
// concurrent use.
type Session struct {
	id      string
	log     zerolog.Logger
	catalog Catalog
	ctx     context.Context
	store   *store.Store
	m       *mapview.Map
	unsub   func()
	created time.Time

	mu         sync.Mutex
	width      float64
	selectors  map[string]*dataset.Selector
	loading    map[string]bool
	statsErr   map[string]error
	baseErr    error
	lastSeen   time.Time
	started    bool
	dirty      bool
	refreshing bool
	closed     bool
	wg         sync.WaitGroup
}

type options struct {
	id      string
	log     zerolog.Logger
	catalog Catalog
	cache   *regiondata.Cache
	width   float64
	state   store.State
	now     time.Time
}

func newSession(ctx context.Context, o options) *Session {
	s := &Session{
		id:        o.id,
		log:       o.log.With().Str("session_id", o.id).Logger(),
		catalog:   o.catalog,
		ctx:       context.WithoutCancel(ctx),
		store:     store.New(o.state),
		created:   o.now,
		lastSeen:  o.now,
		width:     o.width,
		selectors: make(map[string]*dataset.Selector),
		loading:   make(map[string]bool),
		statsErr:  make(map[string]error),
	}

	st := s.store.State()
	s.mu.Lock()
	props := s.propsLocked(st)
	s.mu.Unlock()

	s.m = mapview.New(s.ctx, mapview.Options{
		Log:   s.log,
		Cache: o.cache,
		Props: props,
		Callbacks: mapview.Callbacks{
			ToggleSelectedRegion: func(id int) { s.store.Dispatch(store.ToggleSelectedRegion{ID: id}) },
			ClearSelectedRegion:  func() { s.store.Dispatch(store.SetSelectedRegion{}) },
			SetZoomedIn:          func(v bool) { s.store.Dispatch(store.SetRegionZoom{ZoomedIn: v}) },
		},
	})
	s.unsub = s.store.Subscribe(func(store.State) { s.refresh() })

	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	s.wg.Add(1)
	go s.loadBase()
	s.refresh()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) loadBase() {
	defer s.wg.Done()
	base, err := s.catalog.Base(s.ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("base geometry load failed")
		s.mu.Lock()
		s.baseErr = err
		s.mu.Unlock()
		return
	}
	s.m.SetBase(base)
}

// refresh pushes the latest store state into the map. Calls made while a
// refresh is running are folded into it, so the map always ends on the
// newest state.
func (s *Session) refresh() {
	s.mu.Lock()
	s.dirty = true
	if s.refreshing || s.closed {
		s.mu.Unlock()
		return
	}
	s.refreshing = true
	for s.dirty && !s.closed {
		s.dirty = false
		props := s.propsLocked(s.store.State())
		s.mu.Unlock()
		s.m.Update(props)
		s.mu.Lock()
	}
	s.refreshing = false
	s.mu.Unlock()
}

func (s *Session) propsLocked(st store.State) mapview.Props {
	p := mapview.Props{
		Width:          s.width,
		Mode:           st.Mode,
		ScenarioID:     st.ScenarioID(),
		DataType:       st.DataType,
		Thresholds:     st.ThresholdsFor(st.DataType),
		GridVariable:   st.GridVariable,
		SelectedRegion: st.Region,
		WorldRegion:    st.WorldRegion,
		ZoomedIn:       st.ZoomedIn,
	}
	if st.DataType == colorscale.DataTypeScarcity {
		p.StressThresholds = st.ThresholdsFor(colorscale.DataTypeStress)
		p.ShortageThresholds = st.ThresholdsFor(colorscale.DataTypeShortage)
	}

	sel := s.selectorLocked(st)
	if sel == nil {
		return p
	}
	if v, ok := sel.Select(dataset.Selection{
		TimeIndex:          st.TimeIndex,
		DataType:           st.DataType,
		StressThresholds:   p.StressThresholds,
		ShortageThresholds: p.ShortageThresholds,
	}); ok {
		p.Data = v
	}
	return p
}

// selectorLocked returns the selector for the state's statistics, starting
// a load when it is missing.
func (s *Session) selectorLocked(st store.State) *dataset.Selector {
	key := dataset.StatsKey(st.Mode, st.Scenario)
	if sel, ok := s.selectors[key]; ok {
		return sel
	}
	if !s.started || s.loading[key] || s.statsErr[key] != nil || s.closed {
		return nil
	}
	s.loading[key] = true
	s.wg.Add(1)
	go s.loadStats(key, st.Mode, st.Scenario)
	return nil
}

func (s *Session) loadStats(key string, mode scenario.AppMode, fs scenario.FutureScenario) {
	defer s.wg.Done()
	periods, err := s.catalog.Stats(s.ctx, mode, fs)

	s.mu.Lock()
	delete(s.loading, key)
	if err != nil {
		s.statsErr[key] = err
	} else {
		s.selectors[key] = dataset.NewSelector(periods)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("stats", key).Msg("statistics load failed")
		return
	}
	s.refresh()
}

// Dispatch applies a store action.
func (s *Session) Dispatch(a store.Action) bool {
	s.touch()
	return s.store.Dispatch(a)
}

// Resize sets the container width.
func (s *Session) Resize(width float64) error {
	if width <= 0 {
		return ErrInvalidWidth
	}
	s.mu.Lock()
	changed := s.width != width
	s.width = width
	s.mu.Unlock()
	s.touch()
	if changed {
		s.refresh()
	}
	return nil
}

func (s *Session) ClickRegion(id int) { s.touch(); s.m.ClickRegion(id) }

func (s *Session) ClickGlobe() { s.touch(); s.m.ClickGlobe() }

func (s *Session) ToggleZoom() bool { s.touch(); return s.m.ToggleZoom() }

type wireAction struct {
	Type  string   `json:"type"`
	ID    *int     `json:"id,omitempty"`
	Width *float64 `json:"width,omitempty"`
}

// Do applies a JSON encoded action. Map interactions are click_region,
// click_globe, toggle_zoom and resize; anything else is a store action.
func (s *Session) Do(raw []byte) error {
	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return fmt.Errorf("%w: %v", ErrBadAction, err)
	}
	switch w.Type {
	case "click_region":
		if w.ID == nil {
			return fmt.Errorf("%w: click_region requires an id", ErrBadAction)
		}
		s.ClickRegion(*w.ID)
	case "click_globe":
		s.ClickGlobe()
	case "toggle_zoom":
		s.ToggleZoom()
	case "resize":
		if w.Width == nil {
			return fmt.Errorf("%w: resize requires a width", ErrBadAction)
		}
		return s.Resize(*w.Width)
	default:
		a, err := store.DecodeAction(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadAction, err)
		}
		s.Dispatch(a)
	}
	return nil
}

// Period describes the active statistics period.
type Period struct {
	Index     int `json:"index"`
	StartYear int `json:"start_year"`
	EndYear   int `json:"end_year"`
	Count     int `json:"count"`
}

// View is the session snapshot returned to clients.
type View struct {
	ID     string       `json:"id"`
	State  store.State  `json:"state"`
	Map    mapview.View `json:"map"`
	Period *Period      `json:"period,omitempty"`
	Errors []string     `json:"errors,omitempty"`
}

func (s *Session) View() View {
	s.touch()
	st := s.store.State()
	v := View{ID: s.id, State: st, Map: s.m.View()}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := dataset.StatsKey(st.Mode, st.Scenario)
	if sel := s.selectors[key]; sel != nil {
		if start, end, ok := sel.Period(st.TimeIndex); ok {
			v.Period = &Period{Index: st.TimeIndex, StartYear: start, EndYear: end, Count: sel.Periods()}
		}
	}
	if s.baseErr != nil {
		v.Errors = append(v.Errors, "base geometry: "+s.baseErr.Error())
	}
	if err := s.statsErr[key]; err != nil {
		v.Errors = append(v.Errors, "statistics: "+err.Error())
	}
	return v
}

func (s *Session) SVG(w io.Writer) error {
	s.touch()
	return s.m.SVG(w)
}

func (s *Session) Patches() []scene.Patch {
	s.touch()
	return s.m.Patches()
}

// Wait blocks until background asset loads and region fetches settled.
func (s *Session) Wait() {
	s.wg.Wait()
	s.m.Cache().Wait()
}

// Close detaches the map from the store. In-flight loads still finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.unsub()
	s.m.Close()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
