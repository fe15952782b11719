// Package mapview is the map's render and reconciliation driver. A Map
// compares each new set of props with the previous one, decides which
// redraws the change calls for, and applies them to a retained scene graph.
package mapview

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/dataset"
	"wasco/mapcore/internal/geo"
	"wasco/mapcore/internal/metrics"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/scenario"
	"wasco/mapcore/internal/scene"
	"wasco/mapcore/internal/viewstate"
)

// Props are the inputs supplied by the selection store.
type Props struct {
	Width      float64
	Mode       scenario.AppMode
	ScenarioID string

	// Data is nil until statistics for the active period are available.
	// Equal selections yield the same pointer.
	Data               *dataset.Values
	DataType           colorscale.DataType
	Thresholds         []float64
	StressThresholds   []float64
	ShortageThresholds []float64
	GridVariable       colorscale.GridVariable

	SelectedRegion *int
	// WorldRegion is the aggregate filter; 0 is global.
	WorldRegion int
	ZoomedIn    bool
}

func (p Props) clone() Props {
	out := p
	if p.SelectedRegion != nil {
		r := *p.SelectedRegion
		out.SelectedRegion = &r
	}
	out.Thresholds = slices.Clone(p.Thresholds)
	out.StressThresholds = slices.Clone(p.StressThresholds)
	out.ShortageThresholds = slices.Clone(p.ShortageThresholds)
	return out
}

// Callbacks are the mutators the map may ask the store to run. They are
// always invoked without the map's lock held.
type Callbacks struct {
	ToggleSelectedRegion func(id int)
	ClearSelectedRegion  func()
	SetZoomedIn          func(zoomedIn bool)
}

type Options struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics
	// Base may be nil and supplied later with SetBase.
	Base      *dataset.Base
	Cache     *regiondata.Cache
	Callbacks Callbacks
	Props     Props
}

// snapshot is everything a reconciliation pass compares.
type snapshot struct {
	props         Props
	zoomRequested bool
	regionLoaded  bool
}

// Map is one long-lived map instance. All methods are safe for concurrent
// use; updates and fetch completions are serialised by the instance lock.
type Map struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	cb       Callbacks
	cache    *regiondata.Cache
	fetchCtx context.Context

	mu        sync.Mutex
	base      *dataset.Base
	props     Props
	last      snapshot
	vm        *viewstate.Machine
	graph     *scene.Graph
	path      geo.Path
	transform geo.Transform
	drawn     bool
	loading   bool
	closed    bool
	queued    []func()
}

func New(ctx context.Context, opts Options) *Map {
	if opts.Cache == nil {
		opts.Cache = regiondata.NewCache(regiondata.Options{Log: opts.Log, Metrics: opts.Metrics})
	}
	props := opts.Props.clone()
	m := &Map{
		log:       opts.Log,
		metrics:   opts.Metrics,
		cb:        opts.Callbacks,
		cache:     opts.Cache,
		fetchCtx:  ctx,
		base:      opts.Base,
		props:     props,
		vm:        viewstate.New(props.ZoomedIn, props.SelectedRegion),
		graph:     newGraph(),
		transform: geo.Identity,
		loading:   true,
	}

	m.mu.Lock()
	if m.props.ZoomedIn && m.props.SelectedRegion == nil {
		m.queueSetZoomedIn(false)
	}
	m.last = snapshot{}
	m.reconcile(m.last, m.snapshotLocked())
	m.mu.Unlock()
	m.flush()
	return m
}

// Update applies new props.
func (m *Map) Update(p Props) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.props
	m.props = p.clone()
	m.vm.SelectRegion(m.props.SelectedRegion)
	if m.props.ZoomedIn != prev.ZoomedIn {
		// Follow an external change of the zoom flag.
		if m.props.ZoomedIn && !m.vm.ZoomRequested() {
			m.vm.RequestZoom()
		} else if !m.props.ZoomedIn && m.vm.ZoomRequested() {
			m.vm.ZoomOut()
		}
	}
	if m.props.ZoomedIn && m.props.SelectedRegion == nil && prev.SelectedRegion == nil {
		// The flag cannot be honoured without a selection; hand it back.
		m.queueSetZoomedIn(false)
	}
	if m.props.WorldRegion != prev.WorldRegion && m.vm.ZoomRequested() {
		// A new filter always shows its global extent.
		m.vm.ResetForFilter()
		if m.props.ZoomedIn {
			m.queueSetZoomedIn(false)
		}
	}
	m.reconcile(m.last, m.snapshotLocked())
	m.mu.Unlock()
	m.flush()
}

// SetBase supplies the world geometry once it has loaded.
func (m *Map) SetBase(b *dataset.Base) {
	m.mu.Lock()
	if m.closed || m.base == b {
		m.mu.Unlock()
		return
	}
	m.base = b
	m.reconcile(m.last, m.snapshotLocked())
	m.mu.Unlock()
	m.flush()
}

// ClickRegion handles a click on a region polygon. Clicking the selected
// region while zoomed in does nothing.
func (m *Map) ClickRegion(id int) {
	m.mu.Lock()
	if sel := m.props.SelectedRegion; m.props.ZoomedIn && sel != nil && *sel == id {
		m.mu.Unlock()
		return
	}
	if fn := m.cb.ToggleSelectedRegion; fn != nil {
		m.queued = append(m.queued, func() { fn(id) })
	}
	m.mu.Unlock()
	m.flush()
}

// ClickGlobe handles a click on the globe background.
func (m *Map) ClickGlobe() {
	m.mu.Lock()
	if fn := m.cb.ClearSelectedRegion; fn != nil {
		m.queued = append(m.queued, fn)
	}
	m.mu.Unlock()
	m.flush()
}

// ToggleZoom flips the zoom request. It reports false when there is no
// selected region to zoom into.
func (m *Map) ToggleZoom() bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.vm.ZoomRequested() {
		m.queueSetZoomedIn(false)
	}
	changed := m.vm.Toggle()
	if changed {
		m.reconcile(m.last, m.snapshotLocked())
	}
	m.mu.Unlock()
	m.flush()
	return changed
}

// Close stops the map reacting to fetch completions. In-flight fetches
// still fill the cache.
func (m *Map) Close() {
	m.mu.Lock()
	m.closed = true
	m.queued = nil
	m.mu.Unlock()
}

func (m *Map) onFetched(res regiondata.Result) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	// Only a completion for the current key changes the snapshot; stale
	// ones have already filled the cache and cause no transition.
	m.reconcile(m.last, m.snapshotLocked())
	m.mu.Unlock()
	m.flush()
}

func (m *Map) snapshotLocked() snapshot {
	s := snapshot{props: m.props, zoomRequested: m.vm.ZoomRequested()}
	if key, ok := m.selectedKeyLocked(); ok {
		_, s.regionLoaded = m.cache.Get(key)
	}
	return s
}

func (m *Map) selectedKeyLocked() (scenario.Key, bool) {
	region, ok := m.vm.SelectedRegion()
	if !ok {
		return "", false
	}
	return m.keyFor(region), true
}

func (m *Map) keyFor(region int) scenario.Key {
	return scenario.Resolve(m.props.Mode, m.props.ScenarioID, region)
}

func (m *Map) requestFor(region int) regiondata.Request {
	return regiondata.Request{Mode: m.props.Mode, ScenarioID: m.props.ScenarioID, RegionID: region}
}

func (m *Map) queueSetZoomedIn(v bool) {
	if fn := m.cb.SetZoomedIn; fn != nil {
		m.queued = append(m.queued, func() { fn(v) })
	}
}

func (m *Map) flush() {
	m.mu.Lock()
	q := m.queued
	m.queued = nil
	m.mu.Unlock()
	for _, fn := range q {
		fn()
	}
}

// Transition kinds reported to metrics.
const (
	transitionLoading       = "loading"
	transitionInitial       = "initial"
	transitionResize        = "resize"
	transitionRegionCleared = "region_cleared"
	transitionZoom          = "zoom"
	transitionGridRedraw    = "grid_redraw"
	transitionGlobal        = "global"
	transitionNone          = "none"
)

// reconcile classifies the change from prev to next and applies the first
// matching policy: loading, initial draw, width change, region cleared,
// zoomed, global.
func (m *Map) reconcile(prev, next snapshot) {
	kind := m.apply(prev, next)
	if kind != transitionLoading {
		// Changes made while loading are classified once drawing resumes.
		m.last = m.snapshotLocked()
	}
	m.syncLegendsLocked()
	if kind != transitionNone {
		m.metrics.IncTransition(kind)
		m.log.Debug().Str("transition", kind).Str("phase", m.vm.Phase().String()).Msg("map reconciled")
	}
}

func (m *Map) apply(prev, next snapshot) string {
	p, n := prev.props, next.props

	if m.base == nil || m.base.WaterRegions == nil || n.Data == nil || n.Width <= 0 {
		m.loading = true
		return transitionLoading
	}
	m.loading = false

	if !m.drawn {
		m.drawMap()
		m.drawn = true
		if next.zoomRequested {
			m.zoomToRegion()
		} else {
			m.zoomToGlobal()
		}
		return transitionInitial
	}

	widthChanged := p.Width != n.Width
	didRequestZoomIn := !prev.zoomRequested && next.zoomRequested
	didRequestZoomOut := prev.zoomRequested && !next.zoomRequested
	regionChanged := n.SelectedRegion != nil && !sameRegion(p.SelectedRegion, n.SelectedRegion)
	regionCleared := n.SelectedRegion == nil && p.SelectedRegion != nil
	worldRegionChanged := p.WorldRegion != n.WorldRegion
	keyChanged := n.SelectedRegion != nil && (p.Mode != n.Mode || p.ScenarioID != n.ScenarioID)
	regionDataLoaded := n.SelectedRegion != nil && next.regionLoaded && !prev.regionLoaded
	dataChanged := dataChanged(p, n)
	gridChanged := p.GridVariable != n.GridVariable

	switch {
	case widthChanged:
		m.clearMap()
		m.drawMap()
		if !next.zoomRequested {
			m.zoomToGlobal()
		} else {
			m.removeZoomed()
			m.zoomToRegion()
		}
		return transitionResize

	case regionCleared:
		if n.ZoomedIn {
			m.queueSetZoomedIn(false)
		}
		m.removeZoomed()
		m.zoomToGlobal()
		m.recolor()
		return transitionRegionCleared

	case next.zoomRequested:
		if keyChanged {
			m.vm.Invalidate()
		}
		if didRequestZoomIn || regionChanged || keyChanged || regionDataLoaded {
			m.removeZoomed()
			m.zoomToRegion()
			return transitionZoom
		}
		if (dataChanged || gridChanged) && m.vm.Phase() == viewstate.ZoomFulfilled {
			m.redrawGrid()
			return transitionGridRedraw
		}
		return transitionNone

	default:
		acted := false
		if dataChanged || regionChanged {
			m.recolor()
			acted = true
		}
		if worldRegionChanged {
			m.zoomToGlobal()
			acted = true
		}
		if didRequestZoomOut {
			m.removeZoomed()
			m.zoomToGlobal()
			m.recolor()
			acted = true
		}
		if !acted {
			return transitionNone
		}
		return transitionGlobal
	}
}

func sameRegion(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func dataChanged(p, n Props) bool {
	if p.Data != n.Data || p.DataType != n.DataType || !slices.Equal(p.Thresholds, n.Thresholds) {
		return true
	}
	if n.DataType == colorscale.DataTypeScarcity {
		return !slices.Equal(p.StressThresholds, n.StressThresholds) ||
			!slices.Equal(p.ShortageThresholds, n.ShortageThresholds)
	}
	return false
}

// View is a snapshot of what the map UI shows besides the scene itself.
type View struct {
	Loading           bool          `json:"loading"`
	Spinner           bool          `json:"spinner"`
	Phase             string        `json:"phase"`
	ZoomButton        string        `json:"zoom_button,omitempty"`
	ThresholdSelector bool          `json:"threshold_selector"`
	Legend            string        `json:"legend,omitempty"`
	Transform         geo.Transform `json:"transform"`
	Width             float64       `json:"width"`
	Height            float64       `json:"height"`
	SelectedRegion    *int          `json:"selected_region,omitempty"`
	ScenarioKey       string        `json:"scenario_key,omitempty"`
	Version           uint64        `json:"version"`
}

// Legend kinds.
const (
	LegendGrid     = "grid"
	LegendScarcity = "scarcity"
)

func (m *Map) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Loading:           m.loading,
		Phase:             m.vm.Phase().String(),
		ThresholdSelector: !m.props.ZoomedIn && m.props.DataType != colorscale.DataTypeScarcity,
		Transform:         m.transform,
		Width:             m.props.Width,
		Height:            geo.Height(m.props.Width),
		Version:           m.graph.Version(),
	}
	if r := m.props.SelectedRegion; r != nil {
		id := *r
		v.SelectedRegion = &id
		v.ZoomButton = "Zoom in"
		if m.props.ZoomedIn {
			v.ZoomButton = "Zoom out"
		}
	}
	v.Legend = m.legendLocked()
	if key, ok := m.selectedKeyLocked(); ok {
		v.ScenarioKey = key.String()
		_, cached := m.cache.Get(key)
		v.Spinner = m.vm.ZoomRequested() && !cached && m.cache.Pending(key)
	}
	return v
}

// SVG renders the current scene.
func (m *Map) SVG(w io.Writer) error {
	var buf bytes.Buffer
	m.mu.Lock()
	err := m.graph.WriteSVG(&buf, m.props.Width, geo.Height(m.props.Width))
	m.mu.Unlock()
	if err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

// Patches drains the scene mutations recorded since the previous call.
func (m *Map) Patches() []scene.Patch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.graph.Drain()
}

// Cache exposes the instance's region data cache.
func (m *Map) Cache() *regiondata.Cache { return m.cache }
