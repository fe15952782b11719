// Package viewstate tracks whether the map shows the global view or is
// zoomed into one region, and whether a requested zoom is still waiting for
// region detail.
package viewstate

// Phase is the externally visible state of the view.
type Phase int

const (
	Global Phase = iota
	ZoomPending
	ZoomFulfilled
)

func (p Phase) String() string {
	switch p {
	case ZoomPending:
		return "zoom_pending"
	case ZoomFulfilled:
		return "zoom_fulfilled"
	default:
		return "global"
	}
}

// State is a copyable snapshot of the machine.
type State struct {
	ZoomRequested  bool
	SelectedRegion *int
	Fulfilled      bool
}

func (s State) Phase() Phase {
	switch {
	case !s.ZoomRequested || s.SelectedRegion == nil:
		return Global
	case s.Fulfilled:
		return ZoomFulfilled
	default:
		return ZoomPending
	}
}

// Machine is not safe for concurrent use; its owner serialises access.
type Machine struct {
	s State
}

// New seeds the machine from the externally supplied zoomed-in flag. A
// zoom without a selected region is dropped.
func New(zoomedIn bool, region *int) *Machine {
	m := &Machine{}
	m.s.SelectedRegion = copyRegion(region)
	m.s.ZoomRequested = zoomedIn && region != nil
	return m
}

func (m *Machine) State() State {
	s := m.s
	s.SelectedRegion = copyRegion(m.s.SelectedRegion)
	return s
}

func (m *Machine) Phase() Phase { return m.s.Phase() }

func (m *Machine) ZoomRequested() bool { return m.s.ZoomRequested }

func (m *Machine) SelectedRegion() (int, bool) {
	if m.s.SelectedRegion == nil {
		return 0, false
	}
	return *m.s.SelectedRegion, true
}

// RequestZoom moves Global to ZoomPending. It needs a selected region.
func (m *Machine) RequestZoom() bool {
	if m.s.ZoomRequested || m.s.SelectedRegion == nil {
		return false
	}
	m.s.ZoomRequested = true
	m.s.Fulfilled = false
	return true
}

// ZoomOut returns to Global from either zoom phase.
func (m *Machine) ZoomOut() bool {
	if !m.s.ZoomRequested {
		return false
	}
	m.s.ZoomRequested = false
	m.s.Fulfilled = false
	return true
}

// Toggle flips the zoom request; it reports whether anything changed.
func (m *Machine) Toggle() bool {
	if m.s.ZoomRequested {
		return m.ZoomOut()
	}
	return m.RequestZoom()
}

// SelectRegion records a new selection. Clearing it leaves the zoomed view;
// switching regions while zoomed re-enters ZoomPending.
func (m *Machine) SelectRegion(region *int) {
	switch {
	case region == nil:
		m.s.SelectedRegion = nil
		m.s.ZoomRequested = false
		m.s.Fulfilled = false
	case m.s.SelectedRegion == nil || *m.s.SelectedRegion != *region:
		m.s.SelectedRegion = copyRegion(region)
		m.s.Fulfilled = false
	}
}

// ResetForFilter returns to Global after the world-region filter changed.
func (m *Machine) ResetForFilter() bool {
	return m.ZoomOut()
}

// Invalidate returns a fulfilled zoom to ZoomPending, e.g. when the
// scenario changed and the region's detail must be fetched again.
func (m *Machine) Invalidate() bool {
	if !m.s.ZoomRequested || !m.s.Fulfilled {
		return false
	}
	m.s.Fulfilled = false
	return true
}

// Fulfill marks the zoom as done if region is still selected and zoom is
// still requested.
func (m *Machine) Fulfill(region int) bool {
	if !m.s.ZoomRequested || m.s.SelectedRegion == nil || *m.s.SelectedRegion != region {
		return false
	}
	m.s.Fulfilled = true
	return true
}

func copyRegion(r *int) *int {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}
