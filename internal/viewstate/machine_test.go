package viewstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v int) *int { return &v }

func TestNew_InitialPhase(t *testing.T) {
	assert.Equal(t, Global, New(false, ptr(1)).Phase())
	assert.Equal(t, ZoomPending, New(true, ptr(1)).Phase())
	assert.Equal(t, Global, New(true, nil).Phase())
}

func TestRequestZoom_NeedsRegion(t *testing.T) {
	m := New(false, nil)
	assert.False(t, m.RequestZoom())
	assert.Equal(t, Global, m.Phase())

	m.SelectRegion(ptr(5))
	assert.True(t, m.RequestZoom())
	assert.Equal(t, ZoomPending, m.Phase())
	assert.False(t, m.RequestZoom(), "second request is a no-op")
}

func TestFulfill_OnlyForCurrentRegion(t *testing.T) {
	m := New(false, ptr(5))
	m.RequestZoom()

	assert.False(t, m.Fulfill(6))
	assert.Equal(t, ZoomPending, m.Phase())

	assert.True(t, m.Fulfill(5))
	assert.Equal(t, ZoomFulfilled, m.Phase())
}

func TestFulfill_IgnoredAfterZoomOut(t *testing.T) {
	m := New(true, ptr(5))
	m.ZoomOut()
	assert.False(t, m.Fulfill(5))
	assert.Equal(t, Global, m.Phase())
}

func TestSelectRegion_ChangeWhileZoomedReturnsToPending(t *testing.T) {
	m := New(true, ptr(5))
	m.Fulfill(5)
	assert.Equal(t, ZoomFulfilled, m.Phase())

	m.SelectRegion(ptr(9))
	assert.Equal(t, ZoomPending, m.Phase())
	r, ok := m.SelectedRegion()
	assert.True(t, ok)
	assert.Equal(t, 9, r)

	m.SelectRegion(ptr(9))
	m.Fulfill(9)
	m.SelectRegion(ptr(9))
	assert.Equal(t, ZoomFulfilled, m.Phase(), "reselecting the same region keeps the phase")
}

func TestSelectRegion_ClearGoesGlobal(t *testing.T) {
	m := New(true, ptr(5))
	m.Fulfill(5)
	m.SelectRegion(nil)
	assert.Equal(t, Global, m.Phase())
	assert.False(t, m.ZoomRequested())
	_, ok := m.SelectedRegion()
	assert.False(t, ok)
}

func TestResetForFilter(t *testing.T) {
	m := New(true, ptr(5))
	assert.True(t, m.ResetForFilter())
	assert.Equal(t, Global, m.Phase())
	assert.False(t, m.ResetForFilter())
}

func TestToggle(t *testing.T) {
	m := New(false, ptr(2))
	assert.True(t, m.Toggle())
	assert.True(t, m.ZoomRequested())
	assert.True(t, m.Toggle())
	assert.False(t, m.ZoomRequested())
}

func TestState_IsACopy(t *testing.T) {
	m := New(false, ptr(2))
	s := m.State()
	*s.SelectedRegion = 99
	r, _ := m.SelectedRegion()
	assert.Equal(t, 2, r)
	assert.Equal(t, "global", s.Phase().String())
}

func TestInvalidate(t *testing.T) {
	m := New(true, ptr(2))
	assert.False(t, m.Invalidate(), "pending zoom has nothing to invalidate")
	m.Fulfill(2)
	assert.True(t, m.Invalidate())
	assert.Equal(t, ZoomPending, m.Phase())

	m.ZoomOut()
	assert.False(t, m.Invalidate())
}
