package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Deterministic(t *testing.T) {
	a := Resolve(ModeFuture, "SSP1_h08", 42)
	b := Resolve(ModeFuture, "SSP1_h08", 42)
	assert.Equal(t, a, b)
}

func TestResolve_DistinctTriplesDistinctKeys(t *testing.T) {
	keys := map[Key]string{}
	cases := []struct {
		mode     AppMode
		scenario string
		region   int
	}{
		{ModePast, "", 1},
		{ModePast, "", 2},
		{ModeFuture, "a", 1},
		{ModeFuture, "b", 1},
		{ModeFuture, "a/1", 1},
		{ModeFuture, "a", 11},
		{ModeFuture, "default", 1},
	}
	for _, c := range cases {
		k := Resolve(c.mode, c.scenario, c.region)
		if prev, ok := keys[k]; ok {
			t.Fatalf("key %q collides: %s vs %+v", k, prev, c)
		}
		keys[k] = string(c.mode) + "|" + c.scenario
	}
}

func TestResolve_PastIgnoresScenario(t *testing.T) {
	assert.Equal(t, Resolve(ModePast, "", 7), Resolve(ModePast, "anything", 7))
	assert.Equal(t, Key("past/default/7"), Resolve(ModePast, "", 7))
}

func TestResolve_FutureEmptyScenarioUsesPlaceholder(t *testing.T) {
	assert.Equal(t, Key("future/default/3"), Resolve(ModeFuture, "  ", 3))
}

func TestKeySplit_RoundTripsEscapedScenario(t *testing.T) {
	k := Resolve(ModeFuture, "current volume/x", 12)
	mode, sid, region, err := k.Split()
	require.NoError(t, err)
	assert.Equal(t, ModeFuture, mode)
	assert.Equal(t, "current volume/x", sid)
	assert.Equal(t, 12, region)
}

func TestKeySplit_Malformed(t *testing.T) {
	_, _, _, err := Key("past/1").Split()
	assert.Error(t, err)
	_, _, _, err = Key("past/default/abc").Split()
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode(" Future ")
	require.True(t, ok)
	assert.Equal(t, ModeFuture, m)

	m, ok = ParseMode("")
	require.True(t, ok)
	assert.Equal(t, ModePast, m)

	_, ok = ParseMode("banana")
	assert.False(t, ok)
}

func TestFutureScenario_ExpandAndID(t *testing.T) {
	s := DefaultFutureScenario
	got := s.Expand("fpu_{{impactModel}}_{{climateModel}}/{{population}}_{{alloc}}.json")
	assert.Equal(t, "fpu_watergap_gfdl-esm2m/SSP2_runoff.json", got)
	assert.Equal(t, "SSP2_watergap_gfdl-esm2m_rcp4p5_current_current_current_current volume_current_meetfood_runoff", s.ID())

	other := s
	other.Trade = "none"
	assert.NotEqual(t, s.ID(), other.ID())
}

func TestFutureScenario_WithDefaults(t *testing.T) {
	s := FutureScenario{ImpactModel: "h08", Trade: "  "}.WithDefaults()
	assert.Equal(t, "h08", s.ImpactModel)
	assert.Equal(t, DefaultFutureScenario.Trade, s.Trade)
	assert.Equal(t, DefaultFutureScenario.Population, s.Population)
}
