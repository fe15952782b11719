package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wasco/mapcore/internal/colorscale"
	"wasco/mapcore/internal/scenario"
)

func f64(v float64) *float64 { return &v }

func openTestdata(t *testing.T, name string) *os.File {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func testdataURL(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	return "file://" + abs
}

func TestDecodeHistorical_GroupsAndConverts(t *testing.T) {
	periods, err := DecodeHistorical(openTestdata(t, "historical.json"))
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.Equal(t, 1981, periods[0].StartYear)
	assert.Equal(t, 1991, periods[1].StartYear)

	d := periods[1].Data[1]
	assert.InDelta(t, 0.5e9, d.ConsumptionIrrigation, 1)
	assert.InDelta(t, 0.25e9, d.ConsumptionDomestic, 1)
	assert.Zero(t, d.ConsumptionElectric)
	assert.InDelta(t, 0.75e9, d.ConsumptionTotal, 1)
	require.NotNil(t, d.Stress)
	assert.InDelta(t, 0.5, *d.Stress, 1e-9)

	na := periods[1].Data[3]
	assert.Nil(t, na.Stress)
	assert.Nil(t, na.Shortage)
}

func TestDecodeFuture(t *testing.T) {
	periods, err := DecodeFuture(openTestdata(t, "future.json"))
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, 2011, periods[0].StartYear)

	d := periods[0].Data[1]
	require.NotNil(t, d.Kcal)
	assert.InDelta(t, 3000, *d.Kcal, 1e-9)
	assert.InDelta(t, 0.2e9, d.ConsumptionTotal, 1)
	assert.Nil(t, periods[0].Data[2].Stress)
}

func TestDecodeWaterRegions(t *testing.T) {
	regions, err := DecodeWaterRegions(openTestdata(t, "water_regions.geojson"))
	require.NoError(t, err)
	assert.Equal(t, 3, regions.Len())

	r, ok := regions.Find(3)
	require.True(t, ok)
	assert.Equal(t, 20, r.WorldRegionID)
	_, isPolygon := r.Geometry.(orb.Polygon)
	assert.True(t, isPolygon)

	_, ok = regions.Find(99)
	assert.False(t, ok)
}

func TestLoader_LoadBase(t *testing.T) {
	l := NewLoader(zerolog.Nop(), LoaderOptions{
		WorldLandURL:    testdataURL(t, "land.geojson"),
		WaterRegionsURL: testdataURL(t, "water_regions.geojson"),
		WorldRegionsURL: testdataURL(t, "world_regions.geojson"),
	})
	base, err := l.LoadBase(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, base.Land)
	assert.Equal(t, 3, base.WaterRegions.Len())
	south, ok := base.WorldRegion(20)
	require.True(t, ok)
	assert.Equal(t, "South", south.Name)
	_, ok = base.WorldRegion(0)
	assert.False(t, ok, "zero is the global filter")
}

func TestLoader_LoadBaseFailsOnMissingAsset(t *testing.T) {
	l := NewLoader(zerolog.Nop(), LoaderOptions{
		WorldLandURL:    testdataURL(t, "land.geojson"),
		WaterRegionsURL: testdataURL(t, "missing.geojson"),
	})
	_, err := l.LoadBase(context.Background())
	assert.Error(t, err)

	_, err = NewLoader(zerolog.Nop(), LoaderOptions{}).LoadBase(context.Background())
	assert.Error(t, err)
}

func TestLoader_LoadStats(t *testing.T) {
	dir, err := filepath.Abs("testdata")
	require.NoError(t, err)
	l := NewLoader(zerolog.Nop(), LoaderOptions{
		HistoricalDataURL:     testdataURL(t, "historical.json"),
		FutureDataURLTemplate: "file://" + dir + "/{{impactModel}}_future.json",
	})

	past, err := l.LoadStats(context.Background(), scenario.ModePast, scenario.DefaultFutureScenario)
	require.NoError(t, err)
	assert.Len(t, past, 2)

	_, err = l.LoadStats(context.Background(), scenario.ModeFuture, scenario.DefaultFutureScenario)
	assert.Error(t, err, "expanded template points at a file that does not exist")
}

func TestSelector_MemoizesByIdentity(t *testing.T) {
	periods, err := DecodeHistorical(openTestdata(t, "historical.json"))
	require.NoError(t, err)
	s := NewSelector(periods)

	sel := Selection{TimeIndex: 1, DataType: colorscale.DataTypeStress}
	a, ok := s.Select(sel)
	require.True(t, ok)
	b, _ := s.Select(sel)
	assert.Same(t, a, b)

	other, _ := s.Select(Selection{TimeIndex: 0, DataType: colorscale.DataTypeStress})
	assert.NotSame(t, a, other)

	v, ok := a.Value(1)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)
	_, ok = a.Value(3)
	assert.False(t, ok, "NA stress is missing data")

	_, ok = s.Select(Selection{TimeIndex: 5, DataType: colorscale.DataTypeStress})
	assert.False(t, ok)
}

func TestSelector_ScarcityKeyIncludesThresholds(t *testing.T) {
	periods, err := DecodeHistorical(openTestdata(t, "historical.json"))
	require.NoError(t, err)
	s := NewSelector(periods)

	base := Selection{
		TimeIndex:          1,
		DataType:           colorscale.DataTypeScarcity,
		StressThresholds:   []float64{0.2, 0.4, 1},
		ShortageThresholds: []float64{500, 1000, 1700},
	}
	a, _ := s.Select(base)
	same, _ := s.Select(Selection{
		TimeIndex:          1,
		DataType:           colorscale.DataTypeScarcity,
		StressThresholds:   []float64{0.2, 0.4, 1},
		ShortageThresholds: []float64{500, 1000, 1700},
	})
	assert.Same(t, a, same)

	changed := base
	changed.StressThresholds = []float64{0.6, 0.8, 1}
	b, _ := s.Select(changed)
	assert.NotSame(t, a, b)

	v, _ := a.Value(1)
	assert.Equal(t, float64(ScarcityBoth), v)
	v, _ = a.Value(2)
	assert.Equal(t, float64(ScarcityNone), v)
	v, _ = b.Value(1)
	assert.Equal(t, float64(ScarcityShortage), v)
}

func TestScarcity(t *testing.T) {
	stress := []float64{0.2, 0.4, 1}
	shortage := []float64{500, 1000, 1700}

	cases := []struct {
		name   string
		d      Datum
		want   float64
		wantOK bool
	}{
		{"both", Datum{Stress: f64(0.2), Shortage: f64(1700)}, ScarcityBoth, true},
		{"stress only", Datum{Stress: f64(0.9), Shortage: f64(1701)}, ScarcityStress, true},
		{"shortage only", Datum{Stress: f64(0.1), Shortage: f64(100)}, ScarcityShortage, true},
		{"none", Datum{Stress: f64(0.1), Shortage: f64(5000)}, ScarcityNone, true},
		{"missing", Datum{Stress: f64(0.1)}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Scarcity(tc.d, stress, shortage)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
