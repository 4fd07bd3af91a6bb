package osmparser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lintas-routing/balancegraph/pkg"
)

func TestParseMaxspeed(t *testing.T) {
	testCases := []struct {
		name   string
		tag    string
		hwType pkg.OsmHighwayType
		want   float64
	}{
		{name: "plain kmh", tag: "50", hwType: pkg.RESIDENTIAL, want: 50},
		{name: "explicit unit", tag: "30 mph", hwType: pkg.RESIDENTIAL, want: 30 * 1.609344},
		{name: "none means unlimited", tag: "none", hwType: pkg.MOTORWAY, want: pkg.MAX_SPEED_KMH},
		{name: "walk", tag: "walk", hwType: pkg.LIVING_STREET, want: pkg.MIN_SPEED_KMH},
		{name: "missing falls back to default", tag: "", hwType: pkg.TERTIARY, want: 70},
		{name: "garbage falls back to default", tag: "fast", hwType: pkg.SECONDARY, want: 70},
		{name: "clamped to minimum", tag: "1", hwType: pkg.SERVICE, want: pkg.MIN_SPEED_KMH},
		{name: "clamped to maximum", tag: "300", hwType: pkg.MOTORWAY, want: pkg.MAX_SPEED_KMH},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, parseMaxspeed(tt.tag, tt.hwType), 1e-9)
		})
	}
}

func TestParseLanes(t *testing.T) {
	require.Equal(t, 1.0, parseLanes(""))
	require.Equal(t, 1.0, parseLanes("junk"))
	require.Equal(t, 1.0, parseLanes("0"))
	require.Equal(t, 3.0, parseLanes("3"))
}

func TestDefaultSpeedTable(t *testing.T) {
	require.Equal(t, 130.0, pkg.GetDefaultSpeedKmh(pkg.MOTORWAY))
	require.Equal(t, 50.0, pkg.GetDefaultSpeedKmh(pkg.RESIDENTIAL))
	require.Equal(t, 15.0, pkg.GetDefaultSpeedKmh(pkg.LIVING_STREET))
}
