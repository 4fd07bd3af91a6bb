package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lintas-routing/balancegraph/pkg/util"
)

func TestRegistryRejectsDuplicateIds(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Register("kilometers", KILOMETERS, false)
	require.NoError(t, err)
	_, err = reg.Register("kilometers", HOURS, false)
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrBadConfig))
}

func TestRegistryMissingInput(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.TryIdx("nope")
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrMissingInput))
}

func TestRegistryColumnsAndMeans(t *testing.T) {
	reg := NewRegistry()
	kmCol, _ := reg.Register("kilometers", KILOMETERS, true)
	hCol, _ := reg.Register("hours", HOURS, false)

	require.Equal(t, 0, kmCol)
	require.Equal(t, 1, hCol)
	require.Equal(t, 2, reg.Dim())
	require.Equal(t, KILOMETERS, reg.Unit(kmCol))
	require.True(t, reg.WillNormalize(kmCol))
	require.False(t, reg.WillNormalize(hCol))
	require.Equal(t, 1.0, reg.Mean(kmCol))

	reg.SetMean(kmCol, 4.2)
	clone := reg.CloneLayout()
	require.Equal(t, reg.Dim(), clone.Dim())
	require.Equal(t, 1.0, clone.Mean(kmCol))
	require.True(t, clone.WillNormalize(kmCol))
}

func TestParseUnit(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    Unit
		wantErr bool
	}{
		{name: "kilometers", input: "Kilometers", want: KILOMETERS},
		{name: "hours", input: "Hours", want: HOURS},
		{name: "speed", input: "KilometersPerHour", want: KILOMETERS_PER_HOUR},
		{name: "lanes", input: "LaneCount", want: LANE_COUNT},
		{name: "f64", input: "F64", want: F64},
		{name: "unknown", input: "Furlongs", wantErr: true},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnit(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.input, got.String())
		})
	}
}

func TestTopoSortOrdersDependencies(t *testing.T) {
	reg := NewRegistry()
	reg.Register("kilometers", KILOMETERS, false)
	reg.Register("kmh", KILOMETERS_PER_HOUR, false)
	reg.Register("hours", HOURS, false)
	reg.Register("hours-copy", HOURS, false)

	// declared out of order on purpose: the copy reads the calc result
	gens := []Generator{
		NewCopyGenerator("hours", "hours-copy", HOURS),
		NewCalcGenerator("hours", HOURS, "kilometers", "kmh"),
	}
	order, err := TopoSort(gens, reg)
	require.NoError(t, err)
	require.Len(t, order, 2)
	require.Equal(t, "hours", order[0].Result())
	require.Equal(t, "hours-copy", order[1].Result())
}

func TestTopoSortDetectsCycle(t *testing.T) {
	reg := NewRegistry()
	reg.Register("a", F64, false)
	reg.Register("b", F64, false)

	gens := []Generator{
		NewCopyGenerator("b", "a", F64),
		NewCopyGenerator("a", "b", F64),
	}
	_, err := TopoSort(gens, reg)
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrBadConfig))
}

func TestTopoSortMissingInput(t *testing.T) {
	reg := NewRegistry()
	reg.Register("hours", HOURS, false)

	gens := []Generator{
		NewCalcGenerator("hours", HOURS, "kilometers", "kmh"),
	}
	_, err := TopoSort(gens, reg)
	require.Error(t, err)
	require.True(t, errors.Is(util.CodeOf(err), util.ErrMissingInput))
}
