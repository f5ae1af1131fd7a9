package dims

import (
	"testing"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		c, err := Parse("C1 z0 T-2")
		require.NoError(t, err)
		require.Equal(t, 3, c.Count())

		v, ok := c.TryGet(format.DimensionT)
		require.True(t, ok)
		require.Equal(t, -2, v)
		require.Equal(t, "Z0C1T-2", c.String())
	})

	t.Run("empty", func(t *testing.T) {
		c, err := Parse("  ")
		require.NoError(t, err)
		require.True(t, c.IsEmpty())
	})

	t.Run("duplicate dimension", func(t *testing.T) {
		_, err := Parse("C0C1")
		require.ErrorIs(t, err, errs.ErrDuplicateDimension)
	})

	t.Run("missing number", func(t *testing.T) {
		_, err := Parse("C")
		require.ErrorIs(t, err, errs.ErrCoordinateSyntax)
	})

	t.Run("unknown dimension", func(t *testing.T) {
		_, err := Parse("X0")
		require.ErrorIs(t, err, errs.ErrCoordinateSyntax)
	})
}

func TestCoordinate_Matches(t *testing.T) {
	c := NewCoordinate(map[format.DimensionIndex]int{format.DimensionC: 1, format.DimensionZ: 3})

	require.True(t, c.Matches(Coordinate{}))
	require.True(t, c.Matches(NewCoordinate(map[format.DimensionIndex]int{format.DimensionC: 1})))
	require.False(t, c.Matches(NewCoordinate(map[format.DimensionIndex]int{format.DimensionC: 2})))
	require.False(t, c.Matches(NewCoordinate(map[format.DimensionIndex]int{format.DimensionT: 0})))
}

func TestCoordinate_SetClear(t *testing.T) {
	var c Coordinate
	c.Set(format.DimensionS, 4)
	c.Set(format.DimensionInvalid, 1)
	require.Equal(t, 1, c.Count())
	require.Equal(t, []format.DimensionIndex{format.DimensionS}, c.Dimensions())

	c.Clear(format.DimensionS)
	require.True(t, c.IsEmpty())
	require.True(t, c.Equal(Coordinate{}))
}

func TestParseBounds(t *testing.T) {
	b, err := ParseBounds("C0:2 Z-1:5")
	require.NoError(t, err)
	require.Equal(t, 2, b.Count())

	iv, ok := b.TryGet(format.DimensionZ)
	require.True(t, ok)
	require.Equal(t, Interval{Start: -1, Size: 5}, iv)
	require.True(t, iv.Contains(3))
	require.False(t, iv.Contains(4))
	require.Equal(t, "Z-1:5C0:2", b.String())

	_, err = ParseBounds("C0")
	require.ErrorIs(t, err, errs.ErrCoordinateSyntax)
}

func TestBounds_Extend(t *testing.T) {
	var b Bounds
	b.Extend(format.DimensionT, 3)
	b.Extend(format.DimensionT, 1)
	b.Extend(format.DimensionT, 2)

	iv, ok := b.TryGet(format.DimensionT)
	require.True(t, ok)
	require.Equal(t, Interval{Start: 1, Size: 3}, iv)
}

func TestCoordinateStringRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("parse(format(c)) == c", prop.ForAll(
		func(mask uint16, values []int) bool {
			var c Coordinate
			for i, d := range format.AllDimensions {
				if mask&(1<<i) != 0 && i < len(values) {
					c.Set(d, values[i])
				}
			}
			parsed, err := Parse(c.String())

			return err == nil && parsed.Equal(c)
		},
		gen.UInt16Range(0, 1<<format.DimensionCount-1),
		gen.SliceOfN(format.DimensionCount, gen.IntRange(-1000, 1000)),
	))

	properties.TestingRun(t)
}
