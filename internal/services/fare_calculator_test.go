package services

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func abcLegs() []models.Leg {
	return []models.Leg{
		{SequenceOrder: 3, StopName: "C", PriceFromPrev: 30},
		{SequenceOrder: 1, StopName: "A", PriceFromPrev: 0},
		{SequenceOrder: 2, StopName: "B", PriceFromPrev: 50},
	}
}

func TestBuildCumulativeFares(t *testing.T) {
	legs := BuildCumulativeFares(abcLegs())

	require.Len(t, legs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{legs[0].SequenceOrder, legs[1].SequenceOrder, legs[2].SequenceOrder})
	assert.Equal(t, 0.0, legs[0].CumulativeFare)
	assert.Equal(t, 50.0, legs[1].CumulativeFare)
	assert.Equal(t, 80.0, legs[2].CumulativeFare)
}

func TestFare_ABCScenario(t *testing.T) {
	legs := BuildCumulativeFares(abcLegs())

	tests := []struct {
		from, to int
		want     float64
	}{
		{1, 3, 80},
		{1, 2, 50},
		{2, 3, 30},
	}
	for _, tt := range tests {
		got, err := Fare(legs, tt.from, tt.to)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "fare(%d,%d)", tt.from, tt.to)
	}
}

func TestFare_InvalidSegment(t *testing.T) {
	legs := BuildCumulativeFares(abcLegs())

	for _, pair := range [][2]int{{2, 2}, {3, 1}, {0, 2}, {1, 4}} {
		_, err := Fare(legs, pair[0], pair[1])
		assert.True(t, errors.Is(err, models.ErrInvalidSegment), "pair %v", pair)
	}
}

func TestFare_PrefixDifferenceHoldsForAllPairs(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 50; round++ {
		n := 2 + rng.Intn(10)
		legs := make([]models.Leg, n)
		for i := range legs {
			legs[i] = models.Leg{SequenceOrder: i + 1, PriceFromPrev: float64(rng.Intn(20000)) / 100}
		}
		legs[0].PriceFromPrev = 0
		built := BuildCumulativeFares(legs)

		for a := 1; a <= n; a++ {
			for b := a + 1; b <= n; b++ {
				got, err := Fare(built, a, b)
				require.NoError(t, err)
				want := roundFare(built[b-1].CumulativeFare - built[a-1].CumulativeFare)
				assert.InDelta(t, want, got, 0.001)
			}
		}
	}
}

func TestNeedsRepair(t *testing.T) {
	t.Run("fresh column is consistent", func(t *testing.T) {
		assert.False(t, NeedsRepair(BuildCumulativeFares(abcLegs())))
	})

	t.Run("zeroed cumulative past origin", func(t *testing.T) {
		legs := BuildCumulativeFares(abcLegs())
		legs[2].CumulativeFare = 0
		assert.True(t, NeedsRepair(legs))
	})

	t.Run("stale after increment change", func(t *testing.T) {
		legs := BuildCumulativeFares(abcLegs())
		legs[1].PriceFromPrev = 60
		assert.True(t, NeedsRepair(legs))
	})

	t.Run("free legs are not corruption", func(t *testing.T) {
		legs := BuildCumulativeFares([]models.Leg{
			{SequenceOrder: 1}, {SequenceOrder: 2}, {SequenceOrder: 3, PriceFromPrev: 10},
		})
		assert.False(t, NeedsRepair(legs))
	})
}
