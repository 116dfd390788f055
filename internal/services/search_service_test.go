package services

import (
	"context"
	"errors"
	"testing"

	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchItineraries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.routes.CreateRun(ctx, &models.CreateRunRequest{
		Name:         "Early Monday A-C",
		Capacity:     2,
		ScheduleDays: []string{"monday"},
		Legs: []models.LegRequest{
			{StopName: "a", ArrivalTime: "06:00"},
			{StopName: "c", ArrivalTime: "07:30", PriceFromPrev: 70},
		},
	})
	require.NoError(t, err)
	_, _, err = env.routes.CreateRun(ctx, &models.CreateRunRequest{
		Name:     "Dawn A-C",
		Capacity: 2,
		Legs: []models.LegRequest{
			{StopName: "A", ArrivalTime: "05:00"},
			{StopName: "C", ArrivalTime: "06:10", PriceFromPrev: 75},
		},
	})
	require.NoError(t, err)

	t.Run("matches names loosely and sorts by departure", func(t *testing.T) {
		resp, err := env.search.SearchItineraries(ctx, "  a ", "C", travelDate)
		require.NoError(t, err)
		require.Len(t, resp.Results, 2, "monday-only run must be filtered on a wednesday")

		assert.Equal(t, "Dawn A-C", resp.Results[0].RunName)
		assert.Equal(t, 75.0, resp.Results[0].Price)
		assert.Empty(t, resp.Results[0].IntermediateStops)

		abc := resp.Results[1]
		assert.Equal(t, env.abcRun.ID, abc.RunID)
		assert.Equal(t, 80.0, abc.Price)
		assert.Equal(t, []string{"B"}, abc.IntermediateStops)
		assert.Equal(t, "08:00", abc.DepartureTime)
		assert.Equal(t, "10:00", abc.ArrivalTime)
		assert.Equal(t, 1, abc.FromSeq)
		assert.Equal(t, 3, abc.ToSeq)
	})

	t.Run("direction matters", func(t *testing.T) {
		resp, err := env.search.SearchItineraries(ctx, "C", "A", travelDate)
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
		assert.NotEmpty(t, resp.Message)
	})

	t.Run("past date", func(t *testing.T) {
		_, err := env.search.SearchItineraries(ctx, "A", "C", "2029-06-01")
		assert.True(t, errors.Is(err, models.ErrPastDate))
	})

	t.Run("missing stops", func(t *testing.T) {
		_, err := env.search.SearchItineraries(ctx, "", "C", travelDate)
		var validation *models.ValidationError
		assert.True(t, errors.As(err, &validation))
	})
}

func TestGetSeatAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.book(env.longRun.ID, 2, 4, riderEmail, env.longSeats[0].ID)
	require.NoError(t, err)

	tests := []struct {
		from, to   int
		firstTaken bool
	}{
		{1, 2, false},
		{1, 3, true},
		{3, 5, true},
		{4, 6, false},
	}
	for _, tt := range tests {
		seats, err := env.search.GetSeatAvailability(ctx, env.longRun.ID, tt.from, tt.to, travelDate)
		require.NoError(t, err)
		require.Len(t, seats, 2)
		assert.Equal(t, !tt.firstTaken, seats[0].Available, "segment %d-%d", tt.from, tt.to)
		assert.True(t, seats[1].Available)
	}

	other, err := env.search.GetSeatAvailability(ctx, env.longRun.ID, 1, 6, "2030-01-03")
	require.NoError(t, err)
	assert.True(t, other[0].Available, "bookings are per date")

	_, err = env.search.GetSeatAvailability(ctx, env.longRun.ID, 5, 7, travelDate)
	assert.True(t, errors.Is(err, models.ErrInvalidSegment))
	_, err = env.search.GetSeatAvailability(ctx, 999, 1, 2, travelDate)
	assert.True(t, errors.Is(err, models.ErrRunNotFound))
}

func TestListSeatsAndStops(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seats, err := env.search.ListSeats(ctx, env.abcRun.ID)
	require.NoError(t, err)
	require.Len(t, seats, 4)
	for i, s := range seats {
		assert.True(t, s.Available)
		assert.Equal(t, string(rune('1'+i)), s.SeatNumber)
	}

	names, err := env.search.ListStopNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "S1", "S2", "S3", "S4", "S5", "S6"}, names)
}
