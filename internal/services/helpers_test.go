package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smarttransit/segment-booking/internal/database"
	"github.com/smarttransit/segment-booking/internal/models"
	"github.com/smarttransit/segment-booking/internal/utils"
	"github.com/stretchr/testify/require"
)

const (
	riderEmail = "rider@example.com"
	otherEmail = "other@example.com"
	travelDate = "2030-01-02" // a Wednesday, the day after the fixed clock
)

var testClient = utils.ClientInfo{IP: "203.0.113.10", UserAgent: "segment-booking-test"}

type testEnv struct {
	store        *database.MemoryStore
	calendar     Calendar
	routes       *RouteService
	bookings     *BookingService
	reservations *ReservationService
	search       *SearchService
	abcRun       *models.Run
	abcSeats     []models.Seat
	longRun      *models.Run
	longSeats    []models.Seat
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fixedCalendar() Calendar {
	return Calendar{
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC) },
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := quietLogger()
	store := database.NewMemoryStore()
	cal := fixedCalendar()
	audit := NewAuditService(store, logger)

	env := &testEnv{
		store:        store,
		calendar:     cal,
		routes:       NewRouteService(store, cal, logger),
		bookings:     NewBookingService(store, store, audit, 5*time.Second, logger),
		reservations: NewReservationService(store, store, store, audit, cal, 5*time.Second, logger),
		search:       NewSearchService(store, store, cal, logger),
	}

	for _, email := range []string{riderEmail, otherEmail} {
		_, err := env.bookings.RegisterRider(ctx, email, "Test Rider")
		require.NoError(t, err)
	}

	var err error
	env.abcRun, _, err = env.routes.CreateRun(ctx, &models.CreateRunRequest{
		Name:     "ABC Express",
		BusType:  "AC",
		Capacity: 4,
		Legs: []models.LegRequest{
			{StopName: "A", ArrivalTime: "08:00", PriceFromPrev: 0},
			{StopName: "B", ArrivalTime: "09:00", PriceFromPrev: 50},
			{StopName: "C", ArrivalTime: "10:00", PriceFromPrev: 30},
		},
	})
	require.NoError(t, err)
	env.abcSeats, err = store.ListSeats(ctx, env.abcRun.ID)
	require.NoError(t, err)

	longLegs := make([]models.LegRequest, 6)
	for i := range longLegs {
		longLegs[i] = models.LegRequest{StopName: "S" + string(rune('1'+i)), PriceFromPrev: 10}
	}
	longLegs[0].PriceFromPrev = 0
	env.longRun, _, err = env.routes.CreateRun(ctx, &models.CreateRunRequest{
		Name:     "Six Stop Local",
		Capacity: 2,
		Legs:     longLegs,
	})
	require.NoError(t, err)
	env.longSeats, err = store.ListSeats(ctx, env.longRun.ID)
	require.NoError(t, err)

	return env
}

func (e *testEnv) book(runID int64, from, to int, email string, seatIDs ...int64) ([]models.Booking, error) {
	return e.reservations.BookSeats(context.Background(), &models.BookSeatsRequest{
		RunID:       runID,
		JourneyDate: travelDate,
		FromSeq:     from,
		ToSeq:       to,
		SeatIDs:     seatIDs,
	}, email, testClient)
}
