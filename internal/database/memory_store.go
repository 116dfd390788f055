package database

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smarttransit/segment-booking/internal/models"
)

// MemoryStore is an in-process implementation of every store interface.
// Records live in append-only slices addressed by id-1, with maps as
// secondary indexes. One booking transaction runs at a time; readers take
// the data lock only for the duration of a lookup.
type MemoryStore struct {
	writer chan struct{}
	mu     sync.RWMutex

	stops      []models.Stop
	stopByName map[string]int64

	runs      []models.Run
	legsByRun map[int64][]models.Leg
	nextLegID int64

	seats      []models.Seat
	seatsByRun map[int64][]int64

	riders       []models.Rider
	riderByEmail map[string]int64

	bookings        []models.Booking
	bookingsBySeat  map[seatDateKey][]int64
	bookingsByRider map[int64][]int64

	auditLogs []models.AuditLog

	now func() time.Time
}

type seatDateKey struct {
	seatID int64
	date   string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		writer:          make(chan struct{}, 1),
		stopByName:      make(map[string]int64),
		legsByRun:       make(map[int64][]models.Leg),
		seatsByRun:      make(map[int64][]int64),
		riderByEmail:    make(map[string]int64),
		bookingsBySeat:  make(map[seatDateKey][]int64),
		bookingsByRider: make(map[int64][]int64),
		now:             time.Now,
	}
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// RunStore
// ---------------------------------------------------------------------------

func (s *MemoryStore) GetRun(ctx context.Context, id int64) (*models.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.runs)) {
		return nil, models.ErrRunNotFound
	}
	run := s.runs[id-1]
	run.ScheduleDays = append(models.ScheduleDays(nil), run.ScheduleDays...)
	return &run, nil
}

func (s *MemoryStore) ListRuns(ctx context.Context) ([]models.Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Run, len(s.runs))
	copy(out, s.runs)
	return out, nil
}

func (s *MemoryStore) ListLegs(ctx context.Context, runID int64) ([]models.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	legs := s.legsByRun[runID]
	out := make([]models.Leg, len(legs))
	copy(out, legs)
	for i := range out {
		out[i].StopName = s.stops[out[i].StopID-1].Name
	}
	return out, nil
}

func (s *MemoryStore) ListSeats(ctx context.Context, runID int64) ([]models.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.seatsByRun[runID]
	out := make([]models.Seat, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.seats[id-1])
	}
	return out, nil
}

func (s *MemoryStore) ListStops(ctx context.Context) ([]models.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Stop, len(s.stops))
	copy(out, s.stops)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) FindOrCreateStop(ctx context.Context, name, cityCode string) (*models.Stop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeKey(name)
	if id, ok := s.stopByName[key]; ok {
		stop := s.stops[id-1]
		return &stop, nil
	}
	stop := models.Stop{
		ID:       int64(len(s.stops) + 1),
		Name:     strings.TrimSpace(name),
		CityCode: cityCode,
	}
	s.stops = append(s.stops, stop)
	s.stopByName[key] = stop.ID
	return &stop, nil
}

func (s *MemoryStore) CreateRun(ctx context.Context, run *models.Run, legs []models.Leg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, leg := range legs {
		if leg.StopID < 1 || leg.StopID > int64(len(s.stops)) {
			return fmt.Errorf("failed to create leg %d: unknown stop %d", leg.SequenceOrder, leg.StopID)
		}
	}

	now := s.now()
	run.ID = int64(len(s.runs) + 1)
	run.CreatedAt = now
	run.UpdatedAt = now
	s.runs = append(s.runs, *run)

	stored := make([]models.Leg, len(legs))
	for i := range legs {
		s.nextLegID++
		legs[i].ID = s.nextLegID
		legs[i].RunID = run.ID
		stored[i] = legs[i]
	}
	s.legsByRun[run.ID] = stored

	for n := 1; n <= run.Capacity; n++ {
		seat := models.Seat{
			ID:         int64(len(s.seats) + 1),
			RunID:      run.ID,
			SeatNumber: strconv.Itoa(n),
			Available:  true,
		}
		s.seats = append(s.seats, seat)
		s.seatsByRun[run.ID] = append(s.seatsByRun[run.ID], seat.ID)
	}
	return nil
}

func (s *MemoryStore) UpdateLegFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error) {
	return s.rewriteLegs(ctx, runID, update, true)
}

func (s *MemoryStore) UpdateCumulativeFares(ctx context.Context, runID int64, update LegUpdate) ([]models.Leg, error) {
	return s.rewriteLegs(ctx, runID, update, false)
}

// rewriteLegs holds the data lock across read, update and write so no other
// fare edit can interleave.
func (s *MemoryStore) rewriteLegs(ctx context.Context, runID int64, update LegUpdate, withIncrements bool) ([]models.Leg, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.legsByRun[runID]
	if !ok {
		return nil, models.ErrRunNotFound
	}
	current := make([]models.Leg, len(stored))
	copy(current, stored)
	sort.Slice(current, func(i, j int) bool { return current[i].SequenceOrder < current[j].SequenceOrder })

	legs, err := update(current)
	if err != nil {
		return nil, err
	}
	if legs == nil {
		return current, nil
	}

	bySeq := make(map[int]int, len(stored))
	for i, leg := range stored {
		bySeq[leg.SequenceOrder] = i
	}
	next := make([]models.Leg, len(stored))
	copy(next, stored)
	for _, leg := range legs {
		i, ok := bySeq[leg.SequenceOrder]
		if !ok {
			return nil, fmt.Errorf("%w: leg %d not found on run %d", models.ErrInvalidSegment, leg.SequenceOrder, runID)
		}
		if withIncrements {
			next[i].PriceFromPrev = leg.PriceFromPrev
		}
		next[i].CumulativeFare = leg.CumulativeFare
	}
	s.legsByRun[runID] = next
	s.runs[runID-1].UpdatedAt = s.now()

	out := make([]models.Leg, len(next))
	copy(out, next)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

// SetLegCumulativeFare overwrites a single cumulative value without touching
// the rest of the column. Used to simulate corrupted data in maintenance tests.
func (s *MemoryStore) SetLegCumulativeFare(runID int64, seq int, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.legsByRun[runID] {
		if s.legsByRun[runID][i].SequenceOrder == seq {
			s.legsByRun[runID][i].CumulativeFare = value
		}
	}
}

// ---------------------------------------------------------------------------
// RiderStore
// ---------------------------------------------------------------------------

func (s *MemoryStore) GetRiderByEmail(ctx context.Context, email string) (*models.Rider, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.riderByEmail[normalizeKey(email)]
	if !ok {
		return nil, models.ErrRiderNotFound
	}
	rider := s.riders[id-1]
	return &rider, nil
}

func (s *MemoryStore) CreateRider(ctx context.Context, rider *models.Rider) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeKey(rider.Email)
	if id, ok := s.riderByEmail[key]; ok {
		s.riders[id-1].FullName = rider.FullName
		*rider = s.riders[id-1]
		return nil
	}
	rider.ID = int64(len(s.riders) + 1)
	rider.Email = strings.TrimSpace(rider.Email)
	rider.CreatedAt = s.now()
	s.riders = append(s.riders, *rider)
	s.riderByEmail[key] = rider.ID
	return nil
}

// ---------------------------------------------------------------------------
// AuditStore
// ---------------------------------------------------------------------------

func (s *MemoryStore) InsertAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = int64(len(s.auditLogs) + 1)
	entry.CreatedAt = s.now()
	s.auditLogs = append(s.auditLogs, *entry)
	return nil
}

// AuditLogs returns a copy of every stored audit record
func (s *MemoryStore) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

// ---------------------------------------------------------------------------
// BookingStore
// ---------------------------------------------------------------------------

// InTx holds the single writer slot for the whole of fn. Staged writes are
// applied only when fn succeeds and ctx is still live.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx BookingTx) error) error {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.writer }()

	tx := &memBookingTx{store: s, updates: make(map[int64]models.Booking)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.inserts {
		s.bookings = append(s.bookings, b)
		key := seatDateKey{seatID: b.SeatID, date: b.JourneyDate.Format(models.DateLayout)}
		s.bookingsBySeat[key] = append(s.bookingsBySeat[key], b.ID)
		s.bookingsByRider[b.RiderID] = append(s.bookingsByRider[b.RiderID], b.ID)
	}
	for id, b := range tx.updates {
		s.bookings[id-1] = b
	}
	return nil
}

func (s *MemoryStore) FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Booking
	for _, id := range s.bookingsBySeat[seatDateKey{seatID: seatID, date: journeyDate.Format(models.DateLayout)}] {
		b := s.bookings[id-1]
		if b.IsActive() && b.Segment().Overlaps(seg) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id < 1 || id > int64(len(s.bookings)) {
		return nil, models.ErrBookingNotFound
	}
	b := s.bookings[id-1]
	return &b, nil
}

func (s *MemoryStore) ListBookingsByRider(ctx context.Context, riderID int64) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bookingsByRider[riderID]
	out := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.bookings[id-1])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].JourneyDate.Equal(out[j].JourneyDate) {
			return out[i].JourneyDate.After(out[j].JourneyDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListAllBookings(ctx context.Context) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Booking, len(s.bookings))
	for i := range s.bookings {
		out[len(s.bookings)-1-i] = s.bookings[i]
	}
	return out, nil
}

// memBookingTx stages writes until the owning InTx commits
type memBookingTx struct {
	store   *MemoryStore
	inserts []models.Booking
	updates map[int64]models.Booking
}

func (t *memBookingTx) LockSeats(ctx context.Context, runID int64, seatIDs []int64) ([]models.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	var seats []models.Seat
	for _, id := range seatIDs {
		if id < 1 || id > int64(len(t.store.seats)) || t.store.seats[id-1].RunID != runID {
			continue
		}
		seats = append(seats, t.store.seats[id-1])
	}
	if err := requireAllSeats(seats, seatIDs); err != nil {
		return nil, err
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].ID < seats[j].ID })
	return seats, nil
}

// FindConflictingBookings sees committed bookings plus this transaction's
// own staged inserts and status changes.
func (t *memBookingTx) FindConflictingBookings(ctx context.Context, seatID int64, journeyDate time.Time, seg models.Segment) ([]models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	date := journeyDate.Format(models.DateLayout)

	t.store.mu.RLock()
	var candidates []models.Booking
	for _, id := range t.store.bookingsBySeat[seatDateKey{seatID: seatID, date: date}] {
		b := t.store.bookings[id-1]
		if staged, ok := t.updates[id]; ok {
			b = staged
		}
		candidates = append(candidates, b)
	}
	t.store.mu.RUnlock()

	for _, b := range t.inserts {
		if b.SeatID == seatID && b.JourneyDate.Format(models.DateLayout) == date {
			candidates = append(candidates, b)
		}
	}

	var out []models.Booking
	for _, b := range candidates {
		if b.IsActive() && b.Segment().Overlaps(seg) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *memBookingTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.store.mu.RLock()
	nextID := int64(len(t.store.bookings) + len(t.inserts) + 1)
	now := t.store.now()
	t.store.mu.RUnlock()

	b.ID = nextID
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now
	t.inserts = append(t.inserts, *b)
	return nil
}

func (t *memBookingTx) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b, ok := t.updates[id]; ok {
		return &b, nil
	}
	return t.store.GetBooking(ctx, id)
}

func (t *memBookingTx) UpdateBookingStatus(ctx context.Context, b *models.Booking, expectedVersion int) error {
	current, err := t.GetBookingForUpdate(ctx, b.ID)
	if err != nil {
		return err
	}
	if current.Version != expectedVersion {
		return models.ErrConcurrentModification
	}
	updated := *current
	updated.Status = b.Status
	updated.UpdatedAt = b.UpdatedAt
	updated.Version = expectedVersion + 1
	t.updates[b.ID] = updated
	b.Version = updated.Version
	return nil
}
