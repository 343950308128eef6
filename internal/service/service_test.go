package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"studio-schedule-service/api"
	"studio-schedule-service/internal/cache"
	"studio-schedule-service/internal/models"
	"studio-schedule-service/internal/storage"
	"studio-schedule-service/pkg/response"
)

// fixedNow is a Monday.
var fixedNow = time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	blocks   map[string]*models.AvailabilityBlock
	buffers  map[string]*models.BookingBuffer
	bookings map[string]*models.Booking
	nextID   int

	lastTx    *fakeTx
	bookingTx storage.Tx
	overlapTx storage.Tx
}

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, nil
}

func (t *fakeTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, nil
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

func newFakeStore() *fakeStore {
	return &fakeStore{
		blocks:   make(map[string]*models.AvailabilityBlock),
		buffers:  make(map[string]*models.BookingBuffer),
		bookings: make(map[string]*models.Booking),
	}
}

func bufferKey(orgID string, serviceID *string) string {
	if serviceID == nil {
		return orgID + "|"
	}
	return orgID + "|" + *serviceID
}

func (f *fakeStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	f.lastTx = &fakeTx{}
	return f.lastTx, nil
}

func (f *fakeStore) CreateAvailabilityBlock(ctx context.Context, block *models.AvailabilityBlock) (string, error) {
	f.nextID++
	id := fmt.Sprintf("block-%d", f.nextID)
	copied := *block
	copied.ID = id
	f.blocks[id] = &copied
	return id, nil
}

func (f *fakeStore) GetAvailabilityBlock(ctx context.Context, orgID, id string) (*models.AvailabilityBlock, error) {
	block, ok := f.blocks[id]
	if !ok || block.OrgID != orgID {
		return nil, response.ErrNotFound
	}
	return block, nil
}

func (f *fakeStore) ListAvailabilityBlocks(ctx context.Context, orgID string, from, to time.Time) ([]*models.AvailabilityBlock, error) {
	var result []*models.AvailabilityBlock
	for _, block := range f.blocks {
		if block.OrgID != orgID {
			continue
		}
		if block.IsRecurring || block.Overlaps(from, to) {
			result = append(result, block)
		}
	}
	return result, nil
}

func (f *fakeStore) DeleteAvailabilityBlock(ctx context.Context, orgID, id string) error {
	block, ok := f.blocks[id]
	if !ok || block.OrgID != orgID {
		return response.ErrNotFound
	}
	delete(f.blocks, id)
	return nil
}

func (f *fakeStore) GetBuffer(ctx context.Context, orgID string, serviceID *string) (*models.BookingBuffer, error) {
	buffer, ok := f.buffers[bufferKey(orgID, serviceID)]
	if !ok {
		return nil, response.ErrNotFound
	}
	return buffer, nil
}

func (f *fakeStore) UpsertBuffer(ctx context.Context, buffer *models.BookingBuffer) error {
	copied := *buffer
	f.buffers[bufferKey(buffer.OrgID, buffer.ServiceID)] = &copied
	return nil
}

func (f *fakeStore) CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	f.bookingTx = tx
	f.nextID++
	id := fmt.Sprintf("booking-%d", f.nextID)
	copied := *booking
	copied.ID = id
	f.bookings[id] = &copied
	return id, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, orgID, id string) (*models.Booking, error) {
	booking, ok := f.bookings[id]
	if !ok || booking.OrgID != orgID {
		return nil, response.ErrNotFound
	}
	return booking, nil
}

func (f *fakeStore) ListBookings(ctx context.Context, orgID string, from, to *time.Time, status *string) ([]*models.Booking, error) {
	var result []*models.Booking
	for _, booking := range f.bookings {
		if booking.OrgID != orgID {
			continue
		}
		if status != nil && string(booking.Status) != *status {
			continue
		}
		result = append(result, booking)
	}
	return result, nil
}

func (f *fakeStore) ListOverlappingBookings(ctx context.Context, orgID string, start, end time.Time) ([]*models.Booking, error) {
	var result []*models.Booking
	for _, booking := range f.bookings {
		if booking.OrgID != orgID {
			continue
		}
		if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
			continue
		}
		if booking.Start.Before(end) && booking.End.After(start) {
			result = append(result, booking)
		}
	}
	return result, nil
}

func (f *fakeStore) ListOverlappingBookingsTx(ctx context.Context, tx storage.Tx, orgID string, start, end time.Time) ([]*models.Booking, error) {
	f.overlapTx = tx
	return f.ListOverlappingBookings(ctx, orgID, start, end)
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, orgID, id string, status models.BookingStatus) error {
	booking, ok := f.bookings[id]
	if !ok || booking.OrgID != orgID {
		return response.ErrNotFound
	}
	booking.Status = status
	return nil
}

func (f *fakeStore) ListIntegrations(ctx context.Context, orgID string) ([]*models.CalendarIntegration, error) {
	return nil, nil
}

func (f *fakeStore) SetIntegrationSync(ctx context.Context, orgID, id string, enabled bool) error {
	return response.ErrNotFound
}

type fakeLocker struct {
	held     bool
	locked   []string
	unlocked []string
}

func (l *fakeLocker) LockOrg(ctx context.Context, orgID string, ttl time.Duration) (bool, error) {
	l.locked = append(l.locked, orgID)
	return !l.held, nil
}

func (l *fakeLocker) UnlockOrg(ctx context.Context, orgID string) error {
	l.unlocked = append(l.unlocked, orgID)
	return nil
}

func newTestService(t *testing.T, store *fakeStore) (*Service, *fakeLocker) {
	t.Helper()

	buffers, err := cache.NewBufferCache(16)
	if err != nil {
		t.Fatalf("buffer cache: %v", err)
	}

	locker := &fakeLocker{}
	s := NewService(store, locker, buffers)
	s.now = func() time.Time { return fixedNow }

	return s, locker
}

func TestGetEffectiveBuffer_FallbackChain(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	svcA := "svc-a"
	store.buffers[bufferKey("org1", nil)] = &models.BookingBuffer{
		OrgID: "org1", BufferBeforeMin: 10, BufferAfterMin: 10, MinAdvanceHours: 48, MaxAdvanceDays: 30,
	}
	store.buffers[bufferKey("org1", &svcA)] = &models.BookingBuffer{
		OrgID: "org1", ServiceID: &svcA, BufferBeforeMin: 5, BufferAfterMin: 5, MinAdvanceHours: 12, MaxAdvanceDays: 60,
	}

	// service-specific row wins, whole row
	buffer, source, err := s.GetEffectiveBuffer(ctx, "org1", &svcA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != models.BufferSourceService {
		t.Fatalf("expected service source, got %s", source)
	}
	if buffer.BufferBeforeMin != 5 || buffer.MinAdvanceHours != 12 || buffer.MaxAdvanceDays != 60 {
		t.Fatalf("service row fields mixed: %+v", buffer)
	}

	// unknown service falls back to the org default row, whole row
	svcB := "svc-b"
	buffer, source, err = s.GetEffectiveBuffer(ctx, "org1", &svcB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != models.BufferSourceOrgDefault {
		t.Fatalf("expected org_default source, got %s", source)
	}
	if buffer.BufferBeforeMin != 10 || buffer.MinAdvanceHours != 48 || buffer.MaxAdvanceDays != 30 {
		t.Fatalf("org default row fields mixed: %+v", buffer)
	}

	// nothing configured -> system defaults
	buffer, source, err = s.GetEffectiveBuffer(ctx, "org2", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if source != models.BufferSourceSystem {
		t.Fatalf("expected system source, got %s", source)
	}
	if buffer.BufferBeforeMin != 0 || buffer.BufferAfterMin != 0 || buffer.MinAdvanceHours != 24 || buffer.MaxAdvanceDays != 90 {
		t.Fatalf("unexpected system defaults: %+v", buffer)
	}
}

func TestUpsertBuffer_InvalidatesCache(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	svcA := "svc-a"
	store.buffers[bufferKey("org1", &svcA)] = &models.BookingBuffer{
		OrgID: "org1", ServiceID: &svcA, BufferBeforeMin: 5, MaxAdvanceDays: 60, MinAdvanceHours: 12,
	}

	if _, _, err := s.GetEffectiveBuffer(ctx, "org1", &svcA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.UpsertBuffer(ctx, &api.BufferRequest{
		OrgID: "org1", ServiceID: &svcA, BufferBeforeMin: 20, BufferAfterMin: 20, MinAdvanceHours: 6, MaxAdvanceDays: 14,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	buffer, _, err := s.GetEffectiveBuffer(ctx, "org1", &svcA)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buffer.BufferBeforeMin != 20 || buffer.MaxAdvanceDays != 14 {
		t.Fatalf("stale buffer served after upsert: %+v", buffer)
	}
}

func TestUpsertBuffer_Validation(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	_, err := s.UpsertBuffer(ctx, &api.BufferRequest{OrgID: "org1", BufferBeforeMin: -1, MaxAdvanceDays: 10})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = s.UpsertBuffer(ctx, &api.BufferRequest{OrgID: "org1", MaxAdvanceDays: 0})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func checkReq(start, end time.Time) *api.SlotCheckRequest {
	return &api.SlotCheckRequest{
		OrgID: "org1",
		Start: start.Format(time.RFC3339),
		End:   end.Format(time.RFC3339),
	}
}

func TestCheckSlot_AdvanceNotice(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	store.buffers[bufferKey("org1", nil)] = &models.BookingBuffer{
		OrgID: "org1", BufferBeforeMin: 15, BufferAfterMin: 15, MinAdvanceHours: 24, MaxAdvanceDays: 90,
	}

	// now+23h: inside the notice window, rejected
	start := fixedNow.Add(23 * time.Hour)
	decision, err := s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Available || decision.Reason != string(models.ReasonAdvanceNotice) {
		t.Fatalf("expected advance notice decline, got %+v", decision)
	}

	// now+25h: accepted
	start = fixedNow.Add(25 * time.Hour)
	decision, err = s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Available {
		t.Fatalf("expected accept, got %+v", decision)
	}

	// exactly now+24h: the boundary is inclusive
	start = fixedNow.Add(24 * time.Hour)
	decision, err = s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Available {
		t.Fatalf("expected accept at the boundary, got %+v", decision)
	}
}

func TestCheckSlot_AdvanceWindow(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	// system defaults: maxAdvanceDays=90
	start := fixedNow.Add(91 * 24 * time.Hour)
	decision, err := s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Available || decision.Reason != string(models.ReasonAdvanceWindow) {
		t.Fatalf("expected advance window decline, got %+v", decision)
	}

	// exactly now+90d: inclusive boundary, accepted
	start = fixedNow.Add(90 * 24 * time.Hour)
	decision, err = s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Available {
		t.Fatalf("expected accept at the boundary, got %+v", decision)
	}
}

func TestCheckSlot_BlockedByRecurringBlock(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	sunday := 0
	store.blocks["block-1"] = &models.AvailabilityBlock{
		ID: "block-1", OrgID: "org1", Title: "Closed Sundays", Type: models.BlockTimeOff,
		AllDay: true, IsRecurring: true, RecurrenceDay: &sunday,
	}

	// fixedNow is Monday March 2nd; March 8th is the next Sunday.
	start := time.Date(2026, time.March, 8, 10, 0, 0, 0, time.UTC)
	decision, err := s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Available || decision.Reason != string(models.ReasonBlocked) {
		t.Fatalf("expected blocked decline, got %+v", decision)
	}

	// the following Monday is fine
	start = time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)
	decision, err = s.CheckSlot(ctx, checkReq(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Available {
		t.Fatalf("expected accept, got %+v", decision)
	}
}

func TestCheckSlot_DoubleBookedThroughBuffer(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	store.buffers[bufferKey("org1", nil)] = &models.BookingBuffer{
		OrgID: "org1", BufferBeforeMin: 30, BufferAfterMin: 0, MinAdvanceHours: 0, MaxAdvanceDays: 90,
	}

	// Existing booking ends 10 minutes before the slot starts: the raw
	// windows do not touch, but the 30-minute pre-buffer does.
	slotStart := fixedNow.Add(48 * time.Hour)
	store.bookings["booking-1"] = &models.Booking{
		ID: "booking-1", OrgID: "org1", ClientID: "client-1",
		Start:  slotStart.Add(-2 * time.Hour),
		End:    slotStart.Add(-10 * time.Minute),
		Status: models.BookingConfirmed,
	}

	decision, err := s.CheckSlot(ctx, checkReq(slotStart, slotStart.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Available || decision.Reason != string(models.ReasonDoubleBooked) {
		t.Fatalf("expected double booked decline, got %+v", decision)
	}

	// cancelled bookings do not block
	store.bookings["booking-1"].Status = models.BookingCancelled

	decision, err = s.CheckSlot(ctx, checkReq(slotStart, slotStart.Add(time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decision.Available {
		t.Fatalf("expected accept after cancellation, got %+v", decision)
	}
}

func TestCreateBlock_RoundTrip(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	start := fixedNow.Add(24 * time.Hour)
	end := start.Add(4 * time.Hour)

	created, err := s.CreateBlock(ctx, &api.AvailabilityBlockRequest{
		OrgID: "org1", Title: "Maintenance", Type: "maintenance",
		Start: start.Format(time.RFC3339), End: end.Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks, err := s.ListBlocks(ctx, "org1", start.Add(-time.Hour), end.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 1 || blocks[0].ID != created.ID {
		t.Fatalf("expected exactly the created block, got %d blocks", len(blocks))
	}

	if err := s.DeleteBlock(ctx, "org1", created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks, err = s.ListBlocks(ctx, "org1", start.Add(-time.Hour), end.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected no blocks after delete, got %d", len(blocks))
	}
}

func TestCreateBlock_Validation(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	start := fixedNow.Format(time.RFC3339)
	end := fixedNow.Add(-time.Hour).Format(time.RFC3339)

	// start after end
	_, err := s.CreateBlock(ctx, &api.AvailabilityBlockRequest{
		OrgID: "org1", Title: "x", Type: "time_off", Start: start, End: end,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// unknown type
	_, err = s.CreateBlock(ctx, &api.AvailabilityBlockRequest{
		OrgID: "org1", Title: "x", Type: "sabbatical", Start: start, End: start,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	// recurring without recurrence_day
	_, err = s.CreateBlock(ctx, &api.AvailabilityBlockRequest{
		OrgID: "org1", Title: "x", Type: "time_off", Start: start, End: start, IsRecurring: true,
	})
	if !errors.Is(err, response.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateWeeklyRecurringBlock_AllDay(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	block, err := s.CreateWeeklyRecurringBlock(ctx, &api.RecurringBlockRequest{
		OrgID: "org1", Title: "Closed Sundays", Type: "time_off", RecurrenceDay: 0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !block.IsRecurring || !block.AllDay {
		t.Fatalf("expected an all-day recurring block, got %+v", block)
	}
	if block.RecurrenceDay == nil || *block.RecurrenceDay != 0 {
		t.Fatalf("expected recurrence_day 0, got %v", block.RecurrenceDay)
	}
	if block.Start.Weekday() != time.Sunday {
		t.Fatalf("template start should fall on a Sunday, got %s", block.Start.Weekday())
	}
}

func TestCancelBooking(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	store.bookings["booking-1"] = &models.Booking{
		ID: "booking-1", OrgID: "org1", ClientID: "client-1",
		Start:  fixedNow.Add(48 * time.Hour),
		End:    fixedNow.Add(49 * time.Hour),
		Status: models.BookingConfirmed,
	}

	booking, err := s.CancelBooking(ctx, "org1", "booking-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != string(models.BookingCancelled) {
		t.Fatalf("expected cancelled status, got %s", booking.Status)
	}

	// a second cancel is a conflict
	_, err = s.CancelBooking(ctx, "org1", "booking-1")
	if !errors.Is(err, response.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// other orgs cannot see the booking
	_, err = s.CancelBooking(ctx, "org2", "booking-1")
	if !errors.Is(err, response.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateBooking_CommitsWhenAvailable(t *testing.T) {
	store := newFakeStore()
	s, locker := newTestService(t, store)
	ctx := context.Background()

	start := fixedNow.Add(48 * time.Hour)
	booking, err := s.CreateBooking(ctx, &api.BookingRequest{
		OrgID: "org1", ClientID: "client-1",
		Start: start.Format(time.RFC3339), End: start.Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != string(models.BookingPending) {
		t.Fatalf("expected pending booking, got %s", booking.Status)
	}
	if _, ok := store.bookings[booking.ID]; !ok {
		t.Fatalf("booking %s not stored", booking.ID)
	}

	if store.lastTx == nil || !store.lastTx.committed || store.lastTx.rolledBack {
		t.Fatalf("expected a committed transaction, got %+v", store.lastTx)
	}
	if store.overlapTx != store.lastTx || store.bookingTx != store.lastTx {
		t.Fatalf("overlap re-check and insert must share the transaction")
	}

	if len(locker.locked) != 1 || locker.locked[0] != "org1" {
		t.Fatalf("expected the org lock taken once, got %v", locker.locked)
	}
	if len(locker.unlocked) != 1 || locker.unlocked[0] != "org1" {
		t.Fatalf("expected the org lock released, got %v", locker.unlocked)
	}
}

func TestCreateBooking_DeclineInsideTxRollsBack(t *testing.T) {
	store := newFakeStore()
	s, _ := newTestService(t, store)
	ctx := context.Background()

	start := fixedNow.Add(48 * time.Hour)
	store.bookings["booking-1"] = &models.Booking{
		ID: "booking-1", OrgID: "org1", ClientID: "client-1",
		Start:  start.Add(30 * time.Minute),
		End:    start.Add(90 * time.Minute),
		Status: models.BookingConfirmed,
	}

	_, err := s.CreateBooking(ctx, &api.BookingRequest{
		OrgID: "org1", ClientID: "client-2",
		Start: start.Format(time.RFC3339), End: start.Add(time.Hour).Format(time.RFC3339),
	})
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("expected slot not available, got %v", err)
	}

	if store.lastTx == nil || !store.lastTx.rolledBack || store.lastTx.committed {
		t.Fatalf("expected a rolled back transaction, got %+v", store.lastTx)
	}
	if store.overlapTx != store.lastTx {
		t.Fatalf("the availability re-check must run inside the transaction")
	}
	if len(store.bookings) != 1 {
		t.Fatalf("expected no new booking, got %d", len(store.bookings))
	}
}

func TestCreateBooking_LockNotAcquired(t *testing.T) {
	store := newFakeStore()
	s, locker := newTestService(t, store)
	locker.held = true
	ctx := context.Background()

	start := fixedNow.Add(48 * time.Hour)
	_, err := s.CreateBooking(ctx, &api.BookingRequest{
		OrgID: "org1", ClientID: "client-1",
		Start: start.Format(time.RFC3339), End: start.Add(time.Hour).Format(time.RFC3339),
	})
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("expected locked error, got %v", err)
	}

	if store.lastTx != nil {
		t.Fatalf("no transaction should start while the org lock is held")
	}
	if len(store.bookings) != 0 {
		t.Fatalf("expected no booking, got %d", len(store.bookings))
	}
}
