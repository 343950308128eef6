package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studio-schedule-service/api"
	"studio-schedule-service/internal/cache"
	"studio-schedule-service/internal/calendar"
	"studio-schedule-service/internal/lock"
	"studio-schedule-service/internal/models"
	"studio-schedule-service/internal/storage"
	"studio-schedule-service/pkg/response"
)

// bookingLockTTL caps how long a crashed booking request can hold the
// org lock.
const bookingLockTTL = 10 * time.Second

type Service struct {
	store   Store
	locker  lock.Locker
	buffers *cache.BufferCache
	now     func() time.Time
}

func NewService(store Store, locker lock.Locker, buffers *cache.BufferCache) *Service {
	return &Service{
		store:   store,
		locker:  locker,
		buffers: buffers,
		now:     time.Now,
	}
}

type Store interface {
	BeginTx(ctx context.Context) (storage.Tx, error)

	// Availability Blocks
	CreateAvailabilityBlock(ctx context.Context, block *models.AvailabilityBlock) (string, error)
	GetAvailabilityBlock(ctx context.Context, orgID, id string) (*models.AvailabilityBlock, error)
	ListAvailabilityBlocks(ctx context.Context, orgID string, from, to time.Time) ([]*models.AvailabilityBlock, error)
	DeleteAvailabilityBlock(ctx context.Context, orgID, id string) error

	// Booking Buffers
	GetBuffer(ctx context.Context, orgID string, serviceID *string) (*models.BookingBuffer, error)
	UpsertBuffer(ctx context.Context, buffer *models.BookingBuffer) error

	// Bookings
	CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error)
	GetBooking(ctx context.Context, orgID, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, orgID string, from, to *time.Time, status *string) ([]*models.Booking, error)
	ListOverlappingBookings(ctx context.Context, orgID string, start, end time.Time) ([]*models.Booking, error)
	ListOverlappingBookingsTx(ctx context.Context, tx storage.Tx, orgID string, start, end time.Time) ([]*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, orgID, id string, status models.BookingStatus) error

	// Calendar Integrations
	ListIntegrations(ctx context.Context, orgID string) ([]*models.CalendarIntegration, error)
	SetIntegrationSync(ctx context.Context, orgID, id string, enabled bool) error
}

// Availability Blocks

func (s *Service) CreateBlock(ctx context.Context, req *api.AvailabilityBlockRequest) (*api.AvailabilityBlockResponse, error) {
	const op = "service.CreateBlock"

	blockType := models.BlockType(req.Type)
	if !blockType.Valid() {
		return nil, fmt.Errorf("%s: invalid type %q: %w", op, req.Type, response.ErrValidation)
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrValidation)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrValidation)
	}

	if req.IsRecurring {
		if req.RecurrenceDay == nil {
			return nil, fmt.Errorf("%s: recurrence_day is required for recurring blocks: %w", op, response.ErrValidation)
		}
		if *req.RecurrenceDay < 0 || *req.RecurrenceDay > 6 {
			return nil, fmt.Errorf("%s: recurrence_day out of range: %w", op, response.ErrValidation)
		}
	} else if start.After(end) {
		return nil, fmt.Errorf("%s: start is after end: %w", op, response.ErrValidation)
	}

	block := &models.AvailabilityBlock{
		OrgID:         req.OrgID,
		Title:         req.Title,
		Type:          blockType,
		Start:         start,
		End:           end,
		AllDay:        req.AllDay,
		IsRecurring:   req.IsRecurring,
		RecurrenceDay: req.RecurrenceDay,
	}

	id, err := s.store.CreateAvailabilityBlock(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBlock(ctx, req.OrgID, id)
}

// CreateWeeklyRecurringBlock derives the single-day template for a
// weekly block from the next occurrence of the weekday. Empty times mean
// an all-day block.
func (s *Service) CreateWeeklyRecurringBlock(ctx context.Context, req *api.RecurringBlockRequest) (*api.AvailabilityBlockResponse, error) {
	const op = "service.CreateWeeklyRecurringBlock"

	blockType := models.BlockType(req.Type)
	if !blockType.Valid() {
		return nil, fmt.Errorf("%s: invalid type %q: %w", op, req.Type, response.ErrValidation)
	}

	if req.RecurrenceDay < 0 || req.RecurrenceDay > 6 {
		return nil, fmt.Errorf("%s: recurrence_day out of range: %w", op, response.ErrValidation)
	}

	now := s.now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for int(day.Weekday()) != req.RecurrenceDay {
		day = day.AddDate(0, 0, 1)
	}

	allDay := req.StartTime == "" && req.EndTime == ""
	start := day
	end := day.AddDate(0, 0, 1)

	if !allDay {
		startTime, err := time.Parse("15:04", req.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid start_time: %w", op, response.ErrValidation)
		}

		endTime, err := time.Parse("15:04", req.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid end_time: %w", op, response.ErrValidation)
		}

		if !endTime.After(startTime) {
			return nil, fmt.Errorf("%s: end_time is not after start_time: %w", op, response.ErrValidation)
		}

		start = day.Add(time.Duration(startTime.Hour())*time.Hour + time.Duration(startTime.Minute())*time.Minute)
		end = day.Add(time.Duration(endTime.Hour())*time.Hour + time.Duration(endTime.Minute())*time.Minute)
	}

	recurrenceDay := req.RecurrenceDay
	block := &models.AvailabilityBlock{
		OrgID:         req.OrgID,
		Title:         req.Title,
		Type:          blockType,
		Start:         start,
		End:           end,
		AllDay:        allDay,
		IsRecurring:   true,
		RecurrenceDay: &recurrenceDay,
	}

	id, err := s.store.CreateAvailabilityBlock(ctx, block)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBlock(ctx, req.OrgID, id)
}

func (s *Service) GetBlock(ctx context.Context, orgID, id string) (*api.AvailabilityBlockResponse, error) {
	const op = "service.GetBlock"

	block, err := s.store.GetAvailabilityBlock(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blockResponse(block), nil
}

func (s *Service) ListBlocks(ctx context.Context, orgID string, from, to time.Time) ([]*api.AvailabilityBlockResponse, error) {
	const op = "service.ListBlocks"

	blocks, err := s.store.ListAvailabilityBlocks(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.AvailabilityBlockResponse, 0, len(blocks))
	for _, block := range blocks {
		result = append(result, blockResponse(block))
	}

	return result, nil
}

func (s *Service) DeleteBlock(ctx context.Context, orgID, id string) error {
	const op = "service.DeleteBlock"

	err := s.store.DeleteAvailabilityBlock(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func blockResponse(block *models.AvailabilityBlock) *api.AvailabilityBlockResponse {
	return &api.AvailabilityBlockResponse{
		ID:            block.ID,
		OrgID:         block.OrgID,
		Title:         block.Title,
		Type:          string(block.Type),
		Start:         block.Start,
		End:           block.End,
		AllDay:        block.AllDay,
		IsRecurring:   block.IsRecurring,
		RecurrenceDay: block.RecurrenceDay,
	}
}

// Booking Buffers

// GetEffectiveBuffer resolves the buffer policy for a service: the
// service-specific row wins, then the org default row, then system
// defaults. The resolution is never a field-level mix of rows.
func (s *Service) GetEffectiveBuffer(ctx context.Context, orgID string, serviceID *string) (*models.BookingBuffer, models.BufferSource, error) {
	const op = "service.GetEffectiveBuffer"

	if buffer, source, ok := s.buffers.Get(orgID, serviceID); ok {
		return buffer, source, nil
	}

	if serviceID != nil {
		buffer, err := s.store.GetBuffer(ctx, orgID, serviceID)
		if err == nil {
			s.buffers.Put(orgID, serviceID, buffer, models.BufferSourceService)
			return buffer, models.BufferSourceService, nil
		}
		if !errors.Is(err, response.ErrNotFound) {
			return nil, "", fmt.Errorf("%s: %w", op, err)
		}
	}

	buffer, err := s.store.GetBuffer(ctx, orgID, nil)
	if err == nil {
		s.buffers.Put(orgID, serviceID, buffer, models.BufferSourceOrgDefault)
		return buffer, models.BufferSourceOrgDefault, nil
	}
	if !errors.Is(err, response.ErrNotFound) {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}

	buffer = models.DefaultBuffer(orgID)
	s.buffers.Put(orgID, serviceID, buffer, models.BufferSourceSystem)

	return buffer, models.BufferSourceSystem, nil
}

func (s *Service) EffectiveBuffer(ctx context.Context, orgID string, serviceID *string) (*api.BufferResponse, error) {
	const op = "service.EffectiveBuffer"

	buffer, source, err := s.GetEffectiveBuffer(ctx, orgID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &api.BufferResponse{
		OrgID:           buffer.OrgID,
		ServiceID:       buffer.ServiceID,
		BufferBeforeMin: buffer.BufferBeforeMin,
		BufferAfterMin:  buffer.BufferAfterMin,
		MinAdvanceHours: buffer.MinAdvanceHours,
		MaxAdvanceDays:  buffer.MaxAdvanceDays,
		Source:          string(source),
	}, nil
}

func (s *Service) UpsertBuffer(ctx context.Context, req *api.BufferRequest) (*api.BufferResponse, error) {
	const op = "service.UpsertBuffer"

	if req.BufferBeforeMin < 0 || req.BufferAfterMin < 0 || req.MinAdvanceHours < 0 {
		return nil, fmt.Errorf("%s: negative buffer settings: %w", op, response.ErrValidation)
	}
	if req.MaxAdvanceDays < 1 {
		return nil, fmt.Errorf("%s: max_advance_days must be at least 1: %w", op, response.ErrValidation)
	}

	buffer := &models.BookingBuffer{
		OrgID:           req.OrgID,
		ServiceID:       req.ServiceID,
		BufferBeforeMin: req.BufferBeforeMin,
		BufferAfterMin:  req.BufferAfterMin,
		MinAdvanceHours: req.MinAdvanceHours,
		MaxAdvanceDays:  req.MaxAdvanceDays,
	}

	if err := s.store.UpsertBuffer(ctx, buffer); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.buffers.Invalidate(req.OrgID, req.ServiceID)

	source := models.BufferSourceOrgDefault
	if req.ServiceID != nil {
		source = models.BufferSourceService
	}

	return &api.BufferResponse{
		OrgID:           buffer.OrgID,
		ServiceID:       buffer.ServiceID,
		BufferBeforeMin: buffer.BufferBeforeMin,
		BufferAfterMin:  buffer.BufferAfterMin,
		MinAdvanceHours: buffer.MinAdvanceHours,
		MaxAdvanceDays:  buffer.MaxAdvanceDays,
		Source:          string(source),
	}, nil
}

// Calendar

func (s *Service) MonthCalendar(ctx context.Context, orgID string, year, month int) (*api.CalendarResponse, error) {
	const op = "service.MonthCalendar"

	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%s: month out of range: %w", op, response.ErrValidation)
	}
	if year < 1 {
		return nil, fmt.Errorf("%s: invalid year: %w", op, response.ErrValidation)
	}

	days := calendar.MonthGrid(year, time.Month(month), time.UTC)

	blocks, err := s.store.ListAvailabilityBlocks(ctx, orgID, days[0].Start, days[len(days)-1].End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	marked := calendar.Materialize(days, blocks)

	result := &api.CalendarResponse{
		Year:  year,
		Month: month,
		Days:  make([]api.CalendarDay, 0, len(days)),
	}

	for i, day := range days {
		calDay := api.CalendarDay{
			Date:    day.Start.Format("2006-01-02"),
			Weekday: int(day.Start.Weekday()),
			InMonth: day.InMonth,
		}

		for _, inst := range marked[i] {
			resp := blockResponse(inst.Block)
			resp.Start = inst.Start
			resp.End = inst.End
			calDay.Blocks = append(calDay.Blocks, *resp)
		}

		result.Days = append(result.Days, calDay)
	}

	return result, nil
}

// Slot Availability

func (s *Service) CheckSlot(ctx context.Context, req *api.SlotCheckRequest) (*api.SlotCheckResponse, error) {
	const op = "service.CheckSlot"

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrValidation)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrValidation)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end is not after start: %w", op, response.ErrValidation)
	}

	decision, err := s.evaluateSlot(ctx, nil, req.OrgID, req.ServiceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return decision, nil
}

// evaluateSlot runs the full availability decision for [start, end).
// With a non-nil tx the booking overlap check locks the conflicting rows,
// so the caller can write under the same transaction. Threshold
// boundaries are inclusive: a slot starting exactly at now+minAdvance or
// now+maxAdvance is accepted.
func (s *Service) evaluateSlot(ctx context.Context, tx storage.Tx, orgID string, serviceID *string, start, end time.Time) (*api.SlotCheckResponse, error) {
	const op = "service.evaluateSlot"

	buffer, _, err := s.GetEffectiveBuffer(ctx, orgID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	paddedStart := start.Add(-time.Duration(buffer.BufferBeforeMin) * time.Minute)
	paddedEnd := end.Add(time.Duration(buffer.BufferAfterMin) * time.Minute)

	decision := &api.SlotCheckResponse{
		PaddedStart: paddedStart,
		PaddedEnd:   paddedEnd,
	}

	now := s.now()

	if start.Before(now.Add(time.Duration(buffer.MinAdvanceHours) * time.Hour)) {
		decision.Reason = string(models.ReasonAdvanceNotice)
		return decision, nil
	}

	if start.After(now.Add(time.Duration(buffer.MaxAdvanceDays) * 24 * time.Hour)) {
		decision.Reason = string(models.ReasonAdvanceWindow)
		return decision, nil
	}

	blocks, err := s.store.ListAvailabilityBlocks(ctx, orgID, paddedStart, paddedEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, inst := range calendar.Expand(blocks, paddedStart, paddedEnd) {
		if inst.Start.Before(paddedEnd) && inst.End.After(paddedStart) {
			decision.Reason = string(models.ReasonBlocked)
			return decision, nil
		}
	}

	var overlapping []*models.Booking
	if tx != nil {
		overlapping, err = s.store.ListOverlappingBookingsTx(ctx, tx, orgID, paddedStart, paddedEnd)
	} else {
		overlapping, err = s.store.ListOverlappingBookings(ctx, orgID, paddedStart, paddedEnd)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(overlapping) > 0 {
		decision.Reason = string(models.ReasonDoubleBooked)
		return decision, nil
	}

	decision.Available = true
	return decision, nil
}

// Bookings

func (s *Service) CreateBooking(ctx context.Context, req *api.BookingRequest) (*api.BookingResponse, error) {
	const op = "service.CreateBooking"

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrValidation)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrValidation)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end is not after start: %w", op, response.ErrValidation)
	}

	locked, err := s.locker.LockOrg(ctx, req.OrgID, bookingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.UnlockOrg(ctx, req.OrgID)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	decision, err := s.evaluateSlot(ctx, tx, req.OrgID, req.ServiceID, start, end)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !decision.Available {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %s: %w", op, decision.Reason, response.ErrSlotNotAvailable)
	}

	booking := &models.Booking{
		OrgID:     req.OrgID,
		ServiceID: req.ServiceID,
		ClientID:  req.ClientID,
		Start:     start,
		End:       end,
		Status:    models.BookingPending,
	}

	bookingID, err := s.store.CreateBooking(ctx, tx, booking)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, response.ErrSlotNotAvailable) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}
		return nil, fmt.Errorf("%s: create booking: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return s.GetBooking(ctx, req.OrgID, bookingID)
}

func (s *Service) GetBooking(ctx context.Context, orgID, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookingResponse(booking), nil
}

func (s *Service) ListBookings(ctx context.Context, orgID string, from, to *time.Time, status *string) ([]*api.BookingResponse, error) {
	const op = "service.ListBookings"

	bookings, err := s.store.ListBookings(ctx, orgID, from, to, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.BookingResponse, 0, len(bookings))
	for _, booking := range bookings {
		result = append(result, bookingResponse(booking))
	}

	return result, nil
}

func (s *Service) CancelBooking(ctx context.Context, orgID, id string) (*api.BookingResponse, error) {
	const op = "service.CancelBooking"

	booking, err := s.store.GetBooking(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if booking.Status != models.BookingPending && booking.Status != models.BookingConfirmed {
		return nil, fmt.Errorf("%s: booking is %s: %w", op, booking.Status, response.ErrConflict)
	}

	if err := s.store.UpdateBookingStatus(ctx, orgID, id, models.BookingCancelled); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBooking(ctx, orgID, id)
}

func bookingResponse(booking *models.Booking) *api.BookingResponse {
	return &api.BookingResponse{
		ID:        booking.ID,
		OrgID:     booking.OrgID,
		ServiceID: booking.ServiceID,
		ClientID:  booking.ClientID,
		Start:     booking.Start,
		End:       booking.End,
		Status:    string(booking.Status),
	}
}

// Calendar Integrations

func (s *Service) ListIntegrations(ctx context.Context, orgID string) ([]*api.IntegrationResponse, error) {
	const op = "service.ListIntegrations"

	integrations, err := s.store.ListIntegrations(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]*api.IntegrationResponse, 0, len(integrations))
	for _, integration := range integrations {
		result = append(result, &api.IntegrationResponse{
			ID:          integration.ID,
			OrgID:       integration.OrgID,
			Provider:    string(integration.Provider),
			Name:        integration.Name,
			Color:       integration.Color,
			LastSyncAt:  integration.LastSyncAt,
			SyncEnabled: integration.SyncEnabled,
		})
	}

	return result, nil
}

func (s *Service) SetIntegrationSync(ctx context.Context, orgID, id string, enabled bool) error {
	const op = "service.SetIntegrationSync"

	err := s.store.SetIntegrationSync(ctx, orgID, id, enabled)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
