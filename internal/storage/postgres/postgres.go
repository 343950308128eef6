package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"studio-schedule-service/internal/models"
	"studio-schedule-service/internal/storage"
	"studio-schedule-service/pkg/response"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	const op = "storage.postgres.runMigrations"

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// #### availability blocks ####

func (s *Storage) CreateAvailabilityBlock(ctx context.Context, block *models.AvailabilityBlock) (string, error) {
	const op = "storage.postgres.CreateAvailabilityBlock"

	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO availability_blocks
		(id, org_id, title, block_type, start_at, end_at, all_day, is_recurring, recurrence_day)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id,
		block.OrgID,
		block.Title,
		string(block.Type),
		block.Start,
		block.End,
		block.AllDay,
		block.IsRecurring,
		block.RecurrenceDay,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23514" {
			return "", fmt.Errorf("%s: %w", op, response.ErrValidation)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetAvailabilityBlock(ctx context.Context, orgID, id string) (*models.AvailabilityBlock, error) {
	const op = "storage.postgres.GetAvailabilityBlock"

	var block models.AvailabilityBlock

	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, title, block_type, start_at, end_at, all_day, is_recurring, recurrence_day
		FROM availability_blocks WHERE id=$1 AND org_id=$2`, id, orgID).
		Scan(
			&block.ID,
			&block.OrgID,
			&block.Title,
			&block.Type,
			&block.Start,
			&block.End,
			&block.AllDay,
			&block.IsRecurring,
			&block.RecurrenceDay,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &block, nil
}

// ListAvailabilityBlocks returns non-recurring blocks intersecting
// [from, to] plus every recurring block for the org. Recurring blocks
// are returned regardless of range since only the caller can materialize
// them onto concrete dates.
func (s *Storage) ListAvailabilityBlocks(ctx context.Context, orgID string, from, to time.Time) ([]*models.AvailabilityBlock, error) {
	const op = "storage.postgres.ListAvailabilityBlocks"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, title, block_type, start_at, end_at, all_day, is_recurring, recurrence_day
		FROM availability_blocks
		WHERE org_id=$1 AND (is_recurring OR (start_at <= $3 AND end_at >= $2))
		ORDER BY start_at`, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var blocks []*models.AvailabilityBlock

	for rows.Next() {
		var block models.AvailabilityBlock

		err := rows.Scan(
			&block.ID,
			&block.OrgID,
			&block.Title,
			&block.Type,
			&block.Start,
			&block.End,
			&block.AllDay,
			&block.IsRecurring,
			&block.RecurrenceDay,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		blocks = append(blocks, &block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return blocks, nil
}

func (s *Storage) DeleteAvailabilityBlock(ctx context.Context, orgID, id string) error {
	const op = "storage.postgres.DeleteAvailabilityBlock"

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM availability_blocks WHERE id=$1 AND org_id=$2`, id, orgID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### booking buffers ####

func (s *Storage) GetBuffer(ctx context.Context, orgID string, serviceID *string) (*models.BookingBuffer, error) {
	const op = "storage.postgres.GetBuffer"

	var buffer models.BookingBuffer

	err := s.db.QueryRowContext(ctx,
		`SELECT org_id, service_id, buffer_before_minutes, buffer_after_minutes, min_advance_hours, max_advance_days
		FROM booking_buffers
		WHERE org_id=$1 AND service_id IS NOT DISTINCT FROM $2`, orgID, serviceID).
		Scan(
			&buffer.OrgID,
			&buffer.ServiceID,
			&buffer.BufferBeforeMin,
			&buffer.BufferAfterMin,
			&buffer.MinAdvanceHours,
			&buffer.MaxAdvanceDays,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &buffer, nil
}

func (s *Storage) UpsertBuffer(ctx context.Context, buffer *models.BookingBuffer) error {
	const op = "storage.postgres.UpsertBuffer"

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO booking_buffers
		(org_id, service_id, buffer_before_minutes, buffer_after_minutes, min_advance_hours, max_advance_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (org_id, (COALESCE(service_id, '')))
		DO UPDATE
		SET buffer_before_minutes = EXCLUDED.buffer_before_minutes,
			buffer_after_minutes = EXCLUDED.buffer_after_minutes,
			min_advance_hours = EXCLUDED.min_advance_hours,
			max_advance_days = EXCLUDED.max_advance_days`,
		buffer.OrgID,
		buffer.ServiceID,
		buffer.BufferBeforeMin,
		buffer.BufferAfterMin,
		buffer.MinAdvanceHours,
		buffer.MaxAdvanceDays,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23514" {
			return fmt.Errorf("%s: %w", op, response.ErrValidation)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// #### bookings ####

func (s *Storage) CreateBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	const op = "storage.postgres.CreateBooking"

	id := uuid.NewString()

	_, err := tx.ExecContext(ctx,
		`INSERT INTO bookings
		(id, org_id, service_id, client_id, start_at, end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id,
		booking.OrgID,
		booking.ServiceID,
		booking.ClientID,
		booking.Start,
		booking.End,
		string(booking.Status),
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23P01" {
			// exclusion constraint: another active booking holds the range
			return "", fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}
		if ok && sqlErr.Code == "23505" {
			return "", fmt.Errorf("%s: %w", op, response.ErrConflict)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetBooking(ctx context.Context, orgID, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	var booking models.Booking

	err := s.db.QueryRowContext(ctx,
		`SELECT id, org_id, service_id, client_id, start_at, end_at, status, created_at
		FROM bookings WHERE id=$1 AND org_id=$2`, id, orgID).
		Scan(
			&booking.ID,
			&booking.OrgID,
			&booking.ServiceID,
			&booking.ClientID,
			&booking.Start,
			&booking.End,
			&booking.Status,
			&booking.CreatedAt,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &booking, nil
}

func (s *Storage) ListBookings(ctx context.Context, orgID string, from, to *time.Time, status *string) ([]*models.Booking, error) {
	const op = "storage.postgres.ListBookings"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, service_id, client_id, start_at, end_at, status, created_at
		FROM bookings
		WHERE org_id=$1
		AND ($2::timestamptz IS NULL OR end_at > $2)
		AND ($3::timestamptz IS NULL OR start_at < $3)
		AND ($4::text IS NULL OR status = $4)
		ORDER BY start_at`, orgID, from, to, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var bookings []*models.Booking

	for rows.Next() {
		var booking models.Booking

		err := rows.Scan(
			&booking.ID,
			&booking.OrgID,
			&booking.ServiceID,
			&booking.ClientID,
			&booking.Start,
			&booking.End,
			&booking.Status,
			&booking.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bookings = append(bookings, &booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

// ListOverlappingBookings returns active bookings whose range overlaps
// [start, end) for the org.
func (s *Storage) ListOverlappingBookings(ctx context.Context, orgID string, start, end time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListOverlappingBookings"

	return s.listOverlapping(ctx, s.db.QueryContext, op, orgID, start, end, "")
}

// ListOverlappingBookingsTx is the transactional variant used by the
// booking write path. FOR UPDATE serializes concurrent attempts against
// the same rows.
func (s *Storage) ListOverlappingBookingsTx(ctx context.Context, tx storage.Tx, orgID string, start, end time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListOverlappingBookingsTx"

	return s.listOverlapping(ctx, tx.QueryContext, op, orgID, start, end, " FOR UPDATE")
}

type queryFn func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

func (s *Storage) listOverlapping(ctx context.Context, query queryFn, op, orgID string, start, end time.Time, suffix string) ([]*models.Booking, error) {
	rows, err := query(ctx,
		`SELECT id, org_id, service_id, client_id, start_at, end_at, status, created_at
		FROM bookings
		WHERE org_id=$1
		AND status IN ('pending', 'confirmed')
		AND start_at < $3 AND end_at > $2`+suffix, orgID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var bookings []*models.Booking

	for rows.Next() {
		var booking models.Booking

		err := rows.Scan(
			&booking.ID,
			&booking.OrgID,
			&booking.ServiceID,
			&booking.ClientID,
			&booking.Start,
			&booking.End,
			&booking.Status,
			&booking.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bookings = append(bookings, &booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookings, nil
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, orgID, id string, status models.BookingStatus) error {
	const op = "storage.postgres.UpdateBookingStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status=$1 WHERE id=$2 AND org_id=$3`,
		string(status), id, orgID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### calendar integrations ####

func (s *Storage) ListIntegrations(ctx context.Context, orgID string) ([]*models.CalendarIntegration, error) {
	const op = "storage.postgres.ListIntegrations"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, provider, name, color, last_sync_at, sync_enabled
		FROM calendar_integrations WHERE org_id=$1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var integrations []*models.CalendarIntegration

	for rows.Next() {
		var integration models.CalendarIntegration

		err := rows.Scan(
			&integration.ID,
			&integration.OrgID,
			&integration.Provider,
			&integration.Name,
			&integration.Color,
			&integration.LastSyncAt,
			&integration.SyncEnabled,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		integrations = append(integrations, &integration)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return integrations, nil
}

func (s *Storage) SetIntegrationSync(ctx context.Context, orgID, id string, enabled bool) error {
	const op = "storage.postgres.SetIntegrationSync"

	res, err := s.db.ExecContext(ctx,
		`UPDATE calendar_integrations SET sync_enabled=$1 WHERE id=$2 AND org_id=$3`,
		enabled, id, orgID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}
