package models

import "time"

type BlockType string

const (
	BlockTimeOff     BlockType = "time_off"
	BlockHoliday     BlockType = "holiday"
	BlockPersonal    BlockType = "personal"
	BlockMaintenance BlockType = "maintenance"
	BlockOther       BlockType = "other"
)

func (t BlockType) Valid() bool {
	switch t {
	case BlockTimeOff, BlockHoliday, BlockPersonal, BlockMaintenance, BlockOther:
		return true
	default:
		return false
	}
}

type AvailabilityBlock struct {
	ID            string    `db:"id"`
	OrgID         string    `db:"org_id"`
	Title         string    `db:"title"`
	Type          BlockType `db:"block_type"`
	Start         time.Time `db:"start_at"`
	End           time.Time `db:"end_at"`
	AllDay        bool      `db:"all_day"`
	IsRecurring   bool      `db:"is_recurring"`
	RecurrenceDay *int      `db:"recurrence_day"`
}

// Overlaps reports whether the block's absolute range intersects
// [start, end], both ends inclusive. Only meaningful for non-recurring
// blocks; recurring blocks must be materialized first.
func (b *AvailabilityBlock) Overlaps(start, end time.Time) bool {
	return !b.Start.After(end) && !b.End.Before(start)
}

type BookingBuffer struct {
	OrgID           string  `db:"org_id"`
	ServiceID       *string `db:"service_id"`
	BufferBeforeMin int     `db:"buffer_before_minutes"`
	BufferAfterMin  int     `db:"buffer_after_minutes"`
	MinAdvanceHours int     `db:"min_advance_hours"`
	MaxAdvanceDays  int     `db:"max_advance_days"`
}

// Buffer fallback sources, reported alongside the effective buffer.
type BufferSource string

const (
	BufferSourceService    BufferSource = "service"
	BufferSourceOrgDefault BufferSource = "org_default"
	BufferSourceSystem     BufferSource = "system_default"
)

// DefaultBuffer is the system fallback used when an organization has
// configured nothing at all.
func DefaultBuffer(orgID string) *BookingBuffer {
	return &BookingBuffer{
		OrgID:           orgID,
		BufferBeforeMin: 0,
		BufferAfterMin:  0,
		MinAdvanceHours: 24,
		MaxAdvanceDays:  90,
	}
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

type Booking struct {
	ID        string        `db:"id"`
	OrgID     string        `db:"org_id"`
	ServiceID *string       `db:"service_id"`
	ClientID  string        `db:"client_id"`
	Start     time.Time     `db:"start_at"`
	End       time.Time     `db:"end_at"`
	Status    BookingStatus `db:"status"`
	CreatedAt time.Time     `db:"created_at"`
}

// Slot check decline reasons. Conflicts are business declines, not
// errors: the check reports them in the response body.
type DeclineReason string

const (
	ReasonAdvanceNotice DeclineReason = "advance_notice_violation"
	ReasonAdvanceWindow DeclineReason = "advance_window_violation"
	ReasonBlocked       DeclineReason = "blocked_by_availability_exception"
	ReasonDoubleBooked  DeclineReason = "double_booked"
)

type IntegrationProvider string

type CalendarIntegration struct {
	ID          string              `db:"id"`
	OrgID       string              `db:"org_id"`
	Provider    IntegrationProvider `db:"provider"`
	Name        string              `db:"name"`
	Color       string              `db:"color"`
	LastSyncAt  *time.Time          `db:"last_sync_at"`
	SyncEnabled bool                `db:"sync_enabled"`
}
