package api

import "time"

// Availability Blocks

type AvailabilityBlockRequest struct {
	OrgID         string `json:"org_id" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Type          string `json:"type" validate:"required"`
	Start         string `json:"start" validate:"required"`
	End           string `json:"end" validate:"required"`
	AllDay        bool   `json:"all_day"`
	IsRecurring   bool   `json:"is_recurring"`
	RecurrenceDay *int   `json:"recurrence_day,omitempty"`
}

// RecurringBlockRequest is the convenience constructor for a weekly
// recurring block. Empty start/end times mean all day.
type RecurringBlockRequest struct {
	OrgID         string `json:"org_id" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Type          string `json:"type" validate:"required"`
	RecurrenceDay int    `json:"recurrence_day" validate:"min=0,max=6"`
	StartTime     string `json:"start_time,omitempty"`
	EndTime       string `json:"end_time,omitempty"`
}

type AvailabilityBlockResponse struct {
	ID            string    `json:"id"`
	OrgID         string    `json:"org_id"`
	Title         string    `json:"title"`
	Type          string    `json:"type"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	AllDay        bool      `json:"all_day"`
	IsRecurring   bool      `json:"is_recurring"`
	RecurrenceDay *int      `json:"recurrence_day,omitempty"`
}

// Booking Buffers

type BufferRequest struct {
	OrgID           string  `json:"org_id" validate:"required"`
	ServiceID       *string `json:"service_id,omitempty"`
	BufferBeforeMin int     `json:"buffer_before_minutes" validate:"min=0"`
	BufferAfterMin  int     `json:"buffer_after_minutes" validate:"min=0"`
	MinAdvanceHours int     `json:"min_advance_hours" validate:"min=0"`
	MaxAdvanceDays  int     `json:"max_advance_days" validate:"min=1"`
}

type BufferResponse struct {
	OrgID           string  `json:"org_id"`
	ServiceID       *string `json:"service_id,omitempty"`
	BufferBeforeMin int     `json:"buffer_before_minutes"`
	BufferAfterMin  int     `json:"buffer_after_minutes"`
	MinAdvanceHours int     `json:"min_advance_hours"`
	MaxAdvanceDays  int     `json:"max_advance_days"`
	Source          string  `json:"source"`
}

// Calendar

type CalendarDay struct {
	Date    string                      `json:"date"`
	Weekday int                         `json:"weekday"`
	InMonth bool                        `json:"in_month"`
	Blocks  []AvailabilityBlockResponse `json:"blocks,omitempty"`
}

type CalendarResponse struct {
	Year  int           `json:"year"`
	Month int           `json:"month"`
	Days  []CalendarDay `json:"days"`
}

// Slot Check

type SlotCheckRequest struct {
	OrgID     string  `json:"org_id" validate:"required"`
	ServiceID *string `json:"service_id,omitempty"`
	Start     string  `json:"start" validate:"required"`
	End       string  `json:"end" validate:"required"`
}

type SlotCheckResponse struct {
	Available   bool      `json:"available"`
	Reason      string    `json:"reason,omitempty"`
	PaddedStart time.Time `json:"padded_start"`
	PaddedEnd   time.Time `json:"padded_end"`
}

// Bookings

type BookingRequest struct {
	OrgID     string  `json:"org_id" validate:"required"`
	ServiceID *string `json:"service_id,omitempty"`
	ClientID  string  `json:"client_id" validate:"required"`
	Start     string  `json:"start" validate:"required"`
	End       string  `json:"end" validate:"required"`
}

type BookingResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	ServiceID *string   `json:"service_id,omitempty"`
	ClientID  string    `json:"client_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
}

// Calendar Integrations

type IntegrationResponse struct {
	ID          string     `json:"id"`
	OrgID       string     `json:"org_id"`
	Provider    string     `json:"provider"`
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	SyncEnabled bool       `json:"sync_enabled"`
}

type IntegrationSyncRequest struct {
	Enabled bool `json:"enabled"`
}
