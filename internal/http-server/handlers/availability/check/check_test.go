package check

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"studio-schedule-service/api"
)

type fakeChecker struct {
	decision *api.SlotCheckResponse
}

func (f *fakeChecker) CheckSlot(ctx context.Context, req *api.SlotCheckRequest) (*api.SlotCheckResponse, error) {
	return f.decision, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestCheckHandler_Declined(t *testing.T) {
	checker := &fakeChecker{
		decision: &api.SlotCheckResponse{
			Available: false,
			Reason:    "advance_notice_violation",
		},
	}

	handler := New(discardLogger(), checker)

	body := []byte(`{"org_id":"org1","start":"2026-03-03T10:00:00Z","end":"2026-03-03T11:00:00Z"}`)
	req := httptest.NewRequest(http.MethodPost, "/availability/check", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)

	// a decline is data, not an error status
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Decision.Available {
		t.Fatalf("expected declined decision")
	}
	if resp.Decision.Reason != "advance_notice_violation" {
		t.Fatalf("unexpected reason: %s", resp.Decision.Reason)
	}
}

func TestCheckHandler_MissingFields(t *testing.T) {
	handler := New(discardLogger(), &fakeChecker{decision: &api.SlotCheckResponse{}})

	body := []byte(`{"org_id":"org1"}`)
	req := httptest.NewRequest(http.MethodPost, "/availability/check", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckHandler_BadJSON(t *testing.T) {
	handler := New(discardLogger(), &fakeChecker{decision: &api.SlotCheckResponse{}})

	req := httptest.NewRequest(http.MethodPost, "/availability/check", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
