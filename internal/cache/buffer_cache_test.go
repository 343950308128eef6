package cache

import (
	"testing"

	"studio-schedule-service/internal/models"
)

func TestBufferCache_PutGet(t *testing.T) {
	c, err := NewBufferCache(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := "svc-a"
	c.Put("org1", &svc, models.DefaultBuffer("org1"), models.BufferSourceSystem)

	buffer, source, ok := c.Get("org1", &svc)
	if !ok {
		t.Fatalf("expected a hit")
	}
	if source != models.BufferSourceSystem {
		t.Fatalf("unexpected source: %s", source)
	}
	if buffer.MinAdvanceHours != 24 {
		t.Fatalf("unexpected buffer: %+v", buffer)
	}

	// a different service key misses
	other := "svc-b"
	if _, _, ok := c.Get("org1", &other); ok {
		t.Fatalf("expected a miss for another service")
	}
}

func TestBufferCache_InvalidateService(t *testing.T) {
	c, err := NewBufferCache(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svcA, svcB := "svc-a", "svc-b"
	c.Put("org1", &svcA, models.DefaultBuffer("org1"), models.BufferSourceService)
	c.Put("org1", &svcB, models.DefaultBuffer("org1"), models.BufferSourceService)

	c.Invalidate("org1", &svcA)

	if _, _, ok := c.Get("org1", &svcA); ok {
		t.Fatalf("expected svc-a to be invalidated")
	}
	if _, _, ok := c.Get("org1", &svcB); !ok {
		t.Fatalf("svc-b should survive a service-level invalidation")
	}
}

func TestBufferCache_InvalidateDefaultPurgesAll(t *testing.T) {
	c, err := NewBufferCache(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svcA := "svc-a"
	c.Put("org1", &svcA, models.DefaultBuffer("org1"), models.BufferSourceOrgDefault)
	c.Put("org1", nil, models.DefaultBuffer("org1"), models.BufferSourceOrgDefault)

	// service resolutions may have fallen back to the default row
	c.Invalidate("org1", nil)

	if _, _, ok := c.Get("org1", &svcA); ok {
		t.Fatalf("expected all entries purged after default invalidation")
	}
	if _, _, ok := c.Get("org1", nil); ok {
		t.Fatalf("expected default entry purged")
	}
}
