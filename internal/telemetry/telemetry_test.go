package telemetry

import "testing"

func TestNewClientDisabledReturnsNoOp(t *testing.T) {
	c := NewClient("1.0.0", false)
	if _, ok := c.(NoOpClient); !ok {
		t.Fatalf("expected NoOpClient when telemetry is disabled, got %T", c)
	}
}

func TestNoOpClientTracksNothingSafely(t *testing.T) {
	c := NoOpClient{}
	c.TrackOperation("checkpoint", "claude", map[string]any{"fileCount": 3})
	c.Close()
}
