// Package telemetry records anonymous, best-effort usage events (which
// operation ran, against which agent, never file contents or paths),
// adapted from the teacher's PostHog-backed CLI telemetry client.
package telemetry

import (
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"
)

var (
	// PostHogAPIKey is set at build time for production.
	PostHogAPIKey = "phc_development_key"
	// PostHogEndpoint is set at build time for production.
	PostHogEndpoint = "https://eu.i.posthog.com"
)

// Client records rewind operation events.
type Client interface {
	TrackOperation(op string, agent string, extra map[string]any)
	Close()
}

// NoOpClient is used when telemetry is disabled or failed to initialize.
type NoOpClient struct{}

func (NoOpClient) TrackOperation(string, string, map[string]any) {}
func (NoOpClient) Close()                                        {}

type silentLogger struct{}

func (silentLogger) Logf(string, ...any)   {}
func (silentLogger) Debugf(string, ...any) {}
func (silentLogger) Warnf(string, ...any)  {}
func (silentLogger) Errorf(string, ...any) {}

// PostHogClient is the real telemetry client.
type PostHogClient struct {
	client     posthog.Client
	machineID  string
	cliVersion string
	mu         sync.RWMutex
}

// NewClient builds a Client. It returns NoOpClient unless enabled is true, and
// any failure constructing the machine id or PostHog client silently
// downgrades to NoOpClient rather than blocking the operation it would
// have reported on.
func NewClient(version string, enabled bool) Client {
	if !enabled {
		return NoOpClient{}
	}

	id, err := machineid.ProtectedID("rewind-cli")
	if err != nil {
		return NoOpClient{}
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: 100 * time.Millisecond,
		}).DialContext,
		TLSHandshakeTimeout:   100 * time.Millisecond,
		ResponseHeaderTimeout: 100 * time.Millisecond,
	}

	client, err := posthog.NewWithConfig(PostHogAPIKey, posthog.Config{
		Endpoint:           PostHogEndpoint,
		ShutdownTimeout:    100 * time.Millisecond,
		BatchUploadTimeout: 200 * time.Millisecond,
		Transport:          transport,
		Logger:             silentLogger{},
		DisableGeoIP:       posthog.Ptr(true),
		DefaultEventProperties: posthog.NewProperties().
			Set("cli_version", version).
			Set("os", runtime.GOOS).
			Set("arch", runtime.GOARCH),
	})
	if err != nil {
		return NoOpClient{}
	}

	return &PostHogClient{client: client, machineID: id, cliVersion: version}
}

// TrackOperation records a single rewind operation (checkpoint, restore,
// rewind-back, undo, ...). extra's values are assumed already redacted;
// callers must never pass file contents or raw paths.
func (p *PostHogClient) TrackOperation(op, agent string, extra map[string]any) {
	p.mu.RLock()
	id := p.machineID
	c := p.client
	p.mu.RUnlock()
	if c == nil {
		return
	}

	if agent == "" {
		agent = "unknown"
	}
	props := posthog.NewProperties().
		Set("operation", op).
		Set("agent", agent)
	for k, v := range extra {
		props.Set(k, v)
	}

	_ = c.Enqueue(posthog.Capture{ //nolint:errcheck // best-effort telemetry
		DistinctId: id,
		Event:      "rewind_operation",
		Properties: props,
	})
}

// Close flushes pending events.
func (p *PostHogClient) Close() {
	p.mu.RLock()
	c := p.client
	p.mu.RUnlock()
	if c != nil {
		_ = c.Close() //nolint:errcheck // best-effort telemetry
	}
}
