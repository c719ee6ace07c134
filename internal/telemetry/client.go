package telemetry

import (
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/posthog/posthog-go"
)

// Client tracks usage events.
type Client interface {
	// Track enqueues an event and returns immediately.
	Track(event string, properties map[string]any)

	// Close flushes pending events.
	Close() error
}

// Properties is a type alias for event properties.
type Properties = map[string]any

// enqueuer is the part of the PostHog client we use.
type enqueuer interface {
	io.Closer
	Enqueue(msg posthog.Message) error
}

// Options configures New.
type Options struct {
	Enabled     bool
	APIKey      string
	Endpoint    string // self-hosted PostHog; empty uses PostHog cloud
	Version     string
	AnonymousID string
}

// New returns a PostHog client, or a no-op client when telemetry is
// disabled or no API key is configured.
func New(opts Options) (Client, error) {
	if !opts.Enabled || opts.APIKey == "" || opts.AnonymousID == "" {
		return NoopClient{}, nil
	}
	cfg := posthog.Config{
		BatchSize: 10,
		Interval:  2 * time.Second,
		Logger:    quietPostHogLogger{},
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = opts.Endpoint
	}
	client, err := posthog.NewWithConfig(opts.APIKey, cfg)
	if err != nil {
		return nil, err
	}
	return newPostHogClient(client, opts), nil
}

// PostHogClient sends events through the PostHog SDK.
type PostHogClient struct {
	mu     sync.Mutex
	client enqueuer
	id     string
	ver    string
	closed bool
}

func newPostHogClient(enq enqueuer, opts Options) *PostHogClient {
	return &PostHogClient{client: enq, id: opts.AnonymousID, ver: opts.Version}
}

// Track implements Client.
func (c *PostHogClient) Track(event string, properties map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	props.Set("os", runtime.GOOS)
	props.Set("arch", runtime.GOARCH)
	props.Set("version", c.ver)
	// Anonymous events only: no person profiles.
	props.Set("$process_person_profile", false)

	_ = c.client.Enqueue(posthog.Capture{
		DistinctId: c.id,
		Event:      event,
		Properties: props,
	})
}

// Close implements Client. Later Track calls are dropped.
func (c *PostHogClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// NoopClient drops every event.
type NoopClient struct{}

func (NoopClient) Track(string, map[string]any) {}
func (NoopClient) Close() error                 { return nil }

// quietPostHogLogger keeps transport warnings out of CLI output.
type quietPostHogLogger struct{}

func (quietPostHogLogger) Debugf(string, ...interface{}) {}
func (quietPostHogLogger) Logf(string, ...interface{})   {}
func (quietPostHogLogger) Warnf(string, ...interface{})  {}
func (quietPostHogLogger) Errorf(string, ...interface{}) {}
