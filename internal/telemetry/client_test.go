package telemetry

import (
	"runtime"
	"sync"
	"testing"

	"github.com/posthog/posthog-go"
	"github.com/spf13/afero"
)

// mockEnqueuer captures events for testing.
type mockEnqueuer struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed int
}

func (m *mockEnqueuer) Enqueue(msg posthog.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capture, ok := msg.(posthog.Capture); ok {
		m.events = append(m.events, capture)
	}
	return nil
}

func (m *mockEnqueuer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func TestPostHogClient_Track(t *testing.T) {
	mock := &mockEnqueuer{}
	c := newPostHogClient(mock, Options{AnonymousID: "anon-1", Version: "0.1.0"})

	c.Track(EventFeatureBuilt, BuildProperties(3, 1, false, true))

	if len(mock.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(mock.events))
	}
	ev := mock.events[0]
	if ev.Event != EventFeatureBuilt || ev.DistinctId != "anon-1" {
		t.Errorf("unexpected capture: %+v", ev)
	}
	if ev.Properties["items"] != 3 || ev.Properties["dry_run"] != true {
		t.Errorf("custom properties missing: %v", ev.Properties)
	}
	if ev.Properties["os"] != runtime.GOOS || ev.Properties["version"] != "0.1.0" {
		t.Errorf("standard properties missing: %v", ev.Properties)
	}
	if ev.Properties["$process_person_profile"] != false {
		t.Error("person profiles must be disabled")
	}
}

func TestPostHogClient_CloseDropsLaterEvents(t *testing.T) {
	mock := &mockEnqueuer{}
	c := newPostHogClient(mock, Options{AnonymousID: "anon-1"})

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = c.Close()
	c.Track(EventCommandExecuted, nil)

	if mock.closed != 1 {
		t.Errorf("expected one close, got %d", mock.closed)
	}
	if len(mock.events) != 0 {
		t.Errorf("expected no events after close, got %d", len(mock.events))
	}
}

func TestNew_DisabledIsNoop(t *testing.T) {
	cases := []Options{
		{Enabled: false, APIKey: "phc_x", AnonymousID: "a"},
		{Enabled: true, APIKey: "", AnonymousID: "a"},
		{Enabled: true, APIKey: "phc_x", AnonymousID: ""},
	}
	for _, opts := range cases {
		c, err := New(opts)
		if err != nil {
			t.Fatalf("New(%+v) error = %v", opts, err)
		}
		if _, ok := c.(NoopClient); !ok {
			t.Errorf("New(%+v) = %T, want NoopClient", opts, c)
		}
	}
}

func TestLoadIdentity(t *testing.T) {
	fs := afero.NewMemMapFs()

	first, err := LoadIdentity(fs, "/data")
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if first.AnonymousID == "" {
		t.Fatal("expected generated id")
	}
	second, err := LoadIdentity(fs, "/data")
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if second.AnonymousID != first.AnonymousID {
		t.Errorf("id changed between loads: %s != %s", first.AnonymousID, second.AnonymousID)
	}

	if err := afero.WriteFile(fs, "/data/"+IdentityFileName, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	third, err := LoadIdentity(fs, "/data")
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if third.AnonymousID == "" || third.AnonymousID == first.AnonymousID {
		t.Errorf("corrupt identity should be regenerated, got %q", third.AnonymousID)
	}
}
