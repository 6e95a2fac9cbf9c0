package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/user/careline/internal/sms"
)

// fakeTransport records send calls and fails a configurable number of times.
type fakeTransport struct {
	failures int
	calls    int
	segments [][]string
}

func (f *fakeTransport) Send(_ context.Context, recipient string, segments []string) error {
	f.calls++
	f.segments = append(f.segments, segments)
	if f.calls <= f.failures {
		return errors.New("transport rejected send")
	}
	return nil
}

func fastRetry() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2.0, MaxDelay: 10 * time.Millisecond}
}

func TestSendSingleSegment(t *testing.T) {
	transport := &fakeTransport{}
	m := &Manager{transport: transport, retry: fastRetry()}

	if err := m.Send(context.Background(), "+23276000001", "Rest and drink fluids."); err != nil {
		t.Fatal(err)
	}
	if transport.calls != 1 {
		t.Errorf("expected 1 send, got %d", transport.calls)
	}
	if len(transport.segments[0]) != 1 {
		t.Errorf("expected single segment, got %d", len(transport.segments[0]))
	}
}

func TestSendMultipartAsOneOperation(t *testing.T) {
	transport := &fakeTransport{failures: 1}
	m := &Manager{transport: transport, retry: fastRetry()}

	text := strings.Repeat("x", sms.PartLength*2+10)
	if err := m.Send(context.Background(), "+23276000001", text); err != nil {
		t.Fatal(err)
	}

	// Retried as a whole: both attempts carry all three segments.
	if transport.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", transport.calls)
	}
	for i, segs := range transport.segments {
		if len(segs) != 3 {
			t.Errorf("attempt %d carried %d segments, want 3", i, len(segs))
		}
	}
}

func TestSendSurfacesOnlyFinalFailure(t *testing.T) {
	transport := &fakeTransport{failures: 99}
	m := &Manager{transport: transport, retry: fastRetry()}

	err := m.Send(context.Background(), "+23276000001", "hello")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if transport.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", transport.calls)
	}
}

func TestSendTruncatesToCeiling(t *testing.T) {
	transport := &fakeTransport{}
	m := &Manager{transport: transport, retry: fastRetry()}

	if err := m.Send(context.Background(), "+23276000001", strings.Repeat("y", sms.MaxLength*2)); err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, s := range transport.segments[0] {
		total += len(s)
	}
	if total > sms.MaxLength {
		t.Errorf("sent %d chars, ceiling is %d", total, sms.MaxLength)
	}
}

func TestRetryBackoffDelays(t *testing.T) {
	p := DefaultRetryPolicy()
	if d := p.NextDelay(1); d != time.Second {
		t.Errorf("attempt 1 delay = %v, want 1s", d)
	}
	if d := p.NextDelay(2); d != 2*time.Second {
		t.Errorf("attempt 2 delay = %v, want 2s", d)
	}
	if d := p.NextDelay(10); d != p.MaxDelay {
		t.Errorf("attempt 10 delay = %v, want cap %v", d, p.MaxDelay)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	p := &RetryPolicy{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2.0, MaxDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Execute(ctx, func() error { return errors.New("boom") })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
