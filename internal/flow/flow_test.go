package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestFlow(t *testing.T, timeout time.Duration, commit CommitFunc) *Flow {
	t.Helper()
	f := New(Config{
		MessageID: "m1",
		ChannelID: "c1",
		GuildID:   "g1",
		OwnerID:   "owner",
		ItemID:    1,
		Quantity:  1,
		Timeout:   timeout,
		Commit:    commit,
	})
	t.Cleanup(func() { f.stopTimer() })
	return f
}

func TestConfirmRunsCommitOnce(t *testing.T) {
	var commits int
	f := newTestFlow(t, time.Minute, func(ctx context.Context, sel Selection) error {
		commits++
		return nil
	})

	if err := f.SelectContent("owner", 0); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if err := f.Confirm(context.Background(), "owner"); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if f.State() != StateCommitted {
		t.Fatalf("expected Committed, got %s", f.State())
	}

	// A duplicate press must not commit again.
	if err := f.Confirm(context.Background(), "owner"); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("expected ErrAlreadyDone, got %v", err)
	}
	if commits != 1 {
		t.Fatalf("commit ran %d times", commits)
	}
}

func TestConfirmRequiresSelection(t *testing.T) {
	f := newTestFlow(t, time.Minute, nil)

	if err := f.Confirm(context.Background(), "owner"); !errors.Is(err, ErrNotConfirming) {
		t.Fatalf("expected ErrNotConfirming, got %v", err)
	}
}

func TestNonOwnerRejected(t *testing.T) {
	f := newTestFlow(t, time.Minute, nil)

	if err := f.SelectContent("intruder", 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.Confirm(context.Background(), "intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if err := f.Cancel("intruder"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if f.State() != StateSelecting {
		t.Fatalf("intruder moved the flow to %s", f.State())
	}
}

func TestExpiryRejectsLateConfirmWithoutCommit(t *testing.T) {
	var commits int
	expired := make(chan struct{})
	f := New(Config{
		MessageID: "m1",
		OwnerID:   "owner",
		ItemID:    1,
		Quantity:  1,
		Timeout:   10 * time.Millisecond,
		Commit: func(ctx context.Context, sel Selection) error {
			commits++
			return nil
		},
		OnExpire: func(f *Flow) { close(expired) },
	})

	if err := f.SelectContent("owner", 0); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	select {
	case <-expired:
	case <-time.After(time.Second):
		t.Fatal("expiry never fired")
	}

	if err := f.Confirm(context.Background(), "owner"); !errors.Is(err, ErrFlowExpired) {
		t.Fatalf("expected ErrFlowExpired, got %v", err)
	}
	if commits != 0 {
		t.Fatalf("expired flow committed %d times", commits)
	}
	if f.State() != StateTimedOut {
		t.Fatalf("expected TimedOut, got %s", f.State())
	}
}

func TestCommitErrorKeepsFlowConfirmable(t *testing.T) {
	attempts := 0
	f := newTestFlow(t, time.Minute, func(ctx context.Context, sel Selection) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	})

	f.SelectContent("owner", 0)
	if err := f.Confirm(context.Background(), "owner"); err == nil {
		t.Fatal("expected first confirm to fail")
	}
	if f.State() != StateConfirming {
		t.Fatalf("failed commit should stay Confirming, got %s", f.State())
	}
	if err := f.Confirm(context.Background(), "owner"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestConcurrentConfirmsCommitOnce(t *testing.T) {
	var mu sync.Mutex
	commits := 0
	f := newTestFlow(t, time.Minute, func(ctx context.Context, sel Selection) error {
		mu.Lock()
		commits++
		mu.Unlock()
		return nil
	})
	f.SelectContent("owner", 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Confirm(context.Background(), "owner")
		}()
	}
	wg.Wait()

	if commits != 1 {
		t.Fatalf("expected exactly one commit, got %d", commits)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newTestFlow(t, time.Minute, nil)

	if err := f.Cancel("owner"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if err := f.Cancel("owner"); err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if f.State() != StateCancelled {
		t.Fatalf("expected Cancelled, got %s", f.State())
	}
}

func TestManagerPurgesTerminalFlows(t *testing.T) {
	m := NewManager()

	live := newTestFlow(t, time.Minute, nil)
	done := New(Config{MessageID: "m2", OwnerID: "owner", ItemID: 1, Quantity: 1, Timeout: time.Minute})
	done.Cancel("owner")

	m.Bind(live)
	m.Bind(done)

	removed, err := m.PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, ok := m.Get("m1"); !ok {
		t.Fatal("live flow was purged")
	}
	if _, ok := m.Get("m2"); ok {
		t.Fatal("terminal flow survived purge")
	}
}
