package flow

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is a confirmation flow lifecycle state.
type State string

const (
	StateSelecting  State = "selecting"
	StateConfirming State = "confirming"
	StateCommitted  State = "committed"
	StateCancelled  State = "cancelled"
	StateTimedOut   State = "timed_out"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled || s == StateTimedOut
}

var (
	ErrNotOwner      = errors.New("flow: interaction from a different user")
	ErrFlowExpired   = errors.New("flow: expired")
	ErrFlowFinished  = errors.New("flow: already finished")
	ErrAlreadyDone   = errors.New("flow: confirm already applied")
	ErrNotConfirming = errors.New("flow: not awaiting confirmation")
)

// Selection carries the user's choices into the commit callback.
type Selection struct {
	ItemID       int64
	Quantity     int64
	OptionIndex  int
	ContentIndex int
}

// CommitFunc performs the side effect a confirmed flow stands for.
// It runs at most once per flow.
type CommitFunc func(ctx context.Context, sel Selection) error

// Flow is a single interactive confirmation tied to one message and
// one owner. All transitions are serialized by the mutex; the first
// transition out of Confirming wins and later events are no-ops.
type Flow struct {
	MessageID string
	ChannelID string
	GuildID   string
	OwnerID   string

	mu       sync.Mutex
	state    State
	sel      Selection
	deadline time.Time
	timer    *time.Timer
	onExpire func(f *Flow)
	commit   CommitFunc
}

// Config describes a new flow.
type Config struct {
	MessageID string
	ChannelID string
	GuildID   string
	OwnerID   string
	ItemID    int64
	Quantity  int64
	Timeout   time.Duration

	Commit   CommitFunc
	OnExpire func(f *Flow)
}

// New creates a flow in the Selecting state and arms its expiry timer.
func New(cfg Config) *Flow {
	f := &Flow{
		MessageID: cfg.MessageID,
		ChannelID: cfg.ChannelID,
		GuildID:   cfg.GuildID,
		OwnerID:   cfg.OwnerID,
		state:     StateSelecting,
		sel: Selection{
			ItemID:       cfg.ItemID,
			Quantity:     cfg.Quantity,
			OptionIndex:  -1,
			ContentIndex: -1,
		},
		deadline: time.Now().Add(cfg.Timeout),
		onExpire: cfg.OnExpire,
		commit:   cfg.Commit,
	}
	f.timer = time.AfterFunc(cfg.Timeout, f.expire)
	return f
}

// State returns the current lifecycle state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Selection returns a snapshot of the current choices.
func (f *Flow) Selection() Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sel
}

// Deadline returns when the flow expires.
func (f *Flow) Deadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

func (f *Flow) guard(userID string) error {
	if userID != f.OwnerID {
		return ErrNotOwner
	}
	switch f.state {
	case StateTimedOut:
		return ErrFlowExpired
	case StateCommitted, StateCancelled:
		return ErrFlowFinished
	}
	return nil
}

// SelectItem switches the flow to a different catalog item. Only valid
// while still selecting; any prior option choice is discarded.
func (f *Flow) SelectItem(userID string, itemID, quantity int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(userID); err != nil {
		return err
	}
	f.state = StateSelecting
	f.sel.ItemID = itemID
	f.sel.Quantity = quantity
	f.sel.OptionIndex = -1
	f.sel.ContentIndex = -1
	return nil
}

// SelectOption records a variant choice. Re-selecting while still in
// Selecting or Confirming simply replaces the previous choice.
func (f *Flow) SelectOption(userID string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(userID); err != nil {
		return err
	}
	f.sel.OptionIndex = index
	f.state = StateConfirming
	return nil
}

// SelectContent records a content option choice and moves the flow to
// Confirming.
func (f *Flow) SelectContent(userID string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(userID); err != nil {
		return err
	}
	f.sel.ContentIndex = index
	f.state = StateConfirming
	return nil
}

// Arm moves the flow to Confirming without an option choice, for items
// that need only a yes/no.
func (f *Flow) Arm(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.guard(userID); err != nil {
		return err
	}
	f.state = StateConfirming
	return nil
}

// Confirm applies the commit callback exactly once. The lock is held
// across the callback so the expiry timer cannot fire mid-commit; a
// commit error leaves the flow in Confirming so the user may retry.
func (f *Flow) Confirm(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID != f.OwnerID {
		return ErrNotOwner
	}
	switch f.state {
	case StateCommitted:
		return ErrAlreadyDone
	case StateCancelled:
		return ErrFlowFinished
	case StateTimedOut:
		return ErrFlowExpired
	case StateSelecting:
		return ErrNotConfirming
	}
	if f.commit == nil {
		f.state = StateCommitted
		f.stopTimer()
		return nil
	}
	if err := f.commit(ctx, f.sel); err != nil {
		return err
	}
	f.state = StateCommitted
	f.stopTimer()
	return nil
}

// Cancel moves the flow to Cancelled. Cancelling twice is a no-op.
func (f *Flow) Cancel(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if userID != f.OwnerID {
		return ErrNotOwner
	}
	if f.state.Terminal() {
		return nil
	}
	f.state = StateCancelled
	f.stopTimer()
	return nil
}

// expire runs on the timer goroutine. It turns a still-live flow into
// TimedOut; if the flow already reached a terminal state it does
// nothing. The onExpire hook runs outside the lock.
func (f *Flow) expire() {
	f.mu.Lock()
	if f.state.Terminal() {
		f.mu.Unlock()
		return
	}
	f.state = StateTimedOut
	f.mu.Unlock()
	if f.onExpire != nil {
		f.onExpire(f)
	}
}

func (f *Flow) stopTimer() {
	if f.timer != nil {
		f.timer.Stop()
	}
}
