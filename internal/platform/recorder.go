package platform

import (
	"context"
	"sync"
)

// Call records one outbound transport call.
type Call struct {
	Method    string
	ChannelID string
	MessageID string
	UserID    string
	GuildID   string
	RoleID    string
	Text      string
}

// Recorder is an in-memory Messenger that records every call. Used in
// tests and as a dry-run transport when no gateway is configured.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// Configurable failures.
	FailDM        error
	FailGrantRole error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

// Calls returns a snapshot of all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls for one method.
func (r *Recorder) CallsTo(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) Reply(ctx context.Context, channelID, messageID, text string) error {
	r.record(Call{Method: "Reply", ChannelID: channelID, MessageID: messageID, Text: text})
	return nil
}

func (r *Recorder) ReplyPrivate(ctx context.Context, channelID, userID, text string) error {
	r.record(Call{Method: "ReplyPrivate", ChannelID: channelID, UserID: userID, Text: text})
	return nil
}

func (r *Recorder) Announce(ctx context.Context, channelID, text string) error {
	r.record(Call{Method: "Announce", ChannelID: channelID, Text: text})
	return nil
}

func (r *Recorder) DirectMessage(ctx context.Context, userID, text string) error {
	if r.FailDM != nil {
		return r.FailDM
	}
	r.record(Call{Method: "DirectMessage", UserID: userID, Text: text})
	return nil
}

func (r *Recorder) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	if r.FailGrantRole != nil {
		return r.FailGrantRole
	}
	r.record(Call{Method: "GrantRole", GuildID: guildID, UserID: userID, RoleID: roleID})
	return nil
}

func (r *Recorder) DisableControls(ctx context.Context, channelID, messageID, text string) error {
	r.record(Call{Method: "DisableControls", ChannelID: channelID, MessageID: messageID, Text: text})
	return nil
}

// Ensure Recorder implements Messenger
var _ Messenger = (*Recorder)(nil)
