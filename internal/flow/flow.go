// Package flow implements a reusable multi-step intake conversation:
// identify a target, capture a free-text description, collect media
// evidence, and confirm before handing the result to a submission sink.
// It is transport-agnostic; bindings translate chat updates into calls
// on the Engine.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoTransport is returned by transports that are not yet connected to
// their messaging backend.
var ErrNoTransport = errors.New("flow: transport not ready")

// Kind classifies a collected media item.
type Kind string

const (
	// KindPhoto marks a photo attachment.
	KindPhoto Kind = "photo"
	// KindVideo marks a video attachment.
	KindVideo Kind = "video"
)

// MediaItem is one collected piece of evidence referenced by an opaque
// transport handle (a Telegram file id in the shipped binding).
type MediaItem struct {
	Kind Kind
	Ref  string
}

// Identity describes the reported subject. At least one of the fields is
// set once the identify step completes.
type Identity struct {
	Username string
	UserID   int64
}

// Empty reports whether neither identifier is known.
func (id Identity) Empty() bool {
	return id.Username == "" && id.UserID == 0
}

// Label renders the identity for summaries and channel posts.
func (id Identity) Label() string {
	switch {
	case id.Username != "" && id.UserID != 0:
		return fmt.Sprintf("@%s (id %d)", id.Username, id.UserID)
	case id.Username != "":
		return "@" + id.Username
	case id.UserID != 0:
		return fmt.Sprintf("id %d", id.UserID)
	}
	return "?"
}

// Step is the ordinal position inside the intake conversation.
type Step int

const (
	// StepIdentify waits for the target username, id, forward, or contact.
	StepIdentify Step = iota + 1
	// StepDescribe waits for the free-text description.
	StepDescribe
	// StepMedia accumulates photo/video evidence.
	StepMedia
	// StepConfirm shows the summary and waits for a final decision.
	StepConfirm
)

// Action is a quick-reply or callback action inside the conversation.
type Action string

const (
	ActionDone    Action = "done"
	ActionResend  Action = "resend"
	ActionConfirm Action = "confirm"
	ActionRestart Action = "restart"
	ActionCancel  Action = "cancel"
)

// Session holds the per-conversation state. It exists exactly while the
// user is inside an active flow and is discarded on cancel or completion.
type Session struct {
	Step         Step
	Target       Identity
	Description  string
	Media        []MediaItem
	LastPromptID int
	Lang         string

	// seen collects media-group ids whose deferred prompt refresh already
	// ran; later events carrying such an id are ignored entirely.
	seen map[string]struct{}
}

// Submission is the finalized payload handed to the Sink.
type Submission struct {
	Target      Identity
	Description string
	Media       []MediaItem
	ReporterID  int64
	Lang        string
}

// Transport sends and deletes conversation messages. Implementations own
// the mapping of actions onto platform keyboards; a nil/empty action list
// removes any quick-reply keyboard.
type Transport interface {
	Prompt(ctx context.Context, conv int64, text string, actions []Action, lang string) (int, error)
	Delete(ctx context.Context, conv int64, messageID int) error
	SendAlbum(ctx context.Context, conv int64, media []MediaItem, caption string) error
}

// Localizer resolves a message key for a language. Implementations return
// the key itself when no translation exists and never fail.
type Localizer interface {
	Resolve(key, lang string) string
}

// Sink durably records a completed submission.
type Sink interface {
	Submit(ctx context.Context, sub Submission) error
}

// SinkFunc adapts a bare function to the Sink interface.
type SinkFunc func(ctx context.Context, sub Submission) error

// Submit executes the underlying function.
func (f SinkFunc) Submit(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}

// Config carries the per-flow parameters. Name prefixes localization keys
// and scopes log output, so two engines (report and appeal) share copy
// structure while differing in text.
type Config struct {
	Name            string
	MinMedia        int
	MaxMedia        int
	MaxDescription  int
	AlbumFlushDelay time.Duration
}

func (c *Config) normalize() {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "intake"
	}
	if c.MinMedia <= 0 {
		c.MinMedia = 2
	}
	if c.MaxMedia < c.MinMedia {
		c.MaxMedia = 10
	}
	if c.MaxDescription <= 0 {
		c.MaxDescription = 500
	}
	if c.AlbumFlushDelay <= 0 {
		c.AlbumFlushDelay = 700 * time.Millisecond
	}
}
