package flow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type promptCall struct {
	conv    int64
	text    string
	actions []Action
}

type fakeTransport struct {
	mu      sync.Mutex
	prompts []promptCall
	deletes []int
	albums  int
	nextID  int

	deleteErr error
	promptErr error
}

func (t *fakeTransport) Prompt(_ context.Context, conv int64, text string, actions []Action, _ string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.promptErr != nil {
		return 0, t.promptErr
	}
	t.nextID++
	t.prompts = append(t.prompts, promptCall{conv: conv, text: text, actions: actions})
	return t.nextID, nil
}

func (t *fakeTransport) Delete(_ context.Context, _ int64, messageID int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deletes = append(t.deletes, messageID)
	return t.deleteErr
}

func (t *fakeTransport) SendAlbum(_ context.Context, _ int64, _ []MediaItem, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.albums++
	return nil
}

func (t *fakeTransport) promptCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.prompts)
}

func (t *fakeTransport) lastPrompt() promptCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prompts[len(t.prompts)-1]
}

// keyLocalizer mirrors the contract of the production localizer: unknown
// keys resolve to themselves.
type keyLocalizer struct{}

func (keyLocalizer) Resolve(key, _ string) string { return key }

type fakeSink struct {
	mu   sync.Mutex
	subs []Submission
	err  error
}

func (s *fakeSink) Submit(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.subs = append(s.subs, sub)
	return nil
}

const conv = int64(777)

func newTestEngine(t *testing.T) (*Engine, *fakeTransport, *fakeSink) {
	t.Helper()
	tr := &fakeTransport{}
	sink := &fakeSink{}
	e := New(Config{
		Name:            "report",
		MinMedia:        2,
		MaxMedia:        10,
		MaxDescription:  500,
		AlbumFlushDelay: time.Hour, // tests flush explicitly
	}, tr, keyLocalizer{}, sink)
	t.Cleanup(e.Stop)
	return e, tr, sink
}

func startMediaStep(t *testing.T, e *Engine, description string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.Start(ctx, conv, "en"))
	require.NoError(t, e.HandleText(ctx, conv, "@scammer1"))
	require.NoError(t, e.HandleText(ctx, conv, description))
	s, ok := e.Snapshot(conv)
	require.True(t, ok)
	require.Equal(t, StepMedia, s.Step)
}

func TestIdentifyThenDescribeScenarioA(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	s, ok := e.Snapshot(conv)
	require.True(t, ok)
	assert.Equal(t, StepIdentify, s.Step)

	require.NoError(t, e.HandleText(ctx, conv, "@scammer1"))
	s, _ = e.Snapshot(conv)
	assert.Equal(t, StepDescribe, s.Step)
	assert.Equal(t, "scammer1", s.Target.Username)

	long := strings.Repeat("x", 501)
	require.NoError(t, e.HandleText(ctx, conv, long))
	s, _ = e.Snapshot(conv)
	assert.Equal(t, StepDescribe, s.Step, "oversized description must not advance")
	assert.Empty(t, s.Description, "oversized description must not mutate state")

	desc := strings.Repeat("y", 40)
	require.NoError(t, e.HandleText(ctx, conv, desc))
	s, _ = e.Snapshot(conv)
	assert.Equal(t, StepMedia, s.Step)
	assert.Equal(t, desc, s.Description)
}

func TestIdentityParsing(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  Identity
		ok    bool
	}{
		{"username", "@scammer", Identity{Username: "scammer"}, true},
		{"numeric id", "123456789", Identity{UserID: 123456789}, true},
		{"bare at sign", "@", Identity{}, false},
		{"mixed text", "scammer123abc!", Identity{}, false},
		{"empty", "", Identity{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseIdentity(tc.input)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestIdentityFromForwardAndContact(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	require.NoError(t, e.HandleForward(ctx, conv, Identity{Username: "scam", UserID: 42}))
	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepDescribe, s.Step)
	assert.Equal(t, int64(42), s.Target.UserID)

	require.NoError(t, e.Start(ctx, conv, "en"))
	require.NoError(t, e.HandleShared(ctx, conv, 99))
	s, _ = e.Snapshot(conv)
	assert.Equal(t, StepDescribe, s.Step)
	assert.Equal(t, int64(99), s.Target.UserID)
}

func TestBadIdentityRepromptsWithoutAdvance(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	require.NoError(t, e.HandleText(ctx, conv, "no idea who"))
	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepIdentify, s.Step)
	assert.Contains(t, tr.lastPrompt().text, "bad_identity")
}

func TestDoneRejectedUnderMinimum(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "took money and vanished")

	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "f1"}, ""))
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))
	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepMedia, s.Step)
	assert.Len(t, s.Media, 1)
	assert.Contains(t, tr.lastPrompt().text, "need_more_media")
}

func TestMediaUpperBound(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "fake shop")

	for i := 0; i < 10; i++ {
		require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "f"}, ""))
	}
	s, _ := e.Snapshot(conv)
	require.Len(t, s.Media, 10)

	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindVideo, Ref: "extra"}, ""))
	s, _ = e.Snapshot(conv)
	assert.Len(t, s.Media, 10, "item MAX+1 must not mutate the list")
	assert.Equal(t, StepMedia, s.Step)
	assert.Contains(t, tr.lastPrompt().text, "media_limit")
}

func TestAlbumCoalescingScenarioB(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "sold fake tickets")
	base := tr.promptCount()

	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, "g1"))
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p2"}, "g1"))
	assert.Equal(t, base, tr.promptCount(), "refresh must be deferred during the burst")

	require.True(t, e.albums.Flush(albumKey(conv, "g1")))
	assert.Equal(t, base+1, tr.promptCount(), "exactly one refresh per group")
	assert.Contains(t, tr.lastPrompt().text, "ask_media")

	// A late duplicate of the processed group is ignored entirely.
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p2"}, "g1"))
	s, _ := e.Snapshot(conv)
	assert.Len(t, s.Media, 2)
	assert.Equal(t, base+1, tr.promptCount())
	assert.False(t, e.albums.Pending(albumKey(conv, "g1")))
}

func TestResendClearsMediaAndDedup(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "rug pull")

	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, "g1"))
	require.True(t, e.albums.Flush(albumKey(conv, "g1")))
	require.NoError(t, e.HandleAction(ctx, conv, ActionResend))

	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepMedia, s.Step, "resend keeps the media step")
	assert.Empty(t, s.Media)
	assert.NotEmpty(t, s.Description, "resend never clears the description")

	// Group g1 is accepted again after the dedup set was cleared.
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, "g1"))
	s, _ = e.Snapshot(conv)
	assert.Len(t, s.Media, 1)
}

func TestRestartResetsEverything(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "phishing links")
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, ""))
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p2"}, ""))
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))

	require.NoError(t, e.HandleAction(ctx, conv, ActionRestart))
	s, ok := e.Snapshot(conv)
	require.True(t, ok)
	assert.Equal(t, StepIdentify, s.Step)
	assert.True(t, s.Target.Empty())
	assert.Empty(t, s.Description)
	assert.Empty(t, s.Media)
}

func TestCancelDestroysSession(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "advance fee fraud")

	require.NoError(t, e.HandleAction(ctx, conv, ActionCancel))
	assert.False(t, e.InProgress(conv))

	// Subsequent events are no-ops without an active session.
	before := tr.promptCount()
	require.NoError(t, e.HandleText(ctx, conv, "@whoever"))
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p"}, ""))
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))
	assert.Equal(t, before, tr.promptCount())
}

func TestConfirmSubmitsScenarioC(t *testing.T) {
	e, tr, sink := newTestEngine(t)
	ctx := context.Background()
	startMediaStep(t, e, "got paid, never shipped")

	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, ""))
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindVideo, Ref: "v1"}, ""))
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))
	s, _ := e.Snapshot(conv)
	require.Equal(t, StepConfirm, s.Step)
	assert.Equal(t, 1, tr.albums, "confirmation renders an album preview")

	require.NoError(t, e.HandleAction(ctx, conv, ActionConfirm))
	require.Len(t, sink.subs, 1)
	sub := sink.subs[0]
	assert.Equal(t, "scammer1", sub.Target.Username)
	assert.Equal(t, "got paid, never shipped", sub.Description)
	assert.Equal(t, []MediaItem{{Kind: KindPhoto, Ref: "p1"}, {Kind: KindVideo, Ref: "v1"}}, sub.Media)
	assert.Equal(t, conv, sub.ReporterID)

	assert.False(t, e.InProgress(conv))
	before := tr.promptCount()
	require.NoError(t, e.HandleText(ctx, conv, "anything"))
	assert.Equal(t, before, tr.promptCount(), "finished conversation produces no observable action")
}

func TestSubmitFailureKeepsSession(t *testing.T) {
	e, tr, sink := newTestEngine(t)
	sink.err = errors.New("db down")
	ctx := context.Background()
	startMediaStep(t, e, "chargeback scam")
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p1"}, ""))
	require.NoError(t, e.HandleMedia(ctx, conv, MediaItem{Kind: KindPhoto, Ref: "p2"}, ""))
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))

	require.NoError(t, e.HandleAction(ctx, conv, ActionConfirm))
	assert.True(t, e.InProgress(conv), "failed submission leaves the session for retry")
	assert.Contains(t, tr.lastPrompt().text, "submit_failed")

	sink.err = nil
	require.NoError(t, e.HandleAction(ctx, conv, ActionConfirm))
	assert.False(t, e.InProgress(conv))
	assert.Len(t, sink.subs, 1)
}

func TestPromptReplacement(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	require.NoError(t, e.HandleText(ctx, conv, "@target"))
	require.Len(t, tr.deletes, 1, "advancing a step deletes the previous prompt")
	assert.Equal(t, 1, tr.deletes[0])

	// Delete failures are cosmetic: the flow still advances.
	tr.deleteErr = errors.New("message to delete not found")
	require.NoError(t, e.HandleText(ctx, conv, "legit description"))
	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepMedia, s.Step)
}

func TestPromptSendFailureDoesNotBlock(t *testing.T) {
	e, tr, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	tr.promptErr = errors.New("telegram unavailable")
	require.NoError(t, e.HandleText(ctx, conv, "@target"))
	s, _ := e.Snapshot(conv)
	assert.Equal(t, StepDescribe, s.Step, "transport errors never block the state machine")
}

func TestStepsOnlyIncrease(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx, conv, "en"))
	steps := []Step{StepIdentify}
	record := func() {
		s, ok := e.Snapshot(conv)
		if ok {
			steps = append(steps, s.Step)
		}
	}
	require.NoError(t, e.HandleText(ctx, conv, "garbage input"))
	record()
	require.NoError(t, e.HandleText(ctx, conv, "@scammer"))
	record()
	require.NoError(t, e.HandleText(ctx, conv, ""))
	record()
	require.NoError(t, e.HandleText(ctx, conv, "real description"))
	record()
	require.NoError(t, e.HandleAction(ctx, conv, ActionDone))
	record()

	for i := 1; i < len(steps); i++ {
		assert.GreaterOrEqual(t, int(steps[i]), int(steps[i-1]),
			"step regressed without restart: %v", steps)
	}
}
