package intake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/internal/flow"
)

type keyLocalizer struct{}

func (keyLocalizer) Resolve(key, _ string) string { return key }

type langList []string

func (l langList) Languages() []string { return l }

type nullTransport struct{ prompts int }

func (t *nullTransport) Prompt(context.Context, int64, string, []flow.Action, string) (int, error) {
	t.prompts++
	return t.prompts, nil
}
func (t *nullTransport) Delete(context.Context, int64, int) error { return nil }
func (t *nullTransport) SendAlbum(context.Context, int64, []flow.MediaItem, string) error {
	return nil
}

func newTestManager(t *testing.T, names ...string) *Manager {
	t.Helper()
	m := NewManager(keyLocalizer{}, langList{"en"}, nil)
	for _, name := range names {
		eng := flow.New(flow.Config{Name: name}, &nullTransport{}, keyLocalizer{}, flow.SinkFunc(
			func(context.Context, flow.Submission) error { return nil },
		))
		m.Register(eng)
		t.Cleanup(eng.Stop)
	}
	return m
}

func TestBeginTracksSingleFlowPerUser(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, "report", "appeal")

	require.NoError(t, m.Begin(ctx, 1, "report", "en"))
	assert.True(t, m.InProgress(1))
	assert.False(t, m.InProgress(2))

	assert.ErrorIs(t, m.Begin(ctx, 1, "appeal", "en"), ErrBusy)

	require.NoError(t, m.Begin(ctx, 2, "appeal", "en"))
	assert.True(t, m.InProgress(2))
}

func TestBeginRejectsUnknownFlow(t *testing.T) {
	m := newTestManager(t, "report")
	assert.Error(t, m.Begin(context.Background(), 1, "nothere", "en"))
	assert.False(t, m.InProgress(1))
}

func TestCancelFreesTheUser(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, "report")

	require.NoError(t, m.Begin(ctx, 1, "report", "en"))
	assert.True(t, m.Cancel(ctx, 1))
	assert.False(t, m.InProgress(1))

	assert.False(t, m.Cancel(ctx, 1))

	// The slot is free for the next flow.
	require.NoError(t, m.Begin(ctx, 1, "report", "en"))
}

func TestActionLabelMatching(t *testing.T) {
	m := newTestManager(t, "report")

	action, ok := m.actionFor("btn.done")
	require.True(t, ok)
	assert.Equal(t, flow.ActionDone, action)

	action, ok = m.actionFor("btn.cancel")
	require.True(t, ok)
	assert.Equal(t, flow.ActionCancel, action)

	_, ok = m.actionFor("just some text")
	assert.False(t, ok)
}

func TestMarkupForActions(t *testing.T) {
	tr := NewTransport(keyLocalizer{})

	markup := tr.markupFor(nil, "en")
	assert.True(t, markup.RemoveKeyboard)

	markup = tr.markupFor([]flow.Action{flow.ActionCancel}, "en")
	require.Len(t, markup.ReplyKeyboard, 1)
	assert.Equal(t, "btn.cancel", markup.ReplyKeyboard[0][0].Text)

	markup = tr.markupFor([]flow.Action{flow.ActionDone, flow.ActionResend, flow.ActionCancel}, "en")
	require.Len(t, markup.ReplyKeyboard, 2)
	assert.Equal(t, "btn.done", markup.ReplyKeyboard[0][0].Text)
	assert.Equal(t, "btn.resend", markup.ReplyKeyboard[0][1].Text)

	markup = tr.markupFor([]flow.Action{flow.ActionConfirm, flow.ActionRestart, flow.ActionCancel}, "en")
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Equal(t, cbConfirm, markup.InlineKeyboard[0][0].Unique)
	assert.Equal(t, cbRestart, markup.InlineKeyboard[0][1].Unique)
	assert.Equal(t, cbCancel, markup.InlineKeyboard[1][0].Unique)
}

func TestBuildAlbumCaptionOnFirstItem(t *testing.T) {
	album := buildAlbum([]flow.MediaItem{
		{Kind: flow.KindPhoto, Ref: "p1"},
		{Kind: flow.KindVideo, Ref: "v1"},
	}, "summary")
	require.Len(t, album, 2)

	ph, ok := album[0].(*tele.Photo)
	require.True(t, ok)
	assert.Equal(t, "p1", ph.FileID)
	assert.Equal(t, "summary", ph.Caption)

	vid, ok := album[1].(*tele.Video)
	require.True(t, ok)
	assert.Equal(t, "v1", vid.FileID)
	assert.Empty(t, vid.Caption)
}
