// Package intake binds the conversation flow engine to Telegram: it
// translates bot updates into engine events and renders engine prompts
// as messages with reply or inline keyboards.
package intake

import (
	"context"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/core/telegram/keyboard"
	"github.com/m3rciful/scamcheck/internal/flow"
)

// Callback uniques for the confirmation step inline keyboard.
const (
	cbConfirm = "intake_confirm"
	cbRestart = "intake_restart"
	cbCancel  = "intake_cancel"
)

// Transport renders flow prompts through the live bot. The bot instance
// is attached after startup via SetBot.
type Transport struct {
	bot atomic.Pointer[tele.Bot]
	loc flow.Localizer
}

func NewTransport(loc flow.Localizer) *Transport {
	return &Transport{loc: loc}
}

// SetBot attaches the running bot instance.
func (t *Transport) SetBot(b *tele.Bot) {
	t.bot.Store(b)
}

// Prompt sends a flow message with the keyboard matching the offered
// actions and returns the sent message id.
func (t *Transport) Prompt(_ context.Context, conv int64, text string, actions []flow.Action, lang string) (int, error) {
	b := t.bot.Load()
	if b == nil {
		return 0, flow.ErrNoTransport
	}
	msg, err := b.Send(tele.ChatID(conv), text, t.markupFor(actions, lang))
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// Delete removes an earlier prompt message.
func (t *Transport) Delete(_ context.Context, conv int64, messageID int) error {
	b := t.bot.Load()
	if b == nil {
		return flow.ErrNoTransport
	}
	return b.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    conv,
	})
}

// SendAlbum posts the collected evidence back to the reporter as one
// media group.
func (t *Transport) SendAlbum(_ context.Context, conv int64, media []flow.MediaItem, caption string) error {
	b := t.bot.Load()
	if b == nil {
		return flow.ErrNoTransport
	}
	album := buildAlbum(media, caption)
	if len(album) == 0 {
		return nil
	}
	_, err := b.SendAlbum(tele.ChatID(conv), album)
	return err
}

// markupFor maps the offered actions onto a keyboard: the confirmation
// step uses inline callbacks, media collection uses quick-reply buttons,
// and an empty action set removes any keyboard.
func (t *Transport) markupFor(actions []flow.Action, lang string) *tele.ReplyMarkup {
	if len(actions) == 0 {
		return keyboard.RemoveKeyboard()
	}
	has := map[flow.Action]bool{}
	for _, a := range actions {
		has[a] = true
	}
	label := func(a flow.Action) string {
		return t.loc.Resolve("btn."+string(a), lang)
	}

	if has[flow.ActionConfirm] {
		return keyboard.InlineButtonsRows(
			[]keyboard.InlineBtn{
				{Text: label(flow.ActionConfirm), Unique: cbConfirm},
				{Text: label(flow.ActionRestart), Unique: cbRestart},
			},
			[]keyboard.InlineBtn{
				{Text: label(flow.ActionCancel), Unique: cbCancel},
			},
		)
	}

	var rows [][]string
	if has[flow.ActionDone] {
		rows = append(rows, []string{label(flow.ActionDone), label(flow.ActionResend)})
	}
	rows = append(rows, []string{label(flow.ActionCancel)})
	return keyboard.ReplyButtons(rows...)
}

func buildAlbum(media []flow.MediaItem, caption string) tele.Album {
	album := make(tele.Album, 0, len(media))
	for i, m := range media {
		var item tele.Inputtable
		switch m.Kind {
		case flow.KindVideo:
			v := &tele.Video{File: tele.File{FileID: m.Ref}}
			if i == 0 {
				v.Caption = caption
			}
			item = v
		default:
			ph := &tele.Photo{File: tele.File{FileID: m.Ref}}
			if i == 0 {
				ph.Caption = caption
			}
			item = ph
		}
		album = append(album, item)
	}
	return album
}
