package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/core/logger"
	"github.com/m3rciful/scamcheck/core/telegram/format"
	"github.com/m3rciful/scamcheck/internal/models"
)

// ErrNoBot is returned when publication is attempted before the bot has
// been attached.
var ErrNoBot = errors.New("service: bot not attached")

// Localizer resolves a message key for a language.
type Localizer interface {
	Resolve(key, lang string) string
}

// ChannelPublisher posts stored reports to the public channel. The bot is
// attached after startup via SetBot, so construction does not depend on
// the Telegram runtime.
type ChannelPublisher struct {
	bot    atomic.Pointer[tele.Bot]
	chatID int64
	loc    Localizer
	lang   string
}

func NewChannelPublisher(chatID int64, loc Localizer, lang string) *ChannelPublisher {
	return &ChannelPublisher{chatID: chatID, loc: loc, lang: lang}
}

// SetBot attaches the running bot instance.
func (p *ChannelPublisher) SetBot(b *tele.Bot) {
	p.bot.Store(b)
}

// Publish sends the report to the channel: a plain message when there is
// no media, otherwise an album with the text as the first caption.
func (p *ChannelPublisher) Publish(ctx context.Context, rep *models.Report, media []models.ReportMedia) error {
	if p.chatID == 0 {
		return nil
	}
	b := p.bot.Load()
	if b == nil {
		return ErrNoBot
	}

	key := "publish.report"
	if rep.Kind == models.ReportKindAppeal {
		key = "publish.appeal"
	}
	target, err := format.EscapeMarkdown(rep.TargetLabel(), format.MarkdownV1, "")
	if err != nil {
		target = rep.TargetLabel()
	}
	desc, err := format.EscapeMarkdown(rep.Description, format.MarkdownV1, "")
	if err != nil {
		desc = rep.Description
	}
	text := fmt.Sprintf(p.loc.Resolve(key, p.lang), target, desc)
	to := tele.ChatID(p.chatID)

	if len(media) == 0 {
		_, err = b.Send(to, text, tele.ModeMarkdown)
	} else {
		album := make(tele.Album, 0, len(media))
		for i, m := range media {
			var item tele.Inputtable
			switch m.Kind {
			case models.MediaKindVideo:
				v := &tele.Video{File: tele.File{FileID: m.FileID}}
				if i == 0 {
					v.Caption = text
				}
				item = v
			default:
				ph := &tele.Photo{File: tele.File{FileID: m.FileID}}
				if i == 0 {
					ph.Caption = text
				}
				item = ph
			}
			album = append(album, item)
		}
		_, err = b.SendAlbum(to, album, tele.ModeMarkdown)
	}
	if err != nil {
		return err
	}
	logger.Debug(ctx, "service.reports", "report published",
		slog.Int64("report_id", rep.ID),
		slog.Int64("chat_id", p.chatID),
		slog.Int("media_count", len(media)))
	return nil
}
