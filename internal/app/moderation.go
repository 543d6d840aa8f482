package app

import (
	"context"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/core/logger"
	tg "github.com/m3rciful/scamcheck/core/telegram"
	"github.com/m3rciful/scamcheck/core/telegram/helpers"
	"github.com/m3rciful/scamcheck/core/telegram/state"
)

// middlewares extends the shared chain with the banned-user filter and
// group banned-word moderation.
func (a *App) middlewares() []tg.Middleware {
	mws := tg.DefaultMiddlewares(a.cfg.CoreConfig(), nil)
	return append(mws,
		tg.Middleware{Name: "session", Use: state.WithSession(a.dialogs)},
		tg.Middleware{Name: "ban_filter", Use: a.banFilter},
		tg.Middleware{Name: "word_moderation", Use: a.wordModeration},
	)
}

// banFilter silently drops updates from banned users.
func (a *App) banFilter(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}
		ctx := helpers.BuildContext(c)
		u, err := helpers.CurrentUser(ctx, a.users, sender.ID)
		if err == nil && u != nil && u.IsBanned {
			logger.Debug(ctx, "tg", "update.dropped",
				slog.String("status", "skip"),
				slog.String("reason", "banned"),
				slog.Int64("user_id", sender.ID))
			return nil
		}
		return next(c)
	}
}

// wordModeration deletes group messages containing configured banned
// words. Private chats are never filtered.
func (a *App) wordModeration(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		msg := c.Message()
		chat := c.Chat()
		if msg == nil || chat == nil || chat.Type == tele.ChatPrivate || msg.Text == "" {
			return next(c)
		}
		ctx := helpers.BuildContext(c)
		word, hit := a.chats.BannedWord(ctx, chat.ID, msg.Text)
		if !hit {
			return next(c)
		}
		if err := c.Delete(); err != nil {
			logger.Warn(ctx, "tg", "moderation.delete_failed",
				slog.Int64("chat_id", chat.ID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
			return nil
		}
		logger.Info(ctx, "tg", "moderation.deleted",
			slog.String("status", "ok"),
			slog.Int64("chat_id", chat.ID),
			slog.String("word", word))
		return helpers.SendText(c, a.text(c, "moderation.deleted"))
	}
}

// autoMessageLoop periodically posts the configured recurring message
// into every chat that enabled it.
func (a *App) autoMessageLoop(ctx context.Context) {
	interval := a.cfg.Moderation.AutoMessageInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.postAutoMessages(ctx)
		}
	}
}

func (a *App) postAutoMessages(ctx context.Context) {
	b := a.bot.Load()
	if b == nil {
		return
	}
	chats, err := a.chats.AutoMessageChats(ctx)
	if err != nil {
		logger.Warn(ctx, "tg", "automsg.list_failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return
	}
	for _, chat := range chats {
		if _, err := b.Send(tele.ChatID(chat.ChatID), chat.AutoMessage); err != nil {
			logger.Warn(ctx, "tg", "automsg.send_failed",
				slog.Int64("chat_id", chat.ChatID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
	}
	logger.Debug(ctx, "tg", "automsg.cycle",
		slog.String("status", "ok"),
		slog.Int("chats", len(chats)))
}
