package app

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scamcheck/core/telegram/helpers"
	"github.com/m3rciful/scamcheck/core/telegram/ui"
)

// The app satisfies ui.FallbackProvider so routers share one set of
// "did not understand that" handlers.
var _ ui.FallbackProvider = (*App)(nil)

// UnknownText answers unrecognized private-chat messages. Group chatter
// is left alone.
func (a *App) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}
		return helpers.SendText(c, a.text(c, "errors.unknown_command"))
	}
}

// UnknownDocument ignores stray documents; the intake flows only accept
// photos and videos.
func (a *App) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}
		return helpers.SendText(c, a.text(c, "errors.unknown_command"))
	}
}

// adminRejected tells non-admins the command is off limits.
func (a *App) adminRejected() tele.HandlerFunc {
	return func(c tele.Context) error {
		return helpers.SendText(c, a.text(c, "admin.denied"))
	}
}

// UnknownCallback acknowledges stale inline buttons without replying.
func (a *App) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond()
	}
}

// handleInlineQuery answers inline lookups: an empty query lists the
// guarantor allowlist, anything else is checked like /check.
func (a *App) handleInlineQuery(c tele.Context) error {
	query := strings.TrimSpace(c.Query().Text)
	ctx := helpers.BuildContext(c)
	lang := a.langOf(c)

	var results tele.Results
	if query == "" {
		list, err := a.guarantors.List(ctx)
		if err != nil {
			return err
		}
		for i, g := range list {
			if i >= 10 {
				break
			}
			title := g.Title
			if title == "" {
				title = "@" + g.Username
			}
			results = append(results, ui.NewSimpleArticleResult(
				fmt.Sprintf("guarantor-%d", g.ID),
				title,
				fmt.Sprintf(a.loc.Resolve("check.guarantor", lang), "@"+g.Username, g.Title),
			))
		}
	} else {
		if target, ok := parseTarget(withAt(query)); ok {
			res, err := a.reports.CheckTarget(ctx, target)
			if err != nil {
				return err
			}
			label := target.Label()
			var text string
			switch {
			case res.Guarantor:
				text = fmt.Sprintf(a.loc.Resolve("check.guarantor", lang), label, "")
			case res.Confirmed > 0:
				text = fmt.Sprintf(a.loc.Resolve("check.confirmed", lang), label, res.Confirmed)
			case res.Pending > 0:
				text = fmt.Sprintf(a.loc.Resolve("check.pending", lang), label, res.Pending)
			default:
				text = fmt.Sprintf(a.loc.Resolve("check.clean", lang), label)
			}
			results = append(results, ui.NewSimpleArticleResult("check-"+query, label, text))
		}
	}

	return c.Answer(&tele.QueryResponse{
		Results:   results,
		CacheTime: 30,
	})
}

// withAt lets inline users type a handle without the @ prefix.
func withAt(query string) string {
	if strings.HasPrefix(query, "@") {
		return query
	}
	if _, ok := parseTarget(query); ok {
		return query
	}
	return "@" + query
}
