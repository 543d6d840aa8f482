package router

import (
	"time"

	tg "github.com/m3rciful/scamcheck/core/telegram"
	"github.com/m3rciful/scamcheck/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MediaOptions controls fallback behaviour for media and contact updates.
type MediaOptions struct {
	UnknownMedia tele.HandlerFunc
}

// MediaRoutes builds handlers for photo, video, and shared-contact routing.
// Updates are dispatched to the FSM when the sender is inside a conversation;
// otherwise the fallback runs (or the update is dropped).
func MediaRoutes(fsmMgr FSM, opts MediaOptions) []tg.Route {
	dispatch := func(name string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if fsmMgr != nil && fsmMgr.InProgress(c.Sender().ID) {
				return handleWithSummary(c, name, start, "", "", func() error {
					return fsmMgr.ManagerHandler(c)
				})
			}
			if opts.UnknownMedia != nil {
				return handleWithSummary(c, "unexpected_media", start, "", "", func() error {
					return opts.UnknownMedia(c)
				})
			}
			logHandlerSummary(c, name, start, "skip", "ok", nil)
			return nil
		}
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnPhoto, Handler: wrap(dispatch("fsm_photo"))},
		{Endpoint: tele.OnVideo, Handler: wrap(dispatch("fsm_video"))},
		{Endpoint: tele.OnContact, Handler: wrap(dispatch("fsm_contact"))},
	}
}
