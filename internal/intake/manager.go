package intake

import (
	"context"
	"errors"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scamcheck/core/telegram"
	"github.com/m3rciful/scamcheck/core/telegram/helpers"
	"github.com/m3rciful/scamcheck/core/telegram/state"
	"github.com/m3rciful/scamcheck/internal/flow"
)

// ErrBusy is returned when a new flow is requested while another one is
// already running for the same user.
var ErrBusy = errors.New("intake: another flow in progress")

// Languages enumerates the languages whose button labels the manager
// should recognize.
type Languages interface {
	Languages() []string
}

// Manager owns the set of intake flows and routes updates from the bot
// to whichever flow a user currently has open. It satisfies the router
// FSM contract, with an optional session-state fallback for single-step
// admin dialogs.
type Manager struct {
	loc     flow.Localizer
	langs   []string
	dialogs state.Manager

	mu      sync.Mutex
	engines map[string]*flow.Engine
	active  map[int64]string
}

func NewManager(loc flow.Localizer, langs Languages, dialogs state.Manager) *Manager {
	m := &Manager{
		loc:     loc,
		dialogs: dialogs,
		engines: make(map[string]*flow.Engine),
		active:  make(map[int64]string),
	}
	if langs != nil {
		m.langs = langs.Languages()
	}
	if len(m.langs) == 0 {
		m.langs = []string{"en"}
	}
	return m
}

// Register adds a flow engine under its configured name.
func (m *Manager) Register(eng *flow.Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[eng.Name()] = eng
}

// Begin starts the named flow for a user. Only one flow (or dialog) may
// be open per user at a time.
func (m *Manager) Begin(ctx context.Context, conv int64, name, lang string) error {
	if m.InProgress(conv) {
		return ErrBusy
	}
	m.mu.Lock()
	eng, ok := m.engines[name]
	if !ok {
		m.mu.Unlock()
		return errors.New("intake: unknown flow " + name)
	}
	m.active[conv] = name
	m.mu.Unlock()
	return eng.Start(ctx, conv, lang)
}

// Cancel aborts whatever the user has open. It reports whether there was
// anything to cancel.
func (m *Manager) Cancel(ctx context.Context, conv int64) bool {
	if eng := m.activeEngine(conv); eng != nil {
		_ = eng.HandleAction(ctx, conv, flow.ActionCancel)
		return true
	}
	if m.dialogs != nil && m.dialogs.InProgress(conv) {
		m.dialogs.Clear(conv)
		return true
	}
	return false
}

// InProgress reports whether the user has an open flow or dialog.
func (m *Manager) InProgress(userID int64) bool {
	if m.activeEngine(userID) != nil {
		return true
	}
	return m.dialogs != nil && m.dialogs.InProgress(userID)
}

// ManagerHandler dispatches one update into the user's open flow.
func (m *Manager) ManagerHandler(c tele.Context) error {
	conv := c.Sender().ID
	eng := m.activeEngine(conv)
	if eng == nil {
		if m.dialogs != nil && m.dialogs.InProgress(conv) {
			return m.dialogs.ManagerHandler(c)
		}
		return nil
	}

	ctx := helpers.BuildContext(c)
	msg := c.Message()
	if msg == nil {
		return nil
	}

	switch {
	case msg.Contact != nil:
		return eng.HandleShared(ctx, conv, msg.Contact.UserID)
	case msg.Photo != nil:
		return eng.HandleMedia(ctx, conv,
			flow.MediaItem{Kind: flow.KindPhoto, Ref: msg.Photo.FileID}, msg.AlbumID)
	case msg.Video != nil:
		return eng.HandleMedia(ctx, conv,
			flow.MediaItem{Kind: flow.KindVideo, Ref: msg.Video.FileID}, msg.AlbumID)
	case msg.OriginalSender != nil:
		return eng.HandleForward(ctx, conv, flow.Identity{
			Username: msg.OriginalSender.Username,
			UserID:   msg.OriginalSender.ID,
		})
	case msg.Text != "":
		text := strings.TrimSpace(msg.Text)
		if action, ok := m.actionFor(text); ok {
			return eng.HandleAction(ctx, conv, action)
		}
		if strings.EqualFold(text, "/cancel") {
			return eng.HandleAction(ctx, conv, flow.ActionCancel)
		}
		return eng.HandleText(ctx, conv, text)
	}
	return nil
}

// RegisterCallbacks wires the confirmation-step inline buttons into the
// callback registry.
func (m *Manager) RegisterCallbacks(reg *tg.Registry) error {
	bind := func(action flow.Action) tele.HandlerFunc {
		return func(c tele.Context) error {
			conv := c.Sender().ID
			eng := m.activeEngine(conv)
			if eng == nil {
				return nil
			}
			return eng.HandleAction(helpers.BuildContext(c), conv, action)
		}
	}
	for key, action := range map[string]flow.Action{
		cbConfirm: flow.ActionConfirm,
		cbRestart: flow.ActionRestart,
		cbCancel:  flow.ActionCancel,
	} {
		if err := reg.RegisterCallback(key, bind(action)); err != nil {
			return err
		}
	}
	return nil
}

// Stop shuts down all registered engines.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, eng := range m.engines {
		eng.Stop()
	}
}

// activeEngine returns the engine holding a live session for the user,
// clearing the assignment when the flow already ended.
func (m *Manager) activeEngine(conv int64) *flow.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.active[conv]
	if !ok {
		return nil
	}
	eng := m.engines[name]
	if eng == nil || !eng.InProgress(conv) {
		delete(m.active, conv)
		return nil
	}
	return eng
}

// actionFor matches a message against the quick-reply button labels in
// every shipped language.
func (m *Manager) actionFor(text string) (flow.Action, bool) {
	for _, lang := range m.langs {
		for _, action := range []flow.Action{
			flow.ActionDone, flow.ActionResend, flow.ActionCancel,
			flow.ActionConfirm, flow.ActionRestart,
		} {
			if text == m.loc.Resolve("btn."+string(action), lang) {
				return action, true
			}
		}
	}
	return "", false
}
