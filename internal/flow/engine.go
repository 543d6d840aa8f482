package flow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/m3rciful/scamcheck/core/logger"
	"log/slog"
)

var (
	identifyActions = []Action{ActionCancel}
	describeActions = []Action{ActionCancel}
	mediaActions    = []Action{ActionDone, ActionResend, ActionCancel}
	confirmActions  = []Action{ActionConfirm, ActionRestart, ActionCancel}
)

// Engine drives intake conversations for one concrete flow. Sessions are
// keyed by conversation id; the transport is assumed to deliver events of
// a single conversation serially, so the engine lock only protects the
// session map against the deferred album refresh and other conversations.
type Engine struct {
	cfg       Config
	tr        Transport
	loc       Localizer
	sink      Sink
	component string

	mu       sync.Mutex
	sessions map[int64]*Session
	albums   *Debouncer
}

// New builds an Engine; zero Config fields fall back to flow defaults.
func New(cfg Config, tr Transport, loc Localizer, sink Sink) *Engine {
	cfg.normalize()
	return &Engine{
		cfg:       cfg,
		tr:        tr,
		loc:       loc,
		sink:      sink,
		component: "flow." + cfg.Name,
		sessions:  make(map[int64]*Session),
		albums:    NewDebouncer(),
	}
}

// Name returns the flow identifier used for copy keys and logs.
func (e *Engine) Name() string { return e.cfg.Name }

// InProgress reports whether the conversation has an active session.
func (e *Engine) InProgress(conv int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sessions[conv]
	return ok
}

// Snapshot returns a copy of the current session state for bindings and
// diagnostics. The boolean is false when no flow is active.
func (e *Engine) Snapshot(conv int64) (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[conv]
	if !ok {
		return Session{}, false
	}
	out := *s
	out.Media = append([]MediaItem(nil), s.Media...)
	out.seen = nil
	return out, true
}

// Start opens a fresh session for the conversation, replacing any
// previous one, and prompts for the target identity.
func (e *Engine) Start(ctx context.Context, conv int64, lang string) error {
	e.mu.Lock()
	e.albumsCancelLocked(conv)
	old := 0
	if prev, ok := e.sessions[conv]; ok {
		old = prev.LastPromptID
	}
	e.sessions[conv] = &Session{
		Step: StepIdentify,
		Lang: lang,
		seen: make(map[string]struct{}),
	}
	e.mu.Unlock()

	logger.Debug(ctx, e.component, "flow.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", conv),
		slog.String("flow", e.cfg.Name),
	)
	e.replacePrompt(ctx, conv, e.text("ask_identity", lang), identifyActions, lang, old)
	return nil
}

// Stop cancels all pending album refreshes. Sessions stay in memory; they
// are process-lifetime state by design.
func (e *Engine) Stop() {
	e.albums.Stop()
}

// HandleText advances the conversation with a free-text message.
func (e *Engine) HandleText(ctx context.Context, conv int64, text string) error {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	step := s.Step
	lang := s.Lang
	old := s.LastPromptID
	e.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	switch step {
	case StepIdentify:
		target, ok := parseIdentity(trimmed)
		if !ok {
			e.replacePrompt(ctx, conv, e.text("bad_identity", lang), identifyActions, lang, old)
			return nil
		}
		e.advanceIdentity(ctx, conv, target)
	case StepDescribe:
		n := utf8.RuneCountInString(trimmed)
		if n == 0 || n > e.cfg.MaxDescription {
			msg := fmt.Sprintf(e.text("bad_description", lang), e.cfg.MaxDescription)
			e.replacePrompt(ctx, conv, msg, describeActions, lang, old)
			return nil
		}
		count := 0
		e.mu.Lock()
		if s, ok := e.sessions[conv]; ok && s.Step == StepDescribe {
			s.Description = trimmed
			s.Step = StepMedia
			count = len(s.Media)
			old = s.LastPromptID
		}
		e.mu.Unlock()
		logger.Debug(ctx, e.component, "flow.describe",
			slog.String("status", "ok"),
			slog.Int64("user_id", conv),
			slog.Int("flow_step", int(StepMedia)),
		)
		e.promptMediaProgress(ctx, conv, lang, count, old)
	default:
		// Free text during media collection or confirmation: repeat the
		// current instruction.
		e.repeatPrompt(ctx, conv, step, lang, old)
	}
	return nil
}

// HandleForward resolves the target from a forwarded message's original
// sender. Valid only during the identify step.
func (e *Engine) HandleForward(ctx context.Context, conv int64, target Identity) error {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	step := s.Step
	lang := s.Lang
	old := s.LastPromptID
	e.mu.Unlock()

	if step != StepIdentify || target.Empty() {
		e.repeatPrompt(ctx, conv, step, lang, old)
		return nil
	}
	e.advanceIdentity(ctx, conv, target)
	return nil
}

// HandleShared resolves the target from a platform user-picked event
// (a shared contact carrying a numeric id).
func (e *Engine) HandleShared(ctx context.Context, conv int64, userID int64) error {
	return e.HandleForward(ctx, conv, Identity{UserID: userID})
}

// HandleMedia appends evidence during the media step. Events that share a
// media-group id are coalesced: items are stored immediately, while the
// prompt refresh is deferred and performed once per group with the
// post-burst count. A group id whose refresh already ran is ignored
// entirely.
func (e *Engine) HandleMedia(ctx context.Context, conv int64, item MediaItem, groupID string) error {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	if s.Step != StepMedia {
		step, lang, old := s.Step, s.Lang, s.LastPromptID
		e.mu.Unlock()
		e.repeatPrompt(ctx, conv, step, lang, old)
		return nil
	}
	lang := s.Lang
	old := s.LastPromptID

	if groupID != "" {
		if _, done := s.seen[groupID]; done {
			e.mu.Unlock()
			logger.Debug(ctx, e.component, "flow.album.duplicate",
				slog.String("status", "skip"),
				slog.Int64("user_id", conv),
				slog.String("media_group", groupID),
			)
			return nil
		}
	}

	if len(s.Media) >= e.cfg.MaxMedia {
		e.mu.Unlock()
		msg := fmt.Sprintf(e.text("media_limit", lang), e.cfg.MaxMedia)
		e.replacePrompt(ctx, conv, msg, mediaActions, lang, old)
		return nil
	}

	s.Media = append(s.Media, item)
	count := len(s.Media)

	if groupID == "" {
		e.mu.Unlock()
		logger.Debug(ctx, e.component, "flow.media",
			slog.String("status", "ok"),
			slog.Int64("user_id", conv),
			slog.Int("media_count", count),
		)
		e.promptMediaProgress(ctx, conv, lang, count, old)
		return nil
	}

	e.mu.Unlock()
	scheduled := e.albums.Schedule(albumKey(conv, groupID), e.cfg.AlbumFlushDelay, func() {
		e.flushAlbum(conv, groupID)
	})
	logger.Debug(ctx, e.component, "flow.album.item",
		slog.String("status", "ok"),
		slog.Int64("user_id", conv),
		slog.String("media_group", groupID),
		slog.Int("media_count", count),
		slog.Bool("collapsed", !scheduled),
	)
	return nil
}

// HandleAction processes a quick-reply or callback action.
func (e *Engine) HandleAction(ctx context.Context, conv int64, action Action) error {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	step := s.Step
	lang := s.Lang
	old := s.LastPromptID
	e.mu.Unlock()

	switch action {
	case ActionCancel:
		e.teardown(conv)
		logger.Info(ctx, e.component, "flow.cancelled",
			slog.String("status", "ok"),
			slog.Int64("user_id", conv),
			slog.Int("flow_step", int(step)),
		)
		e.replacePrompt(ctx, conv, e.text("cancelled", lang), nil, lang, old)
	case ActionDone:
		if step != StepMedia {
			return nil
		}
		e.finishMedia(ctx, conv, lang)
	case ActionResend:
		if step != StepMedia {
			return nil
		}
		e.mu.Lock()
		e.albumsCancelLocked(conv)
		if s, ok := e.sessions[conv]; ok && s.Step == StepMedia {
			s.Media = nil
			s.seen = make(map[string]struct{})
			old = s.LastPromptID
		}
		e.mu.Unlock()
		e.promptMediaProgress(ctx, conv, lang, 0, old)
	case ActionRestart:
		return e.Start(ctx, conv, lang)
	case ActionConfirm:
		if step != StepConfirm {
			return nil
		}
		e.submit(ctx, conv, lang)
	}
	return nil
}

func (e *Engine) advanceIdentity(ctx context.Context, conv int64, target Identity) {
	lang := ""
	old := 0
	e.mu.Lock()
	if s, ok := e.sessions[conv]; ok && s.Step == StepIdentify {
		s.Target = target
		s.Step = StepDescribe
		lang = s.Lang
		old = s.LastPromptID
	}
	e.mu.Unlock()
	logger.Debug(ctx, e.component, "flow.identify",
		slog.String("status", "ok"),
		slog.Int64("user_id", conv),
		slog.String("target", target.Label()),
	)
	msg := fmt.Sprintf(e.text("ask_description", lang), e.cfg.MaxDescription)
	e.replacePrompt(ctx, conv, msg, describeActions, lang, old)
}

func (e *Engine) finishMedia(ctx context.Context, conv int64, lang string) {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok || s.Step != StepMedia {
		e.mu.Unlock()
		return
	}
	if len(s.Media) < e.cfg.MinMedia {
		old := s.LastPromptID
		e.mu.Unlock()
		msg := fmt.Sprintf(e.text("need_more_media", lang), e.cfg.MinMedia)
		e.replacePrompt(ctx, conv, msg, mediaActions, lang, old)
		return
	}
	s.Step = StepConfirm
	media := append([]MediaItem(nil), s.Media...)
	target := s.Target
	desc := s.Description
	old := s.LastPromptID
	e.mu.Unlock()

	// Preview the album the way it will be published. Cosmetic: a failed
	// preview never blocks confirmation.
	if err := e.tr.SendAlbum(ctx, conv, media, desc); err != nil {
		logger.Warn(ctx, e.component, "flow.preview.fail",
			slog.String("status", "fail"),
			slog.Int64("user_id", conv),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
	summary := fmt.Sprintf(e.text("confirm_summary", lang), target.Label(), desc, len(media))
	e.replacePrompt(ctx, conv, summary, confirmActions, lang, old)
}

func (e *Engine) submit(ctx context.Context, conv int64, lang string) {
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok || s.Step != StepConfirm {
		e.mu.Unlock()
		return
	}
	sub := Submission{
		Target:      s.Target,
		Description: s.Description,
		Media:       append([]MediaItem(nil), s.Media...),
		ReporterID:  conv,
		Lang:        lang,
	}
	old := s.LastPromptID
	e.mu.Unlock()

	if err := e.sink.Submit(ctx, sub); err != nil {
		logger.Error(ctx, e.component, "flow.submit.fail",
			slog.String("status", "fail"),
			slog.Int64("user_id", conv),
			slog.String("target", sub.Target.Label()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		// Session survives so the user may retry Confirm or Cancel.
		e.replacePrompt(ctx, conv, e.text("submit_failed", lang), confirmActions, lang, old)
		return
	}

	e.teardown(conv)
	logger.Info(ctx, e.component, "flow.submitted",
		slog.String("status", "ok"),
		slog.Int64("user_id", conv),
		slog.String("target", sub.Target.Label()),
		slog.Int("media_count", len(sub.Media)),
	)
	e.replacePrompt(ctx, conv, e.text("submitted", lang), nil, lang, old)
}

func (e *Engine) flushAlbum(conv int64, groupID string) {
	ctx := context.Background()
	e.mu.Lock()
	s, ok := e.sessions[conv]
	if !ok || s.Step != StepMedia {
		e.mu.Unlock()
		return
	}
	s.seen[groupID] = struct{}{}
	count := len(s.Media)
	lang := s.Lang
	old := s.LastPromptID
	e.mu.Unlock()

	logger.Debug(ctx, e.component, "flow.album.flush",
		slog.String("status", "ok"),
		slog.Int64("user_id", conv),
		slog.String("media_group", groupID),
		slog.Int("media_count", count),
	)
	e.promptMediaProgress(ctx, conv, lang, count, old)
}

func (e *Engine) promptMediaProgress(ctx context.Context, conv int64, lang string, count, oldPrompt int) {
	msg := fmt.Sprintf(e.text("ask_media", lang), count, e.cfg.MaxMedia)
	e.replacePrompt(ctx, conv, msg, mediaActions, lang, oldPrompt)
}

func (e *Engine) repeatPrompt(ctx context.Context, conv int64, step Step, lang string, old int) {
	switch step {
	case StepIdentify:
		e.replacePrompt(ctx, conv, e.text("ask_identity", lang), identifyActions, lang, old)
	case StepDescribe:
		msg := fmt.Sprintf(e.text("ask_description", lang), e.cfg.MaxDescription)
		e.replacePrompt(ctx, conv, msg, describeActions, lang, old)
	case StepMedia:
		count := 0
		e.mu.Lock()
		if s, ok := e.sessions[conv]; ok {
			count = len(s.Media)
		}
		e.mu.Unlock()
		e.promptMediaProgress(ctx, conv, lang, count, old)
	case StepConfirm:
		e.mu.Lock()
		s, ok := e.sessions[conv]
		var target Identity
		desc := ""
		count := 0
		if ok {
			target, desc, count = s.Target, s.Description, len(s.Media)
		}
		e.mu.Unlock()
		if !ok {
			return
		}
		summary := fmt.Sprintf(e.text("confirm_summary", lang), target.Label(), desc, count)
		e.replacePrompt(ctx, conv, summary, confirmActions, lang, old)
	}
}

// replacePrompt deletes the previous instructional message best-effort
// and sends the next one. Both operations are cosmetic: failures are
// logged and swallowed, and a failed delete is never retried.
func (e *Engine) replacePrompt(ctx context.Context, conv int64, text string, actions []Action, lang string, oldPrompt int) {
	if oldPrompt != 0 {
		if err := e.tr.Delete(ctx, conv, oldPrompt); err != nil {
			logger.Debug(ctx, e.component, "flow.prompt.delete_fail",
				slog.String("status", "skip"),
				slog.Int64("user_id", conv),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
	id, err := e.tr.Prompt(ctx, conv, text, actions, lang)
	if err != nil {
		logger.Warn(ctx, e.component, "flow.prompt.send_fail",
			slog.String("status", "fail"),
			slog.Int64("user_id", conv),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return
	}
	e.mu.Lock()
	if s, ok := e.sessions[conv]; ok {
		s.LastPromptID = id
	}
	e.mu.Unlock()
}

func (e *Engine) teardown(conv int64) {
	e.mu.Lock()
	e.albumsCancelLocked(conv)
	delete(e.sessions, conv)
	e.mu.Unlock()
}

func (e *Engine) albumsCancelLocked(conv int64) {
	e.albums.CancelPrefix(albumKey(conv, ""))
}

func (e *Engine) text(key, lang string) string {
	return e.loc.Resolve(e.cfg.Name+"."+key, lang)
}

func albumKey(conv int64, groupID string) string {
	return strconv.FormatInt(conv, 10) + "/" + groupID
}

func parseIdentity(text string) (Identity, bool) {
	if strings.HasPrefix(text, "@") && len(text) > 1 {
		return Identity{Username: strings.TrimPrefix(text, "@")}, true
	}
	if text != "" && isDigits(text) {
		id, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Identity{}, false
		}
		return Identity{UserID: id}, true
	}
	return Identity{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
