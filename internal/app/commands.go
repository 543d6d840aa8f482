package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/scamcheck/core/telegram"
	"github.com/m3rciful/scamcheck/core/telegram/callbacks"
	"github.com/m3rciful/scamcheck/core/telegram/commands"
	"github.com/m3rciful/scamcheck/core/telegram/helpers"
	"github.com/m3rciful/scamcheck/core/telegram/keyboard"
	"github.com/m3rciful/scamcheck/core/telegram/state"
	"github.com/m3rciful/scamcheck/internal/flow"
	"github.com/m3rciful/scamcheck/internal/intake"
	"github.com/m3rciful/scamcheck/internal/models"
	"github.com/m3rciful/scamcheck/internal/service"
	"github.com/m3rciful/scamcheck/internal/storage"
)

// stateCheckTarget is the single-step dialog waiting for a /check target.
const stateCheckTarget = "check_target"

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "About the bot",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.cmdHelp,
		Description: "How to use the bot",
	})
	reg.RegisterCommand("/check", commands.Command{
		Handler:     a.cmdCheck,
		Description: "Check a user for scam reports",
	})
	reg.RegisterCommand("/report", commands.Command{
		Handler:     a.beginFlow(models.ReportKindReport),
		Description: "Report a scammer",
	})
	reg.RegisterCommand("/appeal", commands.Command{
		Handler:     a.beginFlow(models.ReportKindAppeal),
		Description: "Appeal your status",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.cmdCancel,
		Description: "Cancel the current form",
	})
	reg.RegisterCommand("/guarantors", commands.Command{
		Handler:     a.cmdGuarantors,
		Description: "Trusted guarantor list",
	})

	reg.RegisterCommand("/pending", commands.Command{
		Handler:   a.cmdPending,
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/confirm", commands.Command{
		Handler:   a.decideReport(models.ReportStatusConfirmed),
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/reject", commands.Command{
		Handler:   a.decideReport(models.ReportStatusRejected),
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/guarantor_add", commands.Command{
		Handler:   a.cmdGuarantorAdd,
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/guarantor_del", commands.Command{
		Handler:   a.cmdGuarantorDel,
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/ban", commands.Command{
		Handler:   a.setBan(true),
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/unban", commands.Command{
		Handler:   a.setBan(false),
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/banword", commands.Command{
		Handler:   a.cmdBanword,
		AdminOnly: true,
		Hidden:    true,
	})
	reg.RegisterCommand("/automsg", commands.Command{
		Handler:   a.cmdAutoMessage,
		AdminOnly: true,
		Hidden:    true,
	})
}

// langOf picks the language for replies: the Telegram client language,
// falling back to the bundle default.
func (a *App) langOf(c tele.Context) string {
	sender := c.Sender()
	if sender == nil {
		return a.loc.DefaultLang()
	}
	if sender.LanguageCode != "" {
		return sender.LanguageCode
	}
	return a.loc.DefaultLang()
}

func (a *App) text(c tele.Context, key string) string {
	return a.loc.Resolve(key, a.langOf(c))
}

func (a *App) cmdStart(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	if sender := c.Sender(); sender != nil {
		_, _ = a.users.Ensure(ctx, sender.ID, sender.Username, a.langOf(c))
	}
	return helpers.SendText(c, a.text(c, "start.welcome"))
}

func (a *App) cmdHelp(c tele.Context) error {
	return helpers.SendText(c, a.text(c, "help.text"))
}

func (a *App) beginFlow(name string) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		sender := c.Sender()
		if sender == nil {
			return nil
		}
		_, _ = a.users.Ensure(ctx, sender.ID, sender.Username, a.langOf(c))
		err := a.manager.Begin(ctx, sender.ID, name, a.langOf(c))
		if errors.Is(err, intake.ErrBusy) {
			return helpers.SendText(c, a.text(c, "flow.busy"))
		}
		return err
	}
}

func (a *App) cmdCancel(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	if !a.manager.Cancel(ctx, c.Sender().ID) {
		return helpers.SendText(c, a.text(c, "flow.none"))
	}
	return nil
}

func (a *App) cmdCheck(c tele.Context) error {
	arg := strings.TrimSpace(c.Message().Payload)
	if arg == "" {
		a.dialogs.SetState(c.Sender().ID, stateCheckTarget)
		return helpers.SendText(c, a.text(c, "check.usage"))
	}
	return a.runCheck(c, arg)
}

// registerDialogs wires the single-step session dialogs dispatched when
// no intake flow is active.
func (a *App) registerDialogs() {
	state.RegisterHandler(stateCheckTarget, func(c tele.Context) error {
		a.dialogs.Clear(c.Sender().ID)
		return a.runCheck(c, strings.TrimSpace(c.Text()))
	})
}

func (a *App) runCheck(c tele.Context, arg string) error {
	target, ok := parseTarget(arg)
	if !ok {
		return helpers.SendText(c, a.text(c, "check.usage"))
	}
	ctx := helpers.BuildContext(c)
	res, err := a.reports.CheckTarget(ctx, target)
	if err != nil {
		return helpers.SendText(c, a.text(c, "errors.generic"))
	}
	label := target.Label()
	switch {
	case res.Guarantor:
		g, gerr := a.guarantors.List(ctx)
		title := ""
		if gerr == nil {
			for _, entry := range g {
				if "@"+entry.Username == strings.ToLower(label) {
					title = entry.Title
					break
				}
			}
		}
		return helpers.SendText(c, fmt.Sprintf(a.text(c, "check.guarantor"), label, title))
	case res.Confirmed > 0:
		return helpers.SendText(c, fmt.Sprintf(a.text(c, "check.confirmed"), label, res.Confirmed))
	case res.Pending > 0:
		return helpers.SendText(c, fmt.Sprintf(a.text(c, "check.pending"), label, res.Pending))
	}
	return helpers.SendText(c, fmt.Sprintf(a.text(c, "check.clean"), label))
}

func (a *App) cmdGuarantors(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	list, err := a.guarantors.List(ctx)
	if err != nil {
		return helpers.SendText(c, a.text(c, "errors.generic"))
	}
	if len(list) == 0 {
		return helpers.SendText(c, a.text(c, "guarantors.empty"))
	}
	var b strings.Builder
	b.WriteString(a.text(c, "guarantors.header"))
	for _, g := range list {
		b.WriteString("\n@")
		b.WriteString(g.Username)
		if g.Title != "" {
			b.WriteString(" — ")
			b.WriteString(g.Title)
		}
	}
	return helpers.SendText(c, b.String())
}

func (a *App) cmdPending(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	since := time.Time{}
	if arg := strings.TrimSpace(c.Message().Payload); arg != "" {
		if parsed, ok := helpers.ParseFlexibleDate(arg); ok {
			since = parsed
		}
	}
	reps, err := a.reports.Pending(ctx, since, 50)
	if err != nil {
		return helpers.SendText(c, a.text(c, "errors.generic"))
	}
	if len(reps) == 0 {
		return helpers.SendText(c, a.text(c, "admin.pending.empty"))
	}
	rows := make([]string, 0, len(reps))
	buttons := make([][]keyboard.InlineBtn, 0, len(reps))
	for _, r := range reps {
		rows = append(rows, fmt.Sprintf(a.text(c, "admin.pending.row"),
			r.ID, r.Kind, r.TargetLabel(), truncate(r.Description, 80)))
		id := strconv.FormatInt(r.ID, 10)
		buttons = append(buttons, []keyboard.InlineBtn{
			{Text: "✅ #" + id, Unique: cbReportConfirm, Data: id},
			{Text: "🗑 #" + id, Unique: cbReportReject, Data: id},
		})
	}
	return helpers.SendText(c, strings.Join(rows, "\n"), &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtonsRows(buttons...),
	})
}

// Callback uniques for the pending-review inline buttons.
const (
	cbReportConfirm = "rep_confirm"
	cbReportReject  = "rep_reject"
)

// registerModerationCallbacks wires the inline decision buttons shown by
// /pending. Only the configured admin may press them.
func (a *App) registerModerationCallbacks(reg *tg.Registry) error {
	decide := func(status string) tele.HandlerFunc {
		return func(c tele.Context) error {
			if admin := a.cfg.Core.Telegram.AdminID; admin != 0 && c.Sender().ID != admin {
				return nil
			}
			ctx := helpers.BuildContext(c)
			id, err := callbacks.PayloadInt64(c)
			if err != nil {
				return helpers.SendText(c, a.text(c, "errors.generic"))
			}
			var derr error
			key := "admin.confirm.ok"
			if status == models.ReportStatusConfirmed {
				derr = a.reports.Confirm(ctx, id)
			} else {
				derr = a.reports.Reject(ctx, id)
				key = "admin.reject.ok"
			}
			if derr != nil {
				return helpers.SendText(c, a.text(c, "errors.generic"))
			}
			return helpers.SendText(c, fmt.Sprintf(a.text(c, key), id))
		}
	}
	if err := reg.RegisterCallback(cbReportConfirm, decide(models.ReportStatusConfirmed)); err != nil {
		return err
	}
	return reg.RegisterCallback(cbReportReject, decide(models.ReportStatusRejected))
}

func (a *App) decideReport(status string) tele.HandlerFunc {
	usage, ok := map[string][2]string{
		models.ReportStatusConfirmed: {"admin.confirm.usage", "admin.confirm.ok"},
		models.ReportStatusRejected:  {"admin.reject.usage", "admin.reject.ok"},
	}[status]
	if !ok {
		return nil
	}
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
		if err != nil {
			return helpers.SendText(c, a.text(c, usage[0]))
		}
		var derr error
		if status == models.ReportStatusConfirmed {
			derr = a.reports.Confirm(ctx, id)
		} else {
			derr = a.reports.Reject(ctx, id)
		}
		if errors.Is(derr, storage.ErrNotFound) {
			return helpers.SendText(c, a.text(c, usage[0]))
		}
		if derr != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, fmt.Sprintf(a.text(c, usage[1]), id))
	}
}

func (a *App) cmdGuarantorAdd(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	fields := strings.Fields(c.Message().Payload)
	if len(fields) == 0 {
		return helpers.SendText(c, a.text(c, "admin.guarantor.usage"))
	}
	username := fields[0]
	title := strings.Join(fields[1:], " ")
	if err := a.guarantors.Add(ctx, username, title, c.Sender().ID); err != nil {
		return helpers.SendText(c, a.text(c, "admin.guarantor.usage"))
	}
	return helpers.SendText(c, fmt.Sprintf(a.text(c, "admin.guarantor.added"),
		service.NormalizeUsername(username)))
}

func (a *App) cmdGuarantorDel(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	username := strings.TrimSpace(c.Message().Payload)
	if username == "" {
		return helpers.SendText(c, a.text(c, "admin.guarantor.del.usage"))
	}
	if err := a.guarantors.Remove(ctx, username); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return helpers.SendText(c, a.text(c, "admin.guarantor.del.usage"))
		}
		return helpers.SendText(c, a.text(c, "errors.generic"))
	}
	return helpers.SendText(c, fmt.Sprintf(a.text(c, "admin.guarantor.removed"),
		service.NormalizeUsername(username)))
}

func (a *App) setBan(banned bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		id, err := strconv.ParseInt(strings.TrimSpace(c.Message().Payload), 10, 64)
		if err != nil {
			return helpers.SendText(c, a.text(c, "admin.ban.usage"))
		}
		if err := a.users.SetBanned(ctx, id, banned); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		key := "admin.ban.ok"
		if !banned {
			key = "admin.unban.ok"
		}
		return helpers.SendText(c, fmt.Sprintf(a.text(c, key), id))
	}
}

func (a *App) cmdBanword(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	chat := c.Chat()
	fields := strings.Fields(c.Message().Payload)
	if chat == nil || len(fields) == 0 {
		return helpers.SendText(c, a.text(c, "admin.banword.usage"))
	}
	switch fields[0] {
	case "add":
		if len(fields) < 2 {
			return helpers.SendText(c, a.text(c, "admin.banword.usage"))
		}
		if err := a.chats.AddBannedWord(ctx, chat.ID, fields[1]); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, a.text(c, "admin.banword.added"))
	case "del":
		if len(fields) < 2 {
			return helpers.SendText(c, a.text(c, "admin.banword.usage"))
		}
		if err := a.chats.RemoveBannedWord(ctx, chat.ID, fields[1]); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, a.text(c, "admin.banword.removed"))
	case "list":
		words, err := a.chats.BannedWords(ctx, chat.ID)
		if err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		if len(words) == 0 {
			return helpers.SendText(c, a.text(c, "admin.banword.empty"))
		}
		return helpers.SendText(c, strings.Join(words, ", "))
	}
	return helpers.SendText(c, a.text(c, "admin.banword.usage"))
}

func (a *App) cmdAutoMessage(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	chat := c.Chat()
	payload := strings.TrimSpace(c.Message().Payload)
	if chat == nil || payload == "" {
		return helpers.SendText(c, a.text(c, "admin.automsg.usage"))
	}
	switch {
	case payload == "on":
		if err := a.chats.SetAutoMessageEnabled(ctx, chat.ID, true); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, a.text(c, "admin.automsg.on"))
	case payload == "off":
		if err := a.chats.SetAutoMessageEnabled(ctx, chat.ID, false); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, a.text(c, "admin.automsg.off"))
	case strings.HasPrefix(payload, "set "):
		text := strings.TrimSpace(strings.TrimPrefix(payload, "set "))
		if err := a.chats.SetAutoMessage(ctx, chat.ID, text, true); err != nil {
			return helpers.SendText(c, a.text(c, "errors.generic"))
		}
		return helpers.SendText(c, a.text(c, "admin.automsg.saved"))
	}
	return helpers.SendText(c, a.text(c, "admin.automsg.usage"))
}

// parseTarget recognizes "@username" or a bare numeric id.
func parseTarget(arg string) (flow.Identity, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "@") && len(arg) > 1 {
		return flow.Identity{Username: strings.TrimPrefix(arg, "@")}, true
	}
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
		return flow.Identity{UserID: id}, true
	}
	return flow.Identity{}, false
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
