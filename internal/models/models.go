// Package models defines the persistent domain records of the
// scam-checker service.
package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Report statuses as stored in the database.
const (
	ReportStatusPending   = "pending"
	ReportStatusConfirmed = "confirmed"
	ReportStatusRejected  = "rejected"
)

// Report kinds: a scam report filed against a target, or an appeal filed
// by a flagged user.
const (
	ReportKindReport = "report"
	ReportKindAppeal = "appeal"
)

// Media kinds as stored in report_media.
const (
	MediaKindPhoto = "photo"
	MediaKindVideo = "video"
)

// User is a known bot user.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	Lang       string    `db:"lang"`
	IsBanned   bool      `db:"is_banned"`
	CreatedAt  time.Time `db:"created_at"`
}

// Report is a submitted scam report or appeal awaiting moderator review.
type Report struct {
	ID               int64          `db:"id"`
	Kind             string         `db:"kind"`
	TargetUsername   sql.NullString `db:"target_username"`
	TargetTelegramID sql.NullInt64  `db:"target_telegram_id"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	ReporterID       int64          `db:"reporter_id"`
	CreatedAt        time.Time      `db:"created_at"`
}

// TargetLabel renders the reported subject for summaries and channel posts.
func (r *Report) TargetLabel() string {
	switch {
	case r.TargetUsername.Valid && r.TargetTelegramID.Valid:
		return fmt.Sprintf("@%s (id %d)", r.TargetUsername.String, r.TargetTelegramID.Int64)
	case r.TargetUsername.Valid:
		return "@" + r.TargetUsername.String
	case r.TargetTelegramID.Valid:
		return fmt.Sprintf("id %d", r.TargetTelegramID.Int64)
	}
	return "?"
}

// ReportMedia is one evidence attachment of a report, ordered by Position.
type ReportMedia struct {
	ReportID int64  `db:"report_id"`
	Kind     string `db:"kind"`
	FileID   string `db:"file_id"`
	Position int    `db:"position"`
}

// Guarantor is a trusted-vendor allowlist entry.
type Guarantor struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Title     string    `db:"title"`
	AddedBy   int64     `db:"added_by"`
	CreatedAt time.Time `db:"created_at"`
}

// ChatConfig holds per-chat moderation settings.
type ChatConfig struct {
	ChatID             int64          `db:"chat_id"`
	BannedWords        pq.StringArray `db:"banned_words"`
	AutoMessage        string         `db:"auto_message"`
	AutoMessageEnabled bool           `db:"auto_message_enabled"`
}
