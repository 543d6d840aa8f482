package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/m3rciful/scamcheck/core/logger"
	"github.com/m3rciful/scamcheck/internal/flow"
	"github.com/m3rciful/scamcheck/internal/models"
)

// ReportsStore is the persistence surface the report service needs.
type ReportsStore interface {
	Create(ctx context.Context, rep *models.Report, media []models.ReportMedia) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	ListPending(ctx context.Context, limit int) ([]models.Report, error)
	CountByTarget(ctx context.Context, username string, telegramID int64, status string) (int, error)
	MediaByReport(ctx context.Context, reportID int64) ([]models.ReportMedia, error)
}

// Publisher posts a stored report to the public channel.
type Publisher interface {
	Publish(ctx context.Context, rep *models.Report, media []models.ReportMedia) error
}

// CheckResult summarizes what is known about a target.
type CheckResult struct {
	Confirmed int
	Pending   int
	Guarantor bool
}

// Reports owns the report lifecycle: intake submissions, moderation
// decisions, and target lookups.
type Reports struct {
	store      ReportsStore
	guarantors *Guarantors
	pub        Publisher
}

func NewReports(store ReportsStore, guarantors *Guarantors, pub Publisher) *Reports {
	return &Reports{store: store, guarantors: guarantors, pub: pub}
}

// Sink adapts one report kind to the intake flow's submission contract.
func (s *Reports) Sink(kind string) flow.SinkFunc {
	return func(ctx context.Context, sub flow.Submission) error {
		_, err := s.Submit(ctx, kind, sub)
		return err
	}
}

// Submit persists a finished intake submission and then publishes it to
// the channel. Publication is best effort: the report is already stored,
// so a channel failure is logged and not surfaced to the reporter.
func (s *Reports) Submit(ctx context.Context, kind string, sub flow.Submission) (int64, error) {
	rep := &models.Report{
		Kind:        kind,
		Description: sub.Description,
		Status:      models.ReportStatusPending,
		ReporterID:  sub.ReporterID,
	}
	if sub.Target.Username != "" {
		rep.TargetUsername = sql.NullString{String: NormalizeUsername(sub.Target.Username), Valid: true}
	}
	if sub.Target.UserID != 0 {
		rep.TargetTelegramID = sql.NullInt64{Int64: sub.Target.UserID, Valid: true}
	}
	media := make([]models.ReportMedia, 0, len(sub.Media))
	for i, m := range sub.Media {
		media = append(media, models.ReportMedia{
			Kind:     string(m.Kind),
			FileID:   m.Ref,
			Position: i,
		})
	}
	id, err := s.store.Create(ctx, rep, media)
	if err != nil {
		logger.Error(ctx, "service.reports", "report create failed",
			slog.String("kind", kind),
			slog.Int64("user_id", sub.ReporterID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		return 0, err
	}
	rep.ID = id
	logger.Info(ctx, "service.reports", "report stored",
		slog.Int64("report_id", id),
		slog.String("kind", kind),
		slog.String("target", rep.TargetLabel()),
		slog.Int("media_count", len(media)))
	if s.pub != nil {
		if err := s.pub.Publish(ctx, rep, media); err != nil {
			logger.Warn(ctx, "service.reports", "channel publish failed",
				slog.Int64("report_id", id),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
		}
	}
	return id, nil
}

// Confirm marks a pending report as a verified scam.
func (s *Reports) Confirm(ctx context.Context, id int64) error {
	return s.decide(ctx, id, models.ReportStatusConfirmed)
}

// Reject dismisses a pending report.
func (s *Reports) Reject(ctx context.Context, id int64) error {
	return s.decide(ctx, id, models.ReportStatusRejected)
}

func (s *Reports) decide(ctx context.Context, id int64, status string) error {
	if err := s.store.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	logger.Info(ctx, "service.reports", "report decided",
		slog.Int64("report_id", id),
		slog.String("status", status))
	return nil
}

// Pending lists reports awaiting review, optionally only those created
// at or after since.
func (s *Reports) Pending(ctx context.Context, since time.Time, limit int) ([]models.Report, error) {
	reps, err := s.store.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return reps, nil
	}
	filtered := reps[:0]
	for _, r := range reps {
		if !r.CreatedAt.Before(since) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// Get returns one report with its media attachments.
func (s *Reports) Get(ctx context.Context, id int64) (*models.Report, []models.ReportMedia, error) {
	rep, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	media, err := s.store.MediaByReport(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rep, media, nil
}

// CheckTarget counts confirmed and pending reports against a target and
// looks the handle up on the guarantor allowlist.
func (s *Reports) CheckTarget(ctx context.Context, target flow.Identity) (CheckResult, error) {
	var res CheckResult
	username := NormalizeUsername(target.Username)
	var err error
	res.Confirmed, err = s.store.CountByTarget(ctx, username, target.UserID, models.ReportStatusConfirmed)
	if err != nil {
		return res, err
	}
	res.Pending, err = s.store.CountByTarget(ctx, username, target.UserID, models.ReportStatusPending)
	if err != nil {
		return res, err
	}
	if s.guarantors != nil && username != "" {
		res.Guarantor, err = s.guarantors.IsGuarantor(ctx, username)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
