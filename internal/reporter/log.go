package reporter

import (
	"context"
	"log/slog"

	"github.com/CZERTAINLY/Inspector/internal/model"
	"github.com/CZERTAINLY/Inspector/internal/observer"
	"github.com/CZERTAINLY/Inspector/internal/report"
)

// Log reports progress through the process logger.
type Log struct {
	observer.Base
	logger *slog.Logger
}

// NewLog logs through logger, or through the default logger when nil.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("reporter", model.ReporterLog)}
}

func (l *Log) BeforeAll(ctx context.Context, targets []model.Target) error {
	l.logger.InfoContext(ctx, "inspecting", "targets", len(targets))
	return nil
}

func (l *Log) Begin(ctx context.Context, id string) error {
	l.logger.DebugContext(ctx, "target started", "id", id)
	return nil
}

func (l *Log) Results(ctx context.Context, inspection model.Inspection, cfg model.Config) error {
	count := len(inspection.Issues)
	if report.Passes(count, cfg.Options) {
		l.logger.InfoContext(ctx, "target passed", "url", inspection.PageURL, "issues", count)
		return nil
	}
	l.logger.WarnContext(ctx, "target failed", "url", inspection.PageURL, "issues", count)
	for _, issue := range inspection.Issues {
		l.logger.DebugContext(ctx, "issue", "url", inspection.PageURL, "issue", issue)
	}
	return nil
}

func (l *Log) Error(ctx context.Context, err error, id string, _ model.Config) error {
	l.logger.ErrorContext(ctx, "target errored", "id", id, "err", err)
	return nil
}

func (l *Log) AfterAll(ctx context.Context, r *model.Report, _ model.Options) error {
	l.logger.InfoContext(ctx, "inspection finished",
		"total", r.Total,
		"passes", r.Passes,
		"errors", r.Errors,
		"passed", r.Passed(),
	)
	return nil
}
