package scheduler

import (
	"context"

	apperrors "github.com/burakmert236/volei-list/common/errors"
	"github.com/burakmert236/volei-list/common/logger"
)

// Resetter is the part of the roster service the scheduler drives.
type Resetter interface {
	Reset(ctx context.Context) (int, *apperrors.AppError)
}

type ResetScheduler struct {
	resetter Resetter
	logger   *logger.Logger
}

func NewResetScheduler(resetter Resetter, logger *logger.Logger) *ResetScheduler {
	return &ResetScheduler{
		resetter: resetter,
		logger:   logger,
	}
}

func (rs *ResetScheduler) ResetRoster(ctx context.Context) error {
	rs.logger.Info("Resetting daily roster...")

	removed, err := rs.resetter.Reset(ctx)
	if err != nil {
		rs.logger.Error("Failed to reset roster", "error", err)
		return err
	}

	rs.logger.Info("Daily roster reset", "removed", removed)
	return nil
}
