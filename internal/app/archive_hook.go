package app

import (
	"github.com/locu5t/civicomfy-go/internal/domain"
	"go.uber.org/zap"
)

// NewArchiveHook returns a FinishedHook that records every finished download
// in repo. Failures are logged and never reach the scheduler.
func NewArchiveHook(repo domain.ArchiveRepository, logger *zap.Logger) FinishedHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(d domain.Download) {
		if err := repo.Save(domain.NewArchiveRecord(&d)); err != nil {
			logger.Error("Failed to archive download",
				zap.String("id", d.ID),
				zap.Error(err))
		}
	}
}
