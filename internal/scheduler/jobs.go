package scheduler

import (
	"context"
	"time"

	"stayhub/internal/config"
)

const (
	JobOTPPurge = "otp_purge"
	JobBackup   = "backup"
	JobReindex  = "search_reindex"
)

type OTPPurger interface {
	PurgeExpiredOTPs(ctx context.Context) (int64, error)
}

type BackupRunner interface {
	Run(ctx context.Context) error
}

type Reindexer interface {
	Reindex(ctx context.Context) (int, error)
}

// Dependencies are the components maintenance jobs act on. Nil fields disable
// the matching job.
type Dependencies struct {
	OTPs   OTPPurger
	Backup BackupRunner
	Search Reindexer
}

// RegisterJobs adds the maintenance jobs enabled by cfg.
func RegisterJobs(s *Scheduler, cfg *config.Config, deps Dependencies) error {
	if deps.OTPs != nil {
		err := s.Add(JobOTPPurge, cfg.Scheduler.OTPPurge, time.Minute, func(ctx context.Context) error {
			n, err := deps.OTPs.PurgeExpiredOTPs(ctx)
			if err == nil && n > 0 {
				s.logger.Debug().Int64("deleted", n).Msg("expired verification codes purged")
			}
			return err
		})
		if err != nil {
			return err
		}
	}

	if deps.Backup != nil && cfg.Backup.Enabled {
		if err := s.Add(JobBackup, cfg.Backup.Schedule, 10*time.Minute, deps.Backup.Run); err != nil {
			return err
		}
	}

	if deps.Search != nil && cfg.Search.Enabled {
		err := s.Add(JobReindex, cfg.Scheduler.Reindex, 10*time.Minute, func(ctx context.Context) error {
			n, err := deps.Search.Reindex(ctx)
			if err == nil {
				s.logger.Info().Int("properties", n).Msg("search index rebuilt")
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
