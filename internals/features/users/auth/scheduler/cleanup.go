package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

type blacklistCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type sweeper interface {
	Sweep() int
}

// RegisterSessionCleanup menjadwalkan pembersihan token_blacklist yang sudah
// kadaluarsa dan sweep cache sesi memory.
func RegisterSessionCleanup(c *cron.Cron, spec string, repo blacklistCleaner, memory sweeper) error {
	if spec == "" {
		spec = "@every 1h"
	}
	_, err := c.AddFunc(spec, func() {
		RunSessionCleanup(repo, memory)
	})
	if err != nil {
		return err
	}
	log.Printf("[CLEANUP] session cleanup scheduled=%q", spec)
	return nil
}

func RunSessionCleanup(repo blacklistCleaner, memory sweeper) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if repo != nil {
		n, err := repo.CleanupExpired(ctx)
		switch {
		case err != nil:
			log.Printf("[CLEANUP ERROR] Gagal hapus token kadaluarsa: %v", err)
		case n > 0:
			log.Printf("[CLEANUP] %d token kadaluarsa dihapus", n)
		default:
			log.Debug("[CLEANUP] Tidak ada token yang memenuhi syarat dihapus")
		}
	}
	if memory != nil {
		if n := memory.Sweep(); n > 0 {
			log.Printf("[CLEANUP] %d entri cache sesi kadaluarsa dibuang", n)
		}
	}
}
