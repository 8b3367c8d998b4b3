package jobs

import (
	"context"
	"log"
	"time"

	"authserv/internal/repositories"

	"github.com/go-co-op/gocron/v2"
)

// CleanupScheduler purges expired authorization codes and tokens out of band.
// Protocol correctness never depends on these jobs; every read path checks
// expiry itself. This is storage hygiene only.
type CleanupScheduler struct {
	scheduler       gocron.Scheduler
	codes           repositories.CodeRepository
	tokens          repositories.TokenRepository
	graceMultiplier int
}

func NewCleanupScheduler(codes repositories.CodeRepository, tokens repositories.TokenRepository, graceMultiplier int) (*CleanupScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	cs := &CleanupScheduler{
		scheduler:       scheduler,
		codes:           codes,
		tokens:          tokens,
		graceMultiplier: graceMultiplier,
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(10*time.Minute),
		gocron.NewTask(cs.purgeExpiredCodes),
		gocron.WithName("expired-code-purge"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	if _, err := scheduler.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(cs.purgeExpiredTokens),
		gocron.WithName("expired-token-purge"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		return nil, err
	}

	return cs, nil
}

func (cs *CleanupScheduler) Start() {
	log.Printf("Starting credential cleanup scheduler")
	cs.scheduler.Start()
}

func (cs *CleanupScheduler) Stop() error {
	log.Printf("Stopping credential cleanup scheduler")
	return cs.scheduler.Shutdown()
}

func (cs *CleanupScheduler) purgeExpiredCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := cs.codes.DeleteExpired(ctx)
	if err != nil {
		log.Printf("Failed to purge expired authorization codes: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Purged %d expired authorization codes", deleted)
	}
}

func (cs *CleanupScheduler) purgeExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := cs.tokens.DeleteExpired(ctx, cs.graceMultiplier)
	if err != nil {
		log.Printf("Failed to purge expired tokens: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Purged %d expired tokens", deleted)
	}
}
