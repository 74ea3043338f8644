package main

import (
	"context"
	"fmt"
	"time"

	"agriquest/config"
	"agriquest/services"
	"agriquest/storage"
	"agriquest/tracker"
	"agriquest/utils"
	"agriquest/workers"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// engine is the client-side object graph over one local store.
type engine struct {
	store     *storage.LocalStore
	clock     clockwork.Clock
	logger    *zap.Logger
	timeout   time.Duration
	profiles  *tracker.ProfileStore
	events    *tracker.EventLog
	review    *tracker.ReviewWorkflow
	quests    *tracker.QuestController
	sync      *workers.ProfileSyncWorker
	reviewAPI *services.ReviewClient
}

func openEngine(cfg config.Client, logger *zap.Logger) (*engine, error) {
	store, err := storage.Open(cfg.StorePath)
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()
	httpClient := utils.NewHTTPClient(cfg.HTTPTimeout)
	reviewAPI := services.NewReviewClient(cfg.ServerURL, cfg.AdminKey, httpClient)

	profiles := tracker.NewProfileStore(store, clock, logger)
	events := tracker.NewEventLog(store, clock, logger, cfg.EventLogBytes)
	review := tracker.NewReviewWorkflow(reviewAPI, profiles, nil, logger)
	quests := tracker.NewQuestController(store, profiles, events, review, logger)
	worker := workers.NewProfileSyncWorker(profiles, services.NewProfileClient(cfg.ServerURL, httpClient),
		clock, logger, cfg.SyncMinBackoff, cfg.SyncMaxBackoff)

	return &engine{
		store:     store,
		clock:     clock,
		logger:    logger,
		timeout:   cfg.HTTPTimeout,
		profiles:  profiles,
		events:    events,
		review:    review,
		quests:    quests,
		sync:      worker,
		reviewAPI: reviewAPI,
	}, nil
}

// withEngine opens the engine for one command and closes it afterwards.
// The remote profile is merged in before fn runs, so local changes made by
// fn are never folded under an older remote copy.
func withEngine(ctx context.Context, fn func(e *engine) error) error {
	e, err := openEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	mountCtx, cancel := context.WithTimeout(ctx, e.timeout)
	e.sync.EnsureProfileBootstrap(mountCtx)
	cancel()
	return fn(e)
}

// close pushes queued changes once, best effort, and releases the store.
// It runs even when ctx was cancelled by a signal.
func (e *engine) close(ctx context.Context) {
	if len(e.profiles.Profile().Pending) > 0 {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		if !e.sync.Push(pushCtx) {
			e.logger.Info("[SYNC] authority unreachable, changes stay queued")
		}
		cancel()
	}
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close local store", zap.Error(err))
	}
}

// refreshEvidence reconciles evidence status once. A failure only means the
// status cache stays cold for this command.
func (e *engine) refreshEvidence(ctx context.Context) []tracker.Revocation {
	revoked, err := e.review.Reconcile(ctx)
	if err != nil {
		e.logger.Debug("[REVIEW] status refresh skipped", zap.Error(err))
		return nil
	}
	return revoked
}

func requireAdminKey() error {
	if cfg.AdminKey == "" {
		return fmt.Errorf("ADMIN_KEY is not set")
	}
	return nil
}
