package document

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/storage"
)

// StaleReason is written to documents stuck in processing past the deadline
const StaleReason = "processing timed out"

// Maintenance sweep defaults
const (
	DefaultSweepSchedule = "@hourly"
	DefaultStaleAfter    = time.Hour
	DefaultRetainDeleted = 7 * 24 * time.Hour
)

// MaintenanceOptions configure the periodic storage sweeps
type MaintenanceOptions struct {
	Schedule      string        // cron expression, default @hourly
	StaleAfter    time.Duration // processing runs older than this fail
	RetainDeleted time.Duration // soft-deleted rows older than this are purged
	SweepTimeout  time.Duration // per-sweep deadline, default 5m
}

// Maintenance runs the storage hygiene sweeps on a schedule: documents
// stuck in processing are failed, and soft-deleted documents and chats
// past the retention window are hard-purged.
type Maintenance struct {
	storage       *storage.Storage
	schedule      string
	staleAfter    time.Duration
	retainDeleted time.Duration
	sweepTimeout  time.Duration
	cron          *cron.Cron
}

// NewMaintenance creates the sweeper, fixing zero options to defaults
func NewMaintenance(s *storage.Storage, options MaintenanceOptions) (*Maintenance, error) {
	if s == nil {
		return nil, fmt.Errorf("maintenance requires a storage backend")
	}
	if options.Schedule == "" {
		options.Schedule = DefaultSweepSchedule
	}
	if options.StaleAfter <= 0 {
		options.StaleAfter = DefaultStaleAfter
	}
	if options.RetainDeleted <= 0 {
		options.RetainDeleted = DefaultRetainDeleted
	}
	if options.SweepTimeout <= 0 {
		options.SweepTimeout = 5 * time.Minute
	}
	return &Maintenance{
		storage:       s,
		schedule:      options.Schedule,
		staleAfter:    options.StaleAfter,
		retainDeleted: options.RetainDeleted,
		sweepTimeout:  options.SweepTimeout,
	}, nil
}

// Start schedules the sweeps
func (m *Maintenance) Start() error {
	m.cron = cron.New()
	if _, err := m.cron.AddFunc(m.schedule, m.run); err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	m.cron.Start()
	log.Info("[Maintenance] scheduled %q, stale after %s, retain deleted %s",
		m.schedule, m.staleAfter, m.retainDeleted)
	return nil
}

// Stop halts the schedule and waits for a running sweep
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
}

func (m *Maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), m.sweepTimeout)
	defer cancel()
	m.Sweep(ctx)
}

// Sweep runs one pass of every sweep. Failures are logged per sweep and
// never abort the others.
func (m *Maintenance) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	failed, err := m.storage.Documents.FailStale(ctx, now.Add(-m.staleAfter), StaleReason)
	if err != nil {
		log.Error("[Maintenance] fail stale documents: %s", err.Error())
	} else if failed > 0 {
		log.Warn("[Maintenance] failed %d stale documents", failed)
	}

	cutoff := now.Add(-m.retainDeleted)
	docs, err := m.storage.Documents.PurgeDeleted(ctx, cutoff)
	if err != nil {
		log.Error("[Maintenance] purge documents: %s", err.Error())
	}
	chats, err := m.storage.Chats.PurgeDeleted(ctx, cutoff)
	if err != nil {
		log.Error("[Maintenance] purge chats: %s", err.Error())
	}
	if docs > 0 || chats > 0 {
		log.Info("[Maintenance] purged %d documents, %d chats", docs, chats)
	}
}
