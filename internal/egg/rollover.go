package egg

import (
	"log"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Notifier receives the daily report once per rollover. Delivery failure is
// logged and never aborts the rollover.
type Notifier interface {
	DailyReport(date string, counts map[string]int, total int) error
}

// Scheduler fires the rollover once per local calendar day at local
// midnight. The cron runner recomputes the next fire time from the wall
// clock after every cycle, so process suspension or clock changes
// self-correct instead of drifting or double-firing.
type Scheduler struct {
	counter       *Counter
	aggregator    *Aggregator
	registry      *Registry
	notifier      Notifier
	loc           *time.Location
	retentionDays int

	cron *rcron.Cron
}

func NewScheduler(counter *Counter, aggregator *Aggregator, registry *Registry, notifier Notifier, loc *time.Location, retentionDays int) *Scheduler {
	return &Scheduler{
		counter:       counter,
		aggregator:    aggregator,
		registry:      registry,
		notifier:      notifier,
		loc:           loc,
		retentionDays: retentionDays,
	}
}

func (s *Scheduler) Start() error {
	s.cron = rcron.New(rcron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc("0 0 * * *", func() {
		s.RunRollover(time.Now())
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[rollover] scheduled daily at midnight %s (retention %d days)", s.loc, s.retentionDays)
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunRollover executes one rollover for the local day that ended at now:
// atomically snapshot-and-reset the live counts, persist the snapshot as
// yesterday's rollup, notify the report sink, and prune expired rollups. The
// snapshot and the reset happen under one counter lock acquisition, so an
// increment arriving during the remaining steps lands in the new day's counts
// instead of being wiped. Each step fails independently; no failure is fatal
// to the scheduler loop.
func (s *Scheduler) RunRollover(now time.Time) {
	date := LocalMidnight(now, s.loc).AddDate(0, 0, -1).Format(DateLayout)
	snapshot := s.counter.SnapshotAndReset()
	total := 0
	for _, count := range snapshot {
		total += count
	}
	log.Printf("[rollover] rolling over %s: %d types, total %d", date, len(snapshot), total)

	if err := s.aggregator.SnapshotAndRoll(date, snapshot); err != nil {
		log.Printf("[rollover] rollup write for %s failed: %v", date, err)
	}

	if s.notifier != nil {
		if err := s.notifier.DailyReport(date, snapshot, total); err != nil {
			log.Printf("[rollover] daily report delivery failed: %v", err)
		}
	}

	// Re-persist type metadata so a lost write earlier in the day cannot
	// leave a registered type without its row.
	if err := s.registry.PersistAll(); err != nil {
		log.Printf("[rollover] re-persist types failed: %v", err)
	}

	if deleted, err := s.aggregator.Prune(s.retentionDays, s.loc); err != nil {
		log.Printf("[rollover] prune failed: %v", err)
	} else if deleted > 0 {
		log.Printf("[rollover] pruned %d rollup rows older than %d days", deleted, s.retentionDays)
	}
}
