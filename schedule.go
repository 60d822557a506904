package ddns

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Schedule tells Run whether to repeat, and how long to wait between cycles.
// The zero value is Once.
type Schedule struct {
	interval time.Duration
}

// Once runs a single cycle.
var Once = Schedule{}

// Interval repeats a cycle every d. A non-positive d is the same as Once.
func Interval(d time.Duration) Schedule {
	if d < 0 {
		d = 0
	}
	return Schedule{interval: d}
}

func (s Schedule) IsOnce() bool { return s.interval == 0 }

func (s Schedule) Interval() time.Duration { return s.interval }

func (s Schedule) String() string {
	if s.IsOnce() {
		return "once"
	}
	return "every " + s.interval.String()
}

// Run runs ddnsClient right away and then according to schedule.
//
// In Once mode the result of the single cycle is returned.
// Otherwise Run blocks until ctx is done and returns the result of the last completed cycle,
// so a caller can report whether the latest state is good.
// A cycle cut short by ctx being done does not count as completed.
// A nil logger discards cycle errors.
func Run(ctx context.Context, ddnsClient DDNSClient, schedule Schedule, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = discard
	}
	err := runCycle(ctx, ddnsClient, logger)
	if schedule.IsOnce() {
		return err
	}

	timer := time.NewTimer(schedule.interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			logger.Info("stopping updates")
			return err
		}
		logger.Debugf("sleeping for %s until next update", schedule.interval)
		select {
		case <-ctx.Done():
			continue
		case <-timer.C:
		}
		logger.Debug("running scheduled update")
		cycleErr := runCycle(ctx, ddnsClient, logger)
		if ctx.Err() != nil {
			// interrupted by shutdown; the previous cycle is the last completed one
			continue
		}
		err = cycleErr
		timer.Reset(schedule.interval)
	}
}

func runCycle(ctx context.Context, ddnsClient DDNSClient, logger logrus.FieldLogger) error {
	start := time.Now()
	err := ddnsClient.RunDDNS(ctx)
	log := logger.WithField("duration", time.Since(start).Round(time.Millisecond))
	if err != nil {
		log.WithError(err).Error("update cycle failed")
		return err
	}
	log.Info("update cycle finished")
	return nil
}
