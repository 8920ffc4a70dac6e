package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/alphasignal/internal/domain"
)

// catchUpDays is how many completed days each run covers, so a missed run is
// healed by the next one. Archived days are skipped cheaply.
const catchUpDays = 3

// Archiver copies completed days of signals to cold storage on a schedule.
type Archiver struct {
	archiver domain.SignalArchiver
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(archiver domain.SignalArchiver, logger *slog.Logger) *Archiver {
	return &Archiver{
		archiver: archiver,
		logger:   logger.With(slog.String("component", "archiver")),
		now:      time.Now,
	}
}

// Run archives the last catchUpDays completed UTC days, oldest first.
func (a *Archiver) Run(ctx context.Context) error {
	today := a.now().UTC().Truncate(24 * time.Hour)
	var total int64
	for i := catchUpDays; i >= 1; i-- {
		day := today.AddDate(0, 0, -i)
		n, err := a.archiver.ArchiveDay(ctx, day)
		if err != nil {
			return fmt.Errorf("archiving %s: %w", day.Format(time.DateOnly), err)
		}
		if n > 0 {
			a.logger.Info("archived signals",
				slog.String("day", day.Format(time.DateOnly)),
				slog.Int64("count", n),
			)
		}
		total += n
	}
	a.logger.Info("archive run complete", slog.Int64("signals_archived", total))
	return nil
}

// RunCron runs the archiver on a cron schedule until the context is cancelled.
// Expressions use the standard 5-field format
// "minute hour day-of-month month day-of-week"; fields accept "*", lists,
// ranges and "*/step".
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := cron.next(a.now().UTC())
		if err != nil {
			return err
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting", slog.Time("next_run", next), slog.Duration("wait", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField is the set of values one field matches; nil means any.
type cronField map[int]bool

func (f cronField) matches(v int) bool {
	return f == nil || f[v]
}

// parseCronField parses "*", "5", "1,15", "1-5" or "*/10" within [lo, hi].
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return nil, nil
	}
	out := cronField{}
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid cron step %q", part)
			}
			step, part = n, base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("invalid cron range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("cron value %q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			out[v] = true
		}
	}
	return out, nil
}

type parsedCron struct {
	minute, hour, dayOfMonth, month, dayOfWeek cronField
}

func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return parsedCron{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}
	return parsedCron{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// next returns the first matching minute strictly after after, searching up
// to one year ahead.
func (c parsedCron) next(after time.Time) (time.Time, error) {
	candidate := after.Truncate(time.Minute).Add(time.Minute)
	limit := after.Add(366 * 24 * time.Hour)
	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("no matching cron time within one year")
}
