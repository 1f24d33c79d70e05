package rankingqueue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	rankingdomain "github.com/Black-And-White-Club/photoseason/app/modules/ranking/domain"
	"github.com/riverqueue/river"
)

// ErrInvalidSchedule indicates a schedule spec that cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule")

// ParseSchedule parses a periodic schedule evaluated in loc:
//
//	@every <duration>  fixed interval, e.g. "@every 2h"
//	@daily HH:MM       once a day at the given wall-clock time
//	@monthly           at the first instant of each calendar month
func ParseSchedule(spec string, loc *time.Location) (river.PeriodicSchedule, error) {
	if loc == nil {
		loc = time.UTC
	}
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}

	switch fields[0] {
	case "@every":
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q: want \"@every <duration>\"", ErrInvalidSchedule, spec)
		}
		d, err := time.ParseDuration(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
		}
		if d < time.Minute {
			return nil, fmt.Errorf("%w: %q: interval below one minute", ErrInvalidSchedule, spec)
		}
		return river.PeriodicInterval(d), nil

	case "@daily":
		clock := "00:00"
		if len(fields) == 2 {
			clock = fields[1]
		} else if len(fields) > 2 {
			return nil, fmt.Errorf("%w: %q: want \"@daily HH:MM\"", ErrInvalidSchedule, spec)
		}
		t, err := time.Parse("15:04", clock)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
		}
		return dailySchedule{hour: t.Hour(), minute: t.Minute(), loc: loc}, nil

	case "@monthly":
		if len(fields) != 1 {
			return nil, fmt.Errorf("%w: %q: @monthly takes no arguments", ErrInvalidSchedule, spec)
		}
		return monthlySchedule{loc: loc}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, spec)
}

type dailySchedule struct {
	hour, minute int
	loc          *time.Location
}

func (s dailySchedule) Next(t time.Time) time.Time {
	local := t.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(t) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

type monthlySchedule struct {
	loc *time.Location
}

func (s monthlySchedule) Next(t time.Time) time.Time {
	_, end := rankingdomain.MonthBounds(rankingdomain.YearMonthOf(t, s.loc), s.loc)
	return end
}
