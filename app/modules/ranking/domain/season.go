package rankingdomain

import (
	"errors"
	"fmt"
	"time"
)

// SeasonID identifies a ranking season in "YYYY-MM" form.
type SeasonID string

func (id SeasonID) String() string { return string(id) }

// ErrInvalidSeasonID is returned when a season id is not in "YYYY-MM" form.
var ErrInvalidSeasonID = errors.New("invalid season id")

// YearMonth is a civil calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// SeasonID returns the canonical id of the season covering ym.
func (ym YearMonth) SeasonID() SeasonID {
	return GenerateSeasonID(ym.Year, ym.Month)
}

// GenerateSeasonID formats year and month as "YYYY-MM".
func GenerateSeasonID(year int, month time.Month) SeasonID {
	return SeasonID(fmt.Sprintf("%d-%02d", year, int(month)))
}

// NextSeasonYearMonth returns the calendar month after (year, month).
// December rolls over to January of the following year.
func NextSeasonYearMonth(year int, month time.Month) YearMonth {
	if month == time.December {
		return YearMonth{Year: year + 1, Month: time.January}
	}
	return YearMonth{Year: year, Month: month + 1}
}

// YearMonthOf returns the civil month t falls in when observed from loc.
func YearMonthOf(t time.Time, loc *time.Location) YearMonth {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return YearMonth{Year: local.Year(), Month: local.Month()}
}

// MonthBounds returns the half-open interval [start, end) covering ym in loc.
func MonthBounds(ym YearMonth, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	next := NextSeasonYearMonth(ym.Year, ym.Month)
	start = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, loc)
	end = time.Date(next.Year, next.Month, 1, 0, 0, 0, 0, loc)
	return start, end
}

// ParseSeasonID parses a "YYYY-MM" season id.
func ParseSeasonID(id string) (YearMonth, error) {
	if len(id) != len("2006-01") {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidSeasonID, id)
	}
	t, err := time.Parse("2006-01", id)
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidSeasonID, id)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}
