// Package timeparse reads the --at times operators pass to job commands.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnrecognized is returned when no layout or phrase matches the input.
var ErrUnrecognized = errors.New("unrecognized time")

// layouts without a zone are read in the caller's location.
var localLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parser turns operator input into an instant.
type Parser struct {
	w *when.Parser
}

// NewParser creates a Parser that understands RFC 3339, plain dates, and
// English phrases such as "tomorrow 9am" or "next monday".
func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse resolves input relative to now, in loc. Empty input yields the zero
// time, which job commands treat as "now".
func (p *Parser) Parse(input string, now time.Time, loc *time.Location) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t, nil
		}
	}

	r, err := p.w.Parse(strings.ToLower(input), now.In(loc))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, input)
	}
	return r.Time.In(loc), nil
}
