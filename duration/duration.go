// Package duration parses the human readable spans used by backlog settings,
// such as "4 days" or "1 hour".
package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned for any text outside the "<amount> <unit>" grammar.
var ErrInvalidDuration = errors.New("duration: invalid time format")

// Pattern is the grammar accepted by Parse. Config validation uses it before
// values ever reach the parser.
var Pattern = regexp.MustCompile(`^\d+ (minute|hour|day|week)s?$`)

const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var units = map[string]time.Duration{
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    Day,
	"weeks":   Week,
}

// Parse converts text like "12 hours" into a time.Duration.
func Parse(text string) (time.Duration, error) {
	parts := strings.Split(text, " ")
	if len(parts) != 2 {
		return 0, invalid(text)
	}
	amount, unit := parts[0], parts[1]

	n, err := strconv.Atoi(amount)
	if err != nil || n < 0 {
		return 0, invalid(text)
	}

	if !strings.HasSuffix(unit, "s") {
		unit += "s"
	}
	d, ok := units[unit]
	if !ok {
		return 0, invalid(text)
	}

	if int64(n) > math.MaxInt64/int64(d) {
		return 0, invalid(text)
	}
	return time.Duration(n) * d, nil
}

// MustParse is Parse for constants known to be valid.
func MustParse(text string) time.Duration {
	d, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return d
}

// Validate reports whether text matches Pattern.
func Validate(text string) error {
	if !Pattern.MatchString(text) {
		return invalid(text)
	}
	return nil
}

func invalid(text string) error {
	return fmt.Errorf("%w %q", ErrInvalidDuration, text)
}
