package purge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 10000
)

// allTokens are the words that mean "delete everything".
var allTokens = map[string]bool{
	"all":      true,
	"*":        true,
	"infinite": true,
}

// Target is the number of messages to delete in one run.  The zero value is
// unbounded.
type Target struct {
	limit int
}

// Bounded returns the target of n messages, n is clamped to [1, MaxLimit].
func Bounded(n int) Target {
	return Target{limit: clamp(n)}
}

// Unbounded returns the target that deletes until the history is exhausted.
func Unbounded() Target {
	return Target{}
}

// Limit returns the bound and true, or 0 and false if the target is
// unbounded.
func (t Target) Limit() (int, bool) {
	return t.limit, t.limit > 0
}

func (t Target) String() string {
	if t.limit == 0 {
		return "all"
	}
	return strconv.Itoa(t.limit)
}

func clamp(n int) int {
	return max(1, min(MaxLimit, n))
}

// ParseTarget interprets the command argument.  It never fails: empty or
// malformed input yields DefaultLimit, "all", "*" and "infinite" (any case)
// yield an unbounded target, numbers are clamped to [1, MaxLimit].
func ParseTarget(s string) Target {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Bounded(DefaultLimit)
	}
	if allTokens[s] {
		return Unbounded()
	}
	if !isDigits(s) {
		return Bounded(DefaultLimit)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// all digits, so it can only be out of range.
		return Bounded(MaxLimit)
	}
	return Bounded(n)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Errors returned by LimitField.
var (
	ErrNotNumber  = errors.New("numbers only")
	ErrOutOfRange = fmt.Errorf("enter 1-%d", MaxLimit)
)

// LimitField interprets the "amount" input of the interactive form.  If all
// is set, the target is unbounded regardless of raw.  Malformed or out of
// range input yields DefaultLimit together with an error, that the caller
// may show to the user; the returned Target is always usable.
func LimitField(raw string, all bool) (Target, error) {
	if all {
		return Unbounded(), nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Bounded(DefaultLimit), nil
	}
	if !isDigits(raw) {
		return Bounded(DefaultLimit), ErrNotNumber
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > MaxLimit {
		return Bounded(DefaultLimit), ErrOutOfRange
	}
	return Bounded(n), nil
}
