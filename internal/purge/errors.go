package purge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// Remote errors are classified by wrapping one of these, so that errors.Is
// works on whatever the adapter returns.
var (
	// ErrPermissionDenied means the remote refused the operation.  Terminal
	// for history reads.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTransient is any other remote failure.  The run backs off and
	// continues.
	ErrTransient = errors.New("remote API error")
	// ErrUnavailable means the destination can't be located or has gone.
	ErrUnavailable = errors.New("destination unavailable")
)

// Kind is the kind of destination the caller asked for.
type Kind int

const (
	KindChannel Kind = iota
	KindDM
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindChannel:
		return "server channel"
	case KindDM:
		return "direct message"
	case KindGroup:
		return "group chat"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the kind name as given on the command line.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "channel", "chan", "thread", "":
		return KindChannel, nil
	case "dm", "direct":
		return KindDM, nil
	case "group", "gdm":
		return KindGroup, nil
	}
	return 0, fmt.Errorf("unknown destination kind: %q", s)
}

// UnavailableError is returned by a Resolver that could not open the
// destination.  The run never starts in this case.
type UnavailableError struct {
	Kind Kind
	ID   snowflake.ID
	Err  error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not locate %s %s", e.Kind, e.ID)
	}
	return fmt.Sprintf("could not locate %s %s: %s", e.Kind, e.ID, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrUnavailable
}
