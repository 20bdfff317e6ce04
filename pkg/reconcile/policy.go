package reconcile

import (
	"fmt"
	"time"
)

// Mode selects what happens after a cycle ends in APPROVED or DECLINED.
type Mode string

const (
	// ModePersist keeps the terminal state on screen until a new cycle supersedes it.
	ModePersist Mode = "persist"
	// ModeAutoReset clears the session a fixed delay after the terminal state is entered.
	ModeAutoReset Mode = "auto"
)

// DefaultResetDelay is the auto-reset delay used when none is configured.
const DefaultResetDelay = 5 * time.Second

// Policy is the reset configuration the reconciler consults on terminal transitions.
type Policy struct {
	Mode  Mode
	Delay time.Duration
}

// DefaultPolicy returns the persist policy.
func DefaultPolicy() Policy {
	return Policy{Mode: ModePersist, Delay: DefaultResetDelay}
}

// AutoReset returns an auto-reset policy with the given delay.
func AutoReset(delay time.Duration) Policy {
	return Policy{Mode: ModeAutoReset, Delay: delay}
}

// ParseMode converts a config or flag value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePersist, "":
		return ModePersist, nil
	case ModeAutoReset:
		return ModeAutoReset, nil
	default:
		return "", fmt.Errorf("unknown reset mode %q (want %q or %q)", s, ModePersist, ModeAutoReset)
	}
}

func (p Policy) autoReset() bool {
	return p.Mode == ModeAutoReset
}

func (p Policy) delay() time.Duration {
	if p.Delay <= 0 {
		return DefaultResetDelay
	}
	return p.Delay
}
