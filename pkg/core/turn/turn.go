// Package turn implements half-duplex turn arbitration for a live avatar
// call: deciding, from two independent signal sources, whether the avatar
// currently holds the floor, and deriving the local microphone state from
// that single answer.
//
// The two sources are the transport's active-speaker roster and explicit
// out-of-band signaling events. Both write to the same state with an
// immediate-off / debounced-on asymmetry: the instant either source reports
// the avatar talking, the floor flips to the avatar (and the mic goes off);
// when the avatar goes silent, the floor returns to the user only after a
// hold-off window with no further avatar speech. A start from either source
// cancels any pending hold-off from either source.
package turn

import (
	"strings"
	"sync"
	"time"
)

// Turn says who holds the floor for audio input.
type Turn int

const (
	// UserTurn means the local user may transmit audio.
	UserTurn Turn = iota
	// AvatarTurn means the remote avatar is speaking and the mic is gated off.
	AvatarTurn
)

// String returns a human-readable turn name.
func (t Turn) String() string {
	switch t {
	case UserTurn:
		return "user"
	case AvatarTurn:
		return "avatar"
	default:
		return "unknown"
	}
}

// DefaultHoldoff is the silence window observed before handing the floor
// back to the user after the avatar stops speaking.
const DefaultHoldoff = 700 * time.Millisecond

// Config configures an Arbiter.
type Config struct {
	// LocalIdentity is the local participant's identity in the room. Roster
	// entries matching it never count as avatar speech.
	LocalIdentity string

	// ClientIdentity is an optional synthetic placeholder identity some
	// transports report for the publishing client. Also excluded from the
	// roster check.
	ClientIdentity string

	// Holdoff is the post-speech silence window. Zero means DefaultHoldoff.
	Holdoff time.Duration
}

// Arbiter tracks who holds the floor. All methods are safe for concurrent
// use; the hold-off timer is owned by the arbiter and cancelled on every
// state re-entry and on Cancel.
type Arbiter struct {
	cfg Config

	mu         sync.Mutex
	turn       Turn
	manualMute bool
	timer      *time.Timer

	onChange func(turn Turn, micEnabled bool)
}

// New creates an arbiter starting in UserTurn.
func New(cfg Config) *Arbiter {
	if cfg.Holdoff <= 0 {
		cfg.Holdoff = DefaultHoldoff
	}
	return &Arbiter{cfg: cfg}
}

// SetOnChange registers the callback fired whenever the turn or the derived
// mic state changes. The callback runs on the goroutine that caused the
// change (or the timer goroutine for debounced transitions) and must not
// call back into the arbiter.
func (a *Arbiter) SetOnChange(fn func(turn Turn, micEnabled bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Turn returns the current floor holder.
func (a *Arbiter) Turn() Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turn
}

// AvatarTalking reports whether the avatar currently holds the floor.
func (a *Arbiter) AvatarTalking() bool {
	return a.Turn() == AvatarTurn
}

// MicEnabled reports the derived microphone state: on only while the user
// holds the floor and has not muted themselves.
func (a *Arbiter) MicEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.micEnabledLocked()
}

// State returns the floor holder and the derived mic state as one atomic
// snapshot.
func (a *Arbiter) State() (Turn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.turn, a.micEnabledLocked()
}

func (a *Arbiter) micEnabledLocked() bool {
	return a.turn == UserTurn && !a.manualMute
}

// HandleSpeakers ingests an active-speaker roster update (source A). The
// avatar is considered speaking when the roster contains any identity other
// than the local user's (and the synthetic client placeholder, when set).
func (a *Arbiter) HandleSpeakers(identities []string) {
	talking := false
	for _, id := range identities {
		if id == a.cfg.LocalIdentity {
			continue
		}
		if a.cfg.ClientIdentity != "" && id == a.cfg.ClientIdentity {
			continue
		}
		talking = true
		break
	}
	if talking {
		a.avatarStarted()
	} else {
		a.avatarStopped()
	}
}

// HandleSignal ingests an out-of-band signaling event type (source B).
// It tolerates naming variants ("avatar_start_talking", "agent_talking_start",
// "AVATAR_STOP_TALKING", ...). Returns false when the event type is not a
// talk-state signal and was ignored.
func (a *Arbiter) HandleSignal(eventType string) bool {
	start, stop := classifySignal(eventType)
	switch {
	case start:
		a.avatarStarted()
	case stop:
		a.avatarStopped()
	default:
		return false
	}
	return true
}

// classifySignal matches talk-state signal variants. The event must name the
// remote party (avatar/agent) and a talk verb; the direction comes from a
// start or stop marker.
func classifySignal(eventType string) (start, stop bool) {
	s := strings.ToLower(eventType)
	if !strings.Contains(s, "avatar") && !strings.Contains(s, "agent") {
		return false, false
	}
	if !strings.Contains(s, "talk") && !strings.Contains(s, "speak") {
		return false, false
	}
	switch {
	case strings.Contains(s, "start") || strings.Contains(s, "begin"):
		return true, false
	case strings.Contains(s, "stop") || strings.Contains(s, "end"):
		return false, true
	}
	return false, false
}

// SetManualMute applies the user's mute toggle. Honored only while the user
// holds the floor; while the avatar is talking the toggle is a no-op and
// false is returned.
func (a *Arbiter) SetManualMute(muted bool) bool {
	a.mu.Lock()
	if a.turn != UserTurn {
		a.mu.Unlock()
		return false
	}
	if a.manualMute == muted {
		a.mu.Unlock()
		return true
	}
	a.manualMute = muted
	turn, mic, fn := a.turn, a.micEnabledLocked(), a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(turn, mic)
	}
	return true
}

// Cancel stops any pending hold-off timer without firing callbacks. Called
// on session teardown.
func (a *Arbiter) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopTimerLocked()
}

// avatarStarted flips the floor to the avatar immediately and cancels any
// pending hold-off (last-write-wins for the "on" transition).
func (a *Arbiter) avatarStarted() {
	a.mu.Lock()
	a.stopTimerLocked()
	if a.turn == AvatarTurn {
		a.mu.Unlock()
		return
	}
	a.turn = AvatarTurn
	turn, mic, fn := a.turn, a.micEnabledLocked(), a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(turn, mic)
	}
}

// avatarStopped schedules the return of the floor to the user after the
// hold-off. A stop while a hold-off is already pending does not extend it;
// periodic avatar-free roster updates would otherwise postpone the handback
// forever.
func (a *Arbiter) avatarStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.turn != AvatarTurn || a.timer != nil {
		return
	}
	a.timer = time.AfterFunc(a.cfg.Holdoff, a.holdoffExpired)
}

func (a *Arbiter) holdoffExpired() {
	a.mu.Lock()
	a.timer = nil
	if a.turn != AvatarTurn {
		a.mu.Unlock()
		return
	}
	a.turn = UserTurn
	turn, mic, fn := a.turn, a.micEnabledLocked(), a.onChange
	a.mu.Unlock()

	if fn != nil {
		fn(turn, mic)
	}
}

func (a *Arbiter) stopTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
