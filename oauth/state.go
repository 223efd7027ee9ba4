package oauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"time"

	apperrors "github.com/ESHWARGEEK/CodeLearn/internal/errors"
)

const (
	// StateKey and StateTimestampKey are the ephemeral store keys for a pending flow.
	StateKey          = "oauth_state"
	StateTimestampKey = "oauth_state_timestamp"

	// StateWindow is how long a generated state stays acceptable.
	StateWindow = 5 * time.Minute

	stateBytes = 32
)

// Reason is the query-string value reported to the login page when a callback is rejected.
type Reason string

const (
	ReasonStateNotFound   Reason = "state_not_found"
	ReasonStateMismatch   Reason = "state_mismatch"
	ReasonStateExpired    Reason = "state_expired"
	ReasonMissingCode     Reason = "missing_code"
	ReasonMissingState    Reason = "missing_state"
	ReasonInvalidProvider Reason = "invalid_provider"
	ReasonOAuthFailed     Reason = "oauth_failed"
)

// StateError reports why a returned state was rejected.
type StateError struct {
	Reason Reason
}

func (e *StateError) Error() string {
	return "oauth state rejected: " + string(e.Reason)
}

// State is a freshly generated CSRF token for one authorization round trip.
type State struct {
	Value    string
	IssuedAt time.Time
}

// GenerateState returns 32 random bytes, hex encoded.
func GenerateState(now time.Time) (State, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return State{}, apperrors.Wrapf(err, "generating oauth state")
	}
	return State{Value: hex.EncodeToString(b), IssuedAt: now}, nil
}

// ValidateState checks a returned state against the stored value and its unix-millisecond
// timestamp. A state exactly window old is still accepted. Failures are *StateError.
func ValidateState(returned, stored, storedTimestamp string, now time.Time, window time.Duration) error {
	if stored == "" {
		return &StateError{Reason: ReasonStateNotFound}
	}
	if subtle.ConstantTimeCompare([]byte(returned), []byte(stored)) != 1 {
		return &StateError{Reason: ReasonStateMismatch}
	}

	issuedAt, err := strconv.ParseInt(storedTimestamp, 10, 64)
	if err != nil {
		return &StateError{Reason: ReasonStateExpired}
	}
	if now.UnixMilli()-issuedAt > window.Milliseconds() {
		return &StateError{Reason: ReasonStateExpired}
	}
	return nil
}

// Store is the ephemeral per-client storage holding a pending state.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// Guard issues states into a Store and consumes them exactly once.
type Guard struct {
	window time.Duration
	now    func() time.Time
}

type GuardOption func(*Guard)

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(window time.Duration, opts ...GuardOption) *Guard {
	g := &Guard{window: window, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Begin generates a state and records it with its issue time.
func (g *Guard) Begin(store Store) (State, error) {
	st, err := GenerateState(g.now())
	if err != nil {
		return State{}, err
	}
	store.Set(StateKey, st.Value)
	store.Set(StateTimestampKey, strconv.FormatInt(st.IssuedAt.UnixMilli(), 10))
	return st, nil
}

// Consume reads and deletes the stored state before comparing, so a replayed
// callback always fails with state_not_found.
func (g *Guard) Consume(store Store, returned string) error {
	stored, _ := store.Get(StateKey)
	timestamp, _ := store.Get(StateTimestampKey)
	store.Delete(StateKey)
	store.Delete(StateTimestampKey)

	return ValidateState(returned, stored, timestamp, g.now(), g.window)
}
