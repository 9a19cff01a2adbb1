package fsm

import (
	"math/rand"
	"sync"

	"github.com/Rhizomatica/hermes-modem-sub000/internal/event"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/modetable"
	"github.com/Rhizomatica/hermes-modem-sub000/internal/session"
)

// Config carries the local identity and listen intent the connection FSM
// needs but which do not belong on Session itself (they outlive any one
// connection). Unlike Session it has no single owner goroutine — the
// control-command pump writes it while the event loop and RXWorker read it
// — so its fields are private behind a mutex, mirroring OutboundBuffer's
// self-synchronizing pattern.
type Config struct {
	mu        sync.Mutex
	localCall string
	listening bool // sticky "should relisten after teardown" flag, set by LISTEN/STOP_LISTEN
}

// NewConfig builds a Config for the given local callsign.
func NewConfig(localCall string) *Config {
	return &Config{localCall: localCall}
}

func (c *Config) LocalCall() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localCall
}

func (c *Config) SetLocalCall(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localCall = call
}

func (c *Config) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

func (c *Config) SetListening(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = on
}

// randSessionID returns a non-zero 7-bit session id, per spec §3
// ("chosen randomly non-zero by caller").
func randSessionID() uint8 {
	for {
		v := uint8(rand.Intn(128))
		if v != 0 {
			return v
		}
	}
}

// Dispatch runs ev through the connection FSM (Level 1) and, if the session
// is CONNECTED, the data-flow FSM (Level 2), mutating sess in place and
// returning the effects the event loop must carry out. ev.NowMs carries the
// caller's monotonic clock reading in milliseconds.
func Dispatch(cfg *Config, sess *session.Session, ev event.Event) []Effect {
	effects, handled := dispatchLevel1(cfg, sess, ev)
	if handled {
		return effects
	}
	if sess.ConnState == session.ConnConnected {
		return dispatchLevel2(sess, ev)
	}
	return effects
}

func armRetry(sess *session.Session, now int64, mode modetable.Mode, retries int) {
	t := modetable.Lookup(mode)
	sess.ArmDeadline(now+t.RetryInterval.Milliseconds(), session.DeadlineRetry)
	sess.TxRetriesLeft = retries
}
