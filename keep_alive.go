package mqttlite

import "time"

// keepAlive tracks outbound idleness for one connection. A PINGREQ is due
// once nothing has been sent for the interval, and at most one PINGREQ is
// outstanding at a time.
type keepAlive struct {
	interval    time.Duration
	pingTimeout time.Duration

	lastActivity time.Time
	pingSentAt   time.Time
	outstanding  bool
}

// start arms the timer once the session is accepted. Idleness is measured
// from the last recorded activity, normally the CONNECT itself. A zero
// interval disables the timer.
func (k *keepAlive) start(interval, pingTimeout time.Duration) {
	if pingTimeout <= 0 {
		pingTimeout = interval
	}
	k.interval = interval
	k.pingTimeout = pingTimeout
	k.outstanding = false
}

func (k *keepAlive) enabled() bool {
	return k.interval > 0
}

// activity records that a control packet was sent.
func (k *keepAlive) activity(now time.Time) {
	k.lastActivity = now
}

// due reports whether a PINGREQ should be sent now.
func (k *keepAlive) due(now time.Time) bool {
	return k.enabled() && !k.outstanding && now.Sub(k.lastActivity) >= k.interval
}

func (k *keepAlive) pingSent(now time.Time) {
	k.outstanding = true
	k.pingSentAt = now
	k.lastActivity = now
}

// expired reports whether the outstanding PINGREQ has gone unanswered for
// longer than the ping timeout.
func (k *keepAlive) expired(now time.Time) bool {
	return k.outstanding && now.Sub(k.pingSentAt) >= k.pingTimeout
}

// pong records a PINGRESP and returns the round trip time. It reports false
// for a PINGRESP nobody asked for.
func (k *keepAlive) pong(now time.Time) (time.Duration, bool) {
	if !k.outstanding {
		return 0, false
	}
	k.outstanding = false
	k.lastActivity = now
	return now.Sub(k.pingSentAt), true
}

func (k *keepAlive) stop() {
	*k = keepAlive{}
}
