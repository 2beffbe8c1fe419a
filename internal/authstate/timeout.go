package authstate

import "time"

// policyState is the lifecycle of one escalation timer.
type policyState int

const (
	policyIdle policyState = iota
	policyArmed
	policyDisarmed
	policyFired
)

// escalationPolicy guards one async resolution stage. While Armed, a
// timer races the real resolution; whichever settles first wins.
// Fired forces the dependent state to a terminal value exactly once,
// then latches: the policy cannot re-arm until the machine goes through
// a full session transition, preventing oscillation between loading and
// forced-complete.
//
// All methods are called only from the machine's event loop, so no
// locking is needed.
type escalationPolicy struct {
	name    string
	timeout time.Duration
	state   policyState
	timer   *time.Timer
}

func newEscalationPolicy(name string, timeout time.Duration) *escalationPolicy {
	return &escalationPolicy{name: name, timeout: timeout}
}

// arm starts the timer. fire is invoked from the timer goroutine and
// must only post an event to the machine's mailbox. Arming is refused
// after the policy has fired (the latch) and while already armed.
func (p *escalationPolicy) arm(fire func()) {
	if p.state == policyFired || p.state == policyArmed {
		return
	}
	p.state = policyArmed
	p.timer = time.AfterFunc(p.timeout, fire)
}

// disarm records that the dependent state resolved normally before the
// timer elapsed.
func (p *escalationPolicy) disarm() {
	if p.state != policyArmed {
		return
	}
	p.state = policyDisarmed
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// fired transitions to Fired if the policy is still armed. Returns
// false when the resolution won the race (the stale timer event must
// be ignored) or the policy already fired.
func (p *escalationPolicy) fired() bool {
	if p.state != policyArmed {
		return false
	}
	p.state = policyFired
	p.timer = nil
	return true
}

// reset returns the policy to Idle. Only a full session transition
// (login/logout) calls this.
func (p *escalationPolicy) reset() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.state = policyIdle
}

func (p *escalationPolicy) isFired() bool {
	return p.state == policyFired
}
