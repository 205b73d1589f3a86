package room

import "time"

// Credit-bucket rate limiter (spec.md §4.3.6): each Player accrues credits
// at a fixed rate — 10000 bytes/sec, equivalently one token per 100µs — and
// spends them on outbound bytes, up to a 65536 burst cap. Grounded on the
// token-bucket shape used by rustyguts-bken/server's per-client send
// throttling, adapted to spec.md's precise suppress-vs-sleep split instead
// of the teacher's unconditional drop.
const (
	creditsPerSecond = 10000
	creditCap        = 65536
)

// refillCredits tops up p's bucket based on elapsed time since the last
// refill, capped at creditCap so an idle player cannot bank unlimited
// allowance. Recovering any positive balance clears flowHold, letting a
// Player that slept through a shortfall resume ordinary spends.
func (p *Player) refillCredits(now time.Time) {
	if p.lastRefill.IsZero() {
		p.lastRefill = now
		p.credits = creditCap
		p.flowHold = false
		return
	}
	elapsed := now.Sub(p.lastRefill)
	if elapsed <= 0 {
		return
	}
	p.lastRefill = now
	p.credits += int64(elapsed.Seconds() * creditsPerSecond)
	if p.credits > creditCap {
		p.credits = creditCap
	}
	if p.credits > 0 {
		p.flowHold = false
	}
}

// spend attempts to deduct n credits. A bucket with enough balance pays
// immediately. An underfilled bucket follows spec.md §4.3.6 literally: if
// the Player is already under flow-hold, the send is suppressed this tick
// (returns false, nothing deducted); otherwise the caller sleeps
// (n - credits) * 100µs — the time the bucket would have taken to cover the
// send — and the send still goes through, draining the balance to zero.
// Token balance never goes negative.
func (p *Player) spend(n int) bool {
	if p.credits >= int64(n) {
		p.credits -= int64(n)
		p.flowHold = p.credits <= 0
		return true
	}
	if p.flowHold {
		return false
	}
	deficit := int64(n) - p.credits
	time.Sleep(time.Duration(deficit) * 100 * time.Microsecond)
	p.credits = 0
	p.flowHold = true
	return true
}
