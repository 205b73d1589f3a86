package room

import (
	"testing"
	"time"
)

func TestRefillCreditsCapsAtBucketSize(t *testing.T) {
	p := &Player{}
	now := time.Now()
	p.refillCredits(now)
	if p.credits != creditCap {
		t.Fatalf("first refill should fill to cap, got %d", p.credits)
	}

	p.credits = 0
	p.lastRefill = now
	p.refillCredits(now.Add(10 * time.Second))
	if p.credits != creditCap {
		t.Fatalf("long idle gap should cap at %d, got %d", creditCap, p.credits)
	}
}

func TestSpendSleepsAndDeliversWhenNotYetHeld(t *testing.T) {
	p := &Player{credits: 10}
	start := time.Now()
	if !p.spend(20) {
		t.Fatalf("spend without a prior flow-hold should sleep and still succeed")
	}
	if elapsed := time.Since(start); elapsed < 10*100*time.Microsecond {
		t.Fatalf("spend should have slept for the credit deficit, elapsed %s", elapsed)
	}
	if p.credits != 0 {
		t.Fatalf("credits after a covered shortfall should be 0, got %d", p.credits)
	}
	if !p.flowHold {
		t.Fatalf("draining the bucket to cover a shortfall should set flowHold")
	}
}

func TestSpendSuppressesWhenAlreadyHeld(t *testing.T) {
	p := &Player{credits: 10, flowHold: true}
	if p.spend(20) {
		t.Fatalf("spend should be suppressed once flowHold is already set")
	}
	if p.credits != 10 {
		t.Fatalf("a suppressed spend must not deduct credits, got %d", p.credits)
	}
}

func TestSpendSucceedsWhenCreditsSuffice(t *testing.T) {
	p := &Player{credits: 100}
	if !p.spend(30) {
		t.Fatalf("spend should succeed when credits suffice")
	}
	if p.credits != 70 {
		t.Fatalf("credits = %d, want 70", p.credits)
	}
}
