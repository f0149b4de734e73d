package session

import (
	"testing"
	"time"
)

func TestPolicyDelayFormula(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 10}

	want := []time.Duration{
		1 * time.Second,  // attempt 1
		2 * time.Second,  // attempt 2
		4 * time.Second,  // attempt 3
		8 * time.Second,  // attempt 4
		16 * time.Second, // attempt 5
		30 * time.Second, // attempt 6, capped from 32s
		30 * time.Second, // attempt 7
	}
	for i, w := range want {
		if got := p.Delay(i + 1); got != w {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestPolicyDelayNonDecreasing(t *testing.T) {
	p := Policy{Base: 250 * time.Millisecond, Cap: 10 * time.Second, MaxAttempts: 20}

	prev := time.Duration(0)
	for n := 1; n <= 64; n++ {
		d := p.Delay(n)
		if d < prev {
			t.Fatalf("Delay(%d) = %v decreased from %v", n, d, prev)
		}
		if d > p.Cap {
			t.Fatalf("Delay(%d) = %v exceeds cap %v", n, d, p.Cap)
		}
		prev = d
	}
}

func TestPolicyDelayHugeAttemptDoesNotOverflow(t *testing.T) {
	p := DefaultPolicy()
	if got := p.Delay(1000); got != p.Cap {
		t.Fatalf("Delay(1000) = %v, want cap %v", got, p.Cap)
	}
}

func TestPolicyExhausted(t *testing.T) {
	p := Policy{Base: time.Second, Cap: 30 * time.Second, MaxAttempts: 10}
	if p.Exhausted(10) {
		t.Fatal("attempt 10 of 10 reported exhausted")
	}
	if !p.Exhausted(11) {
		t.Fatal("attempt 11 of 10 not reported exhausted")
	}
}
