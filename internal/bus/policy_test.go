package bus

import (
	"testing"
	"time"
)

func TestComputeBackoffExp(t *testing.T) {
	pol := RetryPolicy{Type: BackoffExp, Base: 200 * time.Millisecond, Cap: 1500 * time.Millisecond, Factor: 2.0, MaxAttempts: 5}
	b1 := computeBackoff(pol, 1)
	b2 := computeBackoff(pol, 2)
	b3 := computeBackoff(pol, 3)
	b4 := computeBackoff(pol, 4)
	if b1 != 200*time.Millisecond || b2 != 400*time.Millisecond || b3 != 800*time.Millisecond {
		t.Fatalf("unexpected backoffs: %v %v %v", b1, b2, b3)
	}
	if b4 != 1500*time.Millisecond {
		t.Fatalf("cap not applied: %v", b4)
	}
}

func TestComputeBackoffJitterWithinCap(t *testing.T) {
	pol := RetryPolicy{Type: BackoffExpJitter, Base: 200 * time.Millisecond, Cap: 1500 * time.Millisecond, Factor: 2.0, MaxAttempts: 5}
	for i := 0; i < 50; i++ {
		if b := computeBackoff(pol, 4); b < 0 || b > 1500*time.Millisecond {
			t.Fatalf("jitter out of range: %v", b)
		}
	}
}

func TestComputeBackoffFixedAndNone(t *testing.T) {
	fixed := RetryPolicy{Type: BackoffFixed, Base: 300 * time.Millisecond, Cap: 250 * time.Millisecond}
	if b := computeBackoff(fixed, 7); b != 250*time.Millisecond {
		t.Fatalf("fixed backoff: %v", b)
	}
	if b := computeBackoff(RetryPolicy{Type: BackoffNone, Base: time.Second}, 3); b != 0 {
		t.Fatalf("none backoff: %v", b)
	}
}
