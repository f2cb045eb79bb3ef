package workflow

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("DoublesUntilCap", func(t *testing.T) {
		b := Backoff{Base: time.Second, Cap: 30 * time.Second}

		expected := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			16 * time.Second,
			30 * time.Second,
			30 * time.Second,
		}
		for i, want := range expected {
			attempt := i + 1
			if got := b.Delay(attempt); got != want {
				t.Errorf("attempt %d: expected %v, got %v", attempt, want, got)
			}
		}
	})

	t.Run("ZeroValueUsesDefaults", func(t *testing.T) {
		var b Backoff

		if got := b.Delay(1); got != DefaultBackoff.Base {
			t.Errorf("expected default base %v, got %v", DefaultBackoff.Base, got)
		}
		if got := b.Delay(20); got != DefaultBackoff.Cap {
			t.Errorf("expected default cap %v, got %v", DefaultBackoff.Cap, got)
		}
	})

	t.Run("NonPositiveAttempt", func(t *testing.T) {
		b := Backoff{Base: time.Second, Cap: 30 * time.Second}

		if got := b.Delay(0); got != time.Second {
			t.Errorf("expected base delay for attempt 0, got %v", got)
		}
	})
}
