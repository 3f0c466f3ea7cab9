package metered

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	var km keyedMutex
	var counter int

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("user_1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestKeyedMutexStripesAreStable(t *testing.T) {
	for _, key := range []string{"", "user_1", "user_2", "a-long-user-identifier"} {
		if stripeFor(key) != stripeFor(key) {
			t.Errorf("stripe for %q not stable", key)
		}
		if stripeFor(key) >= lockStripes {
			t.Errorf("stripe for %q out of range", key)
		}
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	var km keyedMutex

	// Hold one key's stripe and take a key on a different stripe; this
	// must not block.
	a, b := "user_a", "user_b"
	if stripeFor(a) == stripeFor(b) {
		t.Skip("keys collide on one stripe")
	}

	unlockA := km.Lock(a)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(b)
		unlockB()
		close(done)
	}()
	<-done
}
