package metered

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the number of mutexes in a keyedMutex. Distinct users on
// the same stripe contend, but correctness only requires that the same user
// always maps to the same stripe.
const lockStripes = 64

// keyedMutex serializes mutations per key (user id). All balance,
// subscription and usage mutations for one user run under that user's
// stripe; operations on different users proceed independently.
type keyedMutex struct {
	stripes [lockStripes]sync.Mutex
}

// Lock acquires the stripe for key and returns the unlock function.
func (k *keyedMutex) Lock(key string) func() {
	m := &k.stripes[stripeFor(key)]
	m.Lock()
	return m.Unlock
}

func stripeFor(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockStripes
}
