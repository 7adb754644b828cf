package rx

import (
	"fmt"
	"math"
)

// Unbounded is the saturation point of a demand counter. A cumulative request
// of Unbounded (or any overflowing amount) switches the stream to effectively
// unlimited delivery.
const Unbounded = math.MaxInt64

// demand tracks how many items the subscriber has authorized but not yet
// received. It is a plain bookkeeping primitive: callers are responsible for
// the single-writer discipline (all access happens under the owning
// subscription's lock).
type demand struct {
	n int64
}

// request adds n to the counter, saturating at Unbounded instead of
// overflowing. A non-positive n is a protocol violation and is returned as an
// error for the owning stream to surface; the counter stays untouched.
func (d *demand) request(n int64) error {
	if n <= 0 {
		return fmt.Errorf("%w, got %d", ErrIllegalDemand, n)
	}
	if d.n > Unbounded-n {
		d.n = Unbounded
		return nil
	}
	d.n += n
	return nil
}

// take consumes k units of demand. Once saturated the counter stays
// unbounded, so emitted items no longer decrement it.
func (d *demand) take(k int64) {
	if d.n == Unbounded {
		return
	}
	if k > d.n {
		k = d.n
	}
	d.n -= k
}

func (d *demand) value() int64 {
	return d.n
}

func (d *demand) unbounded() bool {
	return d.n == Unbounded
}
