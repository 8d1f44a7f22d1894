// Package queue implements the rotation of the posting queue and the
// loading of raw item files into it.
//
// After a successful post the head item is moved to a random position in
// the back half of the queue, so recently posted items do not come back
// soon while the order of everything else is preserved.
package queue
