package processor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newRequestID produces an opaque, unique, monotonically-trending id:
// a millisecond timestamp plus a random suffix, spec.md §4.D. It never
// reuses an id because the random component makes a collision
// astronomically unlikely even under a clock that doesn't advance
// between calls.
func newRequestID() string {
	return fmt.Sprintf("req-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}
