package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed unique id, e.g. "mv-9f2c...". The prefix makes ids
// self-describing in logs and exported snapshots.
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
