package retry

import (
	"time"

	"github.com/wb-go/wbf/retry"
)

// DefaultStrategy is used for repository and queue calls that are safe
// to retry.
var DefaultStrategy = retry.Strategy{
	Attempts: 3,
	Delay:    500 * time.Millisecond,
	Backoff:  2.0,
}
