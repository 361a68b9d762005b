package browser

import (
	"context"
	"time"
)

// waitStable polls count until two consecutive readings agree or timeout
// elapses. Running out of time is not an error; the caller takes the page as
// it is. Only a cancelled ctx or a failing count is reported.
func waitStable(ctx context.Context, count func() (int, error), timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last, err := count()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			n, err := count()
			if err != nil {
				return err
			}
			if n == last {
				return nil
			}
			last = n
		}
	}
}
