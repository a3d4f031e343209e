package webdriver

import (
	"time"

	"github.com/pkg/errors"
)

// WaitFor polls condition against wd every interval until it returns true,
// returns an error, or timeout elapses. The condition is always evaluated at
// least once, so a zero timeout amounts to a single check.
//
// Drivers use it to implement WaitWithTimeoutAndInterval.
func WaitFor(wd WebDriver, condition Condition, timeout, interval time.Duration) error {
	startTime := time.Now()

	for {
		done, err := condition(wd)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if elapsed := time.Since(startTime); elapsed >= timeout {
			return errors.Wrapf(ErrWaitTimeout, "after %v", elapsed)
		}
		time.Sleep(interval)
	}
}
