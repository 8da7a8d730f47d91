package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// sqliteBusy is SQLITE_BUSY. WAL plus busy_timeout covers most contention;
// the writer retry handles the rest.
const sqliteBusy = 5

var writeBackoff = []time.Duration{
	10 * time.Millisecond,
	20 * time.Millisecond,
	40 * time.Millisecond,
	80 * time.Millisecond,
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) && coded.Code()&0xff == sqliteBusy {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs write and retries it while SQLite reports the database
// as busy.
func retryOnBusy(ctx context.Context, write func() error) error {
	err := write()
	for _, delay := range writeBackoff {
		if !isSQLiteBusy(err) {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		err = write()
	}
	return err
}
