package utils

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// WaitForGracefulShutdown blocks until SIGINT/SIGTERM arrives or ctx is done.
func WaitForGracefulShutdown(ctx context.Context) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseTimeOfDay(value string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}

	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}

	var offset time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || len(part) != 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("invalid time of day %q: want HH:MM", value)
		}
		offset += time.Duration(n) * units[i]
	}

	return offset, nil
}

// TimeOfDay returns the offset of t from its own local midnight.
func TimeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
