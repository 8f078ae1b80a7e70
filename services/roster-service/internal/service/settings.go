package service

import (
	"fmt"
	"time"

	"github.com/burakmert236/volei-list/common/config"
	"github.com/burakmert236/volei-list/common/utils"
)

// MaxNameLength matches the width of the name column in the first version
// of the roster.
const MaxNameLength = 100

type Settings struct {
	Location        *time.Location
	ActiveCapacity  int
	WaitingCapacity int

	// OpensAt and ClosesAt are offsets from local midnight. Both ends are
	// inclusive.
	OpensAt  time.Duration
	ClosesAt time.Duration
}

func DefaultSettings(loc *time.Location) Settings {
	return Settings{
		Location:        loc,
		ActiveCapacity:  22,
		WaitingCapacity: 50,
		OpensAt:         12 * time.Hour,
		ClosesAt:        23*time.Hour + 59*time.Minute,
	}
}

func SettingsFromConfig(cfg config.RosterConfig) (Settings, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return Settings{}, fmt.Errorf("roster.timezone: %w", err)
	}

	opensAt, err := utils.ParseTimeOfDay(cfg.OpensAt)
	if err != nil {
		return Settings{}, fmt.Errorf("roster.opens_at: %w", err)
	}

	closesAt, err := utils.ParseTimeOfDay(cfg.ClosesAt)
	if err != nil {
		return Settings{}, fmt.Errorf("roster.closes_at: %w", err)
	}

	return Settings{
		Location:        loc,
		ActiveCapacity:  cfg.ActiveCapacity,
		WaitingCapacity: cfg.WaitingCapacity,
		OpensAt:         opensAt,
		ClosesAt:        closesAt,
	}, nil
}

// windowContains reports whether tod falls inside the registration window.
// A window whose close is before its open wraps past midnight.
func (s Settings) windowContains(tod time.Duration) bool {
	if s.OpensAt <= s.ClosesAt {
		return tod >= s.OpensAt && tod <= s.ClosesAt
	}
	return tod >= s.OpensAt || tod <= s.ClosesAt
}

func formatTimeOfDay(d time.Duration) string {
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	sec := int((d % time.Minute) / time.Second)
	if sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
