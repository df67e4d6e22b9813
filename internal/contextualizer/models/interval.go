package models

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// IntervalManual marks a resource as never eligible for automatic refresh.
const IntervalManual = "manual"

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

var ErrInvalidInterval = errors.New("invalid refresh interval")

// ParseRefreshInterval converts an interval spec of the form Nd, Nw or Nm
// into a duration. "manual" returns (0, true, nil); the boolean reports
// whether refresh is manual-only.
func ParseRefreshInterval(spec string) (time.Duration, bool, error) {
	spec = strings.TrimSpace(strings.ToLower(spec))
	if spec == IntervalManual {
		return 0, true, nil
	}
	if len(spec) < 2 {
		return 0, false, ErrInvalidInterval
	}

	n, err := strconv.Atoi(spec[:len(spec)-1])
	if err != nil || n <= 0 {
		return 0, false, ErrInvalidInterval
	}

	switch spec[len(spec)-1] {
	case 'd':
		return time.Duration(n) * day, false, nil
	case 'w':
		return time.Duration(n) * week, false, nil
	case 'm':
		return time.Duration(n) * month, false, nil
	default:
		return 0, false, ErrInvalidInterval
	}
}

// NeedsRefresh reports whether the resource is stale against its interval.
// Malformed intervals fall back to the supplied default rather than failing.
func (r *WebResource) NeedsRefresh(now time.Time, fallback time.Duration) bool {
	if r.LastFetched == nil {
		return true
	}

	interval, manual, err := ParseRefreshInterval(r.RefreshInterval)
	if manual {
		return false
	}
	if err != nil {
		interval = fallback
	}

	return now.Sub(*r.LastFetched) > interval
}
