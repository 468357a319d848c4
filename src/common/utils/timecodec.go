package utils

import (
	"errors"
	"fmt"
	"time"
)

const (
	feedTimeLayout = "0601021504"
	feedDateLayout = "060102"
	feedHourLayout = "15"
)

var ErrMalformedTimestamp = errors.New("malformed feed timestamp")

// ParseFeedTime parses the feed's YYMMDDHHMM timestamps. They carry no zone,
// so the wall clock is returned in UTC. An empty string is an absent time.
func ParseFeedTime(ts string) (*time.Time, error) {
	if ts == "" {
		return nil, nil
	}

	if len(ts) != len(feedTimeLayout) {
		return nil, fmt.Errorf("%w: %q has %d characters, want %d", ErrMalformedTimestamp, ts, len(ts), len(feedTimeLayout))
	}
	for _, r := range ts {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("%w: %q contains non-digit %q", ErrMalformedTimestamp, ts, r)
		}
	}

	t, err := time.ParseInLocation(feedTimeLayout, ts, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedTimestamp, ts, err)
	}

	return &t, nil
}

func FormatFeedTime(t time.Time) string {
	return t.Format(feedTimeLayout)
}

// FeedDate and FeedHour build the date/hour segments of a plan request.
func FeedDate(t time.Time) string {
	return t.Format(feedDateLayout)
}

func FeedHour(t time.Time) string {
	return t.Format(feedHourLayout)
}
