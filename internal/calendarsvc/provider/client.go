// Package provider fetches external busy intervals from the provider
// service. Lookups retry with backoff and degrade to an empty result on
// exhaustion: availability is computed from internal meetings alone rather
// than failing the whole request.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"meetsync/internal/timeslot"
)

const (
	maxAttempts = 3
	baseDelay   = 500 * time.Millisecond
)

type Client struct {
	baseURL   string
	http      *http.Client
	baseDelay time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 10 * time.Second},
		baseDelay: baseDelay,
	}
}

// timeRangeEvent mirrors the provider's timerange response entries.
type timeRangeEvent struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// BusyIntervals returns the calendar's external events overlapping
// [from, to) as intervals. All failures are absorbed: after the retry budget
// the error is logged and an empty list returned.
func (c *Client) BusyIntervals(ctx context.Context, calendarID uuid.UUID, from, to time.Time) []timeslot.Interval {
	reqURL := fmt.Sprintf("%s/api/events/calendar/%s/timerange?start=%s&end=%s",
		c.baseURL, calendarID,
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339)))

	delay := c.baseDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		intervals, err := c.fetch(ctx, reqURL)
		if err == nil {
			return intervals
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		slog.Warn("provider lookup failed, retrying", "error", err, "attempt", attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			slog.Error("provider lookup cancelled", "error", ctx.Err(), "calendar_id", calendarID)
			return nil
		}
		delay *= 2
	}

	slog.Error("provider unreachable, treating external busy intervals as empty",
		"error", lastErr, "calendar_id", calendarID)
	return nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]timeslot.Interval, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var events []timeRangeEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}

	intervals := make([]timeslot.Interval, len(events))
	for i, e := range events {
		intervals[i] = timeslot.Interval{Start: e.StartTime, End: e.EndTime}
	}
	return intervals, nil
}
