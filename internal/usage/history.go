// Package usage accounts for the time the device spends powered on.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/fanpanel/internal/model"
)

// HistoryKey is the storage key holding the JSON day→minutes map.
const HistoryKey = "hist"

const dayLayout = "2006-01-02"

// ErrNegativeMinutes is returned by Bump for negative input.
var ErrNegativeMinutes = errors.New("minutes must be >= 0")

// KV is the persistence the history needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Summary holds the minutes recorded today and yesterday.
type Summary struct {
	Today     int
	Yesterday int
}

// History stores accumulated on-minutes per local calendar day.
type History struct {
	kv     KV
	now    func() time.Time
	logger zerolog.Logger
}

// NewHistory creates a history backed by kv. A nil clock uses time.Now.
func NewHistory(kv KV, now func() time.Time, logger zerolog.Logger) *History {
	if now == nil {
		now = time.Now
	}
	return &History{
		kv:     kv,
		now:    now,
		logger: logger.With().Str("component", "usage-history").Logger(),
	}
}

// DayKey derives the bucket key for t from the local calendar date.
func DayKey(t time.Time) string {
	return t.Local().Format(dayLayout)
}

// ParseDayKey parses a key produced by DayKey in the local zone.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, key, time.Local)
}

// Bump adds minutes to today's bucket and persists the full map.
func (h *History) Bump(ctx context.Context, minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("bump %d: %w", minutes, ErrNegativeMinutes)
	}
	hist, err := h.load(ctx)
	if err != nil {
		return err
	}
	key := DayKey(h.now())
	hist[key] += minutes
	if err := h.save(ctx, hist); err != nil {
		return err
	}
	h.logger.Debug().Str("day", key).Int("added", minutes).Int("total", hist[key]).Msg("Usage recorded")
	return nil
}

// Reset clears all persisted history.
func (h *History) Reset(ctx context.Context) error {
	if err := h.kv.Delete(ctx, HistoryKey); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Summary returns today's and yesterday's totals.
func (h *History) Summary(ctx context.Context) (Summary, error) {
	hist, err := h.load(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := h.now()
	return Summary{
		Today:     hist[DayKey(now)],
		Yesterday: hist[DayKey(now.AddDate(0, 0, -1))],
	}, nil
}

// Days returns every recorded day in ascending order. Keys that do not parse are skipped.
func (h *History) Days(ctx context.Context) ([]model.DayUsage, error) {
	hist, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	days := make([]model.DayUsage, 0, len(hist))
	for key, minutes := range hist {
		day, err := ParseDayKey(key)
		if err != nil {
			h.logger.Warn().Str("day", key).Msg("Skipping unparseable history key")
			continue
		}
		days = append(days, model.DayUsage{Day: day, Key: key, Minutes: minutes})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Day.Before(days[j].Day)
	})
	return days, nil
}

func (h *History) load(ctx context.Context) (map[string]int, error) {
	raw, ok, err := h.kv.Get(ctx, HistoryKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	hist := map[string]int{}
	if !ok {
		return hist, nil
	}
	if err := json.Unmarshal(raw, &hist); err != nil {
		h.logger.Warn().Err(err).Msg("Stored history is unreadable; starting fresh")
		return map[string]int{}, nil
	}
	return hist, nil
}

func (h *History) save(ctx context.Context, hist map[string]int) error {
	data, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := h.kv.Put(ctx, HistoryKey, data); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
