package service

import (
	"fmt"
	"sort"

	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
)

const (
	timeOffset = domain.SCHEDULE_DATE_LENGTH
)

type DefaultScheduleResolver struct {
}

type candidate struct {
	key         string
	value       domain.ScheduleValue
	concrete    bool
	time        string
	specificity int
}

// Resolve builds the slots of a date. Every hour of the day is a slot, plus
// each concrete time-of-day found in an entry matching that date.
func (r *DefaultScheduleResolver) Resolve(entries map[string]domain.ScheduleValue, date string) []domain.ResolvedSlot {
	times := make(map[string]struct{}, 24)
	for h := 0; h < 24; h++ {
		times[fmt.Sprintf("%02d00", h)] = struct{}{}
	}
	for key := range entries {
		if len(key) != domain.SCHEDULE_KEY_LENGTH || !dateMatches(key, date) {
			continue
		}
		if tp := key[timeOffset:]; !hasWildcard(tp) {
			times[tp] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(times))
	for t := range times {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	slots := make([]domain.ResolvedSlot, 0, len(sorted))
	for _, t := range sorted {
		slot := domain.ResolvedSlot{Time: t}
		if best := bestCandidate(entries, date, t); best != nil {
			value := best.value
			key := best.key
			slot.Value = &value
			slot.Key = &key
		}
		slots = append(slots, slot)
	}
	return slots
}

// ValueAt returns the slot in effect at hhmm: the latest slot not after it.
func (r *DefaultScheduleResolver) ValueAt(slots []domain.ResolvedSlot, hhmm string) *domain.ResolvedSlot {
	var found *domain.ResolvedSlot
	for i := range slots {
		if slots[i].Time <= hhmm {
			found = &slots[i]
		}
	}
	return found
}

func bestCandidate(entries map[string]domain.ScheduleValue, date, slot string) *candidate {
	var best *candidate
	for key, value := range entries {
		c, ok := matchEntry(key, date, slot)
		if !ok {
			continue
		}
		c.value = value
		if best == nil || outranks(c, *best) {
			cc := c
			best = &cc
		}
	}
	return best
}

func matchEntry(key, date, slot string) (candidate, bool) {
	if len(key) != domain.SCHEDULE_KEY_LENGTH || !dateMatches(key, date) {
		return candidate{}, false
	}
	c := candidate{key: key, specificity: specificity(key)}
	tp := key[timeOffset:]
	switch {
	case isAllWildcard(tp):
		return c, true
	case !hasWildcard(tp):
		if tp > slot {
			return candidate{}, false
		}
		c.concrete = true
		c.time = tp
		return c, true
	default:
		// partially wildcarded time: positional match on the slot itself
		if !patternMatches(tp, slot) {
			return candidate{}, false
		}
		c.concrete = true
		c.time = slot
		return c, true
	}
}

func outranks(a, b candidate) bool {
	if a.concrete != b.concrete {
		return a.concrete
	}
	if a.concrete && a.time != b.time {
		return a.time > b.time
	}
	if a.specificity != b.specificity {
		return a.specificity > b.specificity
	}
	return a.key > b.key
}

func dateMatches(key, date string) bool {
	if len(date) != domain.SCHEDULE_DATE_LENGTH {
		return false
	}
	return patternMatches(key[:timeOffset], date)
}

func patternMatches(pattern, value string) bool {
	for i := 0; i < len(pattern); i++ {
		if pattern[i] != domain.SCHEDULE_WILDCARD && pattern[i] != value[i] {
			return false
		}
	}
	return true
}

func specificity(key string) int {
	n := 0
	for i := 0; i < len(key); i++ {
		if key[i] != domain.SCHEDULE_WILDCARD {
			n++
		}
	}
	return n
}

func hasWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == domain.SCHEDULE_WILDCARD {
			return true
		}
	}
	return false
}

func isAllWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != domain.SCHEDULE_WILDCARD {
			return false
		}
	}
	return true
}

// ensure interface compliance
var _ port.ScheduleResolver = (*DefaultScheduleResolver)(nil)
