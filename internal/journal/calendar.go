package journal

import (
	"slices"
	"time"
)

// YearsWithTrades returns the distinct years holding at least one trade, ascending.
// An empty journal yields the current year so a calendar always has something to show.
func (s *Store) YearsWithTrades() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]struct{})
	for _, t := range s.trades {
		seen[t.Date.Year()] = struct{}{}
	}
	if len(seen) == 0 {
		return []int{s.now().Year()}
	}
	return sortedKeys(seen)
}

// MonthsWithTrades returns the distinct months of year holding at least one trade, ascending.
func (s *Store) MonthsWithTrades(year int) []time.Month {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[time.Month]struct{})
	for _, t := range s.trades {
		if t.Date.Year() == year {
			seen[t.Date.Month()] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// DaysWithTrades returns the distinct days of month in year holding at least one trade, ascending.
func (s *Store) DaysWithTrades(year int, month time.Month) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int]struct{})
	for _, t := range s.trades {
		y, m, d := t.Date.Date()
		if y == year && m == month {
			seen[d] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys[K int | time.Month](set map[K]struct{}) []K {
	out := make([]K, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
