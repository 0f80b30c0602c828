// Package rollup merges per-store payment rows into one ledger and
// aggregates it. Everything here is pure.
package rollup

import (
	"sort"

	"github.com/smallbiznis/coursepay/internal/ledger/domain"
)

// Merge keeps one entry per natural key. The most recently updated row wins;
// on a tie the v2 row wins, then a terminal row over a pending one.
// Amounts are never summed across stores.
func Merge(sources ...[]domain.Entry) domain.Ledger {
	byKey := make(map[string]domain.Entry)
	for _, entries := range sources {
		for _, entry := range entries {
			if entry.NaturalKey == "" {
				continue
			}
			current, ok := byKey[entry.NaturalKey]
			if !ok || prefer(entry, current) {
				byKey[entry.NaturalKey] = entry
			}
		}
	}

	out := make([]domain.Entry, 0, len(byKey))
	for _, entry := range byKey {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].NaturalKey < out[j].NaturalKey
	})
	return domain.Ledger{Entries: out}
}

func prefer(candidate, current domain.Entry) bool {
	if !candidate.UpdatedAt.Equal(current.UpdatedAt) {
		return candidate.UpdatedAt.After(current.UpdatedAt)
	}
	if candidate.Store != current.Store {
		return candidate.Store == domain.StoreV2
	}
	if candidate.Status.IsTerminal() != current.Status.IsTerminal() {
		return candidate.Status.IsTerminal()
	}
	return false
}
