package context

import (
	"cmp"
	"sort"

	"github.com/fieldrt/fieldrt/internal/export"
	"github.com/fieldrt/fieldrt/internal/trace"
)

// pending is a raw insertion recorded before Freeze reconciles it; Batched
// may hold several pending entries for the same id (later ones win).
type pending[ID cmp.Ordered] struct {
	from   ID
	export *export.Export
	metric float64
}

// Batched is the "batched" context variant: inserts simply append; the
// Freeze step sorts and deduplicates by id (keeping the latest insert per
// id), then truncates to hood size keeping the lowest metrics, tie-broken
// by id ascending.
type Batched[ID cmp.Ordered] struct {
	pending   []pending[ID]
	threshold float64
	live      []Entry[ID] // populated by Freeze
	selfID    ID
	haveSelf  bool
}

// NewBatched returns an empty Batched context.
func NewBatched[ID cmp.Ordered]() *Batched[ID] {
	return &Batched[ID]{}
}

func (c *Batched[ID]) Insert(fromID ID, e *export.Export, metric, threshold float64, hoodSize int) {
	if metric >= threshold {
		return
	}
	c.pending = append(c.pending, pending[ID]{from: fromID, export: e, metric: metric})
}

func (c *Batched[ID]) Freeze(hoodSize int, selfID ID) {
	c.selfID = selfID
	c.haveSelf = true

	// Deduplicate by id, keeping the last insert recorded for each id
	// (later entries in c.pending win, matching "adds or replaces").
	byID := make(map[ID]pending[ID], len(c.pending))
	for _, p := range c.pending {
		byID[p.from] = p
	}
	// Fold in whatever survived the previous cycle's live set that was not
	// overwritten this round (e.g. self's own entry before it is replaced
	// in step 4 of the round procedure, or neighbours that simply did not
	// send this round and should keep aging rather than disappear).
	for _, e := range c.live {
		if _, ok := byID[e.From]; !ok {
			byID[e.From] = pending[ID]{from: e.From, export: e.Export, metric: e.Metric}
		}
	}
	// self must survive reconciliation even on the very first Freeze, before
	// any Insert/ReplaceSelf has ever named selfID.
	if _, ok := byID[selfID]; !ok {
		byID[selfID] = pending[ID]{from: selfID, export: export.New(), metric: 0}
	}

	all := make([]pending[ID], 0, len(byID))
	for _, p := range byID {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].metric != all[j].metric {
			return all[i].metric < all[j].metric
		}
		return all[i].from < all[j].from
	})

	kept := make([]pending[ID], 0, min(len(all), hoodSize))
	selfKept := false
	for _, p := range all {
		if len(kept) >= hoodSize {
			if p.from == selfID {
				// self is pinned: displace the current worst non-self
				// entry to make room, rather than dropping self.
				if len(kept) > 0 && kept[len(kept)-1].from != selfID {
					kept = kept[:len(kept)-1]
					kept = append(kept, p)
					selfKept = true
				}
			}
			continue
		}
		kept = append(kept, p)
		if p.from == selfID {
			selfKept = true
		}
	}
	if !selfKept {
		if sp, ok := byID[selfID]; ok {
			if len(kept) >= hoodSize && len(kept) > 0 {
				kept[len(kept)-1] = sp
			} else {
				kept = append(kept, sp)
			}
		}
	}

	entries := make([]Entry[ID], 0, len(kept))
	for _, p := range kept {
		entries = append(entries, Entry[ID]{From: p.from, Export: p.export, Metric: p.metric})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].From < entries[j].From })
	c.live = entries
	c.pending = nil
}

func (c *Batched[ID]) Unfreeze(selfNow float64, policy Policy[ID], threshold float64) {
	kept := make([]Entry[ID], 0, len(c.live))
	for _, e := range c.live {
		if e.From == c.selfID {
			kept = append(kept, e)
			continue
		}
		e.Metric = policy.Update(e.Metric, selfNow)
		if e.Metric >= threshold {
			continue
		}
		kept = append(kept, e)
	}
	c.live = kept
	// live carries forward into the next Freeze's reconciliation so
	// unacknowledged-but-not-yet-evicted neighbours keep aging.
	c.pending = nil
}

func (c *Batched[ID]) Align(key trace.Hash) []ID {
	out := make([]ID, 0, len(c.live))
	for _, e := range c.live {
		if e.From == c.selfID || export.HasAny(e.Export, key) {
			out = append(out, e.From)
		}
	}
	return out
}

func (c *Batched[ID]) Entries() []Entry[ID] {
	return c.live
}

func (c *Batched[ID]) ReplaceSelf(selfID ID, e *export.Export, metric float64) {
	for i, entry := range c.live {
		if entry.From == selfID {
			c.live[i].Export = e
			c.live[i].Metric = metric
			return
		}
	}
	c.live = append(c.live, Entry[ID]{From: selfID, Export: e, Metric: metric})
	sort.Slice(c.live, func(i, j int) bool { return c.live[i].From < c.live[j].From })
}
