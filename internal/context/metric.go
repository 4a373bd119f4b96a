package context

import "cmp"

// RetainPolicy is the "retain(T)" canonical metric policy from spec.md §3.
// The literal formula there is "m = T - (t_now - t_recv), decreasing each
// round, evict at m <= 0" — but Context's generic contract (§4.4) drops an
// entry when "metric >= threshold" and evicts the *maximum*-metric entry
// first on overflow, i.e. it treats a high metric as the worst one. Taking
// the spec's formula literally would make metric start at T (high, i.e.
// "worst") for a message just received and fall toward zero as it ages,
// exactly backwards from what both the hood-size eviction rule and the
// threshold check need.
//
// RetainPolicy instead tracks age directly — m starts at 0 when a message
// is received and grows by one each round it goes unrefreshed — which
// evicts under "metric >= threshold" at precisely T rounds unseen (the same
// condition spec.md's "m <= 0" describes, restated so the sign agrees with
// the generic contract) and makes the online heap's "evict max metric"
// rule correctly evict the stalest entry first.
type RetainPolicy[ID cmp.Ordered] struct {
	T float64
}

// NewRetainPolicy returns a Policy[ID] implementing retain(T): age starts
// at 0 on receipt and increases by one each round until it reaches T.
func NewRetainPolicy[ID cmp.Ordered](t float64) Policy[ID] {
	return RetainPolicy[ID]{T: t}
}

func (p RetainPolicy[ID]) Build(self ID, now float64, from ID, recvAt float64) float64 {
	return now - recvAt
}

func (p RetainPolicy[ID]) Update(m float64, selfNow float64) float64 {
	return m + 1
}

// MinkowskiPolicy is the "space-time Minkowski" canonical metric policy: it
// adds a distance term to the retain-style age, so neighbours that are
// both stale and far away cross the threshold — and get evicted — first.
type MinkowskiPolicy[ID cmp.Ordered] struct {
	T           float64
	SpaceWeight float64
	Distance    func(self, from ID) float64
}

// NewMinkowskiPolicy returns a Policy[ID] combining age with a distance
// term: m = (now - recvAt) + SpaceWeight*Distance(self, from).
func NewMinkowskiPolicy[ID cmp.Ordered](t, spaceWeight float64, distance func(self, from ID) float64) Policy[ID] {
	return MinkowskiPolicy[ID]{T: t, SpaceWeight: spaceWeight, Distance: distance}
}

func (p MinkowskiPolicy[ID]) Build(self ID, now float64, from ID, recvAt float64) float64 {
	m := now - recvAt
	if p.Distance != nil {
		m += p.SpaceWeight * p.Distance(self, from)
	}
	return m
}

func (p MinkowskiPolicy[ID]) Update(m float64, selfNow float64) float64 {
	return m + 1
}
