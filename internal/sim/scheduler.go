package sim

import "container/heap"

// EventKind distinguishes the two kinds of event the global loop
// dispatches, grounded on the discrete-event loops of minesim's
// eventlist and inference-sim's ClusterEventQueue: a device's own round
// wake and a device crossing a cell boundary. Message delivery rides
// along with EventRound (see Connector.deliver) rather than being its
// own queued event.
//
// EventCellLeave sorts before EventRound so that, per spec.md §4.7's
// ordering rule ("on ties between events of different kinds for the
// same device, cell-leave fires first"), a device's membership is
// always current before its round runs at the same timestamp.
type EventKind int

const (
	EventCellLeave EventKind = iota
	EventRound
)

// Event is one entry in the global priority queue: a time, a kind, and
// the device it concerns. Seq is a submission sequence number so that
// two events scheduled for the same device at the same time and kind
// still order deterministically.
type Event[ID comparable] struct {
	Time float64
	Kind EventKind
	Who  ID
	Seq  uint64

	index int // heap bookkeeping
}

type eventQueue[ID comparable] []*Event[ID]

func (q eventQueue[ID]) Len() int { return len(q) }

func (q eventQueue[ID]) Less(i, j int) bool {
	if q[i].Time != q[j].Time {
		return q[i].Time < q[j].Time
	}
	if q[i].Kind != q[j].Kind {
		return q[i].Kind < q[j].Kind
	}
	return q[i].Seq < q[j].Seq
}

func (q eventQueue[ID]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *eventQueue[ID]) Push(x any) {
	e := x.(*Event[ID])
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *eventQueue[ID]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Scheduler is the global min-time event loop: every device round and
// cell-boundary crossing across the whole network is a single entry in
// one heap, drained in non-decreasing time order. Message delivery is not
// queued; it happens inside the round event.
type Scheduler[ID comparable] struct {
	q       eventQueue[ID]
	seq     uint64
	dequeue uint64
}

// NewScheduler returns an empty event loop.
func NewScheduler[ID comparable]() *Scheduler[ID] {
	s := &Scheduler[ID]{}
	heap.Init(&s.q)
	return s
}

// Schedule enqueues an event, stamping it with the next sequence number
// so that same-time, same-kind events still drain in submission order.
func (s *Scheduler[ID]) Schedule(t float64, kind EventKind, who ID) *Event[ID] {
	e := &Event[ID]{Time: t, Kind: kind, Who: who, Seq: s.seq}
	s.seq++
	heap.Push(&s.q, e)
	return e
}

// Len reports how many events remain queued.
func (s *Scheduler[ID]) Len() int { return s.q.Len() }

// Pop removes and returns the earliest-scheduled event, or nil if the
// queue is empty.
func (s *Scheduler[ID]) Pop() *Event[ID] {
	if s.q.Len() == 0 {
		return nil
	}
	e := heap.Pop(&s.q).(*Event[ID])
	s.dequeue++
	return e
}

// Run drains the queue in time order, invoking handle for each event
// until the queue empties or handle returns false (a stop request, e.g.
// a simulated-time deadline reached by the caller).
func (s *Scheduler[ID]) Run(handle func(*Event[ID]) bool) {
	for {
		e := s.Pop()
		if e == nil {
			return
		}
		if !handle(e) {
			return
		}
	}
}
