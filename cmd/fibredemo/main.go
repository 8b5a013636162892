// Command fibredemo runs a handful of independent fibre Hosts
// concurrently, each driving a ring of fibres for a fixed number of
// laps with the origin handing control to each fibre in turn, and once
// every Host has finished prints how many fibres each Host still
// tracks after destroy. It exists to exercise the library end to end, the way
// original_source/tests/bench.c's ring benchmark does for the C
// library. It also drives a second Host whose fibres suspend on
// FIBRE_ASYNC_FD_READABLE / FIBRE_ASYNC_POLL and are resumed by a tiny
// dispatcher built around a wake-time min-heap, the demo side of the
// async-suspension protocol spec.md deliberately keeps external to the
// core.
package main

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fibrelib"
)

// sleepQueue is a min-heap of pending fibre resumptions ordered by wake
// time, adapted from runtime/eventloop.go's TimerHeap: instead of
// firing callbacks, popping a ready entry yields the fibre a scheduler
// selector should resume next.
type sleepEntry struct {
	wake  time.Time
	fibre *fibre.Fibre
	index int
}

type sleepQueue []*sleepEntry

func (q sleepQueue) Len() int            { return len(q) }
func (q sleepQueue) Less(i, j int) bool  { return q[i].wake.Before(q[j].wake) }
func (q sleepQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *sleepQueue) Push(x interface{}) {
	e := x.(*sleepEntry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *sleepQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// ringHost builds a Host running n fibres, each performing laps rounds
// of work and yielding to the origin between rounds, then drives them
// to completion round-robin from the origin before tearing the Host
// down. This is the origin-selector analogue of
// original_source/tests/bench.c's ring benchmark: here the origin
// itself plays dispatcher instead of each fibre switching straight to
// its neighbor, since that is what an origin selector (as opposed to a
// scheduler selector) supports.
func ringHost(n, laps int) (*fibre.Host, error) {
	h := fibre.NewHost()
	sel := fibre.NewOriginSelector()
	if err := h.Push(sel); err != nil {
		return nil, err
	}

	fibres := make([]*fibre.Fibre, n)
	for i := 0; i < n; i++ {
		i := i
		f, err := fibre.Create(h, func(arg any) {
			for r := 0; r < laps; r++ {
				_ = i
				h.Schedule()
			}
		}, nil)
		if err != nil {
			return nil, err
		}
		fibres[i] = f
	}

	for {
		allDone := true
		for _, f := range fibres {
			if f.Completed() {
				continue
			}
			h.ScheduleTo(f)
			allDone = allDone && f.Completed()
		}
		if allDone {
			break
		}
	}

	for _, f := range fibres {
		fibre.Destroy(f)
	}
	if _, err := h.Pop(); err != nil {
		return nil, err
	}
	fibre.Free(sel)
	return h, nil
}

// asyncDemoHost builds a Host whose scheduler selector is a tiny
// dispatcher: its callback pops whichever pending resumption in
// sleepQueue has the earliest wake time that has already arrived and
// returns that fibre, exactly the "retry on a schedule" shape
// FIBRE_ASYNC_POLL and FIBRE_ASYNC_FD_READABLE call for. Each of the n
// fibres alternates between the two suspension methods: even-indexed
// fibres suspend on a synthetic fd via SuspendFDReadable and are woken
// once the dispatcher decides that fd would be readable; odd-indexed
// fibres use SuspendPoll and are simply retried after a short delay.
// Before every suspend call a fibre re-registers its own next wake time
// on sleepQueue, so the dispatcher always has somewhere to look up who
// to resume next — the queue is the "higher layer" spec.md §4.G assigns
// the job of driving resumption to, kept outside the core package.
func asyncDemoHost(n, rounds int) (*fibre.Host, error) {
	h := fibre.NewHost()

	var q sleepQueue
	heap.Init(&q)

	sel := fibre.NewSchedulerSelector(func(arg any) *fibre.Fibre {
		now := time.Now()
		for q.Len() > 0 && !q[0].wake.After(now) {
			e := heap.Pop(&q).(*sleepEntry)
			if !e.fibre.Completed() {
				return e.fibre
			}
		}
		return nil
	}, nil, false)
	if err := h.Push(sel); err != nil {
		return nil, err
	}
	h.AsyncSetMask(uint32(fibre.AsyncFDReadable) | uint32(fibre.AsyncPoll))

	fibres := make([]*fibre.Fibre, n)
	for i := 0; i < n; i++ {
		i := i
		var f *fibre.Fibre
		var err error
		f, err = fibre.Create(h, func(arg any) {
			for iter := 0; iter < rounds; iter++ {
				delay := time.Duration(2+i%3) * time.Millisecond
				heap.Push(&q, &sleepEntry{wake: time.Now().Add(delay), fibre: f})

				var suspendErr error
				if i%2 == 0 {
					suspendErr = h.SuspendFDReadable(1000 + i)
				} else {
					suspendErr = h.SuspendPoll()
				}
				if suspendErr != nil {
					return
				}
			}
		}, nil)
		if err != nil {
			return nil, err
		}
		fibres[i] = f
		heap.Push(&q, &sleepEntry{wake: time.Now(), fibre: f})
	}

	for {
		allDone := true
		for _, f := range fibres {
			if !f.Completed() {
				allDone = false
				break
			}
		}
		if allDone {
			break
		}
		if q.Len() == 0 {
			panic("fibredemo: async dispatcher ran dry with fibres still pending")
		}
		if wait := time.Until(q[0].wake); wait > 0 {
			time.Sleep(wait)
		}
		h.Schedule()
	}

	for _, f := range fibres {
		fibre.Destroy(f)
	}
	if _, err := h.Pop(); err != nil {
		return nil, err
	}
	fibre.Free(sel)
	return h, nil
}

func main() {
	const hosts, ringSize, laps = 4, 8, 3

	g, _ := errgroup.WithContext(context.Background())
	results := make([]int, hosts)
	for i := 0; i < hosts; i++ {
		i := i
		g.Go(func() error {
			h, err := ringHost(ringSize, laps)
			if err != nil {
				return err
			}
			results[i] = h.LiveFibreCount()
			return h.Finish()
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Println("demo failed:", err)
		return
	}

	for i, remaining := range results {
		fmt.Printf("host %d: %d fibres still tracked after destroy (want 0)\n", i, remaining)
	}

	const asyncWorkers, asyncRounds = 6, 4
	asyncHost, err := asyncDemoHost(asyncWorkers, asyncRounds)
	if err != nil {
		fmt.Println("async demo failed:", err)
		return
	}
	fmt.Printf("async host: %d workers x %d suspend/resume rounds, %d still tracked after destroy (want 0)\n",
		asyncWorkers, asyncRounds, asyncHost.LiveFibreCount())
	if err := asyncHost.Finish(); err != nil {
		fmt.Println("async demo finish failed:", err)
	}
}
