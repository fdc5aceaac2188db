package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/ardalan-sia/trafficsim/pkg/graph"
)

const eps = 1e-9

var ErrUnknownRoad = errors.New("unknown road")

// Entry is a road a trip may start on. Offset is the time needed to reach
// the end of that road from the trip's source.
type Entry struct {
	Road   int
	Offset float64
}

// Exit is a road a trip may finish on. Offset is the time needed from the
// start of that road to the trip's destination.
type Exit struct {
	Road   int
	Offset float64
}

// Plan is the outcome of a route search.
type Plan struct {
	Reachable bool
	Entry     int // intersection where the trip joins the network
	EntryRoad int
	ExitRoad  int
	Roads     []int // every road to drive, entry and exit included
	Cost      float64
}

// Router finds time-weighted shortest paths using each road's expected
// travel time. Live flow is never consulted, so repeated calls with the
// same candidates give the same plan.
type Router struct {
	net *graph.Network
}

func New(net *graph.Network) *Router { return &Router{net: net} }

// Route runs one Dijkstra search from a virtual source joined to every
// entry to a virtual sink joined from every exit. When an entry road is
// also an exit road and the destination lies ahead of the source on it,
// staying on that road is a candidate as well.
func (rt *Router) Route(entries []Entry, exits []Exit) (Plan, error) {
	entryRoads := make([]*graph.Road, len(entries))
	for i, e := range entries {
		r, ok := rt.net.Road(e.Road)
		if !ok {
			return Plan{}, fmt.Errorf("route entry: road %d: %w", e.Road, ErrUnknownRoad)
		}
		entryRoads[i] = r
	}
	exitRoads := make([]*graph.Road, len(exits))
	for i, x := range exits {
		r, ok := rt.net.Road(x.Road)
		if !ok {
			return Plan{}, fmt.Errorf("route exit: road %d: %w", x.Road, ErrUnknownRoad)
		}
		exitRoads[i] = r
	}

	best := Plan{Cost: math.Inf(1)}

	for i, e := range entries {
		for j, x := range exits {
			if e.Road != x.Road {
				continue
			}
			r := entryRoads[i]
			cost := e.Offset + x.Offset - r.ExpectedTime()
			if cost < -eps || cost >= best.Cost {
				continue
			}
			best = Plan{
				Reachable: true,
				Entry:     r.Dest,
				EntryRoad: r.ID,
				ExitRoad:  exitRoads[j].ID,
				Roads:     []int{r.ID},
				Cost:      math.Max(cost, 0),
			}
		}
	}

	dist := make(map[int]float64)
	prev := make(map[int]int)    // intersection -> road used to reach it
	entryOf := make(map[int]int) // intersection -> entry index it descends from

	pq := &priorityQueue{}
	heap.Init(pq)
	var seq int
	for i, e := range entries {
		node := entryRoads[i].Dest
		if d, seen := dist[node]; seen && d <= e.Offset {
			continue
		}
		dist[node] = e.Offset
		entryOf[node] = i
		heap.Push(pq, &item{node: node, priority: e.Offset, seq: seq})
		seq++
	}

	for pq.Len() > 0 {
		it := heap.Pop(pq).(*item)
		if it.priority > dist[it.node] {
			continue
		}
		for _, r := range rt.net.Neighbors(it.node) {
			alt := it.priority + r.ExpectedTime()
			if d, seen := dist[r.Dest]; seen && alt >= d {
				continue
			}
			dist[r.Dest] = alt
			prev[r.Dest] = r.ID
			entryOf[r.Dest] = entryOf[it.node]
			heap.Push(pq, &item{node: r.Dest, priority: alt, seq: seq})
			seq++
		}
	}

	for j, x := range exits {
		node := exitRoads[j].Source
		d, seen := dist[node]
		if !seen || d+x.Offset >= best.Cost {
			continue
		}
		entry := entryOf[node]
		var path []int
		for at := node; ; {
			rid, ok := prev[at]
			if !ok {
				break
			}
			path = append(path, rid)
			r, _ := rt.net.Road(rid)
			at = r.Source
		}
		roads := make([]int, 0, len(path)+2)
		roads = append(roads, entryRoads[entry].ID)
		for k := len(path) - 1; k >= 0; k-- {
			roads = append(roads, path[k])
		}
		roads = append(roads, exitRoads[j].ID)
		best = Plan{
			Reachable: true,
			Entry:     entryRoads[entry].Dest,
			EntryRoad: entryRoads[entry].ID,
			ExitRoad:  exitRoads[j].ID,
			Roads:     roads,
			Cost:      d + x.Offset,
		}
	}
	if !best.Reachable {
		return Plan{}, nil
	}
	return best, nil
}

// ---------- internal PQ ----------
type item struct {
	node     int
	priority float64
	seq      int
}
type priorityQueue []*item

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(*item)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}
