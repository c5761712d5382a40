package plugin

import "sort"

// Resolution is the outcome of resolving a requires graph.
type Resolution struct {
	// Order is the topological load order: every plugin appears after
	// all of its known requirements. Unload order is the exact reverse.
	Order []string

	// Cycles lists each detected requires cycle as an ordered id list.
	// Every participant is excluded from Order.
	Cycles [][]string

	// Blocked lists plugins excluded from Order because they depend,
	// directly or transitively, on a cycle participant.
	Blocked []string

	// Missing maps plugin ids to requirements that are not in the
	// table at all. Such plugins still appear in Order so load can
	// fail them individually with a missing-dependency error.
	Missing map[string][]string
}

// InCycle reports whether id participates in a detected cycle.
func (r Resolution) InCycle(id string) bool {
	for _, cycle := range r.Cycles {
		for _, member := range cycle {
			if member == id {
				return true
			}
		}
	}
	return false
}

// Resolve computes a deterministic load order for the given requires
// graph (plugin id -> required plugin ids).
//
// Cycle detection is a three-color depth-first search: a back edge into
// a gray node yields the full cycle. Ordering is Kahn's algorithm over
// the edge required -> dependent, with ready-queue ties broken by
// ascending id so the order is reproducible. Requirements that are not
// present in the graph do not contribute edges; they are reported in
// Missing and resolved (to a failure) at load time.
func Resolve(requires map[string][]string) Resolution {
	res := Resolution{Missing: map[string][]string{}}

	ids := make([]string, 0, len(requires))
	for id := range requires {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// dependents[x] = plugins that require x; indegree counts known,
	// unsatisfied requirements.
	dependents := make(map[string][]string, len(requires))
	indegree := make(map[string]int, len(requires))
	for _, id := range ids {
		indegree[id] = 0
	}
	for _, id := range ids {
		for _, dep := range requires[id] {
			if _, known := requires[dep]; !known {
				res.Missing[id] = append(res.Missing[id], dep)
				continue
			}
			dependents[dep] = append(dependents[dep], id)
			indegree[id]++
		}
	}

	res.Cycles = findCycles(ids, requires)
	inCycle := make(map[string]bool)
	for _, cycle := range res.Cycles {
		for _, id := range cycle {
			inCycle[id] = true
		}
	}

	// Kahn's algorithm. The ready queue is kept sorted ascending so
	// dequeue order is deterministic.
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 && !inCycle[id] {
			queue = append(queue, id)
		}
	}

	ordered := make(map[string]bool, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		res.Order = append(res.Order, id)
		ordered[id] = true

		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 && !inCycle[dep] {
				queue = insertSorted(queue, dep)
			}
		}
	}

	for _, id := range ids {
		if !ordered[id] && !inCycle[id] {
			res.Blocked = append(res.Blocked, id)
		}
	}
	return res
}

// insertSorted inserts id into the sorted ready queue.
func insertSorted(queue []string, id string) []string {
	i := sort.SearchStrings(queue, id)
	queue = append(queue, "")
	copy(queue[i+1:], queue[i:])
	queue[i] = id
	return queue
}

// DFS colors.
const (
	white = iota // unvisited
	gray         // on the current path
	black        // fully processed
)

// findCycles runs a three-color DFS over the graph and extracts every
// cycle reachable from a back edge. Roots are visited in ascending id
// order so the reported cycles are deterministic.
func findCycles(ids []string, requires map[string][]string) [][]string {
	color := make(map[string]int, len(ids))
	var path []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		color[id] = gray
		path = append(path, id)

		deps := append([]string{}, requires[id]...)
		sort.Strings(deps)
		for _, dep := range deps {
			if _, inGraph := requires[dep]; !inGraph {
				continue
			}
			switch color[dep] {
			case white:
				visit(dep)
			case gray:
				// Back edge: the cycle is the path suffix starting at dep.
				for i, node := range path {
					if node == dep {
						cycle := append([]string{}, path[i:]...)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range ids {
		if color[id] == white {
			visit(id)
		}
	}
	return cycles
}
