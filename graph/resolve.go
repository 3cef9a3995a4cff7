package graph

import (
	"errors"
	"slices"
	"strings"
)

// resolution is the validated shape of a builder: execution order plus the
// edges between instances.
type resolution struct {
	order        []*instance
	dependencies map[string][]string
	dependents   map[string][]string
}

// resolve checks that every required input is bound and orders the nodes so
// that every producer precedes its consumers.
func resolve(nodes []*instance) (*resolution, error) {
	var unresolved []error
	for _, inst := range nodes {
		var missing []string
		for slot := range inst.typ.Inputs.All() {
			if _, bound := inst.bindings[slot.Name]; !bound && !slot.Optional {
				missing = append(missing, slot.Name)
			}
		}
		if len(missing) > 0 {
			unresolved = append(unresolved, &UnresolvedBindingError{Node: inst.id, Slots: missing})
		}
	}
	if len(unresolved) > 0 {
		return nil, errors.Join(unresolved...)
	}

	res := &resolution{
		dependencies: make(map[string][]string, len(nodes)),
		dependents:   make(map[string][]string, len(nodes)),
	}
	byID := make(map[string]*instance, len(nodes))
	for _, inst := range nodes {
		byID[inst.id] = inst
	}
	for _, inst := range nodes {
		for _, bnd := range inst.bindings {
			if bnd.from == nil || slices.Contains(res.dependencies[inst.id], bnd.from.Node) {
				continue
			}
			res.dependencies[inst.id] = append(res.dependencies[inst.id], bnd.from.Node)
			res.dependents[bnd.from.Node] = append(res.dependents[bnd.from.Node], inst.id)
		}
	}
	byCreation := func(a, b string) int {
		return byID[a].created - byID[b].created
	}
	for _, edges := range res.dependencies {
		slices.SortFunc(edges, byCreation)
	}
	for _, edges := range res.dependents {
		slices.SortFunc(edges, byCreation)
	}

	// Kahn's algorithm; the ready set is kept sorted by creation order.
	indegree := make(map[string]int, len(nodes))
	var ready []*instance
	for _, inst := range nodes {
		indegree[inst.id] = len(res.dependencies[inst.id])
		if indegree[inst.id] == 0 {
			ready = append(ready, inst)
		}
	}
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		res.order = append(res.order, next)
		for _, id := range res.dependents[next.id] {
			indegree[id]--
			if indegree[id] == 0 {
				inst := byID[id]
				at, _ := slices.BinarySearchFunc(ready, inst, func(a, b *instance) int {
					return a.created - b.created
				})
				ready = slices.Insert(ready, at, inst)
			}
		}
	}

	if len(res.order) < len(nodes) {
		return nil, cycles(nodes, res.dependents, indegree)
	}
	return res, nil
}

// cycles builds the error for the nodes Kahn's algorithm could not order.
// Leftover nodes are either on a cycle or downstream of one; only the former
// are reported.
func cycles(nodes []*instance, dependents map[string][]string, indegree map[string]int) error {
	leftover := make(map[string]bool)
	for _, inst := range nodes {
		if indegree[inst.id] > 0 {
			leftover[inst.id] = true
		}
	}

	var all [][]string
	for _, group := range components(leftover, dependents) {
		start := slices.Min(group)
		if cycle := shortestCycle(start, group, dependents); cycle != nil {
			all = append(all, cycle)
		}
	}
	slices.SortFunc(all, func(a, b []string) int {
		return strings.Compare(a[0], b[0])
	})
	return &CyclicDependencyError{Members: all[0], Cycles: all}
}

// components returns the strongly connected components of the leftover nodes
// (Tarjan), keeping only those that contain a cycle.
func components(leftover map[string]bool, dependents map[string][]string) [][]string {
	ids := make([]string, 0, len(leftover))
	for id := range leftover {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
		result  [][]string
		visit   func(string)
	)
	visit = func(v string) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range dependents[v] {
			if !leftover[w] {
				continue
			}
			if _, seen := index[w]; !seen {
				visit(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var group []string
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			group = append(group, w)
			if w == v {
				break
			}
		}
		if len(group) > 1 || slices.Contains(dependents[v], v) {
			result = append(result, group)
		}
	}
	for _, id := range ids {
		if _, seen := index[id]; !seen {
			visit(id)
		}
	}
	return result
}

// shortestCycle finds the shortest path from start back to itself within
// group, visiting neighbours in id order.
func shortestCycle(start string, group []string, dependents map[string][]string) []string {
	in := make(map[string]bool, len(group))
	for _, id := range group {
		in[id] = true
	}
	parent := map[string]string{}
	queue := []string{start}
	visited := map[string]bool{start: true}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		next := slices.Clone(dependents[v])
		slices.Sort(next)
		for _, w := range next {
			if !in[w] {
				continue
			}
			if w == start {
				cycle := []string{v}
				for cur := v; cur != start; {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				slices.Reverse(cycle)
				return cycle
			}
			if !visited[w] {
				visited[w] = true
				parent[w] = v
				queue = append(queue, w)
			}
		}
	}
	return nil
}
