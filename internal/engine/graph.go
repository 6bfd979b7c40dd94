package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/picklr-io/resolvr/internal/spec"
)

// DAG orders specs so that every spec comes after the specs it names as
// dependencies. Ties are broken by address, so the order is deterministic.
type DAG struct {
	nodes    map[string]*dagNode
	order    []string
	revOrder []string
}

type dagNode struct {
	addr     string
	edges    []string // specs this node depends on
	revEdges []string // specs that depend on this node
}

// Address returns the unique address of a spec: its kind and id.
func Address(s spec.Spec) string {
	return fmt.Sprintf("%s/%s", s.Kind(), s.ID())
}

// CycleError means the dependency names of a document form a cycle.
type CycleError struct {
	Addresses []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected between %s", strings.Join(e.Addresses, ", "))
}

// BuildDAG builds the dependency graph of a document. A dependency name
// matches every non-cluster spec of the same account with that name;
// names that match nothing in the document are external and ignored.
func BuildDAG(specs []spec.Spec) (*DAG, error) {
	dag := &DAG{nodes: make(map[string]*dagNode, len(specs))}

	type nameKey struct{ account, name string }
	byName := make(map[nameKey][]string)
	for _, s := range specs {
		addr := Address(s)
		if _, dup := dag.nodes[addr]; dup {
			return nil, fmt.Errorf("duplicate resource %s", addr)
		}
		dag.nodes[addr] = &dagNode{addr: addr}
		if s.Kind() != spec.KindCluster {
			k := nameKey{s.Account(), s.Name()}
			byName[k] = append(byName[k], addr)
		}
	}

	for _, s := range specs {
		addr := Address(s)
		node := dag.nodes[addr]
		for _, dep := range s.DependsOn() {
			for _, target := range byName[nameKey{s.Account(), dep}] {
				if target != addr && !slices.Contains(node.edges, target) {
					node.edges = append(node.edges, target)
				}
			}
		}
		slices.Sort(node.edges)
	}

	for _, addr := range sortedKeys(dag.nodes) {
		for _, dep := range dag.nodes[addr].edges {
			dag.nodes[dep].revEdges = append(dag.nodes[dep].revEdges, addr)
		}
	}

	order, err := dag.topoSort()
	if err != nil {
		return nil, err
	}
	dag.order = order
	dag.revOrder = make([]string, len(order))
	for i, addr := range order {
		dag.revOrder[len(order)-1-i] = addr
	}
	return dag, nil
}

// Order returns addresses with dependencies first.
func (d *DAG) Order() []string {
	return slices.Clone(d.order)
}

// ReverseOrder returns addresses with dependents first.
func (d *DAG) ReverseOrder() []string {
	return slices.Clone(d.revOrder)
}

// Dependencies returns the direct dependencies of an address.
func (d *DAG) Dependencies(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		return slices.Clone(node.edges)
	}
	return nil
}

// Dependents returns the specs that directly depend on an address.
func (d *DAG) Dependents(addr string) []string {
	if node, ok := d.nodes[addr]; ok {
		out := slices.Clone(node.revEdges)
		slices.Sort(out)
		return out
	}
	return nil
}

// TransitiveDeps returns every address an address depends on, directly or
// indirectly, sorted.
func (d *DAG) TransitiveDeps(addr string) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(a string) {
		node, ok := d.nodes[a]
		if !ok {
			return
		}
		for _, dep := range node.edges {
			if !seen[dep] {
				seen[dep] = true
				visit(dep)
			}
		}
	}
	visit(addr)
	return sortedKeys(seen)
}

// Has reports whether the graph contains an address.
func (d *DAG) Has(addr string) bool {
	_, ok := d.nodes[addr]
	return ok
}

// topoSort is Kahn's algorithm, always taking the smallest ready address.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(d.nodes))
	var ready []string
	for _, addr := range sortedKeys(d.nodes) {
		inDegree[addr] = len(d.nodes[addr].edges)
		if inDegree[addr] == 0 {
			ready = append(ready, addr)
		}
	}

	sorted := make([]string, 0, len(d.nodes))
	for len(ready) > 0 {
		addr := ready[0]
		ready = ready[1:]
		sorted = append(sorted, addr)

		for _, dependent := range d.nodes[addr].revEdges {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				i, _ := slices.BinarySearch(ready, dependent)
				ready = slices.Insert(ready, i, dependent)
			}
		}
	}

	if len(sorted) != len(d.nodes) {
		var cycle []string
		for _, addr := range sortedKeys(d.nodes) {
			if inDegree[addr] > 0 {
				cycle = append(cycle, addr)
			}
		}
		return nil, &CycleError{Addresses: cycle}
	}
	return sorted, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
