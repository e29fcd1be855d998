package transform

import (
	"fmt"
	"sort"
)

// TopoLayers orders entity specs by their foreign-key dependencies and
// groups them into layers: every entity in layer N depends only on entities
// in layers < N, so all entities within one layer can run concurrently.
//
// Layer membership is returned as indices into specs. Entities inside a
// layer are sorted by name so the execution plan is stable across runs.
func TopoLayers(specs []Spec) ([][]int, error) {
	byName := make(map[string]int, len(specs))
	for i, s := range specs {
		if _, dup := byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate entity name %q", s.Name)
		}
		byName[s.Name] = i
	}

	// dependents maps a parent index to the children waiting on it.
	dependents := make(map[int][]int, len(specs))
	indegree := make([]int, len(specs))
	for i, s := range specs {
		seen := make(map[int]struct{}, len(s.Refs))
		for _, ref := range s.Refs {
			p, ok := byName[ref.Parent]
			if !ok {
				return nil, fmt.Errorf("entity %q references unknown parent %q", s.Name, ref.Parent)
			}
			if p == i {
				return nil, fmt.Errorf("entity %q references itself", s.Name)
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			dependents[p] = append(dependents[p], i)
			indegree[i]++
		}
	}

	var layers [][]int
	frontier := make([]int, 0, len(specs))
	for i := range specs {
		if indegree[i] == 0 {
			frontier = append(frontier, i)
		}
	}

	placed := 0
	for len(frontier) > 0 {
		sort.Slice(frontier, func(a, b int) bool {
			return specs[frontier[a]].Name < specs[frontier[b]].Name
		})
		layers = append(layers, frontier)
		placed += len(frontier)

		var next []int
		for _, p := range frontier {
			for _, child := range dependents[p] {
				indegree[child]--
				if indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		frontier = next
	}

	if placed != len(specs) {
		var stuck []string
		for i, d := range indegree {
			if d > 0 {
				stuck = append(stuck, specs[i].Name)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("foreign key cycle involving entities %v", stuck)
	}
	return layers, nil
}
