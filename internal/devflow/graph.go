package devflow

import "sort"

// Graph records which files must be generated before which. An edge
// u -> v means u declares a type that v references, so u comes first.
type Graph struct {
	nodes []string
	adj   map[string]map[string]struct{}
	indeg map[string]int
}

// BuildGraph links every skeleton to the skeletons declaring the types it
// references. References with no declaring file are external and ignored.
func BuildGraph(skeletons []Skeleton) *Graph {
	declaredBy := map[string]string{}
	for _, sk := range skeletons {
		for def := range sk.Definitions {
			declaredBy[def] = sk.Path
		}
	}

	g := &Graph{
		adj:   map[string]map[string]struct{}{},
		indeg: map[string]int{},
	}
	for _, sk := range skeletons {
		g.nodes = append(g.nodes, sk.Path)
		if g.adj[sk.Path] == nil {
			g.adj[sk.Path] = map[string]struct{}{}
		}
		g.indeg[sk.Path] += 0
	}
	for _, sk := range skeletons {
		for ref := range sk.References {
			src, ok := declaredBy[ref]
			if !ok || src == sk.Path {
				continue
			}
			if _, dup := g.adj[src][sk.Path]; dup {
				continue
			}
			g.adj[src][sk.Path] = struct{}{}
			g.indeg[sk.Path]++
		}
	}
	sort.Strings(g.nodes)
	return g
}

// Len reports the number of files in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// Waves returns the files grouped into dependency levels: every file in a
// wave depends only on files in earlier waves, so a wave can be generated
// in parallel. Files stuck in a cycle are appended as a final wave in
// ascending in-degree order so generation still terminates.
func (g *Graph) Waves() [][]string {
	indeg := make(map[string]int, len(g.indeg))
	for n, d := range g.indeg {
		indeg[n] = d
	}

	var waves [][]string
	done := map[string]struct{}{}
	remaining := len(g.nodes)
	for remaining > 0 {
		var wave []string
		for _, n := range g.nodes {
			if _, ok := done[n]; ok {
				continue
			}
			if indeg[n] == 0 {
				wave = append(wave, n)
			}
		}
		if len(wave) == 0 {
			break // cycle
		}
		for _, n := range wave {
			done[n] = struct{}{}
			remaining--
			for succ := range g.adj[n] {
				indeg[succ]--
			}
		}
		waves = append(waves, wave)
	}

	if remaining > 0 {
		var rest []string
		for _, n := range g.nodes {
			if _, ok := done[n]; !ok {
				rest = append(rest, n)
			}
		}
		sort.Slice(rest, func(i, j int) bool {
			if g.indeg[rest[i]] != g.indeg[rest[j]] {
				return g.indeg[rest[i]] < g.indeg[rest[j]]
			}
			return rest[i] < rest[j]
		})
		waves = append(waves, rest)
	}
	return waves
}
