package index

import (
	"container/heap"
	"math"
	"math/rand"
)

// hnswGraph is a hierarchical navigable small world graph over index entries.
// M and efConstruction control build quality, ef at query time controls the
// recall/latency trade-off. All mutation happens under the owning
// generation's writer lock, so the graph itself carries no locks.
type hnswGraph struct {
	m              int
	mMax0          int
	efConstruction int
	levelMult      float64

	nodes    []*hnswNode
	byID     map[string]int
	entry    int
	maxLevel int
	rng      *rand.Rand
}

type hnswNode struct {
	entry     *Entry
	deleted   bool
	level     int
	neighbors [][]int // adjacency per level, level 0 first
}

func newHNSWGraph(m, efConstruction int, seed int64) *hnswGraph {
	if m < 2 {
		m = 2
	}
	if efConstruction < m {
		efConstruction = m * 4
	}
	return &hnswGraph{
		m:              m,
		mMax0:          m * 2,
		efConstruction: efConstruction,
		levelMult:      1 / math.Log(float64(m)),
		byID:           make(map[string]int),
		entry:          -1,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

func (g *hnswGraph) size() int {
	return len(g.nodes)
}

func (g *hnswGraph) randomLevel() int {
	return int(math.Floor(-math.Log(g.rng.Float64()) * g.levelMult))
}

func (g *hnswGraph) similarity(a, b *hnswNode) float64 {
	return CosineSimilarity(a.entry.Vector, b.entry.Vector, a.entry.norm, b.entry.norm)
}

func (g *hnswGraph) similarityTo(q []float32, qnorm float64, n *hnswNode) float64 {
	return CosineSimilarity(q, n.entry.Vector, qnorm, n.entry.norm)
}

// markDeleted tombstones the node for the given id. The node stays routable
// so graph connectivity is preserved; compaction happens on rebuild.
func (g *hnswGraph) markDeleted(id string) {
	if i, ok := g.byID[id]; ok {
		g.nodes[i].deleted = true
		delete(g.byID, id)
	}
}

// insert adds an entry to the graph.
func (g *hnswGraph) insert(e *Entry) {
	level := g.randomLevel()
	node := &hnswNode{
		entry:     e,
		level:     level,
		neighbors: make([][]int, level+1),
	}
	id := len(g.nodes)
	g.nodes = append(g.nodes, node)
	g.byID[e.ID] = id

	if g.entry < 0 {
		g.entry = id
		g.maxLevel = level
		return
	}

	cur := g.entry
	curSim := g.similarity(node, g.nodes[cur])

	// Greedy descent through layers above the node's level.
	for l := g.maxLevel; l > level; l-- {
		cur, curSim = g.greedyClosest(node.entry.Vector, node.entry.norm, cur, curSim, l)
	}

	// Connect on each layer from min(level, maxLevel) down to 0.
	top := level
	if top > g.maxLevel {
		top = g.maxLevel
	}
	eps := []int{cur}
	for l := top; l >= 0; l-- {
		candidates := g.searchLayer(node.entry.Vector, node.entry.norm, eps, g.efConstruction, l, nil)
		selected := g.selectNeighbors(candidates, g.maxNeighbors(l))
		node.neighbors[l] = selected
		for _, nb := range selected {
			g.link(nb, id, l)
		}
		eps = selected
		if len(eps) == 0 {
			eps = []int{cur}
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entry = id
	}
}

func (g *hnswGraph) maxNeighbors(level int) int {
	if level == 0 {
		return g.mMax0
	}
	return g.m
}

// link adds target to node's neighbor list at the given level, pruning to the
// closest maxNeighbors when the list overflows.
func (g *hnswGraph) link(node, target, level int) {
	n := g.nodes[node]
	if level > n.level {
		return
	}
	n.neighbors[level] = append(n.neighbors[level], target)
	limit := g.maxNeighbors(level)
	if len(n.neighbors[level]) <= limit {
		return
	}
	cands := make([]scored, 0, len(n.neighbors[level]))
	for _, nb := range n.neighbors[level] {
		cands = append(cands, scored{id: nb, sim: g.similarity(n, g.nodes[nb])})
	}
	n.neighbors[level] = g.selectNeighbors(cands, limit)
}

// greedyClosest walks one layer greedily toward the query.
func (g *hnswGraph) greedyClosest(q []float32, qnorm float64, start int, startSim float64, level int) (int, float64) {
	cur, curSim := start, startSim
	for {
		improved := false
		n := g.nodes[cur]
		if level <= n.level {
			for _, nb := range n.neighbors[level] {
				if sim := g.similarityTo(q, qnorm, g.nodes[nb]); sim > curSim {
					cur, curSim = nb, sim
					improved = true
				}
			}
		}
		if !improved {
			return cur, curSim
		}
	}
}

type scored struct {
	id  int
	sim float64
}

// maxHeap pops the most similar candidate first.
type maxHeap []scored

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].sim > h[j].sim }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// minHeap pops the least similar result first, used to evict the worst of ef.
type minHeap []scored

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].sim < h[j].sim }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// searchLayer runs the standard HNSW beam search on one layer. A non-nil
// accept predicate excludes entries from the result set without excluding
// them from traversal, which keeps pre-filtered queries connected.
func (g *hnswGraph) searchLayer(q []float32, qnorm float64, eps []int, ef int, level int, accept func(*Entry) bool) []scored {
	visited := make(map[int]struct{}, ef*4)
	candidates := make(maxHeap, 0, ef)
	results := make(minHeap, 0, ef)

	admit := func(n *hnswNode) bool {
		if n.deleted {
			return false
		}
		return accept == nil || accept(n.entry)
	}

	for _, ep := range eps {
		if _, ok := visited[ep]; ok {
			continue
		}
		visited[ep] = struct{}{}
		sim := g.similarityTo(q, qnorm, g.nodes[ep])
		heap.Push(&candidates, scored{id: ep, sim: sim})
		if admit(g.nodes[ep]) {
			heap.Push(&results, scored{id: ep, sim: sim})
		}
	}

	for candidates.Len() > 0 {
		cur := heap.Pop(&candidates).(scored)
		if results.Len() >= ef && cur.sim < results[0].sim {
			break
		}
		n := g.nodes[cur.id]
		if level > n.level {
			continue
		}
		for _, nb := range n.neighbors[level] {
			if _, ok := visited[nb]; ok {
				continue
			}
			visited[nb] = struct{}{}
			sim := g.similarityTo(q, qnorm, g.nodes[nb])
			if results.Len() < ef || sim > results[0].sim {
				heap.Push(&candidates, scored{id: nb, sim: sim})
				if admit(g.nodes[nb]) {
					heap.Push(&results, scored{id: nb, sim: sim})
					if results.Len() > ef {
						heap.Pop(&results)
					}
				}
			}
		}
	}

	out := make([]scored, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&results).(scored)
	}
	return out
}

// selectNeighbors keeps the closest limit candidates.
func (g *hnswGraph) selectNeighbors(candidates []scored, limit int) []int {
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]int, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.id)
	}
	return out
}

// search returns up to ef entries closest to the query that pass the accept
// predicate, most similar first.
func (g *hnswGraph) search(q []float32, qnorm float64, ef int, accept func(*Entry) bool) []scored {
	if g.entry < 0 {
		return nil
	}
	cur := g.entry
	curSim := g.similarityTo(q, qnorm, g.nodes[cur])
	for l := g.maxLevel; l > 0; l-- {
		cur, curSim = g.greedyClosest(q, qnorm, cur, curSim, l)
	}
	return g.searchLayer(q, qnorm, []int{cur}, ef, 0, accept)
}
