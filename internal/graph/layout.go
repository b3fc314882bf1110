package graph

import (
	"math"
	"math/rand"
)

// Layout assigns coordinates to every node of a graph.
type Layout interface {
	Assign(g *Graph)
}

// RandomLayout places nodes uniformly in the unit square.
type RandomLayout struct {
	Rand *rand.Rand
}

func (l RandomLayout) Assign(g *Graph) {
	rnd := l.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(rand.Int63()))
	}
	for _, id := range g.order {
		n := g.nodes[id]
		n.X = rnd.Float64()
		n.Y = rnd.Float64()
	}
}

// Settings mirror the ForceAtlas2 knobs exposed to the scene.
type Settings struct {
	Iterations          int
	Gravity             float64
	ScalingRatio        float64
	StrongGravityMode   bool
	SlowDown            float64
	BarnesHutOptimize   bool
	BarnesHutTheta      float64
	EdgeWeightInfluence float64
}

// FullSettings is used for the initial layout pass.
func FullSettings() Settings {
	return Settings{
		Iterations:          100,
		Gravity:             0.5,
		ScalingRatio:        1,
		SlowDown:            1,
		EdgeWeightInfluence: 1,
	}
}

// ReoptimizeSettings is a bounded pass run when nodes join an existing layout.
func ReoptimizeSettings() Settings {
	return Settings{
		Iterations:          50,
		Gravity:             1.0,
		ScalingRatio:        2,
		SlowDown:            10,
		BarnesHutOptimize:   true,
		BarnesHutTheta:      0.5,
		EdgeWeightInfluence: 1,
	}
}

// ForceAtlas2 is a compact force-directed layout: degree-weighted repulsion,
// weighted linear attraction along edges and gravity toward the origin.
type ForceAtlas2 struct {
	Settings Settings
}

type body struct {
	x, y         float64
	dx, dy       float64
	oldDx, oldDy float64
	mass         float64
}

func (f ForceAtlas2) Assign(g *Graph) {
	s := f.Settings
	if s.Iterations <= 0 || g.Order() == 0 {
		return
	}
	if s.SlowDown <= 0 {
		s.SlowDown = 1
	}
	if s.ScalingRatio <= 0 {
		s.ScalingRatio = 1
	}
	if s.BarnesHutTheta <= 0 {
		s.BarnesHutTheta = 0.5
	}

	index := make(map[string]int, len(g.order))
	bodies := make([]body, len(g.order))
	for i, id := range g.order {
		n := g.nodes[id]
		index[id] = i
		bodies[i] = body{x: n.X, y: n.Y, mass: float64(g.degree[id] + 1)}
	}

	for iter := 0; iter < s.Iterations; iter++ {
		for i := range bodies {
			b := &bodies[i]
			b.oldDx, b.oldDy = b.dx, b.dy
			b.dx, b.dy = 0, 0
		}

		if s.BarnesHutOptimize {
			tree := buildQuadTree(bodies)
			for i := range bodies {
				tree.repulse(bodies, i, s.ScalingRatio, s.BarnesHutTheta)
			}
		} else {
			for i := 0; i < len(bodies); i++ {
				for j := i + 1; j < len(bodies); j++ {
					repulsePair(&bodies[i], &bodies[j], s.ScalingRatio)
				}
			}
		}

		for i := range bodies {
			applyGravity(&bodies[i], s.Gravity, s.StrongGravityMode)
		}

		for _, key := range g.edgeOrder {
			e := g.edges[key]
			src, dst := index[e.Source], index[e.Target]
			if src == dst {
				continue
			}
			w := edgeWeight(e.Weight, s.EdgeWeightInfluence)
			if w == 0 {
				continue
			}
			a, b := &bodies[src], &bodies[dst]
			xd, yd := a.x-b.x, a.y-b.y
			a.dx -= xd * w
			a.dy -= yd * w
			b.dx += xd * w
			b.dy += yd * w
		}

		for i := range bodies {
			b := &bodies[i]
			swinging := b.mass * math.Hypot(b.oldDx-b.dx, b.oldDy-b.dy)
			factor := 1 / (1 + math.Sqrt(swinging)) / s.SlowDown
			nx, ny := b.x+b.dx*factor, b.y+b.dy*factor
			if isFinite(nx) && isFinite(ny) {
				b.x, b.y = nx, ny
			}
		}
	}

	for i, id := range g.order {
		n := g.nodes[id]
		n.X, n.Y = bodies[i].x, bodies[i].y
	}
}

func edgeWeight(weight, influence float64) float64 {
	if influence == 0 {
		return 1
	}
	if weight <= 0 {
		return 0
	}
	if influence == 1 {
		return weight
	}
	return math.Pow(weight, influence)
}

func repulsePair(a, b *body, kr float64) {
	xd, yd := a.x-b.x, a.y-b.y
	dist2 := xd*xd + yd*yd
	if dist2 == 0 {
		// coincident nodes get a fixed nudge so they separate
		xd, yd, dist2 = 0.01, 0.01, 0.0002
	}
	factor := kr * a.mass * b.mass / dist2
	a.dx += xd * factor
	a.dy += yd * factor
	b.dx -= xd * factor
	b.dy -= yd * factor
}

func applyGravity(b *body, kg float64, strong bool) {
	if kg == 0 {
		return
	}
	dist := math.Hypot(b.x, b.y)
	if dist == 0 {
		return
	}
	factor := kg * b.mass / dist
	if strong {
		factor = kg * b.mass
	}
	b.dx -= b.x * factor
	b.dy -= b.y * factor
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// quadTree approximates far-away groups of bodies by their center of mass.
type quadTree struct {
	minX, minY, size float64
	mass             float64
	cx, cy           float64
	body             int
	children         *[4]*quadTree
}

const maxTreeDepth = 32

func buildQuadTree(bodies []body) *quadTree {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, b := range bodies {
		minX, minY = math.Min(minX, b.x), math.Min(minY, b.y)
		maxX, maxY = math.Max(maxX, b.x), math.Max(maxY, b.y)
	}
	size := math.Max(maxX-minX, maxY-minY)
	if size == 0 {
		size = 1
	}
	root := &quadTree{minX: minX, minY: minY, size: size * 1.0001, body: -1}
	for i := range bodies {
		root.insert(bodies, i, 0)
	}
	return root
}

func (q *quadTree) insert(bodies []body, i int, depth int) {
	b := bodies[i]
	total := q.mass + b.mass
	q.cx = (q.cx*q.mass + b.x*b.mass) / total
	q.cy = (q.cy*q.mass + b.y*b.mass) / total
	q.mass = total

	if q.children == nil {
		if q.body < 0 && total == b.mass {
			q.body = i
			return
		}
		if depth >= maxTreeDepth {
			// bodies this close are treated as one aggregate
			return
		}
		q.children = &[4]*quadTree{}
		if q.body >= 0 {
			prev := q.body
			q.body = -1
			q.child(bodies[prev]).insert(bodies, prev, depth+1)
		}
	}
	q.child(b).insert(bodies, i, depth+1)
}

func (q *quadTree) child(b body) *quadTree {
	half := q.size / 2
	idx := 0
	x, y := q.minX, q.minY
	if b.x >= q.minX+half {
		idx |= 1
		x += half
	}
	if b.y >= q.minY+half {
		idx |= 2
		y += half
	}
	if q.children[idx] == nil {
		q.children[idx] = &quadTree{minX: x, minY: y, size: half, body: -1}
	}
	return q.children[idx]
}

func (q *quadTree) repulse(bodies []body, i int, kr, theta float64) {
	if q == nil || q.mass == 0 {
		return
	}
	b := &bodies[i]
	if q.children == nil {
		if q.body == i || q.body < 0 {
			return
		}
		other := bodies[q.body]
		xd, yd := b.x-other.x, b.y-other.y
		dist2 := xd*xd + yd*yd
		if dist2 == 0 {
			return
		}
		factor := kr * b.mass * other.mass / dist2
		b.dx += xd * factor
		b.dy += yd * factor
		return
	}

	xd, yd := b.x-q.cx, b.y-q.cy
	dist := math.Hypot(xd, yd)
	if dist > 0 && q.size/dist < theta {
		factor := kr * b.mass * q.mass / (dist * dist)
		b.dx += xd * factor
		b.dy += yd * factor
		return
	}
	for _, c := range q.children {
		c.repulse(bodies, i, kr, theta)
	}
}
