package graph

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/algorithm/domain"
)

// PointerEvent is one of the renderer's node interactions.
type PointerEvent string

const (
	PointerEnter PointerEvent = "enterNode"
	PointerLeave PointerEvent = "leaveNode"
	PointerClick PointerEvent = "clickNode"
)

// NodeHandler reacts to a pointer event on a node.
type NodeHandler func(ctx context.Context, nodeID string)

// CameraAnimation is the last animation requested from the renderer.
type CameraAnimation struct {
	X        float64       `json:"x"`
	Y        float64       `json:"y"`
	Ratio    float64       `json:"ratio"`
	Easing   string        `json:"easing"`
	Duration time.Duration `json:"duration"`
}

type Camera struct {
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
	Ratio     float64          `json:"ratio"`
	Animation *CameraAnimation `json:"animation,omitempty"`
}

// Frame is the pure description of what the renderer has to draw.
type Frame struct {
	Nodes  []Node `json:"nodes"`
	Edges  []Edge `json:"edges"`
	Camera Camera `json:"camera"`
}

const (
	focusRatio    = 0.75
	focusDuration = time.Second
)

// Scene binds a graph to the renderer contract: camera, focus state,
// re-layout and pointer dispatch.
type Scene struct {
	mu       sync.RWMutex
	graph    *Graph
	builder  *Builder
	relayout Layout
	camera   Camera
	focused  map[string]bool
	handlers map[PointerEvent]map[NodeKind]NodeHandler
	logger   *zap.Logger
}

func NewScene(g *Graph, builder *Builder, relayout Layout, logger *zap.Logger) *Scene {
	if logger == nil {
		logger = zap.NewNop()
	}
	if relayout == nil {
		relayout = ForceAtlas2{Settings: ReoptimizeSettings()}
	}
	return &Scene{
		graph:    g,
		builder:  builder,
		relayout: relayout,
		camera:   Camera{Ratio: 1},
		focused:  make(map[string]bool),
		handlers: make(map[PointerEvent]map[NodeKind]NodeHandler),
		logger:   logger,
	}
}

// On registers the handler for an event on nodes of the given kind.
func (s *Scene) On(event PointerEvent, kind NodeKind, handler NodeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byKind, ok := s.handlers[event]
	if !ok {
		byKind = make(map[NodeKind]NodeHandler)
		s.handlers[event] = byKind
	}
	byKind[kind] = handler
}

// Dispatch routes the event by the node's kind attribute. It reports
// whether a handler ran.
func (s *Scene) Dispatch(ctx context.Context, event PointerEvent, nodeID string) bool {
	s.mu.RLock()
	node, ok := s.graph.Node(nodeID)
	var handler NodeHandler
	if ok {
		handler = s.handlers[event][node.Kind]
	}
	s.mu.RUnlock()

	if !ok {
		s.logger.Warn("pointer event on unknown node", zap.String("event", string(event)), zap.String("node", nodeID))
		return false
	}
	if handler == nil {
		return false
	}
	handler(ctx, nodeID)
	return true
}

// Focus animates the camera to a post and highlights it.
func (s *Scene) Focus(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.post(nodeID, "focus")
	if !ok {
		return false
	}
	anim := &CameraAnimation{X: node.X, Y: node.Y, Ratio: focusRatio, Easing: "linear", Duration: focusDuration}
	s.camera = Camera{X: node.X, Y: node.Y, Ratio: focusRatio, Animation: anim}

	style := s.builder.Style()
	s.graph.UpdateNode(nodeID, func(n *Node) {
		n.Color = style.PostFocusedColor
		n.Size = style.PostFocusedSize
	})
	s.focused[nodeID] = true
	s.logger.Debug("focused node", zap.String("node", nodeID))
	return true
}

// Defocus reverts size and color of a focused post.
func (s *Scene) Defocus(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.post(nodeID, "defocus"); !ok {
		return false
	}
	style := s.builder.Style()
	s.graph.UpdateNode(nodeID, func(n *Node) {
		n.Color = style.PostColor
		n.Size = style.PostSize
	})
	delete(s.focused, nodeID)
	return true
}

// post must be called with mu held.
func (s *Scene) post(nodeID, action string) (Node, bool) {
	node, ok := s.graph.Node(nodeID)
	if !ok {
		s.logger.Error("cannot "+action+" node, node not in graph", zap.String("node", nodeID))
		return Node{}, false
	}
	if node.Kind != NodePost {
		s.logger.Warn("cannot "+action+" node, not a post", zap.String("node", nodeID), zap.String("kind", string(node.Kind)))
		return Node{}, false
	}
	return node, true
}

func (s *Scene) IsFocused(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused[nodeID]
}

// AddPost adds a post that appeared after the initial build and runs the
// bounded re-layout when the graph changed.
func (s *Scene) AddPost(post domain.Post) bool {
	s.mu.Lock()
	added := s.builder.AddPost(s.graph, post)
	s.mu.Unlock()
	if added {
		s.Reoptimize()
	}
	return added
}

func (s *Scene) Reoptimize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayout.Assign(s.graph)
}

func (s *Scene) Node(nodeID string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Node(nodeID)
}

// NodeImage returns the image attribute, used for avatars in detail panels.
func (s *Scene) NodeImage(nodeID string) string {
	node, _ := s.Node(nodeID)
	return node.Image
}

func (s *Scene) Camera() Camera {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.camera
}

func (s *Scene) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Frame{
		Nodes:  s.graph.Nodes(),
		Edges:  s.graph.Edges(),
		Camera: s.camera,
	}
}
