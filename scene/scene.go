// Package scene is the node graph the simulation delivers material messages
// to. Nodes own parts; parts reference their node by id. Delivery is queued
// and flushed once per step so handlers never run inside physics callbacks.
package scene

import "fmt"

// Node receives messages queued against its id. Handler may be nil for
// nodes that ignore messages.
type Node struct {
	id      uint64
	label   string
	Handler func(payload []byte)
}

// ID returns the scene-assigned node id.
func (n *Node) ID() uint64 { return n.id }

// Label returns the authoring label, which may be empty.
func (n *Node) Label() string { return n.label }

type delivery struct {
	node    uint64
	payload []byte
}

// Scene registers nodes and queues message deliveries. Owned by the
// simulation goroutine; not safe for concurrent use.
type Scene struct {
	byID    map[uint64]*Node
	byLabel map[string]*Node
	nextID  uint64
	queue   []delivery
}

func New() *Scene {
	return &Scene{
		byID:    make(map[uint64]*Node),
		byLabel: make(map[string]*Node),
		nextID:  1,
	}
}

// NewNode creates and registers a node. Non-empty labels must be unique;
// an empty label leaves the node anonymous.
func (s *Scene) NewNode(label string) (*Node, error) {
	if label != "" {
		if _, ok := s.byLabel[label]; ok {
			return nil, fmt.Errorf("scene: duplicate node label %q", label)
		}
	}
	n := &Node{id: s.nextID, label: label}
	s.nextID++
	s.byID[n.id] = n
	if label != "" {
		s.byLabel[label] = n
	}
	return n, nil
}

// Node resolves a node id.
func (s *Scene) Node(id uint64) (*Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// NodeByLabel resolves a non-empty label.
func (s *Scene) NodeByLabel(label string) (*Node, bool) {
	n, ok := s.byLabel[label]
	return n, ok
}

// Remove unregisters a node. Queued deliveries to it are dropped at flush.
func (s *Scene) Remove(id uint64) {
	n, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if n.label != "" {
		delete(s.byLabel, n.label)
	}
}

// Post queues a payload for the node. Delivery happens at the next Flush.
func (s *Scene) Post(nodeID uint64, payload []byte) {
	s.queue = append(s.queue, delivery{node: nodeID, payload: payload})
}

// Flush delivers everything queued before the call, in queue order, and
// returns the number of handlers run. Posts made by handlers stay queued
// for the next flush, so a message storm cannot loop forever inside one
// step. Deliveries to removed or handlerless nodes are dropped.
func (s *Scene) Flush() int {
	batch := s.queue
	s.queue = nil
	ran := 0
	for _, d := range batch {
		n, ok := s.byID[d.node]
		if !ok || n.Handler == nil {
			continue
		}
		n.Handler(d.payload)
		ran++
	}
	return ran
}
