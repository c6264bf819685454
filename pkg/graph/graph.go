package graph

import "sort"

type idSet map[string]struct{}

func (s idSet) add(id string)      { s[id] = struct{}{} }
func (s idSet) has(id string) bool { _, ok := s[id]; return ok }

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}

	sort.Strings(out)

	return out
}

// DirectGraph is one compiled workflow. It is created once per
// (workflowID, version) at deploy time and replaced wholesale on redeploy.
type DirectGraph struct {
	WorkflowID string
	Version    string

	nodes       map[string]*Node
	parents     map[string]idSet
	children    map[string]idSet
	startEvents idSet
	variables   map[string]any

	// required join parents per gateway node; branches declared
	// non-blocking are excluded.
	joinRequired map[string]idSet
}

func newDirectGraph(workflowID, version string) *DirectGraph {
	return &DirectGraph{
		WorkflowID:   workflowID,
		Version:      version,
		nodes:        make(map[string]*Node),
		parents:      make(map[string]idSet),
		children:     make(map[string]idSet),
		startEvents:  make(idSet),
		variables:    make(map[string]any),
		joinRequired: make(map[string]idSet),
	}
}

func (g *DirectGraph) addNode(node *Node) {
	g.nodes[node.ID] = node
}

func (g *DirectGraph) addEdge(parentID, childID string) {
	if g.children[parentID] == nil {
		g.children[parentID] = make(idSet)
	}

	if g.parents[childID] == nil {
		g.parents[childID] = make(idSet)
	}

	g.children[parentID].add(childID)
	g.parents[childID].add(parentID)
}

func (g *DirectGraph) Node(id string) (*Node, bool) {
	node, ok := g.nodes[id]

	return node, ok
}

func (g *DirectGraph) Nodes() []*Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}

	return out
}

func (g *DirectGraph) Parents(id string) []string {
	return g.parents[id].sorted()
}

func (g *DirectGraph) Children(id string) []string {
	return g.children[id].sorted()
}

func (g *DirectGraph) StartEvents() []string {
	return g.startEvents.sorted()
}

// JoinRequired returns the parent ids a gateway waits for before advancing.
func (g *DirectGraph) JoinRequired(gatewayID string) []string {
	return g.joinRequired[gatewayID].sorted()
}

// Variables returns the declared global variable defaults.
func (g *DirectGraph) Variables() map[string]any {
	out := make(map[string]any, len(g.variables))
	for k, v := range g.variables {
		out[k] = v
	}

	return out
}
