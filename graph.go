package collector

import (
	"fmt"
	"regexp"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

type collectorGraph struct {
	nodes    map[*collectorNode]bool
	failed   map[*collectorNode]bool
	filtered map[*collectorNode]bool

	collectors map[Collector]*collectorNode
	nextID     int64
}

func initCollectorGraph(collectors []Collector) (*collectorGraph, error) {
	g := &collectorGraph{
		nodes:      make(map[*collectorNode]bool),
		failed:     make(map[*collectorNode]bool),
		filtered:   make(map[*collectorNode]bool),
		collectors: make(map[Collector]*collectorNode),
	}
	g.initNodes(collectors)
	if len(g.nodes) == 0 {
		return nil, fmt.Errorf("All %v collectors have failed", len(g.failed))
	}
	if err := g.checkMissingDependencies(); err != nil {
		return nil, err
	}
	// Test if topological sort is possible (no cycles)
	if _, err := g.sorted(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *collectorGraph) initNodes(collectors []Collector) {
	for _, col := range collectors {
		g.initNode(col)
	}
}

func (g *collectorGraph) initNode(col Collector) {
	if _, ok := g.collectors[col]; ok {
		// This collector has already been added
		return
	}
	g.nextID++
	node := newCollectorNode(col, g.nextID)
	g.collectors[col] = node

	g.nodes[node] = true
	children, err := node.init()
	if err == nil {
		g.initNodes(children)
	} else {
		g.collectorFailed(node)
		log.Warnf("Collector %v failed: %v", node, err)
	}
}

func (g *collectorGraph) collectorFailed(node *collectorNode) {
	delete(g.nodes, node)
	delete(g.filtered, node)
	g.failed[node] = true
}

func (g *collectorGraph) collectorFiltered(node *collectorNode) {
	if !g.failed[node] {
		delete(g.nodes, node)
		g.filtered[node] = true
	}
}

func (g *collectorGraph) checkMissingDependencies() error {
	for node := range g.nodes {
		for _, depends := range node.collector.Depends() {
			if _, ok := g.collectors[depends]; !ok {
				// All collectors (including those from Depends() methods) must be returned by a call to Init()
				return fmt.Errorf("Collector %v depends on a missing collector: %v", node, depends)
			}
		}
	}
	return nil
}

func (g *collectorGraph) applyMetricFilters(exclude []*regexp.Regexp, include []*regexp.Regexp) {
	for node := range g.nodes {
		node.applyMetricFilters(exclude, include)
	}
}

func (g *collectorGraph) dependsOnFailedOrFiltered(node *collectorNode) bool {
	for _, dependencyCol := range node.collector.Depends() {
		if !g.nodes[g.resolve(dependencyCol)] {
			return true
		}
	}
	return false
}

func (g *collectorGraph) pruneAndRepair() error {
	sorted, err := g.sorted()
	if err != nil {
		return err
	}

	// Walk "root" nodes first: delete nodes with failed dependencies
	// Since we walk the sorted graph, all transitive dependencies will be deleted as well
	for i, node := range sorted {
		if g.dependsOnFailedOrFiltered(node) {
			log.Debugln("Deleting collector", node, "because of a failed/filtered dependency")
			g.collectorFiltered(node)
			sorted[i] = nil
		}
	}

	// Walk "leaf" nodes first
	incoming := g.reverseDependencies()
	for i := len(sorted) - 1; i >= 0; i-- {
		node := sorted[i]
		if node == nil {
			continue
		}
		if len(node.metrics) == 0 && len(incoming[node]) == 0 {
			// Nothing depends on this node, and it does not have any metrics
			log.Debugln("Removing filtered collector:", node)
			g.collectorFiltered(node)
			for _, dependencySet := range incoming {
				delete(dependencySet, node)
			}
		}
	}
	return nil
}

// For every node, collect the set of nodes that depend on that node
func (g *collectorGraph) reverseDependencies() map[*collectorNode]map[*collectorNode]bool {
	incoming := make(map[*collectorNode]map[*collectorNode]bool)
	for node := range g.nodes {
		for _, depends := range node.collector.Depends() {
			dependsNode := g.resolve(depends)
			m, ok := incoming[dependsNode]
			if !ok {
				m = make(map[*collectorNode]bool)
				incoming[dependsNode] = m
			}
			m[node] = true
		}
	}
	return incoming
}

func (g *collectorGraph) listMetricNames() []string {
	metrics := make(map[string]bool)
	for node := range g.nodes {
		for metric := range node.metrics {
			if _, ok := metrics[metric]; ok {
				log.Errorln("Metric", metric, "is delivered by multiple collectors!")
			}
			metrics[metric] = true
		}
	}
	res := make([]string, 0, len(metrics))
	for metric := range metrics {
		res = append(res, metric)
	}
	sort.Strings(res)
	return res
}

func (g *collectorGraph) getMetrics() (res MetricSlice) {
	for node := range g.nodes {
		for name, reader := range node.metrics {
			res = append(res, &Metric{
				Name:   name,
				reader: reader,
			})
		}
	}
	sort.Sort(res)
	return
}

func (g *collectorGraph) resolve(col Collector) *collectorNode {
	node, ok := g.collectors[col]
	if !ok {
		// This should not happen after checkMissingDependencies() returns nil
		panic(fmt.Sprintf("Node for collector %v not found!", col))
	}
	return node
}

// gonumGraph returns the dependency graph of all active collectors. Edges point from
// a dependency to the collector depending on it.
func (g *collectorGraph) gonumGraph() *simple.DirectedGraph {
	res := simple.NewDirectedGraph()
	for node := range g.nodes {
		res.AddNode(node)
	}
	for node := range g.nodes {
		for _, depends := range node.collector.Depends() {
			dependsNode := g.resolve(depends)
			if g.nodes[dependsNode] && dependsNode != node {
				res.SetEdge(res.NewEdge(dependsNode, node))
			}
		}
	}
	return res
}

func (g *collectorGraph) sorted() ([]*collectorNode, error) {
	sortedNodes, err := topo.SortStabilized(g.gonumGraph(), orderByID)
	if err != nil {
		return nil, fmt.Errorf("Failed to sort collector graph: %v", err)
	}
	res := make([]*collectorNode, len(sortedNodes))
	for i, node := range sortedNodes {
		res[i] = node.(*collectorNode)
	}
	return res, nil
}

// layers groups the topologically sorted collectors so that every collector only
// depends on collectors of earlier layers.
func (g *collectorGraph) layers() ([][]*collectorNode, error) {
	sorted, err := g.sorted()
	if err != nil {
		return nil, err
	}
	depth := make(map[*collectorNode]int, len(sorted))
	var res [][]*collectorNode
	for _, node := range sorted {
		level := 0
		for _, depends := range node.collector.Depends() {
			if d, ok := depth[g.resolve(depends)]; ok && d+1 > level {
				level = d + 1
			}
		}
		depth[node] = level
		for len(res) <= level {
			res = append(res, nil)
		}
		res[level] = append(res[level], node)
	}
	return res, nil
}
