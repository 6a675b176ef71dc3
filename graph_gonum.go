package collector

import (
	"os"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

var _ graph.Node = new(collectorNode)

func (g *collectorGraph) WriteGraphDOT(filename string) error {
	dotData, err := dot.Marshal(g.gonumGraph(), "Collectors", "", "  ")
	if err != nil {
		return err
	}
	log.Debugln("Writing dot-representation of collector graph to", filename)
	return os.WriteFile(filename, dotData, 0644)
}

func (node *collectorNode) ID() int64 {
	return node.uniqueID
}

// DOTID labels the node in DOT output. gonum quotes the ID as needed.
func (node *collectorNode) DOTID() string {
	str := node.collector.String()
	switch n := len(node.metrics); n {
	case 0:
	case 1:
		str += "\n1 metric"
	default:
		str += "\n" + strconv.Itoa(n) + " metrics"
	}
	return str
}

func orderByID(nodes []graph.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID() < nodes[j].ID()
	})
}
