package collector

import (
	"regexp"

	log "github.com/sirupsen/logrus"
)

const (
	ToleratedUpdateFailures = 2
)

type collectorNode struct {
	collector Collector
	uniqueID  int64

	failedUpdates int
	metrics       MetricReaderMap
}

func newCollectorNode(collector Collector, id int64) *collectorNode {
	return &collectorNode{
		collector: collector,
		uniqueID:  id,
	}
}

func (node *collectorNode) String() string {
	return node.collector.String()
}

func (node *collectorNode) init() ([]Collector, error) {
	children, err := node.collector.Init()
	if err != nil {
		return nil, err
	}
	node.metrics = node.collector.Metrics()
	if node.metrics == nil {
		node.metrics = make(MetricReaderMap)
	}
	return children, nil
}

func (node *collectorNode) applyMetricFilters(exclude []*regexp.Regexp, include []*regexp.Regexp) {
	filtered := node.getFilteredMetrics(exclude, include)
	for name := range node.metrics {
		if !filtered[name] {
			delete(node.metrics, name)
		}
	}
}

func (node *collectorNode) getFilteredMetrics(exclude []*regexp.Regexp, include []*regexp.Regexp) map[string]bool {
	filtered := make(map[string]bool)
	for metric := range node.metrics {
		excluded := false
		for _, regex := range exclude {
			if excluded = regex.MatchString(metric); excluded {
				break
			}
		}
		if !excluded && len(include) > 0 {
			excluded = true
			for _, regex := range include {
				if excluded = !regex.MatchString(metric); !excluded {
					break
				}
			}
		}
		if !excluded {
			filtered[metric] = true
		}
	}
	return filtered
}

// update returns MetricsChanged unchanged, so the caller can rebuild the graph.
// Other errors are tolerated up to ToleratedUpdateFailures consecutive times.
func (node *collectorNode) update() error {
	err := node.collector.Update()
	if err == MetricsChanged {
		log.Warnln("Metrics of", node, "have changed! Restarting metric collection.")
		return err
	} else if err != nil {
		node.failedUpdates++
		if node.failedUpdates >= ToleratedUpdateFailures {
			log.Warnln("Collector", node, "exceeded tolerated number of", ToleratedUpdateFailures, "consecutive failures")
			node.failedUpdates = 0
			return MetricsChanged
		}
		log.Warnln("Update of", node, "failed:", err)
		return err
	}
	node.failedUpdates = 0
	return nil
}
