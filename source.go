package collector

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/antongulenko/golib"
	"github.com/bitflow-stream/go-bitflow/bitflow"
	log "github.com/sirupsen/logrus"
)

// SampleSource updates a graph of collectors and turns their metrics into bitflow samples.
// Collectors in the same dependency layer are updated according to UpdatePolicy; layers
// are always processed in order. A SampleSource is not safe for concurrent use.
type SampleSource struct {
	RootCollectors []Collector
	ExcludeMetrics []*regexp.Regexp
	IncludeMetrics []*regexp.Regexp
	UpdatePolicy   CollectorTaskPolicy

	graph   *collectorGraph
	layers  [][]*collectorNode
	metrics MetricSlice
	header  *bitflow.Header
	values  []bitflow.Value
}

// Closer can be implemented by collectors holding resources between updates.
type Closer interface {
	Close()
}

func (source *SampleSource) String() string {
	return fmt.Sprintf("SampleSource (%v collectors)", len(source.RootCollectors))
}

// Init (re-)builds the collector graph. It is called implicitly by Sample().
func (source *SampleSource) Init() error {
	graph, err := initCollectorGraph(source.RootCollectors)
	if err != nil {
		return err
	}
	graph.applyMetricFilters(source.ExcludeMetrics, source.IncludeMetrics)
	if err := graph.pruneAndRepair(); err != nil {
		return err
	}
	layers, err := graph.layers()
	if err != nil {
		return err
	}

	metrics := graph.getMetrics()
	fields, values := metrics.ConstructSample()
	log.Debugln("Locally collecting", len(metrics), "metrics through", len(graph.nodes), "collectors")

	source.graph = graph
	source.layers = layers
	source.metrics = metrics
	source.values = values
	source.header = &bitflow.Header{Fields: fields}
	return nil
}

// Sample updates all collectors and returns the current value of every metric.
// Failing collectors are logged, their metrics keep the previous value. If the set
// of metrics changes, the graph is rebuilt and the header changes accordingly.
func (source *SampleSource) Sample() (*bitflow.Header, *bitflow.Sample, error) {
	if source.graph == nil {
		if err := source.Init(); err != nil {
			return nil, nil, err
		}
	}
	changed, err := source.update()
	if changed {
		if err := source.Init(); err != nil {
			return nil, nil, err
		}
		if changed, err = source.update(); changed {
			return nil, nil, MetricsChanged
		}
	}
	if err != nil {
		log.Warnln("Failed to update collectors:", err)
	}

	source.metrics.UpdateAll()
	values := make([]bitflow.Value, len(source.values))
	copy(values, source.values)
	return source.header, &bitflow.Sample{
		Time:   time.Now(),
		Values: values,
	}, nil
}

func (source *SampleSource) update() (changed bool, err error) {
	var errors golib.MultiError
	var lock sync.Mutex
	failed := make(map[*collectorNode]bool)

	for _, layer := range source.layers {
		tasks := make(CollectorTasks, 0, len(layer))
		for _, node := range layer {
			node := node
			tasks = append(tasks, func() error {
				lock.Lock()
				for _, depends := range node.collector.Depends() {
					if failed[source.graph.resolve(depends)] {
						failed[node] = true
						lock.Unlock()
						return nil
					}
				}
				lock.Unlock()

				updateErr := node.update()
				if updateErr != nil {
					lock.Lock()
					failed[node] = true
					if updateErr == MetricsChanged {
						changed = true
					}
					lock.Unlock()
				}
				return updateErr
			})
		}
		errors.Add(tasks.Run(source.UpdatePolicy))
	}
	return changed, errors.NilOrError()
}

// CurrentMetrics returns the names of all metrics delivered by Sample(), in order.
func (source *SampleSource) CurrentMetrics() []string {
	if source.header == nil {
		return nil
	}
	res := make([]string, len(source.header.Fields))
	copy(res, source.header.Fields)
	return res
}

// AllMetrics initializes a fresh graph and returns all metric names, marking those
// that are excluded by the metric filters.
func (source *SampleSource) AllMetrics() (included []string, excluded []string, err error) {
	graph, err := initCollectorGraph(source.RootCollectors)
	if err != nil {
		return nil, nil, err
	}
	all := graph.listMetricNames()
	graph.applyMetricFilters(source.ExcludeMetrics, source.IncludeMetrics)
	filtered := make(map[string]bool)
	for _, name := range graph.listMetricNames() {
		filtered[name] = true
	}
	for _, name := range all {
		if filtered[name] {
			included = append(included, name)
		} else {
			excluded = append(excluded, name)
		}
	}
	closeCollectors(graph)
	return
}

func (source *SampleSource) WriteGraphDOT(filename string) error {
	if source.graph == nil {
		if err := source.Init(); err != nil {
			return err
		}
	}
	return source.graph.WriteGraphDOT(filename)
}

// Close releases the resources of all collectors implementing Closer.
func (source *SampleSource) Close() {
	if source.graph != nil {
		closeCollectors(source.graph)
	}
}

func closeCollectors(graph *collectorGraph) {
	for col := range graph.collectors {
		if closer, ok := col.(Closer); ok {
			closer.Close()
		}
	}
}
