package collector

import (
	"errors"

	"github.com/bitflow-stream/go-bitflow/bitflow"
)

type MetricReader func() bitflow.Value

type MetricReaderMap map[string]MetricReader

var MetricsChanged = errors.New("Metrics of this collector have changed")

// Collector forms a tree-structure of objects that are able to provide regularly
// updated metric values. A collector is first initialized, which can optionally return
// a new list of Collectors that will also be considered. The new collectors will also be
// initialized, until the tree exhausted. Individual collectors can fail the initialization,
// which will not influence the non-failed collectors.
// After the Init() sequence, the Metrics() method is queried to retrieve a list of metrics
// that are delivered by every collector. It may return an empty map in case of collectors
// that are only there to satisfy dependencies of other collectors.
// Then, the Depends() method is used to build up a dependency graph between the collectors.
// Typically, each collector will returns its parent-collector as sole dependency, but it
// can also return an empty slice or multiple dependencies. All collectors returned from any
// Depends() method must already have been initialized in the Init() sequence.
type Collector interface {

	// Init prepares this collector for collecting metrics and instantiates sub-collectors.
	// If there is no error, the sub-collectors will also be initialized, until there are
	// no more sub-nodes. The metrics in the MetricReaderMap are all stored in one flat list,
	// the keys must be globally unique.
	Init() (subCollectors []Collector, err error)

	// Metrics will only be called after Init() returned successfully. It returns the metrics
	// that are provided by this collector.
	Metrics() MetricReaderMap

	// Depends returns a slice of collectors whose Update() this collector depends on.
	// This means that this collector needs data from those other collectors to perform
	// its Update() routine correctly. Therefore, Update() will be called on those other
	// collectors first. The Depends() methods build up an acyclic dependency graph, whose
	// topological order gives the order of Update() calls.
	Depends() []Collector

	// Update refreshes the values returned by the MetricReaders. Returning MetricsChanged
	// causes the entire collector graph to be initialized again.
	Update() error

	// String returns a short but unique label for the collector.
	String() string
}

// ================================= Abstract Collector =================================
type AbstractCollector struct {
	Parent *AbstractCollector
	Name   string
}

func RootCollector(name string) AbstractCollector {
	return AbstractCollector{Name: name}
}

func (col *AbstractCollector) Child(name string) AbstractCollector {
	return AbstractCollector{
		Parent: col,
		Name:   name,
	}
}

func (col *AbstractCollector) String() string {
	parentName := ""
	if col.Parent != nil {
		parentName = col.Parent.String() + "/"
	}
	return parentName + col.Name
}

func (col *AbstractCollector) Init() ([]Collector, error) {
	return nil, nil
}

func (col *AbstractCollector) Metrics() MetricReaderMap {
	return nil
}

func (col *AbstractCollector) Depends() []Collector {
	return nil
}

func (col *AbstractCollector) Update() error {
	return nil
}

// ==================== Metric ====================
type Metric struct {
	Name   string
	index  int
	sample []bitflow.Value
	reader MetricReader
}

func (metric *Metric) Update() {
	metric.sample[metric.index] = metric.reader()
}

type MetricSlice []*Metric

func (metrics MetricSlice) ConstructSample() ([]string, []bitflow.Value) {
	fields := make([]string, len(metrics))
	values := make([]bitflow.Value, len(metrics))
	for i, metric := range metrics {
		metric.index = i
		metric.sample = values
		fields[i] = metric.Name
	}
	return fields, values
}

func (metrics MetricSlice) UpdateAll() {
	for _, metric := range metrics {
		metric.Update()
	}
}

func (metrics MetricSlice) Len() int {
	return len(metrics)
}

func (metrics MetricSlice) Less(i, j int) bool {
	return metrics[i].Name < metrics[j].Name
}

func (metrics MetricSlice) Swap(i, j int) {
	metrics[i], metrics[j] = metrics[j], metrics[i]
}
