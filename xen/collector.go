package xen

import (
	"fmt"

	"github.com/bitflow-stream/go-bitflow/bitflow"
	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	log "github.com/sirupsen/logrus"
)

const MetricPrefix = "xen/"

// Collector is the root collector for a Xen host. Every Update copies a fresh
// snapshot and releases it right away, so no native memory is held between
// updates and the per-domain child collectors only read the copy.
type Collector struct {
	collector.AbstractCollector
	driver  xenstat.Driver
	info    xenstat.NodeInfo
	domains map[string]*domainCollector
}

func NewXenCollector(driver xenstat.Driver) *Collector {
	return &Collector{
		AbstractCollector: collector.RootCollector("xen"),
		driver:            driver,
	}
}

func (col *Collector) Init() ([]collector.Collector, error) {
	if err := col.refresh(); err != nil {
		return nil, err
	}
	col.domains = make(map[string]*domainCollector, len(col.info.Domains))
	res := make([]collector.Collector, 0, len(col.info.Domains))
	for _, domain := range col.info.Domains {
		if _, ok := col.domains[domain.Name]; ok {
			log.Warnf("Ignoring Xen domain %v (id %v): duplicate name", domain.Name, domain.ID)
			continue
		}
		child := col.newDomainCollector(domain)
		col.domains[domain.Name] = child
		res = append(res, child)
	}
	return res, nil
}

func (col *Collector) Metrics() collector.MetricReaderMap {
	prefix := MetricPrefix + "node/"
	return collector.MetricReaderMap{
		prefix + "mem/total":     func() bitflow.Value { return bitflow.Value(col.info.TotalMemory) },
		prefix + "mem/free":      func() bitflow.Value { return bitflow.Value(col.info.FreeMemory) },
		prefix + "tmem/freeable": func() bitflow.Value { return bitflow.Value(col.info.FreeableMemory) },
		prefix + "cpus":          func() bitflow.Value { return bitflow.Value(col.info.NumCpus) },
		prefix + "cpu_hz":        func() bitflow.Value { return bitflow.Value(col.info.CpuHz) },
		prefix + "domains":       func() bitflow.Value { return bitflow.Value(len(col.info.Domains)) },
	}
}

func (col *Collector) Update() error {
	if err := col.refresh(); err != nil {
		return err
	}
	names := make(map[string]bool, len(col.info.Domains))
	for _, domain := range col.info.Domains {
		if _, ok := col.domains[domain.Name]; !ok {
			return collector.MetricsChanged
		}
		names[domain.Name] = true
	}
	if len(names) != len(col.domains) {
		return collector.MetricsChanged
	}
	return nil
}

func (col *Collector) refresh() error {
	node, err := xenstat.OpenWith(col.driver)
	if err != nil {
		return err
	}
	info, err := node.Info()
	if closeErr := node.Close(); closeErr != nil {
		log.Errorln("Error closing Xen snapshot:", closeErr)
	}
	if err != nil {
		return fmt.Errorf("Failed to read Xen snapshot: %v", err)
	}
	col.info = info
	return nil
}

func (col *Collector) domainInfo(name string) (xenstat.DomainInfo, bool) {
	for _, domain := range col.info.Domains {
		if domain.Name == name {
			return domain, true
		}
	}
	return xenstat.DomainInfo{}, false
}
