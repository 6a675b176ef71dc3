package xen

import (
	"fmt"
	"strconv"

	"github.com/bitflow-stream/go-bitflow/bitflow"
	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
)

type domainCollector struct {
	collector.AbstractCollector
	parent *Collector
	info   xenstat.DomainInfo
}

func (parent *Collector) newDomainCollector(info xenstat.DomainInfo) *domainCollector {
	return &domainCollector{
		AbstractCollector: parent.Child(info.Name),
		parent:            parent,
		info:              info,
	}
}

func (col *domainCollector) Depends() []collector.Collector {
	return []collector.Collector{col.parent}
}

func (col *domainCollector) prefix() string {
	return MetricPrefix + col.Name + "/"
}

func (col *domainCollector) Update() error {
	info, ok := col.parent.domainInfo(col.Name)
	if !ok {
		return collector.MetricsChanged
	}
	if !sameLayout(col.info, info) {
		col.info = info
		return collector.MetricsChanged
	}
	col.info = info
	return nil
}

// sameLayout reports whether both copies produce the same set of metric names.
func sameLayout(a, b xenstat.DomainInfo) bool {
	if len(a.Vcpus) != len(b.Vcpus) || len(a.Networks) != len(b.Networks) ||
		len(a.Vbds) != len(b.Vbds) || (a.Tmem == nil) != (b.Tmem == nil) {
		return false
	}
	for i := range a.Networks {
		if a.Networks[i].ID != b.Networks[i].ID {
			return false
		}
	}
	for i := range a.Vbds {
		if a.Vbds[i].Dev != b.Vbds[i].Dev {
			return false
		}
	}
	return true
}

func (col *domainCollector) Metrics() collector.MetricReaderMap {
	prefix := col.prefix()
	res := collector.MetricReaderMap{
		prefix + "cpu_ns":  func() bitflow.Value { return bitflow.Value(col.info.CpuNs) },
		prefix + "vcpus":   func() bitflow.Value { return bitflow.Value(len(col.info.Vcpus)) },
		prefix + "mem/cur": func() bitflow.Value { return bitflow.Value(col.info.CurMem) },
		prefix + "mem/max": func() bitflow.Value { return bitflow.Value(col.info.MaxMem) },
		prefix + "ssid":    func() bitflow.Value { return bitflow.Value(col.info.Ssid) },

		prefix + "state/running":  col.stateReader(func(s xenstat.DomainState) bool { return s.Running }),
		prefix + "state/blocked":  col.stateReader(func(s xenstat.DomainState) bool { return s.Blocked }),
		prefix + "state/paused":   col.stateReader(func(s xenstat.DomainState) bool { return s.Paused }),
		prefix + "state/shutdown": col.stateReader(func(s xenstat.DomainState) bool { return s.Shutdown }),
		prefix + "state/crashed":  col.stateReader(func(s xenstat.DomainState) bool { return s.Crashed }),
		prefix + "state/dying":    col.stateReader(func(s xenstat.DomainState) bool { return s.Dying }),
	}
	for i := range col.info.Vcpus {
		i := i
		vcpu := prefix + "vcpu/" + strconv.Itoa(i) + "/"
		res[vcpu+"online"] = func() bitflow.Value { return boolValue(col.info.Vcpus[i].Online) }
		res[vcpu+"ns"] = func() bitflow.Value { return bitflow.Value(col.info.Vcpus[i].Ns) }
	}
	for i, net := range col.info.Networks {
		col.networkMetrics(res, fmt.Sprintf("%vnet/%v/", prefix, net.ID), i)
	}
	for i, vbd := range col.info.Vbds {
		col.vbdMetrics(res, fmt.Sprintf("%vvbd/%v/", prefix, vbd.Dev), i)
	}
	if col.info.Tmem != nil {
		tmem := prefix + "tmem/"
		res[tmem+"curr_eph_pages"] = func() bitflow.Value { return bitflow.Value(col.info.Tmem.CurrEphPages) }
		res[tmem+"succ_eph_gets"] = func() bitflow.Value { return bitflow.Value(col.info.Tmem.SuccEphGets) }
		res[tmem+"succ_pers_puts"] = func() bitflow.Value { return bitflow.Value(col.info.Tmem.SuccPersPuts) }
		res[tmem+"succ_pers_gets"] = func() bitflow.Value { return bitflow.Value(col.info.Tmem.SuccPersGets) }
	}
	return res
}

func (col *domainCollector) stateReader(flag func(xenstat.DomainState) bool) collector.MetricReader {
	return func() bitflow.Value {
		return boolValue(flag(col.info.State))
	}
}

func (col *domainCollector) networkMetrics(res collector.MetricReaderMap, prefix string, i int) {
	counters := map[string]func(xenstat.NetworkInfo) uint64{
		"rx_bytes":   func(n xenstat.NetworkInfo) uint64 { return n.RxBytes },
		"rx_packets": func(n xenstat.NetworkInfo) uint64 { return n.RxPackets },
		"rx_errors":  func(n xenstat.NetworkInfo) uint64 { return n.RxErrors },
		"rx_drops":   func(n xenstat.NetworkInfo) uint64 { return n.RxDrops },
		"tx_bytes":   func(n xenstat.NetworkInfo) uint64 { return n.TxBytes },
		"tx_packets": func(n xenstat.NetworkInfo) uint64 { return n.TxPackets },
		"tx_errors":  func(n xenstat.NetworkInfo) uint64 { return n.TxErrors },
		"tx_drops":   func(n xenstat.NetworkInfo) uint64 { return n.TxDrops },
	}
	for name, counter := range counters {
		counter := counter
		res[prefix+name] = func() bitflow.Value { return bitflow.Value(counter(col.info.Networks[i])) }
	}
}

func (col *domainCollector) vbdMetrics(res collector.MetricReaderMap, prefix string, i int) {
	counters := map[string]func(xenstat.VbdInfo) uint64{
		"oo_reqs":  func(v xenstat.VbdInfo) uint64 { return v.OutOfOrderReqs },
		"rd_reqs":  func(v xenstat.VbdInfo) uint64 { return v.ReadReqs },
		"wr_reqs":  func(v xenstat.VbdInfo) uint64 { return v.WriteReqs },
		"rd_sects": func(v xenstat.VbdInfo) uint64 { return v.ReadSectors },
		"wr_sects": func(v xenstat.VbdInfo) uint64 { return v.WriteSectors },
	}
	for name, counter := range counters {
		counter := counter
		res[prefix+name] = func() bitflow.Value { return bitflow.Value(counter(col.info.Vbds[i])) }
	}
}

func boolValue(b bool) bitflow.Value {
	if b {
		return 1
	}
	return 0
}
