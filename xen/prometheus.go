package xen

import (
	"strconv"

	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

const promNamespace = "xen"

var (
	domainLabels  = []string{"domain", "domid"}
	vcpuLabels    = []string{"domain", "domid", "vcpu"}
	networkLabels = []string{"domain", "domid", "network"}
	vbdLabels     = []string{"domain", "domid", "device", "type"}
	stateLabels   = []string{"domain", "domid", "state"}
)

func promDesc(name, help string, labels []string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(promNamespace, "", name), help, labels, nil)
}

// PrometheusCollector exports the Xen host through the Prometheus client library.
// Every scrape opens a fresh snapshot and closes it before returning.
type PrometheusCollector struct {
	driver xenstat.Driver

	up           *prometheus.Desc
	totalMemory  *prometheus.Desc
	freeMemory   *prometheus.Desc
	freeableTmem *prometheus.Desc
	cpus         *prometheus.Desc
	cpuHz        *prometheus.Desc
	domains      *prometheus.Desc

	cpuSeconds *prometheus.Desc
	memCurrent *prometheus.Desc
	memMax     *prometheus.Desc
	state      *prometheus.Desc
	vcpuOnline *prometheus.Desc
	vcpuNs     *prometheus.Desc
	netBytes   *prometheus.Desc
	netPackets *prometheus.Desc
	netErrors  *prometheus.Desc
	netDrops   *prometheus.Desc
	vbdOoReqs  *prometheus.Desc
	vbdReqs    *prometheus.Desc
	vbdSectors *prometheus.Desc
	tmemPages  *prometheus.Desc
	tmemOps    *prometheus.Desc
}

func NewPrometheusCollector(driver xenstat.Driver) *PrometheusCollector {
	direction := func(labels []string) []string {
		return append(append([]string(nil), labels...), "direction")
	}
	return &PrometheusCollector{
		driver: driver,

		up:           promDesc("up", "Whether the last snapshot of the Xen host succeeded", nil),
		totalMemory:  promDesc("node_memory_total_bytes", "Total memory of the host", nil),
		freeMemory:   promDesc("node_memory_free_bytes", "Free memory of the host", nil),
		freeableTmem: promDesc("node_tmem_freeable_mb", "Freeable transcendent memory, -1 if unknown", nil),
		cpus:         promDesc("node_cpus", "Number of physical CPUs", nil),
		cpuHz:        promDesc("node_cpu_hz", "CPU frequency in Hz", nil),
		domains:      promDesc("node_domains", "Number of domains", nil),

		cpuSeconds: promDesc("domain_cpu_ns_total", "CPU time consumed by the domain in nanoseconds", domainLabels),
		memCurrent: promDesc("domain_memory_bytes", "Current memory reservation of the domain", domainLabels),
		memMax:     promDesc("domain_memory_max_bytes", "Maximum memory reservation of the domain", domainLabels),
		state:      promDesc("domain_state", "Run-state flags of the domain", stateLabels),
		vcpuOnline: promDesc("vcpu_online", "Whether the VCPU is online", vcpuLabels),
		vcpuNs:     promDesc("vcpu_ns_total", "CPU time consumed by the VCPU in nanoseconds", vcpuLabels),
		netBytes:   promDesc("network_bytes_total", "Bytes transferred by the interface", direction(networkLabels)),
		netPackets: promDesc("network_packets_total", "Packets transferred by the interface", direction(networkLabels)),
		netErrors:  promDesc("network_errors_total", "Errors on the interface", direction(networkLabels)),
		netDrops:   promDesc("network_drops_total", "Dropped packets on the interface", direction(networkLabels)),
		vbdOoReqs:  promDesc("vbd_oo_requests_total", "Out-of-order requests of the block device", vbdLabels),
		vbdReqs:    promDesc("vbd_requests_total", "Requests of the block device", direction(vbdLabels)),
		vbdSectors: promDesc("vbd_sectors_total", "Sectors transferred by the block device", direction(vbdLabels)),
		tmemPages:  promDesc("tmem_ephemeral_pages", "Current ephemeral transcendent memory pages", domainLabels),
		tmemOps: promDesc("tmem_successful_ops_total", "Successful transcendent memory operations",
			append(append([]string(nil), domainLabels...), "op")),
	}
}

func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.up, c.totalMemory, c.freeMemory, c.freeableTmem, c.cpus, c.cpuHz, c.domains,
		c.cpuSeconds, c.memCurrent, c.memMax, c.state, c.vcpuOnline, c.vcpuNs,
		c.netBytes, c.netPackets, c.netErrors, c.netDrops,
		c.vbdOoReqs, c.vbdReqs, c.vbdSectors, c.tmemPages, c.tmemOps,
	} {
		ch <- desc
	}
}

func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	info, err := c.snapshot()
	if err != nil {
		log.Warnln("Failed to collect Xen statistics:", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
	ch <- prometheus.MustNewConstMetric(c.totalMemory, prometheus.GaugeValue, float64(info.TotalMemory))
	ch <- prometheus.MustNewConstMetric(c.freeMemory, prometheus.GaugeValue, float64(info.FreeMemory))
	ch <- prometheus.MustNewConstMetric(c.freeableTmem, prometheus.GaugeValue, float64(info.FreeableMemory))
	ch <- prometheus.MustNewConstMetric(c.cpus, prometheus.GaugeValue, float64(info.NumCpus))
	ch <- prometheus.MustNewConstMetric(c.cpuHz, prometheus.GaugeValue, float64(info.CpuHz))
	ch <- prometheus.MustNewConstMetric(c.domains, prometheus.GaugeValue, float64(len(info.Domains)))
	for _, domain := range info.Domains {
		c.collectDomain(ch, domain)
	}
}

func (c *PrometheusCollector) snapshot() (xenstat.NodeInfo, error) {
	node, err := xenstat.OpenWith(c.driver)
	if err != nil {
		return xenstat.NodeInfo{}, err
	}
	defer func() {
		if err := node.Close(); err != nil {
			log.Errorln("Error closing Xen snapshot:", err)
		}
	}()
	return node.Info()
}

func (c *PrometheusCollector) collectDomain(ch chan<- prometheus.Metric, d xenstat.DomainInfo) {
	id := strconv.FormatUint(uint64(d.ID), 10)
	counter := func(desc *prometheus.Desc, value uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(value), append([]string{d.Name, id}, labels...)...)
	}
	gauge := func(desc *prometheus.Desc, value float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, value, append([]string{d.Name, id}, labels...)...)
	}

	counter(c.cpuSeconds, d.CpuNs)
	gauge(c.memCurrent, float64(d.CurMem))
	gauge(c.memMax, float64(d.MaxMem))
	for _, flag := range []struct {
		name string
		set  bool
	}{
		{"dying", d.State.Dying},
		{"shutdown", d.State.Shutdown},
		{"blocked", d.State.Blocked},
		{"crashed", d.State.Crashed},
		{"paused", d.State.Paused},
		{"running", d.State.Running},
	} {
		gauge(c.state, promBool(flag.set), flag.name)
	}

	for i, vcpu := range d.Vcpus {
		index := strconv.Itoa(i)
		gauge(c.vcpuOnline, promBool(vcpu.Online), index)
		counter(c.vcpuNs, vcpu.Ns, index)
	}
	for _, net := range d.Networks {
		netID := strconv.FormatUint(uint64(net.ID), 10)
		counter(c.netBytes, net.RxBytes, netID, "rx")
		counter(c.netBytes, net.TxBytes, netID, "tx")
		counter(c.netPackets, net.RxPackets, netID, "rx")
		counter(c.netPackets, net.TxPackets, netID, "tx")
		counter(c.netErrors, net.RxErrors, netID, "rx")
		counter(c.netErrors, net.TxErrors, netID, "tx")
		counter(c.netDrops, net.RxDrops, netID, "rx")
		counter(c.netDrops, net.TxDrops, netID, "tx")
	}
	for _, vbd := range d.Vbds {
		dev, typ := strconv.FormatUint(uint64(vbd.Dev), 10), vbd.Type.String()
		counter(c.vbdOoReqs, vbd.OutOfOrderReqs, dev, typ)
		counter(c.vbdReqs, vbd.ReadReqs, dev, typ, "read")
		counter(c.vbdReqs, vbd.WriteReqs, dev, typ, "write")
		counter(c.vbdSectors, vbd.ReadSectors, dev, typ, "read")
		counter(c.vbdSectors, vbd.WriteSectors, dev, typ, "write")
	}
	if d.Tmem != nil {
		gauge(c.tmemPages, float64(d.Tmem.CurrEphPages))
		counter(c.tmemOps, d.Tmem.SuccEphGets, "ephemeral_get")
		counter(c.tmemOps, d.Tmem.SuccPersPuts, "persistent_put")
		counter(c.tmemOps, d.Tmem.SuccPersGets, "persistent_get")
	}
}

func promBool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
