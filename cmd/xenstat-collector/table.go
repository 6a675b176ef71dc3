package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	log "github.com/sirupsen/logrus"
)

func readSnapshot(driver xenstat.Driver) (xenstat.NodeInfo, error) {
	node, err := xenstat.OpenWith(driver)
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

// printTable prints one snapshot in the layout of xentop.
func printTable(out io.Writer, driver xenstat.Driver) error {
	info, err := readSnapshot(driver)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Xen %v: %v domains, %v CPUs at %v MHz, Mem: %vk total, %vk free\n",
		info.XenVersion, len(info.Domains), info.NumCpus, info.CpuHz/1000000,
		info.TotalMemory/1024, info.FreeMemory/1024)

	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "NAME\tID\tSTATE\tCPU(ns)\tMEM(k)\tMAXMEM(k)\tVCPUS\tNETS\tNETTX(k)\tNETRX(k)\tVBDS\tVBD_RD\tVBD_WR\tSSID\t")
	for _, d := range info.Domains {
		var tx, rx, rd, wr uint64
		for _, net := range d.Networks {
			tx += net.TxBytes
			rx += net.RxBytes
		}
		for _, vbd := range d.Vbds {
			rd += vbd.ReadReqs
			wr += vbd.WriteReqs
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t%v\t\n",
			d.Name, d.ID, d.State.Print(), d.CpuNs, d.CurMem/1024, d.MaxMem/1024,
			len(d.Vcpus), len(d.Networks), tx/1024, rx/1024, len(d.Vbds), rd, wr, d.Ssid)
	}
	return w.Flush()
}

// printSample prints the name and value of every metric of one sample.
func printSample(out io.Writer, source *collector.SampleSource) error {
	header, sample, err := source.Sample()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "# %v metrics at %v\n", len(header.Fields), sample.Time.Format("15:04:05.000"))
	for i, field := range header.Fields {
		fmt.Fprintf(w, "%v\t%v\n", field, sample.Values[i])
	}
	return w.Flush()
}
