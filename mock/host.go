package mock

import (
	"sync"

	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
)

const (
	GiB = uint64(1) << 30

	maxMockVal = 15
)

// NewHost returns an in-memory Xen host with Domain-0 (id 0) and one guest
// named "guest" (id 7) that has one network interface, two block devices and
// transcendent memory statistics.
func NewHost() *xenstat.MockDriver {
	return &xenstat.MockDriver{
		Node: &xenstat.MockNode{
			Version:     []byte("4.17.3"),
			TotalMemory: 8 * GiB,
			FreeMemory:  4 * GiB,
			FreeableMiB: -1,
			Cpus:        4,
			Hz:          2000000000,
			Domains: []*xenstat.MockDomain{
				{
					DomID:      0,
					DomName:    []byte("Domain-0"),
					CpuTime:    123456789,
					CurrentMem: 2 * GiB,
					MaximumMem: 4 * GiB,
					State:      xenstat.DomainState{Running: true},
					Vcpus: []*xenstat.MockVcpu{
						{IsOnline: true, Time: 1000},
						{IsOnline: false, Time: 2000},
					},
				},
				{
					DomID:      7,
					DomName:    []byte("guest"),
					CpuTime:    42,
					CurrentMem: 1 * GiB,
					MaximumMem: 1 * GiB,
					SecurityID: 3,
					State:      xenstat.DomainState{Blocked: true},
					Vcpus: []*xenstat.MockVcpu{
						{IsOnline: true, Time: 500},
					},
					Networks: []*xenstat.MockNetwork{
						{Stats: xenstat.NetworkInfo{ID: 0, RxBytes: 100, RxPackets: 10, RxErrors: 1, RxDrops: 2,
							TxBytes: 200, TxPackets: 20, TxErrors: 3, TxDrops: 4}},
					},
					Vbds: []*xenstat.MockVbd{
						{TypeCode: 1, Stats: xenstat.VbdInfo{Dev: 51712, OutOfOrderReqs: 5, ReadReqs: 6,
							WriteReqs: 7, ReadSectors: 8, WriteSectors: 9}},
						{TypeCode: 2, Stats: xenstat.VbdInfo{Dev: 51728}},
					},
					TmemStats: &xenstat.MockTmem{Stats: xenstat.TmemInfo{CurrEphPages: 11, SuccEphGets: 12,
						SuccPersPuts: 13, SuccPersGets: 14}},
				},
			},
		},
	}
}

// TickingDriver serves NewHost and advances its counters every time a
// snapshot is opened. It allows running the collector without a hypervisor.
type TickingDriver struct {
	*xenstat.MockDriver
	lock sync.Mutex
	val  uint64
}

func NewTickingDriver() *TickingDriver {
	return &TickingDriver{MockDriver: NewHost()}
}

func (d *TickingDriver) Init() (xenstat.Handle, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.val++
	if d.val >= maxMockVal {
		d.val = 2
	}
	// Only the bookkeeping of the current snapshot is of interest here
	d.Requested = d.Requested[:0]
	d.Released = d.Released[:0]

	for _, domain := range d.Node.Domains {
		if !domain.State.Running && !domain.State.Blocked {
			continue
		}
		domain.CpuTime += d.val * 1000000
		for _, vcpu := range domain.Vcpus {
			if vcpu.IsOnline {
				vcpu.Time += d.val * 1000000
			}
		}
		for _, net := range domain.Networks {
			net.Stats.RxBytes += d.val * 1500
			net.Stats.RxPackets += d.val
			net.Stats.TxBytes += d.val * 700
			net.Stats.TxPackets += d.val
		}
		for _, vbd := range domain.Vbds {
			vbd.Stats.ReadReqs += d.val
			vbd.Stats.ReadSectors += d.val * 8
		}
	}
	return d.MockDriver.Init()
}
