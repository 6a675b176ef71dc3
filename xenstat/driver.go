package xenstat

// Flags selects the optional categories of counters fetched with a node snapshot.
// The values mirror the XENSTAT_* defines of xenstat.h.
type Flags uint32

const (
	FlagVcpu       = Flags(0x1)
	FlagNetwork    = Flags(0x2)
	FlagXenVersion = Flags(0x4)
	FlagVbd        = Flags(0x8)

	// NodeFlags is the fixed category mask used for every snapshot taken by Open.
	NodeFlags = FlagVcpu | FlagNetwork | FlagXenVersion | FlagVbd
)

// Driver is the entry point into the native statistics library.
// A nil interface value returned from any method below stands for a NULL pointer
// on the native side.
type Driver interface {
	Init() (Handle, error)
}

type Handle interface {
	GetNode(flags Flags) NodeData
	Uninit()
}

type NodeData interface {
	Domain(domid uint32) DomainData
	DomainByIndex(index uint32) DomainData
	XenVersion() []byte
	TotalMem() uint64
	FreeMem() uint64
	FreeableMb() int64
	NumDomains() uint32
	NumCpus() uint32
	CpuHz() uint64
	Free()
}

type DomainData interface {
	ID() uint32
	Name() []byte
	CpuNs() uint64
	NumVcpus() uint32
	Vcpu(vcpu uint32) VcpuData
	CurMem() uint64
	MaxMem() uint64
	Ssid() uint32

	// Run-state predicates, nonzero means the flag is set.
	Running() uint32
	Blocked() uint32
	Paused() uint32
	Shutdown() uint32
	Crashed() uint32
	Dying() uint32

	NumNetworks() uint32
	Network(network uint32) NetworkData
	NumVbds() uint32
	Vbd(vbd uint32) VbdData
	Tmem() TmemData
}

type VcpuData interface {
	Online() uint32
	Ns() uint64
}

type NetworkData interface {
	ID() uint32
	RxBytes() uint64
	RxPackets() uint64
	RxErrs() uint64
	RxDrop() uint64
	TxBytes() uint64
	TxPackets() uint64
	TxErrs() uint64
	TxDrop() uint64
}

type VbdData interface {
	Type() uint32
	Dev() uint32
	OoReqs() uint64
	RdReqs() uint64
	WrReqs() uint64
	RdSects() uint64
	WrSects() uint64
}

type TmemData interface {
	CurrEphPages() uint64
	SuccEphGets() uint64
	SuccPersPuts() uint64
	SuccPersGets() uint64
}
