package xenstat

var _ Driver = new(MockDriver)
var _ DomainData = new(MockDomain)

// MockDriver is an in-memory Driver. It serves the statistics stored in Node and
// records every native release call in Released, so tests can verify that a
// snapshot is freed exactly once and before its handle.
type MockDriver struct {
	Node        *MockNode
	InjectedErr error

	// NilNode makes GetNode return no snapshot while Init still succeeds.
	NilNode bool

	Requested []Flags
	Released  []string
}

// Entries of MockDriver.Released.
const (
	ReleasedNode   = "free_node"
	ReleasedHandle = "uninit"
)

// ReleaseLog returns a copy of Released. It is safe to call while a finalizer
// may be releasing a forgotten Node.
func (d *MockDriver) ReleaseLog() []string {
	lifecycleLock.Lock()
	defer lifecycleLock.Unlock()
	return append([]string(nil), d.Released...)
}

func (d *MockDriver) Init() (Handle, error) {
	if d.InjectedErr != nil {
		return nil, d.InjectedErr
	}
	return &mockHandle{driver: d}, nil
}

type mockHandle struct {
	driver *MockDriver
}

func (h *mockHandle) GetNode(flags Flags) NodeData {
	h.driver.Requested = append(h.driver.Requested, flags)
	if h.driver.NilNode || h.driver.Node == nil {
		return nil
	}
	return &mockNodeRef{MockNode: h.driver.Node, driver: h.driver}
}

func (h *mockHandle) Uninit() {
	h.driver.Released = append(h.driver.Released, ReleasedHandle)
}

type MockNode struct {
	Version     []byte
	TotalMemory uint64
	FreeMemory  uint64
	FreeableMiB int64
	Cpus        uint32
	Hz          uint64
	Domains     []*MockDomain
}

type mockNodeRef struct {
	*MockNode
	driver *MockDriver
}

func (n *mockNodeRef) Domain(domid uint32) DomainData {
	for _, d := range n.Domains {
		if d.DomID == domid {
			return d
		}
	}
	return nil
}

func (n *mockNodeRef) DomainByIndex(index uint32) DomainData {
	if int(index) >= len(n.Domains) {
		return nil
	}
	return n.Domains[index]
}

func (n *mockNodeRef) XenVersion() []byte { return n.Version }
func (n *mockNodeRef) TotalMem() uint64   { return n.TotalMemory }
func (n *mockNodeRef) FreeMem() uint64    { return n.FreeMemory }
func (n *mockNodeRef) FreeableMb() int64  { return n.FreeableMiB }
func (n *mockNodeRef) NumDomains() uint32 { return uint32(len(n.Domains)) }
func (n *mockNodeRef) NumCpus() uint32    { return n.Cpus }
func (n *mockNodeRef) CpuHz() uint64      { return n.Hz }

func (n *mockNodeRef) Free() {
	n.driver.Released = append(n.driver.Released, ReleasedNode)
}

type MockDomain struct {
	DomID      uint32
	DomName    []byte
	CpuTime    uint64
	CurrentMem uint64
	MaximumMem uint64
	SecurityID uint32
	State      DomainState

	Vcpus     []*MockVcpu
	Networks  []*MockNetwork
	Vbds      []*MockVbd
	TmemStats *MockTmem
}

func (d *MockDomain) ID() uint32          { return d.DomID }
func (d *MockDomain) Name() []byte        { return d.DomName }
func (d *MockDomain) CpuNs() uint64       { return d.CpuTime }
func (d *MockDomain) NumVcpus() uint32    { return uint32(len(d.Vcpus)) }
func (d *MockDomain) CurMem() uint64      { return d.CurrentMem }
func (d *MockDomain) MaxMem() uint64      { return d.MaximumMem }
func (d *MockDomain) Ssid() uint32        { return d.SecurityID }
func (d *MockDomain) Running() uint32     { return predicate(d.State.Running) }
func (d *MockDomain) Blocked() uint32     { return predicate(d.State.Blocked) }
func (d *MockDomain) Paused() uint32      { return predicate(d.State.Paused) }
func (d *MockDomain) Shutdown() uint32    { return predicate(d.State.Shutdown) }
func (d *MockDomain) Crashed() uint32     { return predicate(d.State.Crashed) }
func (d *MockDomain) Dying() uint32       { return predicate(d.State.Dying) }
func (d *MockDomain) NumNetworks() uint32 { return uint32(len(d.Networks)) }
func (d *MockDomain) NumVbds() uint32     { return uint32(len(d.Vbds)) }

func (d *MockDomain) Vcpu(vcpu uint32) VcpuData {
	if int(vcpu) >= len(d.Vcpus) {
		return nil
	}
	return d.Vcpus[vcpu]
}

func (d *MockDomain) Network(network uint32) NetworkData {
	if int(network) >= len(d.Networks) {
		return nil
	}
	return d.Networks[network]
}

func (d *MockDomain) Vbd(vbd uint32) VbdData {
	if int(vbd) >= len(d.Vbds) {
		return nil
	}
	return d.Vbds[vbd]
}

func (d *MockDomain) Tmem() TmemData {
	if d.TmemStats == nil {
		return nil
	}
	return d.TmemStats
}

// predicate encodes a flag the way libxenstat does: nonzero for true.
func predicate(set bool) uint32 {
	if set {
		return 1
	}
	return 0
}

type MockVcpu struct {
	IsOnline bool
	Time     uint64
}

func (v *MockVcpu) Online() uint32 { return predicate(v.IsOnline) }
func (v *MockVcpu) Ns() uint64     { return v.Time }

type MockNetwork struct {
	Stats NetworkInfo
}

func (n *MockNetwork) ID() uint32        { return n.Stats.ID }
func (n *MockNetwork) RxBytes() uint64   { return n.Stats.RxBytes }
func (n *MockNetwork) RxPackets() uint64 { return n.Stats.RxPackets }
func (n *MockNetwork) RxErrs() uint64    { return n.Stats.RxErrors }
func (n *MockNetwork) RxDrop() uint64    { return n.Stats.RxDrops }
func (n *MockNetwork) TxBytes() uint64   { return n.Stats.TxBytes }
func (n *MockNetwork) TxPackets() uint64 { return n.Stats.TxPackets }
func (n *MockNetwork) TxErrs() uint64    { return n.Stats.TxErrors }
func (n *MockNetwork) TxDrop() uint64    { return n.Stats.TxDrops }

// MockVbd carries the raw type code separately from Stats, so tests can inject
// codes that are not a valid VbdType.
type MockVbd struct {
	TypeCode uint32
	Stats    VbdInfo
}

func (v *MockVbd) Type() uint32    { return v.TypeCode }
func (v *MockVbd) Dev() uint32     { return v.Stats.Dev }
func (v *MockVbd) OoReqs() uint64  { return v.Stats.OutOfOrderReqs }
func (v *MockVbd) RdReqs() uint64  { return v.Stats.ReadReqs }
func (v *MockVbd) WrReqs() uint64  { return v.Stats.WriteReqs }
func (v *MockVbd) RdSects() uint64 { return v.Stats.ReadSectors }
func (v *MockVbd) WrSects() uint64 { return v.Stats.WriteSectors }

type MockTmem struct {
	Stats TmemInfo
}

func (t *MockTmem) CurrEphPages() uint64 { return t.Stats.CurrEphPages }
func (t *MockTmem) SuccEphGets() uint64  { return t.Stats.SuccEphGets }
func (t *MockTmem) SuccPersPuts() uint64 { return t.Stats.SuccPersPuts }
func (t *MockTmem) SuccPersGets() uint64 { return t.Stats.SuccPersGets }
