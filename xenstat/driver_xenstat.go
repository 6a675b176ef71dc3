//go:build !noxenstat

package xenstat

// #cgo LDFLAGS: -lxenstat
//
// #include <stdlib.h>
// #include <string.h>
// #include <xenstat.h>
import "C"

import (
	"fmt"
	"syscall"
	"unsafe"
)

var _ Driver = new(DriverImpl)

func NewDriver() Driver {
	return new(DriverImpl)
}

type DriverImpl struct{}

func (d *DriverImpl) Init() (Handle, error) {
	h, errno := C.xenstat_init()
	if h == nil {
		if errno == nil {
			errno = syscall.ENODEV
		}
		return nil, fmt.Errorf("%w: xenstat_init: %v", ErrUnavailable, errno)
	}
	return &handleImpl{h}, nil
}

type handleImpl struct {
	handle *C.xenstat_handle
}

func (h *handleImpl) GetNode(flags Flags) NodeData {
	node := C.xenstat_get_node(h.handle, C.uint(flags))
	if node == nil {
		return nil
	}
	return &nodeImpl{node}
}

func (h *handleImpl) Uninit() {
	C.xenstat_uninit(h.handle)
	h.handle = nil
}

type nodeImpl struct {
	node *C.xenstat_node
}

func (n *nodeImpl) Domain(domid uint32) DomainData {
	return wrapDomain(C.xenstat_node_domain(n.node, C.uint(domid)))
}

func (n *nodeImpl) DomainByIndex(index uint32) DomainData {
	return wrapDomain(C.xenstat_node_domain_by_index(n.node, C.uint(index)))
}

func (n *nodeImpl) XenVersion() []byte {
	return cBytes(C.xenstat_node_xen_version(n.node))
}

func (n *nodeImpl) TotalMem() uint64 {
	return uint64(C.xenstat_node_tot_mem(n.node))
}

func (n *nodeImpl) FreeMem() uint64 {
	return uint64(C.xenstat_node_free_mem(n.node))
}

func (n *nodeImpl) FreeableMb() int64 {
	return int64(C.xenstat_node_freeable_mb(n.node))
}

func (n *nodeImpl) NumDomains() uint32 {
	return uint32(C.xenstat_node_num_domains(n.node))
}

func (n *nodeImpl) NumCpus() uint32 {
	return uint32(C.xenstat_node_num_cpus(n.node))
}

func (n *nodeImpl) CpuHz() uint64 {
	return uint64(C.xenstat_node_cpu_hz(n.node))
}

func (n *nodeImpl) Free() {
	C.xenstat_free_node(n.node)
	n.node = nil
}

// cBytes copies a NUL-terminated C string. Decoding happens later, so invalid
// UTF-8 survives the copy untouched.
func cBytes(s *C.char) []byte {
	if s == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(s), C.int(C.strlen(s)))
}

type domainImpl struct {
	domain *C.xenstat_domain
}

func wrapDomain(d *C.xenstat_domain) DomainData {
	if d == nil {
		return nil
	}
	return &domainImpl{d}
}

func (d *domainImpl) ID() uint32       { return uint32(C.xenstat_domain_id(d.domain)) }
func (d *domainImpl) Name() []byte     { return cBytes(C.xenstat_domain_name(d.domain)) }
func (d *domainImpl) CpuNs() uint64    { return uint64(C.xenstat_domain_cpu_ns(d.domain)) }
func (d *domainImpl) NumVcpus() uint32 { return uint32(C.xenstat_domain_num_vcpus(d.domain)) }
func (d *domainImpl) CurMem() uint64   { return uint64(C.xenstat_domain_cur_mem(d.domain)) }
func (d *domainImpl) MaxMem() uint64   { return uint64(C.xenstat_domain_max_mem(d.domain)) }
func (d *domainImpl) Ssid() uint32     { return uint32(C.xenstat_domain_ssid(d.domain)) }
func (d *domainImpl) Running() uint32  { return uint32(C.xenstat_domain_running(d.domain)) }
func (d *domainImpl) Blocked() uint32  { return uint32(C.xenstat_domain_blocked(d.domain)) }
func (d *domainImpl) Paused() uint32   { return uint32(C.xenstat_domain_paused(d.domain)) }
func (d *domainImpl) Shutdown() uint32 { return uint32(C.xenstat_domain_shutdown(d.domain)) }
func (d *domainImpl) Crashed() uint32  { return uint32(C.xenstat_domain_crashed(d.domain)) }
func (d *domainImpl) Dying() uint32    { return uint32(C.xenstat_domain_dying(d.domain)) }

func (d *domainImpl) NumNetworks() uint32 {
	return uint32(C.xenstat_domain_num_networks(d.domain))
}

func (d *domainImpl) NumVbds() uint32 {
	return uint32(C.xenstat_domain_num_vbds(d.domain))
}

func (d *domainImpl) Vcpu(vcpu uint32) VcpuData {
	v := C.xenstat_domain_vcpu(d.domain, C.uint(vcpu))
	if v == nil {
		return nil
	}
	return &vcpuImpl{v}
}

func (d *domainImpl) Network(network uint32) NetworkData {
	n := C.xenstat_domain_network(d.domain, C.uint(network))
	if n == nil {
		return nil
	}
	return &networkImpl{n}
}

func (d *domainImpl) Vbd(vbd uint32) VbdData {
	v := C.xenstat_domain_vbd(d.domain, C.uint(vbd))
	if v == nil {
		return nil
	}
	return &vbdImpl{v}
}

func (d *domainImpl) Tmem() TmemData {
	t := C.xenstat_domain_tmem(d.domain)
	if t == nil {
		return nil
	}
	return &tmemImpl{t}
}

type vcpuImpl struct {
	vcpu *C.xenstat_vcpu
}

func (v *vcpuImpl) Online() uint32 { return uint32(C.xenstat_vcpu_online(v.vcpu)) }
func (v *vcpuImpl) Ns() uint64     { return uint64(C.xenstat_vcpu_ns(v.vcpu)) }

type networkImpl struct {
	net *C.xenstat_network
}

func (n *networkImpl) ID() uint32        { return uint32(C.xenstat_network_id(n.net)) }
func (n *networkImpl) RxBytes() uint64   { return uint64(C.xenstat_network_rbytes(n.net)) }
func (n *networkImpl) RxPackets() uint64 { return uint64(C.xenstat_network_rpackets(n.net)) }
func (n *networkImpl) RxErrs() uint64    { return uint64(C.xenstat_network_rerrs(n.net)) }
func (n *networkImpl) RxDrop() uint64    { return uint64(C.xenstat_network_rdrop(n.net)) }
func (n *networkImpl) TxBytes() uint64   { return uint64(C.xenstat_network_tbytes(n.net)) }
func (n *networkImpl) TxPackets() uint64 { return uint64(C.xenstat_network_tpackets(n.net)) }
func (n *networkImpl) TxErrs() uint64    { return uint64(C.xenstat_network_terrs(n.net)) }
func (n *networkImpl) TxDrop() uint64    { return uint64(C.xenstat_network_tdrop(n.net)) }

type vbdImpl struct {
	vbd *C.xenstat_vbd
}

func (v *vbdImpl) Type() uint32    { return uint32(C.xenstat_vbd_type(v.vbd)) }
func (v *vbdImpl) Dev() uint32     { return uint32(C.xenstat_vbd_dev(v.vbd)) }
func (v *vbdImpl) OoReqs() uint64  { return uint64(C.xenstat_vbd_oo_reqs(v.vbd)) }
func (v *vbdImpl) RdReqs() uint64  { return uint64(C.xenstat_vbd_rd_reqs(v.vbd)) }
func (v *vbdImpl) WrReqs() uint64  { return uint64(C.xenstat_vbd_wr_reqs(v.vbd)) }
func (v *vbdImpl) RdSects() uint64 { return uint64(C.xenstat_vbd_rd_sects(v.vbd)) }
func (v *vbdImpl) WrSects() uint64 { return uint64(C.xenstat_vbd_wr_sects(v.vbd)) }

type tmemImpl struct {
	tmem *C.xenstat_tmem
}

func (t *tmemImpl) CurrEphPages() uint64 { return uint64(C.xenstat_tmem_curr_eph_pages(t.tmem)) }
func (t *tmemImpl) SuccEphGets() uint64  { return uint64(C.xenstat_tmem_succ_eph_gets(t.tmem)) }
func (t *tmemImpl) SuccPersPuts() uint64 { return uint64(C.xenstat_tmem_succ_pers_puts(t.tmem)) }
func (t *tmemImpl) SuccPersGets() uint64 { return uint64(C.xenstat_tmem_succ_pers_gets(t.tmem)) }
