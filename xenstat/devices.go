package xenstat

import (
	"fmt"
	"runtime"
)

// ==================== VCPU ====================

type Vcpu struct {
	domain *Domain
	data   VcpuData
}

func (v *Vcpu) ref() (VcpuData, error) {
	if v == nil || v.data == nil {
		return nil, ErrNotFound
	}
	if _, err := v.domain.ref(); err != nil {
		return nil, err
	}
	return v.data, nil
}

func (v *Vcpu) Online() (bool, error) {
	data, err := v.ref()
	if err != nil {
		return false, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return data.Online() != 0, nil
}

// Ns returns the time this VCPU has been running, in nanoseconds.
func (v *Vcpu) Ns() (uint64, error) {
	data, err := v.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return data.Ns(), nil
}

type VcpuInfo struct {
	Online bool   `json:"online"`
	Ns     uint64 `json:"ns"`
}

func (v *Vcpu) Info() (VcpuInfo, error) {
	data, err := v.ref()
	if err != nil {
		return VcpuInfo{}, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return vcpuInfo(data), nil
}

func vcpuInfo(v VcpuData) VcpuInfo {
	return VcpuInfo{
		Online: v.Online() != 0,
		Ns:     v.Ns(),
	}
}

// ==================== Network ====================

type Network struct {
	domain *Domain
	data   NetworkData
}

func (n *Network) ref() (NetworkData, error) {
	if n == nil || n.data == nil {
		return nil, ErrNotFound
	}
	if _, err := n.domain.ref(); err != nil {
		return nil, err
	}
	return n.data, nil
}

func (n *Network) read(field func(NetworkData) uint64) (uint64, error) {
	data, err := n.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n.domain.node)
	return field(data), nil
}

func (n *Network) ID() (uint32, error) {
	data, err := n.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n.domain.node)
	return data.ID(), nil
}

func (n *Network) RxBytes() (uint64, error)   { return n.read(NetworkData.RxBytes) }
func (n *Network) RxPackets() (uint64, error) { return n.read(NetworkData.RxPackets) }
func (n *Network) RxErrors() (uint64, error)  { return n.read(NetworkData.RxErrs) }
func (n *Network) RxDrops() (uint64, error)   { return n.read(NetworkData.RxDrop) }
func (n *Network) TxBytes() (uint64, error)   { return n.read(NetworkData.TxBytes) }
func (n *Network) TxPackets() (uint64, error) { return n.read(NetworkData.TxPackets) }
func (n *Network) TxErrors() (uint64, error)  { return n.read(NetworkData.TxErrs) }
func (n *Network) TxDrops() (uint64, error)   { return n.read(NetworkData.TxDrop) }

type NetworkInfo struct {
	ID        uint32 `json:"id"`
	RxBytes   uint64 `json:"rx_bytes"`
	RxPackets uint64 `json:"rx_packets"`
	RxErrors  uint64 `json:"rx_errors"`
	RxDrops   uint64 `json:"rx_drops"`
	TxBytes   uint64 `json:"tx_bytes"`
	TxPackets uint64 `json:"tx_packets"`
	TxErrors  uint64 `json:"tx_errors"`
	TxDrops   uint64 `json:"tx_drops"`
}

func (n *Network) Info() (NetworkInfo, error) {
	data, err := n.ref()
	if err != nil {
		return NetworkInfo{}, err
	}
	defer runtime.KeepAlive(n.domain.node)
	return networkInfo(data), nil
}

func networkInfo(n NetworkData) NetworkInfo {
	return NetworkInfo{
		ID:        n.ID(),
		RxBytes:   n.RxBytes(),
		RxPackets: n.RxPackets(),
		RxErrors:  n.RxErrs(),
		RxDrops:   n.RxDrop(),
		TxBytes:   n.TxBytes(),
		TxPackets: n.TxPackets(),
		TxErrors:  n.TxErrs(),
		TxDrops:   n.TxDrop(),
	}
}

// ==================== VBD ====================

// VbdType classifies the back-end serving a virtual block device.
type VbdType int

const (
	VbdUnidentified = VbdType(0)
	VbdBlkBack      = VbdType(1)
	VbdBlkTap       = VbdType(2)
)

// decodeVbdType panics on codes outside of the three known types: such a code
// means libxenstat and this package disagree about the ABI.
func decodeVbdType(code uint32) VbdType {
	switch VbdType(code) {
	case VbdUnidentified, VbdBlkBack, VbdBlkTap:
		return VbdType(code)
	default:
		panic(fmt.Sprintf("xenstat: unknown vbd type code %d", code))
	}
}

func (t VbdType) String() string {
	switch t {
	case VbdUnidentified:
		return "unidentified"
	case VbdBlkBack:
		return "blkback"
	case VbdBlkTap:
		return "blktap"
	default:
		return fmt.Sprintf("vbd-type-%d", int(t))
	}
}

func (t VbdType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *VbdType) UnmarshalText(text []byte) error {
	for _, known := range []VbdType{VbdUnidentified, VbdBlkBack, VbdBlkTap} {
		if string(text) == known.String() {
			*t = known
			return nil
		}
	}
	return fmt.Errorf("xenstat: unknown vbd type %q", text)
}

type Vbd struct {
	domain *Domain
	data   VbdData
}

func (v *Vbd) ref() (VbdData, error) {
	if v == nil || v.data == nil {
		return nil, ErrNotFound
	}
	if _, err := v.domain.ref(); err != nil {
		return nil, err
	}
	return v.data, nil
}

func (v *Vbd) read(field func(VbdData) uint64) (uint64, error) {
	data, err := v.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return field(data), nil
}

func (v *Vbd) Type() (VbdType, error) {
	data, err := v.ref()
	if err != nil {
		return VbdUnidentified, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return decodeVbdType(data.Type()), nil
}

func (v *Vbd) Dev() (uint32, error) {
	data, err := v.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return data.Dev(), nil
}

func (v *Vbd) OutOfOrderReqs() (uint64, error) { return v.read(VbdData.OoReqs) }
func (v *Vbd) ReadReqs() (uint64, error)       { return v.read(VbdData.RdReqs) }
func (v *Vbd) WriteReqs() (uint64, error)      { return v.read(VbdData.WrReqs) }
func (v *Vbd) ReadSectors() (uint64, error)    { return v.read(VbdData.RdSects) }
func (v *Vbd) WriteSectors() (uint64, error)   { return v.read(VbdData.WrSects) }

type VbdInfo struct {
	Type           VbdType `json:"type"`
	Dev            uint32  `json:"dev"`
	OutOfOrderReqs uint64  `json:"oo_reqs"`
	ReadReqs       uint64  `json:"rd_reqs"`
	WriteReqs      uint64  `json:"wr_reqs"`
	ReadSectors    uint64  `json:"rd_sects"`
	WriteSectors   uint64  `json:"wr_sects"`
}

func (v *Vbd) Info() (VbdInfo, error) {
	data, err := v.ref()
	if err != nil {
		return VbdInfo{}, err
	}
	defer runtime.KeepAlive(v.domain.node)
	return vbdInfo(data), nil
}

func vbdInfo(v VbdData) VbdInfo {
	return VbdInfo{
		Type:           decodeVbdType(v.Type()),
		Dev:            v.Dev(),
		OutOfOrderReqs: v.OoReqs(),
		ReadReqs:       v.RdReqs(),
		WriteReqs:      v.WrReqs(),
		ReadSectors:    v.RdSects(),
		WriteSectors:   v.WrSects(),
	}
}

// ==================== Tmem ====================

// Tmem holds the transcendent memory counters of a domain.
type Tmem struct {
	domain *Domain
	data   TmemData
}

func (t *Tmem) read(field func(TmemData) uint64) (uint64, error) {
	if t == nil || t.data == nil {
		return 0, ErrNotFound
	}
	if _, err := t.domain.ref(); err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(t.domain.node)
	return field(t.data), nil
}

func (t *Tmem) CurrEphPages() (uint64, error) { return t.read(TmemData.CurrEphPages) }
func (t *Tmem) SuccEphGets() (uint64, error)  { return t.read(TmemData.SuccEphGets) }
func (t *Tmem) SuccPersPuts() (uint64, error) { return t.read(TmemData.SuccPersPuts) }
func (t *Tmem) SuccPersGets() (uint64, error) { return t.read(TmemData.SuccPersGets) }

type TmemInfo struct {
	CurrEphPages uint64 `json:"curr_eph_pages"`
	SuccEphGets  uint64 `json:"succ_eph_gets"`
	SuccPersPuts uint64 `json:"succ_pers_puts"`
	SuccPersGets uint64 `json:"succ_pers_gets"`
}

func (t *Tmem) Info() (TmemInfo, error) {
	if t == nil || t.data == nil {
		return TmemInfo{}, ErrNotFound
	}
	if _, err := t.domain.ref(); err != nil {
		return TmemInfo{}, err
	}
	defer runtime.KeepAlive(t.domain.node)
	return tmemInfo(t.data), nil
}

func tmemInfo(t TmemData) TmemInfo {
	return TmemInfo{
		CurrEphPages: t.CurrEphPages(),
		SuccEphGets:  t.SuccEphGets(),
		SuccPersPuts: t.SuccPersPuts(),
		SuccPersGets: t.SuccPersGets(),
	}
}
