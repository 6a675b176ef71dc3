package xenstat

import (
	"fmt"
	"runtime"
)

// Domain is a view of one virtual machine inside a Node snapshot.
type Domain struct {
	node *Node
	data DomainData
}

func (d *Domain) ref() (DomainData, error) {
	if d == nil || d.data == nil {
		return nil, ErrNotFound
	}
	if err := d.node.alive(); err != nil {
		return nil, err
	}
	return d.data, nil
}

func (d *Domain) ID() (uint32, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.ID(), nil
}

func (d *Domain) Name() (string, error) {
	data, err := d.ref()
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(d.node)
	return decodeText(data.Name()), nil
}

// CpuNs returns the CPU time consumed by the domain, in nanoseconds.
func (d *Domain) CpuNs() (uint64, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.CpuNs(), nil
}

func (d *Domain) NumVcpus() (uint32, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.NumVcpus(), nil
}

// CurMem returns the current memory reservation in bytes.
func (d *Domain) CurMem() (uint64, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.CurMem(), nil
}

// MaxMem returns the maximum memory reservation in bytes.
func (d *Domain) MaxMem() (uint64, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.MaxMem(), nil
}

func (d *Domain) Ssid() (uint32, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.Ssid(), nil
}

func (d *Domain) State() (DomainState, error) {
	data, err := d.ref()
	if err != nil {
		return DomainState{}, err
	}
	defer runtime.KeepAlive(d.node)
	return decodeState(data), nil
}

func (d *Domain) NumNetworks() (uint32, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.NumNetworks(), nil
}

func (d *Domain) NumVbds() (uint32, error) {
	data, err := d.ref()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(d.node)
	return data.NumVbds(), nil
}

// Vcpu returns the VCPU at the given index, ranging from 0 to NumVcpus()-1.
func (d *Domain) Vcpu(index uint32) (*Vcpu, error) {
	data, err := d.ref()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(d.node)
	if num := data.NumVcpus(); index >= num {
		return nil, fmt.Errorf("vcpu %v of %v: %w", index, num, ErrNotFound)
	}
	v := data.Vcpu(index)
	if v == nil {
		return nil, fmt.Errorf("vcpu %v: %w", index, ErrNotFound)
	}
	return &Vcpu{domain: d, data: v}, nil
}

// Network returns the virtual NIC at the given index, ranging from 0 to NumNetworks()-1.
func (d *Domain) Network(index uint32) (*Network, error) {
	data, err := d.ref()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(d.node)
	if num := data.NumNetworks(); index >= num {
		return nil, fmt.Errorf("network %v of %v: %w", index, num, ErrNotFound)
	}
	n := data.Network(index)
	if n == nil {
		return nil, fmt.Errorf("network %v: %w", index, ErrNotFound)
	}
	return &Network{domain: d, data: n}, nil
}

// Vbd returns the virtual block device at the given index, ranging from 0 to NumVbds()-1.
func (d *Domain) Vbd(index uint32) (*Vbd, error) {
	data, err := d.ref()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(d.node)
	if num := data.NumVbds(); index >= num {
		return nil, fmt.Errorf("vbd %v of %v: %w", index, num, ErrNotFound)
	}
	v := data.Vbd(index)
	if v == nil {
		return nil, fmt.Errorf("vbd %v: %w", index, ErrNotFound)
	}
	return &Vbd{domain: d, data: v}, nil
}

func (d *Domain) Tmem() (*Tmem, error) {
	data, err := d.ref()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(d.node)
	t := data.Tmem()
	if t == nil {
		return nil, fmt.Errorf("tmem: %w", ErrNotFound)
	}
	return &Tmem{domain: d, data: t}, nil
}

// DomainInfo is a detached copy of a Domain and its devices.
type DomainInfo struct {
	ID       uint32        `json:"id"`
	Name     string        `json:"name"`
	CpuNs    uint64        `json:"cpu_ns"`
	CurMem   uint64        `json:"cur_mem"`
	MaxMem   uint64        `json:"max_mem"`
	Ssid     uint32        `json:"ssid"`
	State    DomainState   `json:"state"`
	Vcpus    []VcpuInfo    `json:"vcpus"`
	Networks []NetworkInfo `json:"networks"`
	Vbds     []VbdInfo     `json:"vbds"`
	Tmem     *TmemInfo     `json:"tmem,omitempty"`
}

func (d *Domain) Info() (DomainInfo, error) {
	data, err := d.ref()
	if err != nil {
		return DomainInfo{}, err
	}
	defer runtime.KeepAlive(d.node)
	info := DomainInfo{
		ID:     data.ID(),
		Name:   decodeText(data.Name()),
		CpuNs:  data.CpuNs(),
		CurMem: data.CurMem(),
		MaxMem: data.MaxMem(),
		Ssid:   data.Ssid(),
		State:  decodeState(data),
	}
	for i := uint32(0); i < data.NumVcpus(); i++ {
		if v := data.Vcpu(i); v != nil {
			info.Vcpus = append(info.Vcpus, vcpuInfo(v))
		}
	}
	for i := uint32(0); i < data.NumNetworks(); i++ {
		if n := data.Network(i); n != nil {
			info.Networks = append(info.Networks, networkInfo(n))
		}
	}
	for i := uint32(0); i < data.NumVbds(); i++ {
		if v := data.Vbd(i); v != nil {
			info.Vbds = append(info.Vbds, vbdInfo(v))
		}
	}
	if t := data.Tmem(); t != nil {
		tmem := tmemInfo(t)
		info.Tmem = &tmem
	}
	return info, nil
}
