package xenstat

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"
)

// libxenstat is not documented to be reentrant, so acquiring and releasing
// native handles is serialized across all Nodes of the process.
var lifecycleLock sync.Mutex

// Node is one point-in-time snapshot of the host and all its domains. It owns
// the native library handle and the snapshot object fetched through it.
//
// All Domain, Vcpu, Network, Vbd and Tmem values obtained from a Node borrow its
// memory. After Close they report ErrClosed instead of touching released memory.
// A Node must not be used from multiple goroutines at the same time.
type Node struct {
	handle Handle
	node   NodeData
}

// Open initializes libxenstat and fetches a snapshot with NodeFlags.
func Open() (*Node, error) {
	return OpenWith(NewDriver())
}

// OpenWith is like Open, but uses the given Driver. If the driver cannot be
// initialized, the returned error wraps ErrUnavailable. A driver returning no
// snapshot is not an error here: the Node is valid, but its accessors return ErrNoData.
func OpenWith(driver Driver) (*Node, error) {
	lifecycleLock.Lock()
	defer lifecycleLock.Unlock()

	handle, err := driver.Init()
	if err != nil {
		if !errors.Is(err, ErrUnavailable) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, err
	}
	if handle == nil {
		return nil, ErrUnavailable
	}
	n := &Node{
		handle: handle,
		node:   handle.GetNode(NodeFlags),
	}
	if n.node == nil {
		log.Debugln("xenstat: no node snapshot returned for flags", fmt.Sprintf("%#x", uint32(NodeFlags)))
	}
	// Accessors keep n reachable with runtime.KeepAlive until their native reads are done
	runtime.SetFinalizer(n, (*Node).finalize)
	return n, nil
}

// Close releases the snapshot and then the library handle. Only the first call
// has an effect.
func (n *Node) Close() error {
	if n == nil {
		return nil
	}
	lifecycleLock.Lock()
	defer lifecycleLock.Unlock()
	n.release()
	runtime.SetFinalizer(n, nil)
	return nil
}

func (n *Node) finalize() {
	lifecycleLock.Lock()
	defer lifecycleLock.Unlock()
	if n.handle != nil {
		log.Warnln("xenstat: releasing snapshot that was never closed")
		n.release()
	}
}

// The snapshot must be freed while the handle is still alive.
func (n *Node) release() {
	if n.handle == nil {
		return
	}
	if n.node != nil {
		n.node.Free()
		n.node = nil
	}
	n.handle.Uninit()
	n.handle = nil
}

func (n *Node) alive() error {
	if n == nil || n.handle == nil {
		return ErrClosed
	}
	return nil
}

func (n *Node) data() (NodeData, error) {
	if err := n.alive(); err != nil {
		return nil, err
	}
	if n.node == nil {
		return nil, ErrNoData
	}
	return n.node, nil
}

// Domain returns the domain with the given domain ID.
func (n *Node) Domain(domid uint32) (*Domain, error) {
	data, err := n.data()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(n)
	d := data.Domain(domid)
	if d == nil {
		return nil, fmt.Errorf("domain id %v: %w", domid, ErrNotFound)
	}
	return &Domain{node: n, data: d}, nil
}

// DomainByIndex returns the domain at the given position of the snapshot. Valid
// indexes range from 0 to NumDomains()-1, the order is defined by the hypervisor.
func (n *Node) DomainByIndex(index uint32) (*Domain, error) {
	data, err := n.data()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(n)
	d := data.DomainByIndex(index)
	if d == nil {
		return nil, fmt.Errorf("domain index %v: %w", index, ErrNotFound)
	}
	return &Domain{node: n, data: d}, nil
}

// Domains returns all domains in enumeration order.
func (n *Node) Domains() ([]*Domain, error) {
	num, err := n.NumDomains()
	if err != nil {
		return nil, err
	}
	defer runtime.KeepAlive(n)
	domains := make([]*Domain, 0, num)
	for i := uint32(0); i < num; i++ {
		d, err := n.DomainByIndex(i)
		if err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, nil
}

func (n *Node) XenVersion() (string, error) {
	data, err := n.data()
	if err != nil {
		return "", err
	}
	defer runtime.KeepAlive(n)
	return decodeText(data.XenVersion()), nil
}

// TotalMemory returns the host memory in bytes.
func (n *Node) TotalMemory() (uint64, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.TotalMem(), nil
}

// FreeMemory returns the unallocated host memory in bytes.
func (n *Node) FreeMemory() (uint64, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.FreeMem(), nil
}

// FreeableMemory returns the tmem memory that could be freed, in MiB. Negative
// values mean that tmem is not in use.
func (n *Node) FreeableMemory() (int64, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.FreeableMb(), nil
}

func (n *Node) NumDomains() (uint32, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.NumDomains(), nil
}

func (n *Node) NumCpus() (uint32, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.NumCpus(), nil
}

func (n *Node) CpuHz() (uint64, error) {
	data, err := n.data()
	if err != nil {
		return 0, err
	}
	defer runtime.KeepAlive(n)
	return data.CpuHz(), nil
}

// NodeInfo is a detached copy of a Node and all its domains.
type NodeInfo struct {
	XenVersion     string       `json:"xen_version"`
	TotalMemory    uint64       `json:"total_memory"`
	FreeMemory     uint64       `json:"free_memory"`
	FreeableMemory int64        `json:"freeable_mb"`
	NumCpus        uint32       `json:"num_cpus"`
	CpuHz          uint64       `json:"cpu_hz"`
	Domains        []DomainInfo `json:"domains"`
}

// Info copies the entire snapshot. The result stays valid after Close.
func (n *Node) Info() (NodeInfo, error) {
	data, err := n.data()
	if err != nil {
		return NodeInfo{}, err
	}
	defer runtime.KeepAlive(n)
	info := NodeInfo{
		XenVersion:     decodeText(data.XenVersion()),
		TotalMemory:    data.TotalMem(),
		FreeMemory:     data.FreeMem(),
		FreeableMemory: data.FreeableMb(),
		NumCpus:        data.NumCpus(),
		CpuHz:          data.CpuHz(),
	}
	domains, err := n.Domains()
	if err != nil {
		return NodeInfo{}, err
	}
	info.Domains = make([]DomainInfo, 0, len(domains))
	for _, d := range domains {
		domInfo, err := d.Info()
		if err != nil {
			return NodeInfo{}, err
		}
		info.Domains = append(info.Domains, domInfo)
	}
	return info, nil
}

// decodeText turns a native string into a Go string. The decoder replaces every
// invalid byte with U+FFFD and never fails.
func decodeText(raw []byte) string {
	decoded, _ := unicode.UTF8.NewDecoder().Bytes(raw)
	return string(decoded)
}
