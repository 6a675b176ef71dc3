// Package xenstat provides Go access to the statistics of a Xen host through
// libxenstat: host memory and CPUs, and per-domain CPU time, memory, run state,
// VCPUs, virtual NICs, virtual block devices and tmem counters.
//
// General usage: call Open() to obtain a Node, which is one snapshot of the
// host. From the Node you go to a Domain (by domain ID or by index), and from
// the Domain to its Vcpu, Network, Vbd and Tmem values. The snapshot never
// changes; call Open() again to get fresh counters. Call Node.Close() when done.
//
// All values obtained from a Node borrow native memory owned by the Node. Once
// the Node is closed, their methods return ErrClosed. Use Node.Info() or
// Domain.Info() to copy data that must outlive the Node.
//
// This is a cgo-based package that links against libxenstat. Build with the
// noxenstat tag on hosts without the Xen tools, in which case Open() always
// returns ErrUnavailable. Tests use MockDriver through OpenWith().
package xenstat
