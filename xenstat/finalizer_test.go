package xenstat_test

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bitflow-stream/go-xenstat-collector/mock"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectingDriver forces garbage collections in the middle of native reads and
// counts reads that happen after the snapshot was freed.
type collectingDriver struct {
	*xenstat.MockDriver
	readsAfterFree int32
}

func (d *collectingDriver) Init() (xenstat.Handle, error) {
	handle, err := d.MockDriver.Init()
	if err != nil {
		return nil, err
	}
	return &collectingHandle{Handle: handle, driver: d}, nil
}

type collectingHandle struct {
	xenstat.Handle
	driver *collectingDriver
}

func (h *collectingHandle) GetNode(flags xenstat.Flags) xenstat.NodeData {
	data := h.Handle.GetNode(flags)
	if data == nil {
		return nil
	}
	return &collectingNode{NodeData: data, driver: h.driver}
}

type collectingNode struct {
	xenstat.NodeData
	driver *collectingDriver
	freed  int32
}

func (n *collectingNode) Free() {
	atomic.StoreInt32(&n.freed, 1)
	n.NodeData.Free()
}

func (n *collectingNode) collect() {
	for i := 0; i < 5; i++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&n.freed) != 0 {
		atomic.AddInt32(&n.driver.readsAfterFree, 1)
	}
}

func (n *collectingNode) XenVersion() []byte {
	n.collect()
	return n.NodeData.XenVersion()
}

func (n *collectingNode) Domain(domid uint32) xenstat.DomainData {
	data := n.NodeData.Domain(domid)
	if data == nil {
		return nil
	}
	return &collectingDomain{DomainData: data, node: n}
}

type collectingDomain struct {
	xenstat.DomainData
	node *collectingNode
}

func (d *collectingDomain) CpuNs() uint64 {
	d.node.collect()
	return d.DomainData.CpuNs()
}

// waitForRelease runs the garbage collector until the driver logged count
// release calls or a timeout expires.
func waitForRelease(driver *xenstat.MockDriver, count int) []string {
	deadline := time.Now().Add(5 * time.Second)
	for {
		runtime.GC()
		released := driver.ReleaseLog()
		if len(released) >= count || time.Now().After(deadline) {
			return released
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readVersion(t *testing.T, driver xenstat.Driver) string {
	node, err := xenstat.OpenWith(driver)
	require.NoError(t, err)
	version, err := node.XenVersion()
	require.NoError(t, err)
	return version
}

func readCpuNs(t *testing.T, driver xenstat.Driver, domid uint32) uint64 {
	node, err := xenstat.OpenWith(driver)
	require.NoError(t, err)
	dom, err := node.Domain(domid)
	require.NoError(t, err)
	ns, err := dom.CpuNs()
	require.NoError(t, err)
	return ns
}

func TestNodeFreedByFinalizer(t *testing.T) {
	driver := mock.NewHost()
	func() {
		node, err := xenstat.OpenWith(driver)
		require.NoError(t, err)
		_, err = node.NumDomains()
		require.NoError(t, err)
	}()

	released := waitForRelease(driver, 2)
	assert.Equal(t, []string{xenstat.ReleasedNode, xenstat.ReleasedHandle}, released)

	// Later collections do not release anything twice
	runtime.GC()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, released, driver.ReleaseLog())
}

func TestSnapshotAliveDuringRead(t *testing.T) {
	driver := &collectingDriver{MockDriver: mock.NewHost()}

	assert.Equal(t, "4.17.3", readVersion(t, driver))
	assert.Equal(t, int32(0), atomic.LoadInt32(&driver.readsAfterFree))
	assert.Equal(t, uint64(42), readCpuNs(t, driver, 7))
	assert.Equal(t, int32(0), atomic.LoadInt32(&driver.readsAfterFree))

	// Both forgotten snapshots are still released afterwards
	released := waitForRelease(driver.MockDriver, 4)
	assert.Equal(t, []string{
		xenstat.ReleasedNode, xenstat.ReleasedHandle,
		xenstat.ReleasedNode, xenstat.ReleasedHandle,
	}, released)
}
