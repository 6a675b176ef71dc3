package mock

import (
	"testing"

	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickingDriver(t *testing.T) {
	driver := NewTickingDriver()
	read := func() xenstat.NodeInfo {
		node, err := xenstat.OpenWith(driver)
		require.NoError(t, err)
		defer node.Close()
		info, err := node.Info()
		require.NoError(t, err)
		return info
	}

	first := read()
	second := read()
	require.Len(t, second.Domains, 2)
	guest1, guest2 := first.Domains[1], second.Domains[1]
	assert.Equal(t, "guest", guest2.Name)
	assert.True(t, guest2.CpuNs > guest1.CpuNs)
	assert.True(t, guest2.Networks[0].RxBytes > guest1.Networks[0].RxBytes)
	assert.True(t, guest2.Vbds[0].ReadReqs > guest1.Vbds[0].ReadReqs)
	// Offline VCPUs do not advance
	assert.Equal(t, first.Domains[0].Vcpus[1].Ns, second.Domains[0].Vcpus[1].Ns)

	// Bookkeeping only covers the latest snapshot
	assert.Len(t, driver.Requested, 1)
	assert.Equal(t, []string{xenstat.ReleasedNode, xenstat.ReleasedHandle}, driver.Released)
}
