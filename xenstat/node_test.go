package xenstat_test

import (
	"errors"
	"testing"

	"github.com/bitflow-stream/go-xenstat-collector/mock"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/stretchr/testify/suite"
)

type NodeTestSuite struct {
	suite.Suite
	driver *xenstat.MockDriver
	node   *xenstat.Node
}

func TestNode(t *testing.T) {
	suite.Run(t, new(NodeTestSuite))
}

func (s *NodeTestSuite) SetupTest() {
	s.driver = mock.NewHost()
	node, err := xenstat.OpenWith(s.driver)
	s.Require().NoError(err)
	s.node = node
}

func (s *NodeTestSuite) TearDownTest() {
	s.NoError(s.node.Close())
}

func (s *NodeTestSuite) TestNodeFlags() {
	s.Equal(xenstat.Flags(0xF), xenstat.NodeFlags)
	s.Equal(xenstat.FlagVcpu|xenstat.FlagNetwork|xenstat.FlagXenVersion|xenstat.FlagVbd, xenstat.NodeFlags)
	s.Equal([]xenstat.Flags{xenstat.NodeFlags}, s.driver.Requested)
}

func (s *NodeTestSuite) TestHostScalars() {
	cpus, err := s.node.NumCpus()
	s.NoError(err)
	s.Equal(uint32(4), cpus)

	hz, err := s.node.CpuHz()
	s.NoError(err)
	s.Equal(uint64(2000000000), hz)

	total, err := s.node.TotalMemory()
	s.NoError(err)
	s.Equal(uint64(8589934592), total)

	free, err := s.node.FreeMemory()
	s.NoError(err)
	s.Equal(uint64(4294967296), free)

	freeable, err := s.node.FreeableMemory()
	s.NoError(err)
	s.Equal(int64(-1), freeable)

	num, err := s.node.NumDomains()
	s.NoError(err)
	s.Equal(uint32(2), num)

	version, err := s.node.XenVersion()
	s.NoError(err)
	s.Equal("4.17.3", version)
}

func (s *NodeTestSuite) TestDomainByIndex() {
	d, err := s.node.DomainByIndex(0)
	s.Require().NoError(err)
	id, err := d.ID()
	s.NoError(err)
	s.Equal(s.driver.Node.Domains[0].DomID, id)

	d, err = s.node.DomainByIndex(1)
	s.Require().NoError(err)
	name, err := d.Name()
	s.NoError(err)
	s.Equal("guest", name)

	d, err = s.node.DomainByIndex(2)
	s.Nil(d)
	s.True(errors.Is(err, xenstat.ErrNotFound))
}

func (s *NodeTestSuite) TestDomainByID() {
	d, err := s.node.Domain(7)
	s.Require().NoError(err)
	name, err := d.Name()
	s.NoError(err)
	s.Equal("guest", name)

	d, err = s.node.Domain(99)
	s.Nil(d)
	s.True(errors.Is(err, xenstat.ErrNotFound))
}

func (s *NodeTestSuite) TestDomains() {
	domains, err := s.node.Domains()
	s.Require().NoError(err)
	s.Len(domains, 2)
	id, err := domains[1].ID()
	s.NoError(err)
	s.Equal(uint32(7), id)
}

func (s *NodeTestSuite) TestRunningDomain() {
	d, err := s.node.Domain(0)
	s.Require().NoError(err)
	state, err := d.State()
	s.Require().NoError(err)
	s.Equal("-----r", state.Print())
}

func (s *NodeTestSuite) TestMalformedVersion() {
	s.driver.Node.Version = []byte("4.\xff17")
	version, err := s.node.XenVersion()
	s.NoError(err)
	s.Equal("4.�17", version)

	// Every invalid byte is replaced on its own
	s.driver.Node.Version = []byte("4.\xff\xfe17\xc3")
	version, err = s.node.XenVersion()
	s.NoError(err)
	s.Equal("4.��17�", version)
}

func (s *NodeTestSuite) TestInfo() {
	info, err := s.node.Info()
	s.Require().NoError(err)
	s.Equal("4.17.3", info.XenVersion)
	s.Equal(uint32(4), info.NumCpus)
	s.Require().Len(info.Domains, 2)

	guest := info.Domains[1]
	s.Equal("guest", guest.Name)
	s.Equal(xenstat.DomainState{Blocked: true}, guest.State)
	s.Len(guest.Vcpus, 1)
	s.Require().Len(guest.Networks, 1)
	s.Equal(uint64(200), guest.Networks[0].TxBytes)
	s.Require().Len(guest.Vbds, 2)
	s.Equal(xenstat.VbdBlkBack, guest.Vbds[0].Type)
	s.Equal(xenstat.VbdBlkTap, guest.Vbds[1].Type)
	s.Require().NotNil(guest.Tmem)
	s.Equal(uint64(14), guest.Tmem.SuccPersGets)
	s.Nil(info.Domains[0].Tmem)

	// The copy stays usable after the snapshot is gone
	s.NoError(s.node.Close())
	s.Equal("guest", info.Domains[1].Name)
}

func (s *NodeTestSuite) TestCloseOrderAndIdempotence() {
	s.NoError(s.node.Close())
	s.NoError(s.node.Close())
	s.Equal([]string{xenstat.ReleasedNode, xenstat.ReleasedHandle}, s.driver.Released)
}

func (s *NodeTestSuite) TestUseAfterClose() {
	d, err := s.node.Domain(7)
	s.Require().NoError(err)
	v, err := d.Vcpu(0)
	s.Require().NoError(err)
	n, err := d.Network(0)
	s.Require().NoError(err)
	t, err := d.Tmem()
	s.Require().NoError(err)

	s.NoError(s.node.Close())

	_, err = s.node.NumCpus()
	s.Equal(xenstat.ErrClosed, err)
	_, err = s.node.Domain(7)
	s.Equal(xenstat.ErrClosed, err)
	_, err = d.ID()
	s.Equal(xenstat.ErrClosed, err)
	_, err = d.State()
	s.Equal(xenstat.ErrClosed, err)
	_, err = v.Ns()
	s.Equal(xenstat.ErrClosed, err)
	_, err = n.RxBytes()
	s.Equal(xenstat.ErrClosed, err)
	_, err = t.CurrEphPages()
	s.Equal(xenstat.ErrClosed, err)
}

func TestOpenUnavailable(t *testing.T) {
	driver := &xenstat.MockDriver{InjectedErr: errors.New("permission denied")}
	node, err := xenstat.OpenWith(driver)
	if node != nil {
		t.Fatalf("expected no node, got %v", node)
	}
	if !errors.Is(err, xenstat.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if len(driver.Released) != 0 {
		t.Fatalf("nothing should have been released, got %v", driver.Released)
	}
}

func TestOpenWithoutSnapshot(t *testing.T) {
	driver := mock.NewHost()
	driver.NilNode = true
	node, err := xenstat.OpenWith(driver)
	if err != nil {
		t.Fatalf("Open failure: %s", err)
	}
	if _, err := node.NumDomains(); err != xenstat.ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := node.DomainByIndex(0); err != xenstat.ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if err := node.Close(); err != nil {
		t.Fatalf("Close failure: %s", err)
	}
	// Without a snapshot only the handle is released
	if len(driver.Released) != 1 || driver.Released[0] != xenstat.ReleasedHandle {
		t.Fatalf("unexpected release sequence %v", driver.Released)
	}
}

func TestNilNode(t *testing.T) {
	var node *xenstat.Node
	if err := node.Close(); err != nil {
		t.Fatalf("Close on nil node: %v", err)
	}
	if _, err := node.CpuHz(); err != xenstat.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
