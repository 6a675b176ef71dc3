package xen

import (
	"errors"
	"regexp"
	"testing"

	"github.com/bitflow-stream/go-bitflow/bitflow"
	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/mock"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/stretchr/testify/suite"
)

type CollectorTestSuite struct {
	suite.Suite
	driver *xenstat.MockDriver
	source *collector.SampleSource
}

func TestCollector(t *testing.T) {
	suite.Run(t, new(CollectorTestSuite))
}

func (s *CollectorTestSuite) SetupTest() {
	s.driver = mock.NewHost()
	s.source = &collector.SampleSource{
		RootCollectors: []collector.Collector{NewXenCollector(s.driver)},
	}
}

func (s *CollectorTestSuite) TearDownTest() {
	s.source.Close()
}

func (s *CollectorTestSuite) sample() (*bitflow.Header, map[string]bitflow.Value) {
	header, sample, err := s.source.Sample()
	s.Require().NoError(err)
	s.Require().Len(sample.Values, len(header.Fields))
	values := make(map[string]bitflow.Value, len(header.Fields))
	for i, field := range header.Fields {
		values[field] = sample.Values[i]
	}
	return header, values
}

func (s *CollectorTestSuite) TestNodeMetrics() {
	_, values := s.sample()
	s.Equal(bitflow.Value(8*mock.GiB), values["xen/node/mem/total"])
	s.Equal(bitflow.Value(4*mock.GiB), values["xen/node/mem/free"])
	s.Equal(bitflow.Value(-1), values["xen/node/tmem/freeable"])
	s.Equal(bitflow.Value(4), values["xen/node/cpus"])
	s.Equal(bitflow.Value(2000000000), values["xen/node/cpu_hz"])
	s.Equal(bitflow.Value(2), values["xen/node/domains"])
}

func (s *CollectorTestSuite) TestDomainMetrics() {
	_, values := s.sample()
	s.Equal(bitflow.Value(123456789), values["xen/Domain-0/cpu_ns"])
	s.Equal(bitflow.Value(2), values["xen/Domain-0/vcpus"])
	s.Equal(bitflow.Value(1), values["xen/Domain-0/vcpu/0/online"])
	s.Equal(bitflow.Value(0), values["xen/Domain-0/vcpu/1/online"])
	s.Equal(bitflow.Value(2000), values["xen/Domain-0/vcpu/1/ns"])
	s.Equal(bitflow.Value(1), values["xen/Domain-0/state/running"])
	s.Equal(bitflow.Value(0), values["xen/Domain-0/state/blocked"])
	s.NotContains(values, "xen/Domain-0/tmem/curr_eph_pages")

	s.Equal(bitflow.Value(3), values["xen/guest/ssid"])
	s.Equal(bitflow.Value(1), values["xen/guest/state/blocked"])
	s.Equal(bitflow.Value(mock.GiB), values["xen/guest/mem/max"])
	s.Equal(bitflow.Value(100), values["xen/guest/net/0/rx_bytes"])
	s.Equal(bitflow.Value(4), values["xen/guest/net/0/tx_drops"])
	s.Equal(bitflow.Value(6), values["xen/guest/vbd/51712/rd_reqs"])
	s.Equal(bitflow.Value(9), values["xen/guest/vbd/51712/wr_sects"])
	s.Contains(values, "xen/guest/vbd/51728/oo_reqs")
	s.Equal(bitflow.Value(14), values["xen/guest/tmem/succ_pers_gets"])
}

func (s *CollectorTestSuite) TestCountersFollowSnapshots() {
	header, _ := s.sample()
	s.driver.Node.Domains[1].CpuTime = 4242
	s.driver.Node.Domains[1].Networks[0].Stats.RxBytes = 1000

	header2, values := s.sample()
	s.Equal(header.Fields, header2.Fields)
	s.Equal(bitflow.Value(4242), values["xen/guest/cpu_ns"])
	s.Equal(bitflow.Value(1000), values["xen/guest/net/0/rx_bytes"])
}

func (s *CollectorTestSuite) TestDomainAddedAndRemoved() {
	s.sample()
	s.driver.Node.Domains = append(s.driver.Node.Domains, &xenstat.MockDomain{
		DomID:   9,
		DomName: []byte("new-guest"),
		CpuTime: 17,
		State:   xenstat.DomainState{Paused: true},
	})
	_, values := s.sample()
	s.Equal(bitflow.Value(3), values["xen/node/domains"])
	s.Equal(bitflow.Value(17), values["xen/new-guest/cpu_ns"])
	s.Equal(bitflow.Value(1), values["xen/new-guest/state/paused"])

	s.driver.Node.Domains = s.driver.Node.Domains[:1]
	_, values = s.sample()
	s.Equal(bitflow.Value(1), values["xen/node/domains"])
	s.NotContains(values, "xen/guest/cpu_ns")
	s.NotContains(values, "xen/new-guest/cpu_ns")
	s.Contains(values, "xen/Domain-0/cpu_ns")
}

func (s *CollectorTestSuite) TestDeviceAdded() {
	s.sample()
	guest := s.driver.Node.Domains[1]
	guest.Networks = append(guest.Networks, &xenstat.MockNetwork{Stats: xenstat.NetworkInfo{ID: 1, TxBytes: 55}})
	guest.Vcpus = append(guest.Vcpus, &xenstat.MockVcpu{IsOnline: true, Time: 3})

	_, values := s.sample()
	s.Equal(bitflow.Value(55), values["xen/guest/net/1/tx_bytes"])
	s.Equal(bitflow.Value(3), values["xen/guest/vcpu/1/ns"])
	s.Equal(bitflow.Value(2), values["xen/guest/vcpus"])
}

func (s *CollectorTestSuite) TestMetricFilters() {
	s.source.IncludeMetrics = []*regexp.Regexp{regexp.MustCompile("^xen/guest/net/")}
	s.source.ExcludeMetrics = []*regexp.Regexp{regexp.MustCompile("drops$")}
	header, _ := s.sample()
	s.Equal([]string{
		"xen/guest/net/0/rx_bytes",
		"xen/guest/net/0/rx_errors",
		"xen/guest/net/0/rx_packets",
		"xen/guest/net/0/tx_bytes",
		"xen/guest/net/0/tx_errors",
		"xen/guest/net/0/tx_packets",
	}, header.Fields)

	included, excluded, err := s.source.AllMetrics()
	s.NoError(err)
	s.Equal(header.Fields, included)
	s.Contains(excluded, "xen/guest/net/0/rx_drops")
	s.Contains(excluded, "xen/node/cpus")
}

func (s *CollectorTestSuite) TestSnapshotsReleased() {
	s.sample()
	s.sample()

	// Every snapshot is released before the sample is returned
	s.True(len(s.driver.Requested) > 0)
	s.Len(s.driver.Released, 2*len(s.driver.Requested))
	for i := 0; i < len(s.driver.Released); i += 2 {
		s.Equal([]string{xenstat.ReleasedNode, xenstat.ReleasedHandle}, s.driver.Released[i:i+2])
	}
}

func (s *CollectorTestSuite) TestSnapshotReleasedOnReadError() {
	col := NewXenCollector(s.driver)
	_, err := col.Init()
	s.Require().NoError(err)
	s.driver.NilNode = true
	s.Error(col.Update())
	s.Equal(xenstat.ReleasedHandle, s.driver.Released[len(s.driver.Released)-1])
	s.Len(s.driver.Requested, 2)
	s.Len(s.driver.Released, 3)
}

func (s *CollectorTestSuite) TestHostUnavailable() {
	s.driver.InjectedErr = errors.New("permission denied")
	_, _, err := s.source.Sample()
	s.Error(err)
}

func (s *CollectorTestSuite) TestCollectorNames() {
	col := NewXenCollector(s.driver)
	children, err := col.Init()
	s.Require().NoError(err)
	s.Require().Len(children, 2)
	s.Equal("xen", col.String())
	s.Equal("xen/Domain-0", children[0].String())
	s.Equal("xen/guest", children[1].String())
	s.Equal([]collector.Collector{col}, children[1].Depends())
}

func (s *CollectorTestSuite) TestDuplicateDomainNames() {
	s.driver.Node.Domains[1].DomName = []byte("Domain-0")
	col := NewXenCollector(s.driver)
	children, err := col.Init()
	s.Require().NoError(err)
	s.Len(children, 1)
	s.NoError(col.Update())
}
