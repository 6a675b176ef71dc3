package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bitflow-stream/go-xenstat-collector/mock"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
)

type RestApiTestSuite struct {
	suite.Suite
	driver *xenstat.MockDriver
	router *mux.Router
}

func TestRestApi(t *testing.T) {
	suite.Run(t, new(RestApiTestSuite))
}

func (s *RestApiTestSuite) SetupTest() {
	s.driver = mock.NewHost()
	s.router = mux.NewRouter()
	api := &RestApi{
		Lock:     new(sync.Mutex),
		Driver:   s.driver,
		Source:   createSampleSource(s.driver),
		Registry: newRegistry(s.driver),
	}
	api.Register("", s.router)
}

func (s *RestApiTestSuite) get(url string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RestApiTestSuite) TestSnapshotJson() {
	rec := s.get("/snapshot")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("application/json", rec.Header().Get("Content-Type"))

	var info xenstat.NodeInfo
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &info))
	s.Equal("4.17.3", info.XenVersion)
	s.Require().Len(info.Domains, 2)
	s.Equal("guest", info.Domains[1].Name)
	s.True(info.Domains[1].State.Blocked)
	s.Contains(rec.Body.String(), `"type":"blkback"`)
}

func (s *RestApiTestSuite) TestSnapshotCbor() {
	rec := s.get("/snapshot?format=cbor")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(cborContentType, rec.Header().Get("Content-Type"))

	var info map[string]interface{}
	s.Require().NoError(cbor.Unmarshal(rec.Body.Bytes(), &info))
	s.Equal("4.17.3", info["xen_version"])
	s.Len(info["domains"], 2)
}

func (s *RestApiTestSuite) TestSnapshotUnknownFormat() {
	s.Equal(http.StatusBadRequest, s.get("/snapshot?format=xml").Code)
}

func (s *RestApiTestSuite) TestSnapshotUnavailable() {
	s.driver.InjectedErr = errors.New("no hypervisor")
	s.Equal(http.StatusServiceUnavailable, s.get("/snapshot").Code)
}

func (s *RestApiTestSuite) TestPrometheusMetrics() {
	rec := s.get("/metrics")
	s.Require().Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	s.Contains(body, "xen_up 1")
	s.Contains(body, `xen_domain_cpu_ns_total{domain="guest",domid="7"} 42`)
	s.Contains(body, "go_goroutines")
}

func (s *RestApiTestSuite) TestCollectorMetrics() {
	rec := s.get("/collector/metrics")
	s.Require().Equal(http.StatusOK, rec.Code)
	names := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	s.Contains(names, "xen/node/cpus")
	s.Contains(names, "xen/guest/net/0/rx_bytes")
}

func (s *RestApiTestSuite) TestTable() {
	var out strings.Builder
	s.Require().NoError(printTable(&out, s.driver))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	s.Require().Len(lines, 4)
	s.Contains(lines[0], "Xen 4.17.3: 2 domains, 4 CPUs at 2000 MHz")
	s.Contains(lines[2], "Domain-0")
	s.Contains(lines[2], "-----r")
	s.Contains(lines[3], "--b---")
}

func (s *RestApiTestSuite) TestPrintSample() {
	var out strings.Builder
	s.Require().NoError(printSample(&out, createSampleSource(s.driver)))
	s.Contains(out.String(), "xen/guest/tmem/succ_pers_gets")
}
