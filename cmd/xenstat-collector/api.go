package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"

	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/xen"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const cborContentType = "application/cbor"

func newRegistry(driver xenstat.Driver) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		xen.NewPrometheusCollector(driver),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// RestApi serves snapshots of the Xen host. Lock serializes every access to
// Driver and Source, including the sampling loop of the command line.
type RestApi struct {
	Lock     *sync.Mutex
	Driver   xenstat.Driver
	Source   *collector.SampleSource
	Registry *prometheus.Registry
}

func (api *RestApi) Register(pathPrefix string, router *mux.Router) {
	router.HandleFunc(pathPrefix+"/snapshot", api.handleSnapshot).Methods("GET")
	router.Handle(pathPrefix+"/metrics", api.locked(promhttp.HandlerFor(api.Registry, promhttp.HandlerOpts{}))).Methods("GET")
	router.HandleFunc(pathPrefix+"/collector/metrics", api.handleCollectorMetrics).Methods("GET")
}

func (api *RestApi) locked(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.Lock.Lock()
		defer api.Lock.Unlock()
		handler.ServeHTTP(w, r)
	})
}

func (api *RestApi) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	api.Lock.Lock()
	info, err := readSnapshot(api.Driver)
	api.Lock.Unlock()
	if err != nil {
		log.Errorln("Failed to read Xen snapshot:", err)
		http.Error(w, "Error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	var data []byte
	contentType := "application/json"
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		data, err = json.Marshal(info)
	case "cbor":
		contentType = cborContentType
		data, err = cbor.Marshal(info)
	default:
		http.Error(w, "Unknown format: "+format, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Errorln("Error marshalling Xen snapshot:", err)
		http.Error(w, "Error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func (api *RestApi) handleCollectorMetrics(w http.ResponseWriter, r *http.Request) {
	api.Lock.Lock()
	names := api.Source.CurrentMetrics()
	var err error
	if names == nil {
		if err = api.Source.Init(); err == nil {
			names = api.Source.CurrentMetrics()
		}
	}
	api.Lock.Unlock()
	if err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	var out bytes.Buffer
	for _, name := range names {
		out.WriteString(name + "\n")
	}
	w.Write(out.Bytes())
}
