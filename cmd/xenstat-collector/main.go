package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/antongulenko/golib"
	collector "github.com/bitflow-stream/go-xenstat-collector"
	"github.com/bitflow-stream/go-xenstat-collector/mock"
	"github.com/bitflow-stream/go-xenstat-collector/xen"
	"github.com/bitflow-stream/go-xenstat-collector/xenstat"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

var (
	interval      time.Duration
	printMetrics  bool
	graphDot      string
	listenAddr    string
	useMock       bool
	parallel      bool
	userIncludes  golib.StringSlice
	userExcludes  golib.StringSlice
	hostStatsOnly bool
)

func main() {
	os.Exit(doMain())
}

func doMain() int {
	flag.DurationVar(&interval, "interval", 0, "Repeat the output in the given interval. 0 prints once and exits.")
	flag.BoolVar(&printMetrics, "metrics", false, "Print the flattened collector metrics instead of the domain table")
	flag.StringVar(&graphDot, "graph-dot", "", "Create dot-file for the collector-graph and exit")
	flag.StringVar(&listenAddr, "listen", "", "Serve the REST API (/snapshot, /metrics, /collector/metrics) on the given address")
	flag.BoolVar(&useMock, "mock", false, "Serve statistics of a synthetic host instead of the local hypervisor")
	flag.BoolVar(&parallel, "parallel", false, "Update the per-domain collectors in parallel")
	flag.BoolVar(&hostStatsOnly, "host", false, "Only collect the host metrics (xen/node/...)")
	flag.Var(&userIncludes, "include", "Regex of metrics to include exclusively (can be repeated)")
	flag.Var(&userExcludes, "exclude", "Regex of metrics to exclude (can be repeated)")
	golib.RegisterLogFlags()
	flag.Parse()
	golib.ConfigureLogging()
	if flag.NArg() > 0 {
		golib.Fatalln("Stray command line argument(s):", flag.Args())
	}

	driver := createDriver()
	source := createSampleSource(driver)
	defer source.Close()

	if graphDot != "" {
		golib.Checkerr(source.WriteGraphDOT(graphDot))
		return 0
	}

	// All access to the driver and the sample source goes through this lock
	var lock sync.Mutex
	stopper := golib.NewStopper()
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		sig := <-signals
		log.Println("Received signal", sig)
		stopper.Stop()
	}()

	if listenAddr != "" {
		router := mux.NewRouter()
		api := &RestApi{
			Lock:     &lock,
			Driver:   driver,
			Source:   source,
			Registry: newRegistry(driver),
		}
		api.Register("", router)
		go func() {
			log.Println("Serving REST API on", listenAddr)
			if err := http.ListenAndServe(listenAddr, router); err != nil {
				log.Errorln("REST API failed:", err)
				stopper.Stop()
			}
		}()
	}

	output := func() error {
		lock.Lock()
		defer lock.Unlock()
		if printMetrics {
			return printSample(os.Stdout, source)
		}
		return printTable(os.Stdout, driver)
	}

	if err := output(); err != nil {
		log.Errorln(err)
		if interval <= 0 && listenAddr == "" {
			return 1
		}
	}
	if interval > 0 {
		for !stopper.Stopped(interval) {
			if err := output(); err != nil {
				log.Errorln(err)
			}
		}
	} else if listenAddr != "" {
		<-stopper.Wait()
	}
	return 0
}

func createDriver() xenstat.Driver {
	if useMock {
		log.Println("Using a synthetic Xen host")
		return mock.NewTickingDriver()
	}
	return xenstat.NewDriver()
}

func createSampleSource(driver xenstat.Driver) *collector.SampleSource {
	source := &collector.SampleSource{
		RootCollectors: []collector.Collector{xen.NewXenCollector(driver)},
		UpdatePolicy:   collector.CollectorTasksSequential,
	}
	if parallel {
		source.UpdatePolicy = collector.CollectorTasksParallel
	}
	if hostStatsOnly {
		userIncludes = append(userIncludes, "^"+regexp.QuoteMeta(xen.MetricPrefix+"node/"))
	}
	for _, exclude := range userExcludes {
		regex, err := regexp.Compile(exclude)
		if err != nil {
			golib.Checkerr(fmt.Errorf("Error compiling exclude regex: %v", err))
		}
		source.ExcludeMetrics = append(source.ExcludeMetrics, regex)
	}
	for _, include := range userIncludes {
		regex, err := regexp.Compile(include)
		if err != nil {
			golib.Checkerr(fmt.Errorf("Error compiling include regex: %v", err))
		}
		source.IncludeMetrics = append(source.IncludeMetrics, regex)
	}
	return source
}
