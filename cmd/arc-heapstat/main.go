// Command arc-heapstat builds a region table from a settings file, prints a
// summary of the heap layout, and can serve the metrics exposition endpoint
// until interrupted.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/arclang/arc/internal/gcheap"
	"github.com/arclang/arc/internal/gcheap/export"
	"github.com/arclang/arc/internal/gcheap/pager"
	"github.com/arclang/arc/internal/gcheap/settings"
)

func main() {
	var (
		settingsPath string
		serve        bool
		tlsCert      string
		tlsKey       string
		showVersion  bool
	)
	flag.StringVar(&settingsPath, "settings", "", "path to the heap settings file (yaml)")
	flag.BoolVar(&serve, "serve", false, "serve the metrics endpoint until interrupted")
	flag.StringVar(&tlsCert, "tls-cert", "", "TLS certificate for the HTTP/3 listener")
	flag.StringVar(&tlsKey, "tls-key", "", "TLS key for the HTTP/3 listener")
	flag.BoolVar(&showVersion, "version", false, "print the runtime version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("arc-heapstat", settings.Version)
		return
	}

	cfg := settings.Default()
	if settingsPath != "" {
		loaded, err := settings.Load(settingsPath)
		if err != nil {
			log.Fatalf("arc-heapstat: %v", err)
		}
		cfg = loaded
	}

	sizes, err := gcheap.SetupSizes(cfg.MaxHeapBytes, gcheap.SizeOptions{
		MinRegionSizeBytes: cfg.MinRegionSizeBytes,
		MaxRegionSizeBytes: cfg.MaxRegionSizeBytes,
		TargetRegionCount:  cfg.TargetRegionCount,
		CensusNoise:        cfg.CensusNoise,
	})
	if err != nil {
		log.Fatalf("arc-heapstat: %v", err)
	}

	p, err := pager.New(sizes.HeapSizeWords())
	if err != nil {
		log.Fatalf("arc-heapstat: %v", err)
	}
	table, err := gcheap.NewRegionTable(sizes, p, gcheap.TableOptions{InitialCommitted: -1})
	if err != nil {
		log.Fatalf("arc-heapstat: %v", err)
	}
	defer table.Close()

	collector := export.NewCollector(table)
	printSummary(sizes, collector)

	if !serve {
		return
	}

	addr := cfg.MetricsAddr
	if addr == "" {
		addr = ":9465"
	}
	bound, stop, err := export.StartServer(addr, collector)
	if err != nil {
		log.Fatalf("arc-heapstat: metrics listener: %v", err)
	}
	log.Printf("arc-heapstat: serving metrics on http://%s/metrics", bound)

	var h3 *export.HTTP3Server
	if cfg.HTTP3 {
		if tlsCert == "" || tlsKey == "" {
			log.Fatalf("arc-heapstat: export.http3 requires -tls-cert and -tls-key")
		}
		cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
		if err != nil {
			log.Fatalf("arc-heapstat: %v", err)
		}
		h3 = export.NewHTTP3Server(addr, &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS13,
		}, collector)
		h3addr, err := h3.Start()
		if err != nil {
			log.Fatalf("arc-heapstat: http3 listener: %v", err)
		}
		log.Printf("arc-heapstat: serving metrics on https(h3)://%s/metrics", h3addr)
	}

	var stopWatch func() error
	if settingsPath != "" {
		stopWatch, err = settings.Watch(settingsPath, func(s *settings.Settings) {
			log.Printf("arc-heapstat: settings reloaded (uncommit=%v delay=%s)",
				s.UncommitEnabled, s.UncommitDelay)
		})
		if err != nil {
			log.Printf("arc-heapstat: settings watch disabled: %v", err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if stopWatch != nil {
		_ = stopWatch()
	}
	if h3 != nil {
		_ = h3.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = stop(ctx)
}

func printSummary(sizes *gcheap.Sizes, c *export.Collector) {
	fmt.Printf("heap: %d regions x %d bytes = %d bytes\n",
		sizes.RegionCount, sizes.RegionSizeBytes, sizes.HeapSizeBytes())
	fmt.Printf("max buffer size: %d bytes, humongous threshold: %d words\n",
		sizes.MaxTLABSizeBytes, sizes.HumongousThresholdWords)

	snapshot := c.Snapshot()
	keys := make([]string, 0, len(snapshot))
	for k := range snapshot {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %g\n", k, snapshot[k])
	}
}
