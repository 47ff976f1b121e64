package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFull(t *testing.T) {
	s, err := Parse([]byte(`
min_runtime: ">= 0.4.0"
heap:
  max_size: 2GB
  min_region_size: 1MB
  max_region_size: 16MB
  target_region_count: 1024
uncommit:
  enabled: false
  delay: 90s
census:
  noise: true
export:
  metrics_addr: "127.0.0.1:9464"
  http3: true
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if s.MaxHeapBytes != 2*1024*1024*1024 {
		t.Errorf("MaxHeapBytes = %d", s.MaxHeapBytes)
	}
	if s.MinRegionSizeBytes != 1024*1024 {
		t.Errorf("MinRegionSizeBytes = %d", s.MinRegionSizeBytes)
	}
	if s.MaxRegionSizeBytes != 16*1024*1024 {
		t.Errorf("MaxRegionSizeBytes = %d", s.MaxRegionSizeBytes)
	}
	if s.TargetRegionCount != 1024 {
		t.Errorf("TargetRegionCount = %d", s.TargetRegionCount)
	}
	if s.UncommitEnabled {
		t.Error("UncommitEnabled not overridden")
	}
	if s.UncommitDelay != 90*time.Second {
		t.Errorf("UncommitDelay = %v", s.UncommitDelay)
	}
	if !s.CensusNoise {
		t.Error("CensusNoise not set")
	}
	if s.MetricsAddr != "127.0.0.1:9464" || !s.HTTP3 {
		t.Errorf("export = %q http3=%v", s.MetricsAddr, s.HTTP3)
	}
}

func TestParseEmptyKeepsDefaults(t *testing.T) {
	s, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := Default()
	if *s != *want {
		t.Fatalf("empty file parsed to %+v, want defaults %+v", s, want)
	}
}

func TestParseMinRuntime(t *testing.T) {
	if _, err := Parse([]byte("min_runtime: \">= 0.4.0\"\n")); err != nil {
		t.Fatalf("satisfied constraint rejected: %v", err)
	}
	if _, err := Parse([]byte("min_runtime: \">= 1.0.0\"\n")); err == nil {
		t.Fatal("unsatisfied constraint accepted")
	}
	if _, err := Parse([]byte("min_runtime: \"not a constraint\"\n")); err == nil {
		t.Fatal("malformed constraint accepted")
	}
}

func TestParseRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		yaml string
	}{
		{"malformed yaml", "heap: ["},
		{"bad size", "heap:\n  max_size: lots\n"},
		{"zero size", "heap:\n  max_size: 0B\n"},
		{"negative region count", "heap:\n  target_region_count: -1\n"},
		{"bad delay", "uncommit:\n  delay: soon\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); err == nil {
				t.Fatalf("Parse accepted %q", tc.yaml)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.yaml")
	if err := os.WriteFile(path, []byte("heap:\n  max_size: 1GB\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.MaxHeapBytes != 1024*1024*1024 {
		t.Errorf("MaxHeapBytes = %d", s.MaxHeapBytes)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heap.yaml")
	if err := os.WriteFile(path, []byte("heap:\n  max_size: 1GB\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := make(chan *Settings, 4)
	stop, err := Watch(path, func(s *Settings) { got <- s })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer stop()

	if err := os.WriteFile(path, []byte("heap:\n  max_size: 2GB\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-got:
		if s.MaxHeapBytes != 2*1024*1024*1024 {
			t.Fatalf("reload delivered MaxHeapBytes = %d", s.MaxHeapBytes)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	// A snapshot that fails to parse is dropped, not delivered.
	if err := os.WriteFile(path, []byte("heap: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-got:
		t.Fatalf("malformed snapshot delivered: %+v", s)
	case <-time.After(500 * time.Millisecond):
	}
}
