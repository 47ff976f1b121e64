// Package settings loads and watches the heap tuning file. The file is yaml
// with human-readable sizes; an optional min_runtime constraint gates the
// file against the runtime version so stale deployments fail loudly instead
// of misconfiguring the heap.
package settings

import (
	"fmt"
	"os"
	"time"

	semver "github.com/Masterminds/semver/v3"
	bytesize "github.com/inhies/go-bytesize"
	yaml "gopkg.in/yaml.v2"
)

// Version is the runtime version the min_runtime constraint is checked
// against.
const Version = "0.4.1"

// fileSettings is the raw yaml shape; string fields are parsed and
// validated into Settings.
type fileSettings struct {
	MinRuntime string `yaml:"min_runtime"`
	Heap       struct {
		MaxSize           string `yaml:"max_size"`
		MinRegionSize     string `yaml:"min_region_size"`
		MaxRegionSize     string `yaml:"max_region_size"`
		TargetRegionCount int    `yaml:"target_region_count"`
	} `yaml:"heap"`
	Uncommit struct {
		Enabled *bool  `yaml:"enabled"`
		Delay   string `yaml:"delay"`
	} `yaml:"uncommit"`
	Census struct {
		Noise bool `yaml:"noise"`
	} `yaml:"census"`
	Export struct {
		MetricsAddr string `yaml:"metrics_addr"`
		HTTP3       bool   `yaml:"http3"`
	} `yaml:"export"`
}

// Settings is one validated snapshot of the tuning file.
type Settings struct {
	MaxHeapBytes       uintptr
	MinRegionSizeBytes uintptr
	MaxRegionSizeBytes uintptr
	TargetRegionCount  int

	UncommitEnabled bool
	UncommitDelay   time.Duration

	CensusNoise bool

	MetricsAddr string
	HTTP3       bool
}

// Default returns the tuning used when the file omits a knob.
func Default() *Settings {
	return &Settings{
		MaxHeapBytes:       512 * 1024 * 1024,
		MinRegionSizeBytes: 256 * 1024,
		MaxRegionSizeBytes: 32 * 1024 * 1024,
		TargetRegionCount:  2048,
		UncommitEnabled:    true,
		UncommitDelay:      5 * time.Minute,
		CensusNoise:        false,
	}
}

// Load reads and validates the tuning file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return Parse(data)
}

// Parse validates a tuning file's contents against the defaults.
func Parse(data []byte) (*Settings, error) {
	var raw fileSettings
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("settings: malformed yaml: %w", err)
	}

	if raw.MinRuntime != "" {
		c, err := semver.NewConstraint(raw.MinRuntime)
		if err != nil {
			return nil, fmt.Errorf("settings: bad min_runtime constraint %q: %w", raw.MinRuntime, err)
		}
		v, err := semver.NewVersion(Version)
		if err != nil {
			return nil, fmt.Errorf("settings: bad runtime version %q: %w", Version, err)
		}
		if !c.Check(v) {
			return nil, fmt.Errorf("settings: file requires runtime %q, this is %s", raw.MinRuntime, Version)
		}
	}

	s := Default()
	if err := applySize(&s.MaxHeapBytes, raw.Heap.MaxSize, "heap.max_size"); err != nil {
		return nil, err
	}
	if err := applySize(&s.MinRegionSizeBytes, raw.Heap.MinRegionSize, "heap.min_region_size"); err != nil {
		return nil, err
	}
	if err := applySize(&s.MaxRegionSizeBytes, raw.Heap.MaxRegionSize, "heap.max_region_size"); err != nil {
		return nil, err
	}
	if raw.Heap.TargetRegionCount != 0 {
		if raw.Heap.TargetRegionCount < 0 {
			return nil, fmt.Errorf("settings: heap.target_region_count must be positive")
		}
		s.TargetRegionCount = raw.Heap.TargetRegionCount
	}
	if raw.Uncommit.Enabled != nil {
		s.UncommitEnabled = *raw.Uncommit.Enabled
	}
	if raw.Uncommit.Delay != "" {
		d, err := time.ParseDuration(raw.Uncommit.Delay)
		if err != nil {
			return nil, fmt.Errorf("settings: bad uncommit.delay %q: %w", raw.Uncommit.Delay, err)
		}
		s.UncommitDelay = d
	}
	s.CensusNoise = raw.Census.Noise
	s.MetricsAddr = raw.Export.MetricsAddr
	s.HTTP3 = raw.Export.HTTP3
	return s, nil
}

func applySize(dst *uintptr, field, name string) error {
	if field == "" {
		return nil
	}
	b, err := bytesize.Parse(field)
	if err != nil {
		return fmt.Errorf("settings: bad %s %q: %w", name, field, err)
	}
	if b == 0 {
		return fmt.Errorf("settings: %s must be positive", name)
	}
	*dst = uintptr(b)
	return nil
}
