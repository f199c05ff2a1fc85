// Package manifest handles vecgc.toml runtime configuration.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/chazu/vecgc/vm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "vecgc.toml"

// Manifest represents a vecgc.toml configuration.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	Log     Log     `toml:"log"`
	Dump    Dump    `toml:"dump"`

	// Dir is the directory containing the vecgc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures VM limits.
type Runtime struct {
	MaxBacktraceDepth int    `toml:"max-backtrace-depth"`
	MaxRecoveryDepth  int    `toml:"max-recovery-depth"`
	HeapLimit         string `toml:"heap-limit"` // e.g. "64 MiB"; empty means unlimited
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Dump configures heap snapshots written by the driver.
type Dump struct {
	Output string `toml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.MaxBacktraceDepth <= 0 {
		m.Runtime.MaxBacktraceDepth = vm.DefaultMaxBacktraceDepth
	}
	if m.Runtime.MaxRecoveryDepth <= 0 {
		m.Runtime.MaxRecoveryDepth = vm.DefaultMaxRecoveryDepth
	}
}

// Parse decodes configuration text. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	if _, err := m.HeapLimitBytes(); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return &m, nil
}

// Load parses a vecgc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", dir)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a vecgc.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// HeapLimitBytes parses Runtime.HeapLimit. An empty limit is 0 (unlimited).
func (m *Manifest) HeapLimitBytes() (int64, error) {
	if m.Runtime.HeapLimit == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(m.Runtime.HeapLimit)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid heap-limit %q", m.Runtime.HeapLimit)
	}
	return int64(n), nil
}

// Options converts the runtime section into VM options.
func (m *Manifest) Options() (vm.Options, error) {
	limit, err := m.HeapLimitBytes()
	if err != nil {
		return vm.Options{}, err
	}
	return vm.Options{
		MaxBacktraceDepth: m.Runtime.MaxBacktraceDepth,
		MaxRecoveryDepth:  m.Runtime.MaxRecoveryDepth,
		HeapLimit:         limit,
	}, nil
}

// DumpPath returns the snapshot output path resolved against Dir, or "".
func (m *Manifest) DumpPath() string {
	if m.Dump.Output == "" {
		return ""
	}
	if filepath.IsAbs(m.Dump.Output) || m.Dir == "" {
		return m.Dump.Output
	}
	return filepath.Join(m.Dir, m.Dump.Output)
}
