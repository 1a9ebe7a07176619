// Package config loads run configuration from YAML or the legacy XML file.
package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCourseName = "Vitesse Backup"
	DefaultCalledAE   = "MyDaemon"
	DefaultHost       = "10.2.98.5"
	DefaultPort       = 51402
	DefaultTimeout    = 30 * time.Second

	// AE titles are at most 16 characters on the wire.
	maxAETitle = 16
)

var (
	ErrNoStoragePath = errors.New("storage path is not set")
	ErrNoCourseName  = errors.New("course name is not set")
	ErrUnknownMode   = errors.New("unknown selection mode")
	ErrBadSelection  = errors.New("invalid selection")
)

// Config is the full run configuration.
type Config struct {
	StoragePath string `yaml:"storage_path"`
	CourseName  string `yaml:"course_name"`
	// LogDir receives run logs; empty means StoragePath.
	LogDir string `yaml:"log_dir"`
	// StagingDir receives identity-repaired copies; empty means next to the originals.
	StagingDir   string      `yaml:"staging_dir"`
	FractionLogs bool        `yaml:"fraction_logs"`
	Selection    Selection   `yaml:"selection"`
	Daemon       Daemon      `yaml:"daemon"`
	Consolidate  Consolidate `yaml:"consolidate"`
}

// Daemon addresses the receiving application entity.
type Daemon struct {
	AETitle       string        `yaml:"ae_title"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	CallingAE     string        `yaml:"calling_ae"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxPDU        uint32        `yaml:"max_pdu"`
	RatePerSecond float64       `yaml:"rate_per_second"`
}

// Addr returns host:port.
func (d Daemon) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Consolidate toggles the steps of the consolidate workflow.
type Consolidate struct {
	Rename          bool `yaml:"rename"`
	Prune           bool `yaml:"prune"`
	Collect         bool `yaml:"collect"`
	RemoveOriginals bool `yaml:"remove_originals"`
}

// Default returns the configuration used when a file leaves a field unset.
func Default() Config {
	return Config{
		CourseName:   DefaultCourseName,
		FractionLogs: true,
		Selection:    Selection{Mode: ModeRange, Start: 1, End: math.MaxInt32},
		Daemon: Daemon{
			AETitle:   DefaultCalledAE,
			Host:      DefaultHost,
			Port:      DefaultPort,
			CallingAE: hostAE(),
			Timeout:   DefaultTimeout,
		},
		Consolidate: Consolidate{Rename: true},
	}
}

func hostAE() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "VITESSE_SYNC"
	}
	if i := strings.IndexByte(h, '.'); i > 0 {
		h = h[:i]
	}
	return truncate(strings.ToUpper(h), maxAETitle)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Load reads path over the defaults. A .xml extension selects the legacy format.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if strings.EqualFold(filepath.Ext(path), ".xml") {
		if err := applyLegacy(&cfg, b); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports configuration errors that must abort a run.
func (c Config) Validate() error {
	if strings.TrimSpace(c.StoragePath) == "" {
		return ErrNoStoragePath
	}
	if strings.TrimSpace(c.CourseName) == "" {
		return ErrNoCourseName
	}
	if err := c.Selection.Validate(); err != nil {
		return err
	}
	if c.Daemon.Port < 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon port %d out of range", c.Daemon.Port)
	}
	if len(c.Daemon.AETitle) > maxAETitle || len(c.Daemon.CallingAE) > maxAETitle {
		return fmt.Errorf("AE titles are limited to %d characters", maxAETitle)
	}
	return nil
}

// LogDirectory returns where run logs are written.
func (c Config) LogDirectory() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	return c.StoragePath
}
