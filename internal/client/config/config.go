package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/utils"
)

var (
	home, _                 = os.UserHomeDir()
	DefaultConfigPath       = filepath.Join(home, ".syftnotes", "config.json")
	DefaultLogFilePath      = filepath.Join(home, ".syftnotes", "logs", "syftnotes.log")
	DefaultDataDir          = filepath.Join(home, "SyftNotes")
	DefaultServerURL        = "http://127.0.0.1:8080"
	DefaultSyncInterval     = 10 * time.Second
	DefaultMergeStrategy    = merge.NameEquality
	DefaultControlPlaneAddr = "localhost:7939"
	MinSyncInterval         = 1 * time.Second
)

var (
	ErrInvalidServerURL     = errors.New("invalid server url")
	ErrInvalidMergeStrategy = errors.New("invalid merge strategy")
	ErrInvalidControlPlane  = errors.New("invalid control plane address")
	ErrSyncIntervalTooShort = errors.New("sync interval too short")
	ErrControlPlaneNoToken  = errors.New("control plane token required on a non-loopback address")
)

type Config struct {
	DataDir       string             `json:"data_dir"`
	ServerURL     string             `json:"server_url"`
	SyncInterval  time.Duration      `json:"sync_interval"`
	MergeStrategy merge.Name         `json:"merge_strategy"`
	ControlPlane  ControlPlaneConfig `json:"control_plane"`
	Path          string             `json:"-"`
}

type ControlPlaneConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token,omitempty"`
}

// Validate fills in defaults and normalizes paths.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir %q: %w", c.DataDir, err)
	}
	c.DataDir = dataDir

	if c.Path != "" {
		path, err := utils.ResolvePath(c.Path)
		if err != nil {
			return fmt.Errorf("config path %q: %w", c.Path, err)
		}
		c.Path = path
	}

	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.SyncInterval < MinSyncInterval {
		return fmt.Errorf("%w: %s < %s", ErrSyncIntervalTooShort, c.SyncInterval, MinSyncInterval)
	}

	if c.MergeStrategy == "" {
		c.MergeStrategy = DefaultMergeStrategy
	}
	if !c.MergeStrategy.IsValid() {
		return fmt.Errorf("%w: %q (want one of %v)", ErrInvalidMergeStrategy, c.MergeStrategy, merge.AllNames())
	}

	if c.ControlPlane.Addr == "" {
		c.ControlPlane.Addr = DefaultControlPlaneAddr
	}
	host, _, err := net.SplitHostPort(c.ControlPlane.Addr)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidControlPlane, c.ControlPlane.Addr, err)
	}
	if c.ControlPlane.Token == "" && !isLoopback(host) {
		return fmt.Errorf("%w: %q", ErrControlPlaneNoToken, c.ControlPlane.Addr)
	}

	return nil
}

// ControlPlaneURL is the base url of the control plane.
func (c *Config) ControlPlaneURL() string {
	return "http://" + c.ControlPlane.Addr
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func LoadClientConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Path = path

	return &cfg, nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
