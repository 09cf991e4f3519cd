// Package config holds the TOML-backed settings for the Bee tools
// (simulator, assembler, debugger): instance shape, execution limits,
// debugger/display preferences, and the trap bridge's host filesystem
// root. Grounded on the teacher's config.Config/Load/Save pair, with
// the ARM-specific trace/statistics sections replaced by Bee's own
// ambient concerns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the full set of user-adjustable Bee tool settings.
type Config struct {
	// Instance settings describe the VM shape a program runs under.
	Instance struct {
		Width      int  `toml:"width"` // 32 or 64
		BigEndian  bool `toml:"big_endian"`
		StackSize  uint `toml:"stack_size"`  // data stack, in bytes
		RStackSize uint `toml:"rstack_size"` // return stack, in bytes
	} `toml:"instance"`

	// Execution settings bound how long a run is allowed to go.
	Execution struct {
		MaxCycles   uint64 `toml:"max_cycles"` // 0 means unbounded
		EnableTrace bool   `toml:"enable_trace"`
	} `toml:"execution"`

	// Debugger settings control the tview-based interactive front end.
	Debugger struct {
		HistorySize    int  `toml:"history_size"`
		AutoSaveBreaks bool `toml:"auto_save_breakpoints"`
		ShowStacks     bool `toml:"show_stacks"`
		ShowRegisters  bool `toml:"show_registers"`
	} `toml:"debugger"`

	// Display settings control disassembly and number rendering.
	Display struct {
		ColorOutput   bool   `toml:"color_output"`
		DisasmContext int    `toml:"disasm_context"`
		NumberFormat  string `toml:"number_format"` // hex, dec
	} `toml:"display"`

	// Trap settings configure the libc-bridge host environment exposed
	// to guest programs via the TRAP_LIBC interface.
	Trap struct {
		FSRoot   string `toml:"fs_root"`
		ArgvBase uint64 `toml:"argv_base"`
	} `toml:"trap"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Instance.Width = 64
	cfg.Instance.BigEndian = false
	cfg.Instance.StackSize = 65536
	cfg.Instance.RStackSize = 65536

	cfg.Execution.MaxCycles = 0
	cfg.Execution.EnableTrace = false

	cfg.Debugger.HistorySize = 1000
	cfg.Debugger.AutoSaveBreaks = true
	cfg.Debugger.ShowStacks = true
	cfg.Debugger.ShowRegisters = true

	cfg.Display.ColorOutput = true
	cfg.Display.DisasmContext = 8
	cfg.Display.NumberFormat = "hex"

	cfg.Trap.FSRoot = "."
	cfg.Trap.ArgvBase = 0

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "bee")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "bee")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "bee", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "bee", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back to
// defaults if it does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
