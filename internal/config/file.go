package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/wagiedev/mediaroute-go/internal/binding"
	"github.com/wagiedev/mediaroute-go/internal/channel"
	"github.com/wagiedev/mediaroute-go/internal/protocol"
)

// File is the routectl configuration loaded from TOML.
//
// A service is reached either on the unix socket Socket or by launching
// Exec with Args and talking to it over stdio. Exactly one must be set.
type File struct {
	Component     binding.ComponentName
	Socket        string
	Exec          string
	Args          []string
	ClientVersion int
	LogLevel      slog.Level
	CallTimeout   time.Duration
	Limits        channel.Limits
}

type fileConfig struct {
	Package         string   `toml:"package"`
	Class           string   `toml:"class"`
	Socket          string   `toml:"socket"`
	Exec            string   `toml:"exec"`
	Args            []string `toml:"args"`
	ClientVersion   int      `toml:"client_version"`
	LogLevel        string   `toml:"log_level"`
	CallTimeout     string   `toml:"call_timeout"`
	MaxPayloadBytes int64    `toml:"max_payload_bytes"`
}

// DefaultFile returns the configuration used for keys a file leaves out.
func DefaultFile() File {
	return File{
		ClientVersion: protocol.ClientVersionCurrent,
		LogLevel:      slog.LevelInfo,
		CallTimeout:   DefaultCallTimeout,
		Limits:        channel.DefaultLimits(),
	}
}

// LoadFile reads path and overlays the keys it defines onto DefaultFile.
func LoadFile(path string) (File, error) {
	cfg := DefaultFile()

	var raw fileConfig

	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return File{}, fmt.Errorf("load routectl config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return File{}, fmt.Errorf("load routectl config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("package") {
		cfg.Component.Package = strings.TrimSpace(raw.Package)
	}

	if meta.IsDefined("class") {
		cfg.Component.Class = strings.TrimSpace(raw.Class)
		if strings.HasPrefix(cfg.Component.Class, ".") {
			cfg.Component.Class = cfg.Component.Package + cfg.Component.Class
		}
	}

	if meta.IsDefined("socket") {
		cfg.Socket = strings.TrimSpace(raw.Socket)
	}

	if meta.IsDefined("exec") {
		cfg.Exec = strings.TrimSpace(raw.Exec)
		cfg.Args = raw.Args
	} else if meta.IsDefined("args") {
		return File{}, fmt.Errorf("args requires exec")
	}

	if meta.IsDefined("client_version") {
		cfg.ClientVersion = raw.ClientVersion
	}

	if meta.IsDefined("log_level") {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(raw.LogLevel))); err != nil {
			return File{}, fmt.Errorf("parse log_level: %w", err)
		}
	}

	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return File{}, fmt.Errorf("parse call_timeout: %w", err)
		}

		cfg.CallTimeout = d
	}

	if meta.IsDefined("max_payload_bytes") {
		if raw.MaxPayloadBytes <= 0 {
			return File{}, fmt.Errorf("max_payload_bytes must be positive, got %d", raw.MaxPayloadBytes)
		}

		cfg.Limits.MaxPayloadBytes = uint64(raw.MaxPayloadBytes)
	}

	if err := cfg.Validate(); err != nil {
		return File{}, err
	}

	return cfg, nil
}

// Validate reports missing or out of range settings.
func (f File) Validate() error {
	if f.Component.Package == "" || f.Component.Class == "" {
		return fmt.Errorf("package and class are required")
	}

	switch {
	case f.Socket == "" && f.Exec == "":
		return fmt.Errorf("one of socket or exec is required")
	case f.Socket != "" && f.Exec != "":
		return fmt.Errorf("socket and exec are mutually exclusive")
	}

	if f.ClientVersion < protocol.ClientVersion1 {
		return fmt.Errorf("client_version must be at least %d, got %d", protocol.ClientVersion1, f.ClientVersion)
	}

	if f.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", f.CallTimeout)
	}

	return nil
}
