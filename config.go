package dyncc

import (
	"fmt"
	"go/version"

	"github.com/BurntSushi/toml"
	"github.com/ZenLiuCN/dyncc/messages"
	"go.uber.org/zap"
)

type (
	// Config of a Compiler as read from a TOML file:
	//
	//	[toolchain]
	//	go = "/usr/local/go/bin/go"
	//	module_dir = "."
	//	min_version = "go1.22"
	//	keep_scratch = false
	//	env = ["GOFLAGS=-mod=mod"]
	//
	//	[compiler]
	//	default_package = "plugins"
	//	host_match = true
	//	locale = "ja-JP"
	Config struct {
		Toolchain ToolchainConfig `toml:"toolchain"`
		Compiler  CompilerConfig  `toml:"compiler"`
	}
	ToolchainConfig struct {
		Go          string   `toml:"go"`
		ModuleDir   string   `toml:"module_dir"`
		MinVersion  string   `toml:"min_version"`
		KeepScratch bool     `toml:"keep_scratch"`
		Env         []string `toml:"env"`
	}
	CompilerConfig struct {
		DefaultPackage string `toml:"default_package"`
		HostMatch      *bool  `toml:"host_match"`
		Locale         string `toml:"locale"`
	}
)

// LoadConfig decode a TOML file.
func LoadConfig(path string) (c Config, err error) {
	if _, err = toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return
}

// Options of a Compiler configured by c.
func (c Config) Options(log *zap.Logger) (opts []Option, err error) {
	if log == nil {
		log = Logger()
	}
	opts = append(opts, WithLogger(log), WithToolchain(&GoToolchain{
		Go:          c.Toolchain.Go,
		ModuleDir:   c.Toolchain.ModuleDir,
		Env:         c.Toolchain.Env,
		KeepScratch: c.Toolchain.KeepScratch,
		Log:         log,
	}))
	if c.Toolchain.MinVersion != "" {
		if !version.IsValid(c.Toolchain.MinVersion) {
			return nil, fmt.Errorf("min_version: %q is not a go version such as go1.22", c.Toolchain.MinVersion)
		}
		opts = append(opts, WithMinVersion(c.Toolchain.MinVersion))
	}
	if c.Compiler.DefaultPackage != "" {
		opts = append(opts, WithDefaultPackage(c.Compiler.DefaultPackage))
	}
	if c.Compiler.HostMatch != nil {
		opts = append(opts, WithHostMatch(*c.Compiler.HostMatch))
	}
	if c.Compiler.Locale != "" {
		var s *messages.Store
		if s, err = messages.Load(messages.ParseLocale(c.Compiler.Locale)); err != nil {
			return nil, err
		}
		opts = append(opts, WithMessages(s))
	}
	return
}
