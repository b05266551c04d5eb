package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v2"
)

type rpcConfig struct {
	URL       string  `toml:"url"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

type compileConfig struct {
	TracesDir string `toml:"traces_dir"`
	OutDir    string `toml:"out_dir"`
	Workers   int    `toml:"workers"`
	TxWorkers int    `toml:"tx_workers"`
}

type serverConfig struct {
	Addr    string `toml:"addr"`
	Metrics bool   `toml:"metrics"`
}

type config struct {
	RPC     rpcConfig     `toml:"rpc"`
	Compile compileConfig `toml:"compile"`
	Server  serverConfig  `toml:"server"`
}

func defaultConfig() config {
	return config{
		RPC: rpcConfig{
			URL:   "http://localhost:8545",
			Burst: 1,
		},
		Compile: compileConfig{
			OutDir:    "accesslists",
			Workers:   runtime.NumCPU(),
			TxWorkers: 1,
		},
		Server: serverConfig{
			Addr: "localhost:8550",
		},
	}
}

func loadConfigFile(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// loadConfig layers the defaults, the optional TOML file and the flags set on
// the command line, in that order.
func loadConfig(ctx *cli.Context) (config, error) {
	cfg := defaultConfig()
	if path := ctx.String(configFlag.Name); path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return config{}, err
		}
	}
	if ctx.IsSet(rpcFlag.Name) {
		cfg.RPC.URL = ctx.String(rpcFlag.Name)
	}
	if ctx.IsSet(rateLimitFlag.Name) {
		cfg.RPC.RateLimit = ctx.Float64(rateLimitFlag.Name)
	}
	if ctx.IsSet(burstFlag.Name) {
		cfg.RPC.Burst = ctx.Int(burstFlag.Name)
	}
	if ctx.IsSet(tracesDirFlag.Name) {
		cfg.Compile.TracesDir = ctx.String(tracesDirFlag.Name)
	}
	if ctx.IsSet(outDirFlag.Name) {
		cfg.Compile.OutDir = ctx.String(outDirFlag.Name)
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Compile.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(txWorkersFlag.Name) {
		cfg.Compile.TxWorkers = ctx.Int(txWorkersFlag.Name)
	}
	if ctx.IsSet(httpAddrFlag.Name) {
		cfg.Server.Addr = ctx.String(httpAddrFlag.Name)
	}
	if ctx.IsSet(metricsFlag.Name) {
		cfg.Server.Metrics = ctx.Bool(metricsFlag.Name)
	}
	if cfg.Compile.Workers < 1 {
		return config{}, fmt.Errorf("workers must be positive, got %d", cfg.Compile.Workers)
	}
	if cfg.Compile.TxWorkers < 1 {
		return config{}, fmt.Errorf("tx workers must be positive, got %d", cfg.Compile.TxWorkers)
	}
	return cfg, nil
}
