package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	rpcFlag = &cli.StringFlag{
		Name:    "rpc",
		Usage:   "JSON-RPC endpoint of a node exposing the debug namespace",
		EnvVars: []string{"ACCESSLIST_RPC"},
	}
	rateLimitFlag = &cli.Float64Flag{
		Name:  "rps",
		Usage: "Maximum RPC requests per second (0 = unlimited)",
	}
	burstFlag = &cli.IntFlag{
		Name:  "burst",
		Usage: "RPC request burst size",
	}
	fromFlag = &cli.Uint64Flag{
		Name:  "from",
		Usage: "First block to process",
	}
	toFlag = &cli.Uint64Flag{
		Name:  "to",
		Usage: "Last block to process (defaults to --from)",
	}
	tracesDirFlag = &cli.StringFlag{
		Name:  "traces-dir",
		Usage: "Directory of gob encoded blocks and traces",
	}
	outDirFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Output directory for compiled access lists",
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Blocks processed concurrently",
	}
	txWorkersFlag = &cli.IntFlag{
		Name:  "tx-workers",
		Usage: "Transactions of one block extracted concurrently",
	}
	httpAddrFlag = &cli.StringFlag{
		Name:  "http.addr",
		Usage: "Listen address of the JSON-RPC server",
	}
	metricsFlag = &cli.BoolFlag{
		Name:  "metrics",
		Usage: "Collect metrics and serve them at /debug/metrics/prometheus",
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log level 0-5 (0=silent, 5=trace)",
		Value: 3,
	}
)

var sourceFlags = []cli.Flag{configFlag, rpcFlag, rateLimitFlag, burstFlag, tracesDirFlag}

func flags(extra ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag{}, sourceFlags...), extra...)
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "accesslist",
		Usage: "compile block access lists from execution traces",
		Flags: []cli.Flag{verbosityFlag},
		Before: func(ctx *cli.Context) error {
			setupLogging(ctx.Int(verbosityFlag.Name))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "compile",
				Usage:  "Compile the access lists of a block range",
				Flags:  flags(fromFlag, toFlag, outDirFlag, workersFlag, txWorkersFlag),
				Action: compileCommand,
			},
			{
				Name:   "dump",
				Usage:  "Fetch blocks and traces over RPC and store them in --traces-dir",
				Flags:  flags(fromFlag, toFlag, workersFlag),
				Action: dumpCommand,
			},
			{
				Name:   "compare",
				Usage:  "Compare compiled per-transaction access lists with eth_createAccessList",
				Flags:  flags(fromFlag, toFlag),
				Action: compareCommand,
			},
			{
				Name:   "serve",
				Usage:  "Serve accesslist_compile over JSON-RPC",
				Flags:  flags(httpAddrFlag, metricsFlag, txWorkersFlag),
				Action: serveCommand,
			},
		},
	}
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 0:
		lvl = log.LevelCrit
	case verbosity == 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, useColor)))
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
