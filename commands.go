package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/prometheus"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jsign/trace-access-list/source/gobsource"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func compileCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	src, closeSrc, err := openSource(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	var numbers []uint64
	if store, ok := src.(*gobsource.Source); ok && !ctx.IsSet(fromFlag.Name) {
		if numbers, err = store.Numbers(); err != nil {
			return err
		}
	} else if numbers, err = blockRange(ctx.Uint64(fromFlag.Name), ctx.Uint64(toFlag.Name)); err != nil {
		return err
	}

	w, err := newReportWriter(cfg.Compile.OutDir)
	if err != nil {
		return err
	}
	c := &compiler{src: src, txWorkers: cfg.Compile.TxWorkers, metrics: newCompileMetrics()}
	start := time.Now()
	err = c.run(ctx.Context, numbers, cfg.Compile.Workers, w.write)
	if cerr := w.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	renderTable(os.Stdout, summaryHeader, w.table())
	log.Info("Compiled access lists", "blocks", len(numbers), "out", cfg.Compile.OutDir, "elapsed", common.PrettyDuration(time.Since(start)))
	return nil
}

func dumpCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Compile.TracesDir == "" {
		return fmt.Errorf("--%s is required", tracesDirFlag.Name)
	}
	numbers, err := blockRange(ctx.Uint64(fromFlag.Name), ctx.Uint64(toFlag.Name))
	if err != nil {
		return err
	}
	src, err := dialRPC(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer src.Close()
	store := gobsource.New(cfg.Compile.TracesDir)

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx.Context)
	g.SetLimit(cfg.Compile.Workers)
	for _, number := range numbers {
		g.Go(func() error {
			block, err := src.Block(gctx, number)
			if err != nil {
				return err
			}
			if err := store.Store(block); err != nil {
				return err
			}
			n := done.Add(1)
			log.Debug("Stored block", "number", number, "txs", len(block.Metas))
			if n%100 == 0 || int(n) == len(numbers) {
				log.Info("Dumping blocks", "progress", fmt.Sprintf("%.2f%%", float64(n)/float64(len(numbers))*100))
			}
			return nil
		})
	}
	return g.Wait()
}

func serveCommand(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Server.Metrics {
		metrics.Enabled = true
	}
	src, closeSrc, err := openSource(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer closeSrc()

	server := rpc.NewServer()
	defer server.Stop()
	c := &compiler{src: src, txWorkers: cfg.Compile.TxWorkers, metrics: newCompileMetrics()}
	if err := server.RegisterName("accesslist", newAPI(c)); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", server)
	if cfg.Server.Metrics {
		mux.Handle("/debug/metrics/prometheus", prometheus.Handler(metrics.DefaultRegistry))
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP server shutdown failed", "err", err)
		}
	}()

	log.Info("Serving access lists", "addr", cfg.Server.Addr, "metrics", cfg.Server.Metrics)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info("Server stopped")
	return nil
}
