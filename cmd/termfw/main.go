// Package main is the entry point for the SDUI terminal firmware core.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nugget/sdui-termfw/internal/boot"
	"github.com/nugget/sdui-termfw/internal/buildinfo"
	"github.com/nugget/sdui-termfw/internal/config"
	"github.com/nugget/sdui-termfw/internal/platform"
	"github.com/nugget/sdui-termfw/internal/provision"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	persistPath := flag.String("persist", "", "path to a SQLite file for provisioning state (default: in-memory, lost on restart)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "run":
			runDevice(logger, *configPath, *persistPath)
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.Info() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("termfw - SDUI terminal firmware core")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Run the boot orchestrator against the simulated platform")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}

func runDevice(logger *slog.Logger, configPath, persistPath string) {
	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		logger.Warn("no config file found, using defaults", "error", err)
		cfg = config.Default()
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			logger.Error("failed to load config", "path", cfgPath, "error", err)
			os.Exit(1)
		}
		logger.Info("config loaded", "path", cfgPath)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			logger.Error("invalid log_level in config", "error", err)
			os.Exit(1)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("starting termfw", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	var kv platform.KVStore
	if persistPath != "" {
		store, err := provision.NewSQLiteStore(persistPath)
		if err != nil {
			logger.Error("failed to open provisioning store", "path", persistPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		logger.Info("provisioning state persisted", "path", persistPath)
		kv = store
	} else {
		logger.Warn("no -persist path given, provisioning state is in-memory and will not survive a restart")
		kv = platform.NewSimKVStore()
	}

	deps := simulatedDeps(kv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	for {
		orch := boot.New(logger, cfg, deps)
		err := orch.Run(ctx)
		if err == nil {
			break
		}
		if err == boot.ErrSoftRestart {
			logger.Info("soft restart after provisioning")
			continue
		}
		logger.Error("boot failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("termfw stopped")
}

// simulatedDeps wires the in-memory platform implementations for every
// port except KV, which the caller supplies (ephemeral or SQLite-backed).
// A real build substitutes hardware-backed adapters behind the same
// internal/platform interfaces.
func simulatedDeps(kv platform.KVStore) boot.Deps {
	reserver := platform.NewSimSPIReserver()
	return boot.Deps{
		Display:      platform.NewSimDisplay(),
		SPI:          reserver,
		Wifi:         platform.NewSimWifiStation(reserver),
		Provisioner:  &platform.SimProvisioner{SSID: "simulated-ssid", Password: "simulated-password"},
		KV:           kv,
		Codec:        platform.NewSimCodec(),
		Accel:        platform.NewSimAccelerometer(nil),
		Temp:         platform.NewSimTempSensor(),
		MAC:          platform.NewSimMAC(),
		FastArena:    platform.NewSimArena(platform.ArenaFastSRAM),
		DefaultArena: platform.NewSimArena(platform.ArenaDefault),
	}
}
