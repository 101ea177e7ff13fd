package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libraz/mygramdb/internal/apply"
	"github.com/libraz/mygramdb/internal/cache"
	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/dump"
	"github.com/libraz/mygramdb/internal/logging"
	"github.com/libraz/mygramdb/internal/mysqlrepl"
	"github.com/libraz/mygramdb/internal/server"
	"github.com/libraz/mygramdb/internal/stats"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file (required)")
	loadDump := flag.String("load-dump", "", "Dump file to restore from before accepting connections")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		os.Exit(1)
	}

	if err := run(*configPath, *loadDump); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, loadDumpPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(logging.Config{})
	if err != nil {
		return err
	}
	defer log.Sync()

	cat := catalog.New(cfg.Tables)

	var startGTID string
	if loadDumpPath != "" {
		cat.SetLoadingOnly(true)
		startGTID, err = dump.Read(loadDumpPath, cat)
		cat.SetLoadingOnly(false)
		if err != nil {
			return fmt.Errorf("loading dump %s: %w", loadDumpPath, err)
		}
		logging.Event("dump_loaded").Field("path", loadDumpPath).Field("gtid", startGTID).Info(log)
	}

	var stateFile dump.GtidStateFile
	if cfg.Replication.StateFilePath != "" {
		stateFile = dump.GtidStateFile{Path: cfg.Replication.StateFilePath}
		if startGTID == "" && stateFile.Exists() {
			if g, err := stateFile.Read(); err == nil {
				startGTID = g
			}
		}
	}
	if startGTID == "" {
		startGTID = cfg.Replication.StartGTID
	}
	cfg.Replication.StartGTID = startGTID

	qc, err := cache.New(cache.Config{
		Enabled:        cfg.Cache.Enabled,
		MaxMemoryBytes: cfg.Cache.MaxMemoryBytes,
		MinQueryCostMs: cfg.Cache.MinQueryCostMs,
		TTLSeconds:     cfg.Cache.TTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("constructing query cache: %w", err)
	}
	defer qc.Stop()

	st := stats.New(time.Now().Unix())
	worker := apply.New(cat, qc, stateFile, cfg.Replication.StateWriteIntervalEvents, log)
	worker.SetStartGTID(startGTID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reader *mysqlrepl.ReplicationReader
	if cfg.Replication.Enable {
		reader = mysqlrepl.NewReplicationReader(cfg.MySQL, cfg.Replication, cat, log)
		events, err := reader.Start(ctx)
		if err != nil {
			return fmt.Errorf("starting replication: %w", err)
		}
		go worker.Run(ctx, events)
	}

	var source mysqlrepl.Source
	if reader != nil {
		source = reader
	}
	dispatcher := server.NewDispatcher(cat, qc, cfg, st, worker, source, log)

	listener, err := server.NewListener(cfg.Server.Host, cfg.Server.Port, cfg.Server.MaxConnections, dispatcher, log)
	if err != nil {
		return fmt.Errorf("starting listener: %w", err)
	}

	logging.Event("server_started").
		Field("addr", listener.Addr().String()).
		Field("tables", len(cfg.Tables)).
		Info(log)

	serveErrCh := make(chan error, 1)
	go func() { serveErrCh <- listener.Serve(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logging.Event("server_shutdown_signal").Info(log)
	case err := <-serveErrCh:
		if err != nil {
			logging.Event("server_serve_error").Field("error", err.Error()).Error(log)
		}
	}

	cancel()
	if reader != nil {
		reader.Stop()
	}
	worker.Wait()

	return nil
}
