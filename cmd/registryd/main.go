package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/build"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry/eventlog"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/regweb"
	"github.com/btcsuite/btclog"
)

func main() {
	var (
		dbPath         = flag.String("db", "~/.registryd/events.db", "Path to the event log's SQLite database")
		webAddr        = flag.String("web", ":8090", "Web relay address (empty to disable)")
		logDir         = flag.String("log-dir", "~/.registryd/logs", "Directory for log files (empty to disable file logging)")
		maxLogFiles    = flag.Int("max-log-files", build.DefaultMaxLogFiles, "Maximum number of rotated log files to keep")
		maxLogFileSize = flag.Int("max-log-file-size", build.DefaultMaxLogFileSize, "Maximum log file size in MB before rotation")
	)
	flag.Parse()

	expandHome := func(path string) string {
		expanded := os.ExpandEnv(path)
		if expanded == path && len(path) > 0 && path[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatalf("Failed to get home directory: %v", err)
			}
			expanded = home + path[1:]
		}
		return expanded
	}

	dbPathExpanded := expandHome(*dbPath)
	logDirExpanded := expandHome(*logDir)

	var logRotator *build.RotatingLogWriter
	if logDirExpanded != "" {
		logRotator = build.NewRotatingLogWriter()
		err := logRotator.InitLogRotator(&build.LogRotatorConfig{
			LogDir:         logDirExpanded,
			MaxLogFiles:    *maxLogFiles,
			MaxLogFileSize: *maxLogFileSize,
		})
		if err != nil {
			log.Printf("Failed to init log rotator: %v (continuing without file logging)", err)
			logRotator = nil
		} else {
			defer logRotator.Close()
			multiWriter := io.MultiWriter(os.Stderr, logRotator)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags)
		}
	}

	commit := build.Commit
	if commit == "" {
		commit = build.CommitHash()
	}
	if commit == "" {
		commit = "dev"
	}
	log.Printf("registryd version %s commit=%s go=%s", build.Version, commit, build.GoVersion)

	eventStore, err := eventlog.Open(dbPathExpanded)
	if err != nil {
		log.Fatalf("Failed to open event log: %v", err)
	}
	defer eventStore.Close()

	var btclogHandlers []btclog.Handler
	consoleHandler := btclog.NewDefaultHandler(os.Stderr)
	btclogHandlers = append(btclogHandlers, consoleHandler)
	if logRotator != nil {
		fileHandler := btclog.NewDefaultHandler(logRotator)
		btclogHandlers = append(btclogHandlers, fileHandler)
		log.Printf("Log file rotation enabled: dir=%s, max_files=%d, max_size=%dMB",
			logDirExpanded, *maxLogFiles, *maxLogFileSize)
	}
	combinedHandler := build.NewHandlerSet(btclogHandlers...)

	actorLogger := btclog.NewSLogger(combinedHandler)
	actor.UseLogger(actorLogger)
	registry.UseLogger(actorLogger.WithPrefix("REGI"))
	regweb.UseLogger(actorLogger.WithPrefix("RWEB"))

	reg := registry.Start[string](eventStore)
	defer reg.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received %v, initiating graceful shutdown (send again to force exit)...", sig)
		cancel()

		sig = <-sigCh
		log.Printf("Received %v again, forcing immediate exit", sig)
		os.Exit(1)
	}()

	if *webAddr != "" {
		webCfg := regweb.DefaultConfig()
		webCfg.Addr = *webAddr
		webCfg.EventLog = eventStore

		webServer, err := regweb.NewServer(webCfg, reg)
		if err != nil {
			log.Fatalf("Failed to create web relay: %v", err)
		}

		go func() {
			log.Printf("Starting registry web relay on %s", *webAddr)
			if err := webServer.Start(); err != nil {
				log.Printf("Web relay error: %v", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			webServer.Shutdown(shutdownCtx)
		}()
	}

	log.Println("registryd running, awaiting shutdown signal")
	<-ctx.Done()
}
