// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dcstacview/tacview-ingest/internal/acmi"
	"github.com/dcstacview/tacview-ingest/internal/config"
	"github.com/dcstacview/tacview-ingest/internal/fileserve"
	"github.com/dcstacview/tacview-ingest/internal/ingest"
	"github.com/dcstacview/tacview-ingest/internal/repository"
	"github.com/dcstacview/tacview-ingest/internal/weapontypes"
	"github.com/dcstacview/tacview-ingest/pkg/log"
)

func main() {
	var (
		flagConfigFile     string
		flagHost           string
		flagPort           int
		flagClientName     string
		flagClientPassword string
		flagBatchSize      int
		flagMaxIterations  int
		flagOverwrite      bool

		flagMigrateDB      bool
		flagWeaponTypesCSV string
		flagServeFile      string
		flagExitSentinel   bool
	)

	flag.StringVar(&flagConfigFile, "config", "./config.json", "Overwrite the default configuration by those specified in `config.json`")
	flag.StringVar(&flagHost, "host", "", "Tacview telemetry source `host` to dial (overrides config)")
	flag.IntVar(&flagPort, "port", 0, "Tacview telemetry source `port` to dial (overrides config)")
	flag.StringVar(&flagClientName, "client-name", "", "Client name presented during the handshake")
	flag.StringVar(&flagClientPassword, "client-password", "", "Client password presented during the handshake")
	flag.IntVar(&flagBatchSize, "batch-size", 0, "Number of buffered event rows that trigger an automatic flush")
	flag.IntVar(&flagMaxIterations, "max-iterations", 0, "Stop after this many frames (0 disables the cap)")
	flag.BoolVar(&flagOverwrite, "overwrite", false, "Replace a previously processed recording with the same start time")
	flag.BoolVar(&flagMigrateDB, "migrate-db", false, "Apply pending schema migrations and exit")
	flag.StringVar(&flagWeaponTypesCSV, "load-weapon-types", "", "Load the weapon/category CSV at `path` and exit")
	flag.StringVar(&flagServeFile, "serve-file", "", "Serve a recorded ACMI file at `path` to connecting clients instead of ingesting live telemetry")
	flag.BoolVar(&flagExitSentinel, "exit-sentinel", false, "With -serve-file, append a synthetic '-exit' line once the file is exhausted")
	flag.Parse()

	keys := config.Default()
	if err := config.LoadFile(flagConfigFile, &keys); err != nil {
		log.Fatalf("loading config %s: %v", flagConfigFile, err)
	}
	config.LoadEnv(&keys)

	if flagHost != "" {
		keys.Host = flagHost
	}
	if flagPort != 0 {
		keys.Port = flagPort
	}
	if flagClientName != "" {
		keys.ClientName = flagClientName
	}
	if flagClientPassword != "" {
		keys.ClientPassword = flagClientPassword
	}
	if flagBatchSize != 0 {
		keys.BatchSize = flagBatchSize
	}
	if flagMaxIterations != 0 {
		keys.MaxIterations = flagMaxIterations
	}
	if flagOverwrite {
		keys.Overwrite = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down...")
		cancel()
	}()

	if flagServeFile != "" {
		addr := flagHost
		if addr == "" {
			addr = keys.Host
		}
		if err := fileserve.ListenAndServe(ctx, joinHostPort(addr, keys.Port), flagServeFile, flagExitSentinel); err != nil {
			log.Fatal(err)
		}
		return
	}

	keys.RequireDatabaseURL()

	if flagMigrateDB {
		repository.MigrateDB(keys.DatabaseURL)
		return
	}

	repository.Connect(keys.DatabaseURL)
	db := repository.GetConnection()

	if flagWeaponTypesCSV != "" {
		f, err := os.Open(flagWeaponTypesCSV)
		if err != nil {
			log.Fatalf("opening %s: %v", flagWeaponTypesCSV, err)
		}
		defer f.Close()

		entries, err := weapontypes.Load(f)
		if err != nil {
			log.Fatal(err)
		}
		if err := weapontypes.Upsert(ctx, db.DB, entries); err != nil {
			log.Fatal(err)
		}
		return
	}

	framer := acmi.NewFramer(keys.Host, keys.Port, keys.ClientName, keys.ClientPassword)
	sessionRepo := repository.NewSessionRepo(db)
	objectRepo := repository.NewObjectRepo(db)
	eventStore := repository.NewPgEventStore(db)

	consumer := ingest.NewConsumer(framer, sessionRepo, objectRepo, eventStore, ingest.Config{
		ResolverCfg:   keys.ResolverConfig(),
		Overwrite:     keys.Overwrite,
		BatchSize:     keys.BatchSize,
		MaxIterations: keys.MaxIterations,
	})

	if err := consumer.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

func joinHostPort(host string, port int) string {
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
