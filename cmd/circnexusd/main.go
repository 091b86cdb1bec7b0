package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"circnexus/config"
	"circnexus/gateway"
	"circnexus/native/carbon"
	nativecommon "circnexus/native/common"
	"circnexus/native/ledger"
	"circnexus/native/vault"
	"circnexus/native/waste"
	"circnexus/observability"
	"circnexus/observability/logging"
	"circnexus/state"
	"circnexus/storage"
)

const (
	stakingToken = "WST"
	creditToken  = "CCT"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup("circnexusd", "", logging.Options{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup("circnexusd", cfg.Environment, logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	secret := strings.TrimSpace(os.Getenv(cfg.JWTSecretEnv))
	if secret == "" {
		logger.Error("JWT secret is not set", "env", cfg.JWTSecretEnv)
		os.Exit(1)
	}

	owner, err := cfg.Owner()
	if err != nil {
		logger.Error("invalid owner address", "error", err)
		os.Exit(1)
	}
	collector, err := cfg.FeeCollector()
	if err != nil {
		logger.Error("invalid fee collector address", "error", err)
		os.Exit(1)
	}
	custody, err := cfg.Custody()
	if err != nil {
		logger.Error("invalid custody address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	roles := nativecommon.NewRoleRegistry(owner)
	if snap, ok, snapErr := manager.RoleSnapshot(); snapErr != nil {
		logger.Error("failed to load role table", "error", snapErr)
		os.Exit(1)
	} else if ok {
		roles.Restore(snap)
	}
	pauses := nativecommon.NewPauseRegistry()
	if modules, ok, snapErr := manager.PauseSnapshot(); snapErr != nil {
		logger.Error("failed to load pause flags", "error", snapErr)
		os.Exit(1)
	} else if ok {
		pauses.Restore(modules)
	}

	sink := observability.NewEventSink(logger)

	tokens := ledger.NewEngine(stakingToken, creditToken)
	tokens.SetState(manager)
	tokens.SetEmitter(sink)

	wasteEng := waste.NewEngine(stakingToken)
	wasteEng.SetState(manager)
	wasteEng.SetLedger(tokens)
	wasteEng.SetRoles(roles)
	wasteEng.SetPauses(pauses)
	wasteEng.SetEmitter(sink)

	carbonEng := carbon.NewEngine(stakingToken, creditToken, custody, collector)
	carbonEng.SetState(manager)
	carbonEng.SetLedger(tokens)
	carbonEng.SetRoles(roles)
	carbonEng.SetPauses(pauses)
	carbonEng.SetSnapshotter(manager)
	carbonEng.SetEmitter(sink)

	vaultEng := vault.NewEngine(custody, collector)
	vaultEng.SetState(manager)
	vaultEng.SetLedger(tokens)
	vaultEng.SetRoles(roles)
	vaultEng.SetPauses(pauses)
	vaultEng.SetEmitter(sink)

	server := gateway.NewServer(gateway.Deps{
		Ledger: tokens,
		Waste:  wasteEng,
		Carbon: carbonEng,
		Vault:  vaultEng,
		Prices: carbon.StaticPriceFeed{Cents: carbon.DefaultCreditPriceCents},
		State:  manager,
		Roles:  roles,
		Pauses: pauses,
		Auth:   gateway.NewAuthenticator([]byte(secret)),
		Logger: logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen failed", "address", cfg.ListenAddress, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gateway listening", "address", listener.Addr().String(), "environment", cfg.Environment)
		if serveErr := httpServer.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve failed", "error", serveErr)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("shutdown complete")
}
