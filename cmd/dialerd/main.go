// Command dialerd is the control plane's long-running service binary,
// grounded on the teacher's cmd/apicall/main.go wiring order: load
// config, connect storage, connect telephony, bring up the core
// components, start the HTTP surface, wait for a terminate signal,
// shut down.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialerctl/internal/api"
	"dialerctl/internal/config"
	"dialerctl/internal/eventbus"
	"dialerctl/internal/operator"
	"dialerctl/internal/orchestrator"
	"dialerctl/internal/repository"
	"dialerctl/internal/telephony"
	"dialerctl/pkg/logging"
)

const defaultConfigPath = "/etc/dialerctl/dialerd.yaml"

func main() {
	configPath := os.Getenv("DIALERD_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("[dialerd] loading configuration: %v", err)
	}

	if err := logging.Init(cfg.Log); err != nil {
		log.Fatalf("[dialerd] configuring logging: %v", err)
	}
	logger := logging.Get("main")

	repo, closeRepo, err := buildRepository(*cfg)
	if err != nil {
		logger.Fatalf("building repository: %v", err)
	}
	defer closeRepo()
	logger.Info("repository ready")

	phone, closePhone := buildTelephony(*cfg)
	defer closePhone()
	logger.Info("telephony port ready")

	ops := operator.NewManager(cfg.Dialer.MaxIdleSeconds)

	hub := eventbus.NewHub()
	go hub.Run()

	ratio := orchestrator.RatioConfig{
		BaseDialRatio:     cfg.Dialer.DefaultDialRatio,
		MinDialRatio:      cfg.Dialer.MinDialRatio,
		MaxDialRatio:      cfg.Dialer.MaxDialRatio,
		TargetAbandonRate: cfg.Dialer.MaxAbandonRate,
	}
	orch := orchestrator.New(repo, phone, ops, hub, ratio, "")
	phone.OnStatus(func(callID string, status telephony.CallStatus) {
		_ = orch.HandleCallCompleted(context.Background(), callID, status)
	})
	phone.OnAMD(func(callID string, result telephony.AMDResult) {
		_ = orch.HandleAMD(context.Background(), callID, result)
	})

	server := api.NewServer(repo, phone, ops, orch, hub, api.ServerConfig{
		Principals:        toPrincipalSeeds(cfg.Auth.Principals),
		CORSOrigins:       cfg.Server.CORSOrigins,
		ValidateSignature: cfg.Telephony.ValidateSignature,
		WebhookSecret:     cfg.Telephony.AuthToken,
		PublicBaseURL:     cfg.Server.PublicBaseURL,
		AccessExpireMin:   cfg.Auth.AccessTokenExpireMinutes,
		RefreshExpireDays: cfg.Auth.RefreshTokenExpireDays,
		SecretKey:         cfg.Auth.SecretKey,
	})

	resumeRunningCampaigns(repo, orch, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: server.Handler(),
	}
	go func() {
		logger.Infof("HTTP API listening on %s", cfg.Server.Address())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}

func buildRepository(cfg config.Config) (repository.Port, func(), error) {
	if cfg.RepositoryKind() == "memory" {
		return repository.NewMemory(), func() {}, nil
	}
	db, err := repository.NewMySQL(cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MySQL: %w", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, func() { _ = db.Close() }, nil
}

func buildTelephony(cfg config.Config) (telephony.Port, func()) {
	if cfg.Telephony.UseMock || cfg.Telephony.AMI.Host == "" {
		mock := telephony.NewMock()
		return mock, func() {}
	}
	adapter, err := telephony.NewAMIAdapter(telephony.AMIAdapterConfig{
		AMI: telephony.AMIConfig{
			Host:              cfg.Telephony.AMI.Host,
			Port:              cfg.Telephony.AMI.Port,
			Username:          cfg.Telephony.AMI.Username,
			Secret:            cfg.Telephony.AMI.Secret,
			ReconnectInterval: time.Duration(cfg.Telephony.AMI.ReconnectInterval) * time.Second,
		},
		Context:          "dialerctl",
		MaxGlobal:        50,
		MaxPerTrunk:      20,
		OriginateTimeout: 30 * time.Second,
	})
	if err != nil {
		log.Fatalf("[dialerd] connecting to AMI: %v", err)
	}
	return adapter, func() { _ = adapter.Close() }
}

func resumeRunningCampaigns(repo repository.Port, orch *orchestrator.Orchestrator, logger interface{ Infof(string, ...interface{}) }) {
	campaigns, err := repo.ListRunningCampaigns(context.Background())
	if err != nil {
		return
	}
	for _, c := range campaigns {
		logger.Infof("resuming campaign %s", c.ID)
		orch.StartCampaign(context.Background(), c.ID)
	}
}

func toPrincipalSeeds(principals []config.PrincipalConfig) []api.PrincipalSeed {
	seeds := make([]api.PrincipalSeed, 0, len(principals))
	for _, p := range principals {
		seeds = append(seeds, api.PrincipalSeed{
			ID:           p.ID,
			Username:     p.Username,
			PasswordHash: p.PasswordHash,
			Role:         p.Role,
		})
	}
	return seeds
}
