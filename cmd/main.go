package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"assistant-bridge/handler"
	"assistant-bridge/internal/config"
	"assistant-bridge/internal/integrations/paramstore"
	"assistant-bridge/internal/integrations/provider"
	"assistant-bridge/internal/repository"
	"assistant-bridge/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadSSO()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	accounts, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	if err != nil {
		slog.Error("failed to create account store", "err", err)
		os.Exit(1)
	}
	validator, err := provider.NewValidator(cfg.ProviderBaseURL, provider.WithTimeout(cfg.ProviderTimeout))
	if err != nil {
		slog.Error("failed to create provider validator", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	svc, err := usecase.NewHandoffService(validator, ssmClient, accounts, usecase.HandoffConfig{
		ParamPrefix:   cfg.ParamPrefix,
		HostBaseURL:   cfg.HostBaseURL,
		DashboardPath: cfg.DashboardPath,
		SessionTTL:    cfg.SessionTTL,
	})
	if err != nil {
		slog.Error("failed to create hand-off service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(svc, handler.WithCookieName(cfg.SessionCookie))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
