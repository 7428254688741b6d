package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gastoscan/internal/api"
	"gastoscan/internal/api/handlers"
	"gastoscan/internal/repository"
	"gastoscan/internal/service"
	"gastoscan/pkg/config"
	"gastoscan/pkg/logger"
	"gastoscan/pkg/postgres"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("starting gastoscan service")

	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	expenseRepo := repository.NewExpenseRepository(db, appLogger)
	if err := expenseRepo.EnsureSchema(ctx); err != nil {
		appLogger.Fatal("failed to prepare database schema", zap.Error(err))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		appLogger.Fatal("failed to load AWS config", zap.Error(err))
	}
	appLogger.Info("AWS clients initialized", zap.String("region", cfg.AWS.Region))

	textractSvc := service.NewTextractService(textract.NewFromConfig(awsCfg), cfg.AWS.RequestTimeout, appLogger)
	rekognitionSvc := service.NewRekognitionService(rekognition.NewFromConfig(awsCfg), cfg.AWS.RequestTimeout, appLogger)
	bedrockSvc := service.NewBedrockService(bedrockruntime.NewFromConfig(awsCfg), cfg.AWS.BedrockModelID, cfg.AWS.RequestTimeout, appLogger)

	processor := service.NewDocumentProcessor(textractSvc, rekognitionSvc, bedrockSvc, appLogger)
	agent := service.NewAgentService(bedrockSvc, expenseRepo, appLogger)

	expenseHandler := handlers.NewExpenseHandler(processor, expenseRepo, agent, appLogger)
	app := api.SetupRouter(expenseHandler)

	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("server shutdown error", zap.Error(err))
	}
}
