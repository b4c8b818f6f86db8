package main

import (
	"fmt"
	"os"

	"github.com/nurpe/jobpay/internal/auth"
	"github.com/nurpe/jobpay/internal/config"
	"github.com/nurpe/jobpay/internal/db"
	"github.com/nurpe/jobpay/internal/excel"
	httphandler "github.com/nurpe/jobpay/internal/http"
	"github.com/nurpe/jobpay/internal/http/middleware"
	"github.com/nurpe/jobpay/internal/logger"
	"github.com/nurpe/jobpay/internal/pdf"
	"github.com/nurpe/jobpay/internal/repository"
	"github.com/nurpe/jobpay/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	profileRepo := repository.NewProfileRepository(database)
	contractRepo := repository.NewContractRepository(database)
	paymentRepo := repository.NewPaymentRepository(database, cfg.Payments.LockTimeout)
	reportRepo := repository.NewReportRepository(database)

	contractService := service.NewContractService(contractRepo, pdf.NewGenerator())
	paymentService := service.NewPaymentService(paymentRepo, cfg)
	reportService := service.NewReportService(reportRepo, excel.NewGenerator(), cfg)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, paymentService, reportService, log)
	authMiddleware := middleware.Auth(tokenParser, profileRepo, log)
	router := httphandler.NewRouter(handler, authMiddleware, httphandler.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().
		Str("addr", addr).
		Str("deposit_limit_ratio", cfg.Payments.DepositLimitRatio.String()).
		Int("admin_profiles", len(cfg.Reports.AdminProfileIDs)).
		Msg("starting jobpay service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
