package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	bankingrepo "github.com/northbooks/northbooks/internal/banking/adapter/repo"
	bankingapi "github.com/northbooks/northbooks/internal/banking/api"
	bankingsvc "github.com/northbooks/northbooks/internal/banking/service"
	documentsrepo "github.com/northbooks/northbooks/internal/documents/adapter/repo"
	documentsapi "github.com/northbooks/northbooks/internal/documents/api"
	documentssvc "github.com/northbooks/northbooks/internal/documents/service"
	ledgerrepo "github.com/northbooks/northbooks/internal/ledger/adapter/repo"
	ledgerapi "github.com/northbooks/northbooks/internal/ledger/api"
	ledgersvc "github.com/northbooks/northbooks/internal/ledger/service"
	"github.com/northbooks/northbooks/internal/platform/database"
	"github.com/northbooks/northbooks/internal/platform/logger"
	"github.com/northbooks/northbooks/internal/platform/server"
)

func main() {
	viper.SetConfigFile(configPath())
	viper.SetEnvPrefix("NORTHBOOKS")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("reading config: %s", err)
	}

	mode := viper.GetString("server.mode")
	appLogger := logger.NewLogger(mode)
	defer appLogger.Sync()

	db, err := database.NewPostgresDB(
		viper.GetString("database.dsn"),
		viper.GetInt("database.max_idle_conns"),
		viper.GetInt("database.max_open_conns"),
		mode == "debug",
	)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		appLogger.Fatal("migration failed", zap.Error(err))
	}

	// Ledger module
	accountRepo := ledgerrepo.NewAccountRepo(db)
	journalRepo := ledgerrepo.NewJournalRepo(db)
	journalSvc := ledgersvc.NewJournalService(db, accountRepo, journalRepo, nil, appLogger)
	accountSvc := ledgersvc.NewAccountService(db, accountRepo, journalRepo, appLogger)
	ledgerHandler := ledgerapi.NewLedgerHandler(accountSvc, journalSvc)

	// Documents module
	customerRepo := documentsrepo.NewCustomerRepo(db)
	invoiceRepo := documentsrepo.NewInvoiceRepo(db)
	billRepo := documentsrepo.NewBillRepo(db)
	invoiceSvc := documentssvc.NewInvoiceService(db, invoiceRepo, customerRepo, journalSvc, accountRepo, appLogger)
	billSvc := documentssvc.NewBillService(db, billRepo, customerRepo, journalSvc, accountRepo, appLogger)
	customerSvc := documentssvc.NewCustomerService(customerRepo, appLogger)
	documentsHandler := documentsapi.NewDocumentsHandler(invoiceSvc, billSvc, customerSvc)

	// Banking module
	bankAccountRepo := bankingrepo.NewBankAccountRepo(db)
	bankTxRepo := bankingrepo.NewBankTransactionRepo(db)
	bankSvc := bankingsvc.NewBankService(db, bankAccountRepo, bankTxRepo, journalSvc, appLogger)
	bankingHandler := bankingapi.NewBankingHandler(bankSvc)

	// Entries matched to a bank transaction must survive deletion attempts.
	journalSvc.SetReconciliationChecker(bankSvc)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	seeded, err := accountSvc.SeedChart(ctx)
	cancel()
	if err != nil {
		appLogger.Fatal("seeding chart of accounts failed", zap.Error(err))
	}
	if seeded > 0 {
		appLogger.Info("chart of accounts seeded", zap.Int("accounts", seeded))
	}

	srv := server.NewServer(
		appLogger,
		viper.GetString("server.port"),
		mode,
		ledgerHandler,
		documentsHandler,
		bankingHandler,
	)

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server startup failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("shutdown error", zap.Error(err))
	}
}

func configPath() string {
	if p := os.Getenv("NORTHBOOKS_CONFIG"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
