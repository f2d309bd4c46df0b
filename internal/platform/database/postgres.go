package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	bankingdomain "github.com/northbooks/northbooks/internal/banking/domain"
	documentsdomain "github.com/northbooks/northbooks/internal/documents/domain"
	ledgerdomain "github.com/northbooks/northbooks/internal/ledger/domain"
)

// NewPostgresDB opens the database connection and configures the pool.
func NewPostgresDB(dsn string, maxIdleConns, maxOpenConns int, logSQL bool) (*gorm.DB, error) {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the schema for every module.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledgerdomain.Account{},
		&ledgerdomain.JournalEntry{},
		&ledgerdomain.JournalLine{},
		&documentsdomain.Customer{},
		&documentsdomain.Invoice{},
		&documentsdomain.InvoiceItem{},
		&documentsdomain.InvoicePayment{},
		&documentsdomain.Bill{},
		&documentsdomain.BillItem{},
		&documentsdomain.BillPayment{},
		&bankingdomain.BankAccount{},
		&bankingdomain.BankTransaction{},
	)
}
