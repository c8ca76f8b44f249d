// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"analyticaos/internal/db"
	"analyticaos/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a migrated in-memory SQLite database. A single connection keeps
// every query on the same in-memory schema.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

// NewFile returns a migrated SQLite database in a temp file shared by up to
// conns connections, so goroutines really run side by side. Transactions take
// the write lock on BEGIN and wait on each other for up to ten seconds.
func NewFile(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(gdb))
	return gdb
}

// Password is the plain-text password of every seeded user
const Password = "password123"

// SeedUser creates a user with a wallet holding balance kobo
func SeedUser(t *testing.T, gdb *gorm.DB, email string, balance int64) (domain.User, domain.Wallet) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	user := domain.User{Email: email, FirstName: "Ada", LastName: "Obi", Password: string(hash), Role: domain.RoleUser}
	require.NoError(t, gdb.Create(&user).Error)
	wallet := domain.Wallet{UserID: user.ID, Balance: balance, AccountReference: "ref-" + email}
	require.NoError(t, gdb.Create(&wallet).Error)
	return user, wallet
}

// SeedToken creates an active token
func SeedToken(t *testing.T, gdb *gorm.DB, symbol string, price, supply int64, apy string) domain.Token {
	t.Helper()
	token := domain.Token{
		Symbol:      symbol,
		Name:        symbol + " Note",
		UnitPrice:   price,
		TotalSupply: supply,
		AnnualYield: decimal.RequireFromString(apy),
		Status:      domain.TokenActive,
	}
	require.NoError(t, gdb.Create(&token).Error)
	return token
}
