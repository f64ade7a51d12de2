// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	authdomain "mailmirror-backend/internal/auth/domain"
	"mailmirror-backend/pkg/database"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory store. A single connection keeps every
// query on the same database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given address.
func CreateUser(t *testing.T, db *gorm.DB, email string) *authdomain.User {
	t.Helper()

	user := &authdomain.User{Email: email, Name: email}
	require.NoError(t, db.WithContext(context.Background()).Create(user).Error)
	return user
}

// CreateCredential stores a token pair for userID.
func CreateCredential(t *testing.T, db *gorm.DB, userID, accessToken, refreshToken string) {
	t.Helper()

	cred := &authdomain.GoogleCredential{UserID: userID, AccessToken: accessToken, RefreshToken: refreshToken}
	require.NoError(t, db.Create(cred).Error)
}
