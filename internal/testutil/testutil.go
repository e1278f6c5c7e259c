// Package testutil provides shared fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"sigede/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// NewDB opens a private in-memory SQLite database migrated with the portal
// models. The single connection serialises concurrent writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testutil_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ServiceRequest{}, &models.RequestStatusHistory{}))
	return db
}

// CreateUser inserts a user with the given role.
func CreateUser(t testing.TB, db *gorm.DB, username string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		Email:       username + "@sukamaju.desa.id",
		Password:    "$2a$10$invalidhashfortestsonly000000000000000000000000000000",
		DisplayName: username,
		Role:        role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// PendingRequest inserts a pending_local_approval request whose last status
// change is at changedAt, with its submit history row.
func PendingRequest(t testing.TB, db *gorm.DB, id string, submitterID uint, changedAt time.Time) *models.ServiceRequest {
	t.Helper()
	req := &models.ServiceRequest{
		ID:          id,
		SubmitterID: submitterID,
		Kind:        models.KindLayanan,
		Category:    "surat_keterangan_domisili",
		Subject:     "Surat keterangan domisili",
		Payload: map[string]string{
			"nik":             "3301010101010001",
			"alamat_domisili": "RT 03 RW 01 Dusun Krajan",
			"keperluan":       "pendaftaran sekolah",
		},
		Status:             models.StatusPendingLocal,
		LastStatusChangeAt: changedAt.UTC(),
		CreatedAt:          changedAt.UTC(),
	}
	require.NoError(t, db.Omit("Submitter").Create(req).Error)
	require.NoError(t, db.Create(&models.RequestStatusHistory{
		RequestID:   id,
		ToStatus:    models.StatusPendingLocal,
		Event:       models.EventSubmit,
		ActorUserID: &submitterID,
		CreatedAt:   changedAt.UTC(),
	}).Error)
	return req
}

// Status reloads the stored status of a request.
func Status(t testing.TB, db *gorm.DB, id string) models.RequestStatus {
	t.Helper()
	var req models.ServiceRequest
	require.NoError(t, db.First(&req, "id = ?", id).Error)
	return req.Status
}
