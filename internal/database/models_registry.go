package database

import "sigede/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.ServiceRequest{},
		&models.RequestStatusHistory{},
	}
}
