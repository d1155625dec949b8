package database

import "bizdir/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Company{},
		&models.Certification{},
		&models.Experience{},
		&models.SalespersonProfile{},
		&models.ApprovalLog{},
	}
}
