package db

import (
	"context"

	"gorm.io/gorm"

	"adoptd/internal/models"
)

// Migrate performs schema migrations for the persistent models. The serve
// path migrates through goose (pkg/db); this direct AutoMigrate exists for
// tests and for databases goose cannot reach through pgx.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if err := database.SetupJoinTable(&models.User{}, "Roles", &models.UserRole{}); err != nil {
		return err
	}

	return database.WithContext(ctx).AutoMigrate(models.All()...)
}
