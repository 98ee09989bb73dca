package db

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"adoptd/internal/models"
)

//go:embed seed.yaml
var seedData []byte

type seedFile struct {
	Roles []struct {
		Name        string   `yaml:"name"`
		Permissions []string `yaml:"permissions"`
	} `yaml:"roles"`
	Permissions []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"permissions"`
}

// Seed inserts baseline lookup data: permissions and default roles with their
// grants. Existing rows are left untouched.
func Seed(ctx context.Context, database *gorm.DB) error {
	var seed seedFile
	if err := yaml.Unmarshal(seedData, &seed); err != nil {
		return fmt.Errorf("parse seed data: %w", err)
	}

	for _, p := range seed.Permissions {
		perm := models.Permission{Name: p.Name, Description: p.Description}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&perm).Error; err != nil {
			return err
		}
	}

	for _, r := range seed.Roles {
		role := models.Role{Name: r.Name}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return err
		}
		if err := database.WithContext(ctx).
			Where("name = ?", r.Name).First(&role).Error; err != nil {
			return err
		}

		var perms []models.Permission
		if len(r.Permissions) > 0 {
			if err := database.WithContext(ctx).
				Where("name IN ?", r.Permissions).Find(&perms).Error; err != nil {
				return err
			}
		}
		if err := database.WithContext(ctx).
			Model(&role).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}

	return nil
}
