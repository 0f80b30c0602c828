// Package seed bootstraps a development database with a demo learner and
// course catalog.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/coursepay/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type User struct {
	ID          string
	Email       string
	DisplayName string
}

type Course struct {
	ID    string
	Title string
	Slug  string
}

var (
	DemoUsers = []User{
		{ID: "student-demo", Email: "student@coursepay.local", DisplayName: "Demo Student"},
		{ID: "operator-demo", Email: "operator@coursepay.local", DisplayName: "Demo Operator"},
	}
	DemoCourses = []Course{
		{ID: "go-fundamentals", Title: "Go Fundamentals", Slug: "go-fundamentals"},
		{ID: "distributed-systems", Title: "Distributed Systems in Practice", Slug: "distributed-systems"},
	}
)

var Module = fx.Module("seed",
	fx.Invoke(func(db *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.SeedDemo {
			return nil
		}
		if cfg.IsProduction() {
			log.Warn("SEED_DEMO ignored in production")
			return nil
		}
		if err := EnsureCatalog(context.Background(), db, DemoUsers, DemoCourses); err != nil {
			return err
		}
		log.Info("demo catalog seeded",
			zap.Int("users", len(DemoUsers)),
			zap.Int("courses", len(DemoCourses)),
		)
		return nil
	}),
)

// EnsureCatalog inserts users and courses that do not exist yet. Existing
// rows are left untouched.
func EnsureCatalog(ctx context.Context, db *gorm.DB, users []User, courses []Course) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			if err := tx.Exec(
				`INSERT INTO users (id, email, display_name, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING`,
				u.ID, u.Email, u.DisplayName, now,
			).Error; err != nil {
				return err
			}
		}
		for _, c := range courses {
			if err := tx.Exec(
				`INSERT INTO courses (id, title, slug, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (id) DO NOTHING`,
				c.ID, c.Title, c.Slug, now,
			).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
