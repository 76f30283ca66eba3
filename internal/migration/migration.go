package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	appdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/application/domain"
	"github.com/Haufe-Lexware/wicked.portal-test/internal/auth/oauth2provider"
	eventsdomain "github.com/Haufe-Lexware/wicked.portal-test/internal/events/domain"
	identitydomain "github.com/Haufe-Lexware/wicked.portal-test/internal/identity/domain"
	subscriptiondomain "github.com/Haufe-Lexware/wicked.portal-test/internal/subscription/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// Models lists every table the portal owns. The casbin rule table is
// created by its adapter.
func Models() []any {
	return []any{
		&identitydomain.User{},
		&appdomain.Application{},
		&appdomain.Owner{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.APIIndexEntry{},
		&subscriptiondomain.ClientIndexEntry{},
		&eventsdomain.Listener{},
		&eventsdomain.Event{},
		&oauth2provider.LoginSession{},
		&oauth2provider.AuthorizationCode{},
		&oauth2provider.AccessToken{},
		&oauth2provider.RefreshToken{},
	}
}

// AutoMigrate creates the schema from the models. Used for sqlite and mysql.
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded Postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
