// Command seed-admin provisions a back-office account.
//
//	seed-admin -username root -password 's3cret-pass'
//	seed-admin -username root -password 'n3w-pass' -reset
//
// The password may also be passed through SEED_ADMIN_PASSWORD to keep it out of shell history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/repository"
	"github.com/flicky/storefront-api/internal/service"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	username := flag.String("username", "", "admin username")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin password (min 8 characters)")
	role := flag.String("role", service.RoleAdmin, "admin role")
	reset := flag.Bool("reset", false, "replace the password of an existing admin")
	flag.Parse()

	if err := run(*username, *password, *role, *reset, log); err != nil {
		log.Error("seed admin", "error", err)
		os.Exit(1)
	}
}

func run(username, password, role string, reset bool, log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer dbPool.Close()

	if cfg.DB.Migrate {
		if err := repository.Migrate(ctx, dbPool); err != nil {
			return err
		}
	}

	authSvc := service.NewAuthService(repository.NewAdminRepository(dbPool), cfg.JWT.Secret, cfg.JWT.Expiration)
	if reset {
		admin, err := authSvc.ResetPassword(ctx, username, password)
		if err != nil {
			return err
		}
		log.Info("admin password reset", "id", admin.ID, "username", admin.Username)
		return nil
	}

	admin, err := authSvc.CreateAdmin(ctx, username, password, role)
	if err != nil {
		if errors.Is(err, service.ErrAdminAlreadyExists) {
			log.Info("admin already exists", "username", username)
			return nil
		}
		return err
	}

	log.Info("admin created", "id", admin.ID, "username", admin.Username, "role", admin.Role)
	return nil
}
