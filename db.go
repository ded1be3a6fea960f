package main

import (
	"context"
	"log/slog"

	"cashadvance/pkg/apperr"
	"cashadvance/service"
	"cashadvance/store"
)

// initDB opens the store and, unless DB_AUTO_MIGRATE is off, migrates it.
// Migration problems are logged and do not stop startup.
func initDB(ctx context.Context, cfg *Config, log *slog.Logger) (*store.Store, error) {
	gdb, err := store.Open(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	st := store.New(gdb)
	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := st.Migrate(ctx); err != nil {
			log.Warn("migration warning", "err", err)
		}
	}
	return st, nil
}

// seedDB creates the configured admin account once.
func seedDB(ctx context.Context, cfg *Config, st *store.Store, auth *service.AuthService, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	u, err := st.UserByEmail(ctx, cfg.AdminEmail)
	switch {
	case err == nil:
	case apperr.Is(err, apperr.KindNotFound):
		res, err := auth.Register(ctx, service.RegisterInput{
			Email:     cfg.AdminEmail,
			Password:  cfg.AdminPassword,
			FirstName: "Admin",
			LastName:  "User",
		})
		if err != nil {
			return err
		}
		u = res.User
		log.Info("seeded admin user", "email", u.Email)
	default:
		return err
	}
	if u.IsAdmin {
		return nil
	}
	return st.SetAdmin(ctx, u.ID, true)
}
