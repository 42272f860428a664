package main

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wfunc/spyserver/config"
	"github.com/wfunc/spyserver/logger"
)

func main() {
	source := flag.String("source", "file://persistence/migrations", "migration source URL")
	down := flag.Bool("down", false, "roll back every migration instead of applying them")
	flag.Parse()

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	m, err := migrate.New(*source, databaseURL(cfg.Database.Postgres))
	if err != nil {
		logger.Log.Fatalf("migration setup failed: %v", err)
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Log.Fatalf("database migration failed: %v", err)
	}
	version, dirty, _ := m.Version()
	logger.Log.Infow("database migrations applied", "version", version, "dirty", dirty, "down", *down)
}

// databaseURL renders the postgres settings in the URL form golang-migrate expects.
func databaseURL(pg config.PostgresConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(pg.User, pg.Password),
		Host:     fmt.Sprintf("%s:%d", pg.Host, pg.Port),
		Path:     "/" + pg.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
