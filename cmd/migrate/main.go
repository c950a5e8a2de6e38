package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appmigrations "github.com/swandust/clinic-concierge/migrations"
)

// Usage:
//
//	migrate            apply all pending migrations
//	migrate down       roll back the most recent migration
//	migrate force <v>  overwrite the schema version after a manual repair
func main() {
	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		log.Fatal("migrate: DATABASE_URL must be set")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("migrate: open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("migrate: database unreachable: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("migrate: postgres driver: %v", err)
	}

	src, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		log.Fatalf("migrate: embedded source: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("migrate: init: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd := argAt(1); cmd {
	case "force":
		version, err := strconv.Atoi(argAt(2))
		if err != nil {
			log.Fatalf("migrate: force needs a numeric version: %v", err)
		}
		if err := m.Force(version); err != nil {
			log.Fatalf("migrate: force %d: %v", version, err)
		}
		fmt.Printf("schema version forced to %d\n", version)
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate: down: %v", err)
		}
		fmt.Println("rolled back one migration")
	case "", "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate: up: %v", err)
		}
		fmt.Println("schema up to date")
	default:
		log.Fatalf("migrate: unknown command %q", cmd)
	}
}

func argAt(i int) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return ""
}
