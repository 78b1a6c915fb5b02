package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"strings"

	"labsite/cmd/migration/versions"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/caarlos0/env/v10"
)

type migrationEnv struct {
	DatabaseUri string `env:"DATABASE_URI,required"`
}

func postgresDsn(uri string) string {
	parts, err := url.Parse(uri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		versions.InitialSchema(),
	}
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	rollback := flag.Bool("rollback", false, "If specified rolls back the last applied migration instead of migrating forward.")

	flag.Parse()

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.Fatalf("error loading .env file '%v': %v", *envFile, err)
		}
	}

	cfg := migrationEnv{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing environment variables: %v", err)
	}

	db, err := gorm.Open(postgres.Open(postgresDsn(cfg.DatabaseUri)), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	if *rollback {
		if err := m.RollbackLast(); err != nil {
			log.Fatalf("error rolling back migration: %v", err)
		}
		slog.Info("rollback complete")
		return
	}

	if err := m.Migrate(); err != nil {
		log.Fatalf("error applying migrations: %v", err)
	}
	slog.Info("migrations applied")
}
