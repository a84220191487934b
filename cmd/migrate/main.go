package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/kevin07696/subscription-billing/internal/config"
	"github.com/kevin07696/subscription-billing/internal/db/migrations"
)

const (
	dialect       = "postgres"
	migrationsDir = "internal/db/migrations"
)

var (
	flags = flag.NewFlagSet("migrate", flag.ExitOnError)
	// an empty dir runs the migrations compiled into the binary
	dir = flags.String("dir", "", "directory with migration files (default: embedded)")
)

func main() {
	flags.Usage = usage
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) < 1 {
		flags.Usage()
		return
	}

	command := args[0]

	_ = godotenv.Load()
	var dbCfg config.DatabaseConfig
	if err := env.Parse(&dbCfg); err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}

	db, err := sql.Open("pgx", dbCfg.ConnectionString())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := goose.SetDialect(dialect); err != nil {
		log.Fatalf("failed to set dialect: %v", err)
	}

	source := *dir
	switch {
	case command == "create":
		// new files must land on disk
		if source == "" {
			source = migrationsDir
		}
	case source == "":
		goose.SetBaseFS(migrations.FS)
		source = "."
	}

	if err := goose.RunContext(context.Background(), command, db, source, args[1:]...); err != nil {
		log.Fatalf("goose %v: %v", command, err)
	}
}

var commands = []struct{ name, help string }{
	{"up", "apply every pending migration"},
	{"up-by-one", "apply the next pending migration"},
	{"up-to VERSION", "apply migrations up to VERSION"},
	{"down", "roll back the latest migration"},
	{"down-to VERSION", "roll back to VERSION"},
	{"redo", "roll back and re-apply the latest migration"},
	{"reset", "roll back every migration"},
	{"status", "list applied and pending migrations"},
	{"version", "print the schema version"},
	{"create NAME [sql|go]", "write a new timestamped migration to -dir"},
}

func usage() {
	out := flags.Output()
	fmt.Fprintln(out, "Usage: migrate [-dir DIR] COMMAND")
	fmt.Fprintln(out, "\nCommands:")
	for _, c := range commands {
		fmt.Fprintf(out, "  %-22s %s\n", c.name, c.help)
	}
	fmt.Fprintln(out, "\nFlags:")
	flags.PrintDefaults()
	fmt.Fprintln(out, "\nThe database connection is read from the DB_* environment variables or .env.")
}
