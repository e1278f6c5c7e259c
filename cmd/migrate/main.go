// Command migrate manages the portal schema: the embedded SQL migrations
// tracked in migration_logs, and the GORM automigration of the request
// workflow tables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"sigede/internal/config"
	"sigede/internal/database"

	"gorm.io/gorm"
)

const helpText = `usage: migrate <command> [version]

commands:
  up              apply pending SQL migrations and record them in migration_logs
  auto            automigrate users, service_requests and request_status_history
  status          show the schema plan, migration_logs state and workflow tables
  down <version>  revert one applied SQL migration
`

// trackedTables are reported by `status` so an operator can tell whether the
// request workflow can run against this database.
var trackedTables = []string{
	"users",
	"service_requests",
	"request_status_history",
	"migration_logs",
}

var errUsage = errors.New("invalid arguments")

func main() {
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), helpText) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	if err := execute(context.Background(), db, cfg, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, helpText)
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

func execute(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("apply sql migrations: %w", err)
		}
		fmt.Fprintln(out, "sql migrations applied; see migration_logs")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("automigrate workflow tables: %w", err)
		}
		fmt.Fprintln(out, "workflow tables automigrated")
	case "status":
		return printStatus(ctx, db, cfg, out)
	case "down":
		if len(args) < 2 {
			return fmt.Errorf("down needs a version: %w", errUsage)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("version %q: %w", args[1], errUsage)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("revert migration %d: %w", version, err)
		}
		fmt.Fprintf(out, "migration %06d reverted\n", version)
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, out io.Writer) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status: %w", err)
	}

	fmt.Fprintf(out, "env=%s mode=%s sql=%t automigrate=%t\n",
		status.Environment, status.Mode, status.WillRunSQL, status.WillRunAutoMigrate)

	if status.WillRunSQL {
		fmt.Fprintf(out, "migration_logs: %d applied, %d pending\n",
			len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			fmt.Fprintf(out, "  pending %06d_%s\n", m.Version, m.Name)
		}
	}

	migrator := db.WithContext(ctx).Migrator()
	for _, table := range trackedTables {
		state := "missing"
		if migrator.HasTable(table) {
			state = "present"
		}
		fmt.Fprintf(out, "table %-24s %s\n", table, state)
	}
	return nil
}
