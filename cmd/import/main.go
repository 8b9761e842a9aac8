/*
main.go - Command-line policy import

PURPOSE:
  Imports a policy register (.xlsx) straight into the database, using the
  same policy service as the API. Prints the import report as JSON.

COMMAND-LINE FLAGS:
  -file      Workbook to import (required)
  -driver    sqlite or mysql (default from DB_DRIVER)
  -dsn       Database path or DSN (default from DB_DSN)
  -employee  Employee id recorded in the audit log (default: System)

EXIT STATUS:
  0 when every row imported, 2 when some rows failed, 1 on any other error.

EXAMPLES:
  ./import -file=register-2024.xlsx -employee=3
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/brokerdesk/brokerage"
	"github.com/warp/brokerdesk/config"
	"github.com/warp/brokerdesk/importer"
	"github.com/warp/brokerdesk/store/sqlstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("file", "", "Workbook to import")
	flag.StringVar(&cfg.DBDriver, "driver", cfg.DBDriver, "Database driver (sqlite|mysql)")
	flag.StringVar(&cfg.DBDSN, "dsn", cfg.DBDSN, "Database path or DSN")
	employee := flag.Int64("employee", 0, "Employee id for the audit log")
	flag.Parse()

	logger := config.NewLogger(cfg.LogLevel)
	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		config.LogError(logger, "import", "os.Open", *path, err)
		os.Exit(1)
	}
	defer f.Close()

	store, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		config.LogError(logger, "import", "sqlstore.Open", cfg.DBDriver, err)
		os.Exit(1)
	}
	defer store.Close()

	actor := brokerage.SystemActor()
	if *employee > 0 {
		actor = brokerage.EmployeeActor(*employee)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services := brokerage.NewServices(store, logger, nil)
	report, err := importer.New(services.Policies, logger, nil).ImportXLSX(ctx, f, actor)
	if report != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(report)
	}
	if err != nil {
		config.LogError(logger, "import", "ImportXLSX", *path, err)
		os.Exit(1)
	}
	if len(report.Failed) > 0 {
		os.Exit(2)
	}
}
