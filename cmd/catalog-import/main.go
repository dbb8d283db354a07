// catalog-import loads a pasted construction catalog into the catalog of one business.
//
// Usage:
//
//	go run ./cmd/catalog-import --business-id <id> --file catalog.tsv
//	go run ./cmd/catalog-import --business-id <id> --xlsx catalog.xlsx --sheet Presupuesto --dry-run
//	cat catalog.tsv | go run ./cmd/catalog-import --business-id <id> --remote
//
// Database mode uses the same DB_* env vars as the server and records an import
// run. Remote mode talks to the catalog API (CATALOG_API_BASE_URL, CATALOG_API_KEY).
// Exit status is 0 on success, 2 on a partial import and 1 otherwise.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmdatafocus/catalog_backend/catalogimport"
	"github.com/mmdatafocus/catalog_backend/config"
	"github.com/mmdatafocus/catalog_backend/models"
	"github.com/mmdatafocus/catalog_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	file       string
	xlsx       string
	sheet      string
	businessID string
	dryRun     bool
	remote     bool
	migrate    bool
}

var errPartial = errors.New("import finished with errors")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, errPartial) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "catalog-import",
		Short:         "Import a hierarchical construction catalog",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "tab-separated catalog text; - reads stdin")
	cmd.Flags().StringVar(&opts.xlsx, "xlsx", "", "read the catalog from an .xlsx workbook instead")
	cmd.Flags().StringVar(&opts.sheet, "sheet", "", "worksheet name (default: first sheet)")
	cmd.Flags().StringVar(&opts.businessID, "business-id", os.Getenv("CATALOG_BUSINESS_ID"), "business that owns the catalog")
	cmd.Flags().BoolVarP(&opts.dryRun, "dry-run", "d", false, "report what would be created without writing")
	cmd.Flags().BoolVar(&opts.remote, "remote", false, "use the catalog HTTP API instead of the database")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "run AutoMigrate before importing (database mode)")
	return cmd
}

func run(ctx context.Context, out io.Writer, in io.Reader, opts *options) error {
	logger := config.GetLogger()
	if strings.TrimSpace(opts.businessID) == "" {
		return errors.New("--business-id is required")
	}

	text, source, err := readInput(in, opts)
	if err != nil {
		return err
	}
	ctx = utils.SetBusinessIdInContext(ctx, opts.businessID)

	var summary *catalogimport.Summary
	if opts.remote {
		svc, err := catalogimport.NewRemoteCatalogFromEnv()
		if err != nil {
			return err
		}
		defer svc.Close()
		summary, err = catalogimport.Run(ctx, svc, text, catalogimport.Options{
			DryRun: opts.dryRun,
			Logger: logger.WithFields(logrus.Fields{"business_id": opts.businessID, "mode": "remote"}),
		})
		if err != nil && summary == nil {
			return err
		}
	} else {
		summary, err = runWithDatabase(ctx, text, source, opts)
		if err != nil && summary == nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return err
	}

	switch summary.Status() {
	case catalogimport.StatusSuccess:
		return nil
	case catalogimport.StatusPartial:
		return errPartial
	default:
		return fmt.Errorf("import failed: %d errors", len(summary.Errors))
	}
}

func runWithDatabase(ctx context.Context, text, source string, opts *options) (*catalogimport.Summary, error) {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not initialized; set DB_* env vars")
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if opts.migrate {
		if err := models.MigrateTable(); err != nil {
			return nil, err
		}
	}

	// Redis is optional for one-off imports
	if strings.TrimSpace(os.Getenv("REDIS_ADDRESS")) != "" {
		config.ConnectRedisWithRetry(ctx)
	}

	run := models.CatalogImportRun{
		BusinessId:  opts.businessID,
		TriggeredBy: models.ImportTriggeredCli,
		Source:      source,
		DryRun:      opts.dryRun,
		InputText:   text,
	}
	if err := models.CreateCatalogImportRun(ctx, &run); err != nil {
		return nil, err
	}
	summary, err := catalogimport.ProcessImportRun(ctx, catalogimport.ImportPubSubPayload{
		RunId:      run.ID,
		BusinessId: opts.businessID,
	})
	if errors.Is(err, catalogimport.ErrImportInProgress) {
		catalogimport.FailImportRun(ctx, &run, catalogimport.ErrCodeImportInProgress, err)
	}
	return summary, err
}

func readInput(in io.Reader, opts *options) (string, string, error) {
	if opts.xlsx != "" {
		f, err := os.Open(opts.xlsx)
		if err != nil {
			return "", "", err
		}
		defer f.Close()
		text, err := catalogimport.SheetToText(f, opts.sheet)
		return text, models.ImportSourceXlsx, err
	}

	var r io.Reader = in
	if opts.file != "-" && opts.file != "" {
		f, err := os.Open(opts.file)
		if err != nil {
			return "", "", err
		}
		defer f.Close()
		r = f
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", "", err
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", "", errors.New("no catalog text to import")
	}
	return string(raw), models.ImportSourceText, nil
}
