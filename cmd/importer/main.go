package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nfe-ledger/internal/config"
	"github.com/nfe-ledger/internal/data/postgres"
	"github.com/nfe-ledger/internal/domain/shared"
	"github.com/nfe-ledger/internal/importer"
	"github.com/nfe-ledger/internal/ingest"
	"github.com/nfe-ledger/internal/logger"
	"github.com/nfe-ledger/internal/platform/messaging/producers"
	"github.com/nfe-ledger/internal/platform/persistence"
	"github.com/nfe-ledger/internal/report"
)

var configName string

// export flags
var (
	exportOut       string
	exportFrom      string
	exportTo        string
	exportDirection string
	exportProduct   string
	exportEntityID  int64
)

var rootCmd = &cobra.Command{
	Use:   "nfe-ledger",
	Short: "Batch ingestion and report export for the fiscal document ledger",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var importCmd = &cobra.Command{
	Use:   "import [sources...]",
	Short: "Ingest fiscal documents from files, directories or zip archives",
	Long: `Walks the given sources, parses every fiscal document found and records
it in the ledger. Duplicates and unparseable documents are counted and
skipped; they never abort the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(args)
	},
}

var exportCmd = &cobra.Command{
	Use:       "export (inventory|notes)",
	Short:     "Export a ledger snapshot to an .xlsx or .csv file",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"inventory", "notes"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "importer", "Base name of the .env config file to load")

	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file path; the extension selects the format")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Period start for the notes export (RFC3339 or YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Period end for the notes export (RFC3339 or YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportDirection, "direction", "", "Restrict the notes export to ENTRY or EXIT")
	exportCmd.Flags().StringVar(&exportProduct, "product-code", "", "Restrict the notes export to notes containing this product")
	exportCmd.Flags().Int64Var(&exportEntityID, "entity-id", 0, "Restrict the notes export to this entity")
	exportCmd.MarkFlagRequired("out")

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runImport(sources []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer postgresDB.Close()

	noteRepo := postgres.NewNoteRepository(log, postgresDB)
	entityRepo := postgres.NewEntityRepository(log, postgresDB)
	productRepo := postgres.NewProductRepository(log, postgresDB)
	inventoryRepo := postgres.NewInventoryRepository(log, postgresDB)

	// The producer is nil when messaging is disabled; the ingest service
	// treats a nil publisher as a no-op.
	var publisher producers.MessagePublisher
	producer, err := producers.NewNoteIngestedProducer(ctx, log, &cfg.Kafka)
	if err != nil {
		return fmt.Errorf("failed to initialize event producer: %w", err)
	}
	if producer != nil {
		publisher = producer
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("Failed to close event producer", "error", err)
			}
		}()
	}

	ingestService := ingest.NewService(postgresDB, noteRepo, entityRepo, productRepo, inventoryRepo, publisher, log)
	imp := importer.NewImporter(ingestService, &cfg.Import, log)

	summary, err := imp.Run(ctx, sources)
	if summary != nil {
		fmt.Printf("Inserted:   %d\nDuplicated: %d\nErrored:    %d\n", summary.Inserted, summary.Duplicated, summary.Errored)
	}
	if err != nil {
		return fmt.Errorf("import aborted: %w", err)
	}
	return nil
}

func runExport(target string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configName)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer postgresDB.Close()

	noteRepo := postgres.NewNoteRepository(log, postgresDB)
	inventoryRepo := postgres.NewInventoryRepository(log, postgresDB)
	exporter := report.NewExporter(inventoryRepo, noteRepo)

	switch target {
	case "inventory":
		err = exporter.ExportInventory(ctx, exportOut)
	case "notes":
		var filter shared.NoteFilter
		filter, err = exportFilter()
		if err != nil {
			return err
		}
		err = exporter.ExportNotes(ctx, exportOut, filter)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	log.Info("Export written", "target", target, "path", exportOut)
	return nil
}

// exportFilter builds the notes filter from the export flags
func exportFilter() (shared.NoteFilter, error) {
	var filter shared.NoteFilter

	if exportFrom != "" {
		start, err := parseFlagTime(exportFrom, false)
		if err != nil {
			return filter, fmt.Errorf("invalid --from value %q: %w", exportFrom, err)
		}
		filter.Period.Start = &start
	}
	if exportTo != "" {
		end, err := parseFlagTime(exportTo, true)
		if err != nil {
			return filter, fmt.Errorf("invalid --to value %q: %w", exportTo, err)
		}
		filter.Period.End = &end
	}
	if exportDirection != "" {
		direction := shared.Direction(exportDirection)
		if direction != shared.DirectionEntry && direction != shared.DirectionExit {
			return filter, fmt.Errorf("invalid --direction value %q: must be ENTRY or EXIT", exportDirection)
		}
		filter.Direction = direction
	}
	filter.ProductCode = exportProduct
	filter.EntityID = exportEntityID

	return filter, nil
}

// parseFlagTime accepts RFC3339 timestamps or plain dates. A date-only end
// bound covers the whole day.
func parseFlagTime(value string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
