package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/statement-converter/internal/config"
	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/extraction"
	"github.com/dvloznov/statement-converter/internal/jobs/inmemory"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/metrics"
	"github.com/dvloznov/statement-converter/internal/pdfinfo"
	"github.com/dvloznov/statement-converter/internal/session"
	"github.com/dvloznov/statement-converter/internal/source"
	storemem "github.com/dvloznov/statement-converter/internal/store/inmemory"
	"github.com/dvloznov/statement-converter/internal/view"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentLoads bounds parallel file and Cloud Storage reads.
const maxConcurrentLoads = 4

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "extract":
		os.Exit(runExtract(os.Args[2:]))
	case "pages":
		os.Exit(runPages(os.Args[2:]))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Converter CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options] <file.pdf|gs://bucket/object.pdf>...")
	fmt.Println("\nCommands:")
	fmt.Println("  extract   Extract transactions from bank statements and write Excel workbooks")
	fmt.Println("  pages     Print the page count of each statement")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func runExtract(args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	outDir := fs.String("out", ".", "Directory or gs://bucket/prefix the workbooks are written to")
	contextHint := fs.String("context", "", "Extra context sent to the model (defaults to EXTRACTION_CONTEXT)")
	perFile := fs.Bool("per-file", false, "Write one workbook per statement instead of a consolidated one")
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file merged over the environment")
	fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one input is required")
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	if cfg.GeminiAPIKey == "" {
		log.Error().Msg("GEMINI_API_KEY (or API_KEY) is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	var gcs *source.GCSClient
	if source.IsGCSURI(*outDir) || anyGCS(fs.Args()) {
		gcs, err = source.NewGCSClient(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Cloud Storage client")
			return 1
		}
		defer gcs.Close()
	}

	var objects interface {
		source.ObjectFetcher
		source.ObjectWriter
	}
	if gcs != nil {
		objects = gcs
	}

	sink, err := source.NewSink(*outDir, objects)
	if err != nil {
		log.Error().Err(err).Msg("Invalid output destination")
		return 1
	}

	uploads, err := loadInputs(ctx, source.NewLoader(objects), fs.Args())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load inputs")
		return 1
	}

	generator, err := extraction.NewGeminiGenerator(ctx, extraction.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.ExtractionTimeout.Std(),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create extraction client")
		return 1
	}

	queue := inmemory.NewQueue(len(uploads), cfg.ExtractionWorkers, log)
	sess := session.New(
		storemem.NewStore(),
		extraction.NewExtractor(generator, cfg.ExtractionContext),
		queue,
		metrics.New(),
		log,
		session.Config{MaxUploadBytes: cfg.MaxUploadBytes, ContextHint: cfg.ExtractionContext},
	)

	if err := queue.Start(ctx, sess.HandleJob); err != nil {
		log.Error().Err(err).Msg("Failed to start extraction workers")
		return 1
	}
	defer queue.Close()

	result, err := sess.Upload(ctx, uploads, *contextHint)
	for _, r := range result.Rejected {
		log.Warn().Str("file_name", r.FileName).Str("reason", r.Reason).Msg("Input rejected")
	}
	if err != nil {
		log.Error().Err(err).Msg("No input accepted")
		return 1
	}

	log.Info().Int("documents", len(result.Documents)).Msg("Waiting for extractions")
	if err := sess.Wait(ctx); err != nil {
		log.Error().Err(err).Msg("Interrupted before all extractions finished")
		return 1
	}

	failed := report(log, sess.Documents(ctx))

	selectors := []string{view.All}
	if *perFile {
		selectors = selectors[:0]
		for _, doc := range sess.Documents(ctx) {
			selectors = append(selectors, doc.ID)
		}
	}

	for _, selector := range selectors {
		if err := writeWorkbook(ctx, log, sess, selector, sink); err != nil {
			log.Error().Err(err).Msg("Failed to write workbook")
			return 1
		}
	}

	if failed > 0 {
		return 2
	}
	return 0
}

func anyGCS(refs []string) bool {
	for _, ref := range refs {
		if source.IsGCSURI(ref) {
			return true
		}
	}
	return false
}

// loadInputs reads every input concurrently, keeping the command-line order.
func loadInputs(ctx context.Context, loader *source.Loader, refs []string) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			up, err := loader.Load(gctx, ref)
			if err != nil {
				return err
			}
			uploads[i] = up
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return uploads, nil
}

// report logs one line per document and returns how many failed.
func report(log zerolog.Logger, docs []domain.Document) int {
	failed := 0
	for _, doc := range docs {
		stats := view.ComputeStats(doc.Transactions)
		event := log.Info()
		if doc.Status == domain.StatusError {
			failed++
			event = log.Error().Str("error", doc.Error)
		}
		event.
			Str("document_id", doc.ID).
			Str("file_name", doc.FileName).
			Str("status", string(doc.Status)).
			Int("transactions", stats.TotalTransactions).
			Str("total_debit", stats.TotalDebit.StringFixed(2)).
			Str("total_credit", stats.TotalCredit.StringFixed(2)).
			Str("balance", stats.Balance.StringFixed(2)).
			Msg("Statement processed")
	}
	return failed
}

func writeWorkbook(ctx context.Context, log zerolog.Logger, sess *session.Session, selector string, sink *source.Sink) error {
	if err := sess.Select(ctx, selector); err != nil {
		return err
	}

	var buf bytes.Buffer
	name, ok, err := sess.Export(ctx, &buf)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("selector", selector).Msg("Nothing to export")
		return nil
	}

	loc, err := sink.Write(ctx, name, export.ContentType, buf.Bytes())
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", loc)
	return nil
}

func runPages(args []string) int {
	fs := flag.NewFlagSet("pages", flag.ExitOnError)
	configPath := fs.String("config", os.Getenv("CONFIG_FILE"), "YAML config file merged over the environment")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log := logger.New()
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx := context.Background()
	var objects source.ObjectFetcher
	if anyGCS(fs.Args()) {
		gcs, err := source.NewGCSClient(ctx, cfg.GCSCredentialsFile)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Cloud Storage client")
			return 1
		}
		defer gcs.Close()
		objects = gcs
	}

	uploads, err := loadInputs(ctx, source.NewLoader(objects), fs.Args())
	if err != nil {
		log.Error().Err(err).Msg("Failed to load inputs")
		return 1
	}

	for _, up := range uploads {
		n, err := pdfinfo.PageCount(up.Data)
		if err != nil {
			fmt.Printf("%s\t%s\terror: %v\n", up.FileName, up.MIMEType, err)
			continue
		}
		fmt.Printf("%s\t%s\t%d pages\n", up.FileName, up.MIMEType, n)
	}
	return 0
}
