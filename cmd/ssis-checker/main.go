package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ssis-checker/internal/compliance"
	"ssis-checker/internal/compressor"
	"ssis-checker/internal/config"
	"ssis-checker/internal/extractor"
	"ssis-checker/internal/logger"
	"ssis-checker/internal/nutrition"
	"ssis-checker/internal/pipeline"
	"ssis-checker/internal/statistics"
	"ssis-checker/internal/web"
)

var (
	cfgFile     string
	envFile     string
	verbose     bool
	quiet       bool
	version     = "dev"
	outputPath  string
	targetBytes int64
	maxAttempts int
	sampleName  string
	showDetails bool
	jsonOutput  bool
	port        int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "ssis-checker",
	Short: "Check food labels against Smart Snacks in School rules",
	Long: `ssis-checker reads the nutrition facts panel of a snack and decides
whether it meets the USDA Smart Snacks in School nutrition standards.

Features:
- Compresses label photos under the vision API size limit
- Extracts nutrition facts with an OpenAI-compatible vision model
- Evaluates calories, sodium, fat, trans fat and sugar limits
- HTTP API with API-key auth, rate limiting and live scan events`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// compressCmd shrinks a label photo without extracting anything.
var compressCmd = &cobra.Command{
	Use:   "compress <image>",
	Short: "Compress an image under the upload size ceiling",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args[0])
	},
}

// checkCmd evaluates a nutrition record given as JSON.
var checkCmd = &cobra.Command{
	Use:   "check [record.json]",
	Short: "Evaluate a nutrition record for compliance",
	Long: `Evaluates a nutrition record read from a JSON file (or stdin when the
path is "-") against the Smart Snacks rules. Use --sample to check one of
the built-in sample products instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(args)
	},
}

// scanCmd runs the full photo to verdict pipeline.
var scanCmd = &cobra.Command{
	Use:   "scan <image>",
	Short: "Compress, extract and evaluate a label photo",
	Long: `Compresses the label photo, sends it to the configured vision model,
and evaluates the extracted nutrition facts. With --sample the vision model
is replaced by a built-in sample record.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan(cmd.Context(), args[0])
	},
}

// serveCmd starts the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	compressCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: <name>.compressed.<ext>)")
	compressCmd.Flags().Int64Var(&targetBytes, "target-bytes", 0, "size ceiling in bytes (default from config)")
	compressCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "maximum encode attempts (default from config)")

	for _, cmd := range []*cobra.Command{checkCmd, scanCmd} {
		cmd.Flags().StringVar(&sampleName, "sample", "", "use a built-in sample record (compliant|nonCompliant)")
		cmd.Flags().BoolVar(&showDetails, "details", false, "show every rule result")
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	}

	serveCmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
}

// runCompress compresses one file and writes the result next to it.
func runCompress(path string) error {
	cfg, err := config.LoadConfig(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	params := cfg.Compression.Params()
	if targetBytes > 0 {
		params.TargetBytes = targetBytes
	}
	if maxAttempts > 0 {
		params.MaxAttempts = maxAttempts
	}

	outcome, err := compressor.NewDefaultCompressor(log).CompressBytes(data, "", params)
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}

	if !quiet {
		for _, a := range outcome.Attempts {
			fmt.Printf("attempt %d: quality %.2f, %dx%d, %s\n", a.Number, a.Quality, a.Width, a.Height, formatSize(a.Size))
		}
	}
	if err := outcome.Err(); err != nil {
		return err
	}

	if outputPath == "" {
		ext := filepath.Ext(path)
		outputPath = strings.TrimSuffix(path, ext) + ".compressed" + ext
	}
	if err := os.WriteFile(outputPath, outcome.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	if !quiet {
		fmt.Printf("%s -> %s (%s -> %s)\n", path, outputPath, formatSize(outcome.OriginalSize), formatSize(outcome.Size))
	}
	return nil
}

// runCheck evaluates a record from a file, stdin or the sample set.
func runCheck(args []string) error {
	cfg, err := config.LoadConfig(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	record, err := readRecord(args)
	if err != nil {
		return err
	}

	// check never compresses or extracts, so only the engine is wired.
	p := pipeline.New(nil, nil, compliance.NewEngine(log), nil, log, pipeline.Options{})
	eval := p.Evaluate(record)

	if jsonOutput {
		return printJSON(eval)
	}
	fmt.Print(compliance.Report(record.Name(), eval.Verdict, showDetails))
	if !eval.Completeness.IsValid {
		fmt.Printf("\nRecord is %.0f%% complete, missing: %s\n",
			eval.Completeness.Percent, strings.Join(eval.Completeness.MissingFields, ", "))
	}
	return nil
}

// runScan runs compression, extraction and evaluation on one photo.
func runScan(ctx context.Context, path string) error {
	cfg, err := config.LoadConfig(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if sampleName != "" {
		cfg.Extractor.Type = string(extractor.ProviderStatic)
		cfg.Extractor.Sample = sampleName
	}
	log := setupLogger(cfg)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, log, statistics.NewStatistics())
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	result, err := p.Run(ctx, uuid.NewString(), data, "")
	if err != nil {
		var parseErr *extractor.ParseError
		if errors.As(err, &parseErr) && verbose {
			fmt.Fprintf(os.Stderr, "Model reply:\n%s\n", parseErr.RawText)
		}
		if verbose {
			fmt.Fprintln(os.Stderr, p.Stats().GetErrorSummary())
		}
		return fmt.Errorf("scan failed: %w", err)
	}

	if jsonOutput {
		return printJSON(result)
	}
	fmt.Print(compliance.Report(result.ProductName, result.Verdict, showDetails))
	if !quiet {
		fmt.Println()
		printStats(os.Stdout, p.Stats(), verbose)
	}
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port > 0 {
		cfg.Server.Port = port
	}
	log := setupLogger(cfg)
	if cfg.Server.APIKey == "" {
		log.Warn("No API key configured; /api requests will be rejected")
	}

	p, err := newPipeline(cfg, log, statistics.NewStatistics())
	if err != nil {
		return err
	}
	server := web.NewServer(cfg, log, p)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	fmt.Printf("SSIS checker API listening on http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if !quiet {
		printStats(os.Stdout, p.Stats(), true)
	}
	fmt.Println("Server stopped gracefully")
	return nil
}

// newPipeline wires the compressor, extractor and rule engine from cfg.
func newPipeline(cfg *config.Config, log *logrus.Logger, stats *statistics.Statistics) (*pipeline.Pipeline, error) {
	ext, err := extractor.New(cfg.Extractor.ExtractorConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	return pipeline.New(
		compressor.NewDefaultCompressor(log),
		ext,
		compliance.NewEngine(log),
		stats,
		log,
		pipeline.Options{
			Params:         cfg.Compression.Params(),
			TransportLimit: cfg.Compression.TransportLimitBytes,
		},
	), nil
}

// printStats writes the run summary, followed by recent errors when
// withErrors is set.
func printStats(w io.Writer, stats *statistics.Statistics, withErrors bool) {
	fmt.Fprintln(w, stats.GetSummary())
	if withErrors {
		fmt.Fprintln(w)
		fmt.Fprintln(w, stats.GetErrorSummary())
	}
}

func readRecord(args []string) (nutrition.Record, error) {
	if sampleName != "" {
		return nutrition.SampleRecord(sampleName)
	}
	if len(args) == 0 {
		return nutrition.Record{}, errors.New("provide a record file, \"-\" for stdin, or --sample")
	}

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nutrition.Record{}, err
		}
		defer f.Close()
		r = f
	}

	var record nutrition.Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nutrition.Record{}, fmt.Errorf("invalid nutrition record: %w", err)
	}
	return record, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.Warnf("Falling back to default logger: %v", err)
	}

	return log
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
