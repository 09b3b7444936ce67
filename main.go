package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/docuvision/docuvision/internal/export"
	"github.com/docuvision/docuvision/internal/partition"
	"github.com/docuvision/docuvision/internal/pipeline"
	"github.com/docuvision/docuvision/internal/rasterize"
	"github.com/docuvision/docuvision/internal/region"
	"github.com/docuvision/docuvision/internal/vision"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the
// appropriate logrus level. Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(parseLogLevel())
	return logger
}

func main() {
	// .env is optional; explicit environment always wins.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "docuvision",
		Usage:   "Extract structured content from PDFs, with vision-model descriptions of diagrams and formulas",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		Commands: []*cli.Command{
			{
				Name:      "extract",
				Usage:     "Extract content from a PDF and write it in the chosen format",
				ArgsUsage: "<pdf-file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "images",
						Usage: "describe image and diagram regions with the vision model",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "formulas",
						Usage: "describe formula regions with the vision model",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "tables",
						Usage: "keep HTML table structure from layout analysis",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "output format: text, markdown, or json",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "output file (defaults to stdout)",
					},
					&cli.BoolFlag{
						Name:    "quiet",
						Aliases: []string{"q"},
						Usage:   "suppress progress output",
					},
				},
				Action: runExtract,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runExtract(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one PDF file argument")
	}
	pdfPath := c.Args().First()

	format := export.Format(c.String("format"))
	logger := newLogger()

	partitioner, err := partition.NewClient(logger)
	if err != nil {
		return err
	}
	describer, err := vision.NewClient(logger)
	if err != nil {
		return err
	}

	p := pipeline.New(
		logger,
		rasterize.NewRenderer(logger),
		partitioner,
		region.NewExtractor(logger, ""),
		describer,
	)

	opts := pipeline.Options{
		ProcessImages:   c.Bool("images"),
		ProcessFormulas: c.Bool("formulas"),
		ProcessTables:   c.Bool("tables"),
	}
	if !c.Bool("quiet") {
		opts.Progress = func(message string, percent float64) {
			fmt.Fprintf(os.Stderr, "[%3.0f%%] %s\n", percent, message)
		}
	}

	records, err := p.Process(c.Context, pdfPath, opts)
	if err != nil {
		return err
	}

	rendered, err := export.Render(format, records, filepath.Base(pdfPath))
	if err != nil {
		return err
	}

	if outPath := c.String("output"); outPath != "" {
		if err := os.WriteFile(outPath, []byte(rendered+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.WithField("output", outPath).Info("Wrote extraction result")
		return nil
	}

	fmt.Println(rendered)
	return nil
}
