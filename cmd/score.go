package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raumwerk/standort-cli/internal/config"
	"github.com/raumwerk/standort-cli/internal/geo"
	"github.com/raumwerk/standort-cli/internal/model"
	"github.com/raumwerk/standort-cli/internal/portfolio"
	"github.com/raumwerk/standort-cli/internal/report"
	"github.com/raumwerk/standort-cli/internal/resilience"
	"github.com/raumwerk/standort-cli/internal/scoring"
	"github.com/raumwerk/standort-cli/internal/store"
	"github.com/raumwerk/standort-cli/pkg/overpass"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the companies in a portfolio document",
	Long: `Score every company in a portfolio document.

Each company is scored on two groups of five parameters: its municipality
(transit quality class, employment density, in-commuter share, motorization
rate, car modal split) and the company itself (headcount, nearest stop,
industry sector, motorway access, parking). Every parameter maps to 1-5
points; group scores are the mean of their points and the overall score is
the mean of the two groups.

Distances come from the local federal datasets and the Overpass API. A
lookup that fails falls back to a fixed default, so a batch always
completes. Results are exported as one xlsx sheet per company and recorded
in the run history.

Examples:
  # Score the default portfolio
  score

  # Score a different portfolio with 8 workers
  score --portfolio kunden.yaml --concurrency 8

  # Only the first 10 companies, report to a fixed path
  score --limit 10 --output bericht.xlsx

  # No network lookups (distance metrics use their fallbacks)
  score --offline

  # Machine-readable scores on stdout
  score --format csv`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("portfolio", "portfolio.yaml", "portfolio document with locations and companies")
	f.String("output", "", "xlsx report path (default: standort_scores_<timestamp>.xlsx)")
	f.Int("limit", 0, "score only the first N companies (0=all)")
	f.Int("concurrency", 0, "companies scored in parallel (0=use config)")
	f.Bool("offline", false, "skip Overpass lookups and rely on fallback distances")
	f.String("format", "table", "console output: table or csv")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("score"); err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "score"))

	portfolioPath, _ := cmd.Flags().GetString("portfolio")
	outputPath, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	offline, _ := cmd.Flags().GetBool("offline")
	format, _ := cmd.Flags().GetString("format")

	if format != "table" && format != "csv" {
		return eris.Errorf("score: --format must be table or csv (got %q)", format)
	}
	if concurrency <= 0 {
		concurrency = cfg.Batch.Concurrency
	}

	doc, err := portfolio.Load(portfolioPath)
	if err != nil {
		return err
	}
	specs := doc.Companies
	if limit > 0 && limit < len(specs) {
		specs = specs[:limit]
	}

	// The German batch console goes to stdout in table mode; csv mode keeps
	// stdout clean for the score rows.
	var out io.Writer = io.Discard
	if format == "table" {
		out = os.Stdout
	}

	start := time.Now()
	printBatchHeader(out, start, len(specs))

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	scorer := scoring.NewScorer(buildGeoLookup(offline, st))

	run, err := st.CreateRun(ctx, portfolioPath, len(specs))
	if err != nil {
		return eris.Wrap(err, "score: create run")
	}

	log.Info("starting batch",
		zap.String("run_id", run.ID),
		zap.String("portfolio", portfolioPath),
		zap.Int("companies", len(specs)),
		zap.Int("concurrency", concurrency),
		zap.Bool("offline", offline),
	)

	// Scored concurrently, collected back into submission order. The mutex
	// guards the failure counter and keeps each company's console lines
	// adjacent.
	results := make([]*model.Assessment, len(specs))
	failed := 0
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, spec := range specs {
		g.Go(func() error {
			a, err := scoreCompany(gctx, scorer, doc, spec)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil && eris.Is(err, scoring.ErrUnknownMetric) {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, _ = fmt.Fprintf(out, "🏢 Verarbeite %s...\n", spec.Name)
			if err != nil {
				failed++
				printCompanyFailure(out, spec, err)
				log.Warn("company skipped",
					zap.String("company", spec.Name),
					zap.Error(err))
				return nil
			}
			results[i] = a
			report.WriteScoreLine(out, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		failRun(st, run.ID)
		return eris.Wrap(err, "score: batch aborted")
	}

	assessments := make([]model.Assessment, 0, len(results))
	for _, a := range results {
		if a != nil {
			assessments = append(assessments, *a)
		}
	}
	succeeded := len(assessments)

	workbook := outputPath
	if workbook == "" {
		workbook = report.Filename(start)
	}
	if succeeded == 0 {
		_, _ = fmt.Fprintln(out, "\n❌ Keine Ergebnisse zum Exportieren!")
		workbook = ""
	} else {
		_, _ = fmt.Fprintf(out, "\n💾 Exportiere Ergebnisse nach %s...\n", workbook)
		if err := report.WriteWorkbook(workbook, assessments); err != nil {
			failRun(st, run.ID)
			return eris.Wrap(err, "score: export workbook")
		}
		_, _ = fmt.Fprintln(out, "✅ Export erfolgreich!")
	}

	if err := st.SaveAssessments(ctx, run.ID, assessments); err != nil {
		return eris.Wrap(err, "score: save assessments")
	}
	if err := st.CompleteRun(ctx, run.ID, succeeded, failed, workbook); err != nil {
		return eris.Wrap(err, "score: complete run")
	}

	log.Info("batch complete",
		zap.String("run_id", run.ID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.String("report", workbook),
	)

	_, _ = fmt.Fprintln(out)
	report.WriteSummary(out, assessments, failed)
	printBatchFooter(out, time.Now())

	if format == "csv" {
		return report.WriteCSV(os.Stdout, assessments)
	}
	return nil
}

// scoreCompany resolves the company's municipality and scores the pair.
func scoreCompany(ctx context.Context, scorer *scoring.Scorer, doc *portfolio.Document, spec portfolio.CompanySpec) (*model.Assessment, error) {
	loc, err := doc.Location(spec.Location)
	if err != nil {
		return nil, err
	}
	co, err := spec.Company()
	if err != nil {
		return nil, err
	}
	return scorer.Score(ctx, loc, co)
}

// buildGeoLookup assembles the lookup chain for scoring: the local federal
// datasets, the Overpass client unless offline, and the store-backed cache
// when enabled. A dataset that fails to load is reported and left out; the
// scorer substitutes the documented fallbacks for the affected metrics.
func buildGeoLookup(offline bool, cache geo.LookupCache) scoring.GeoLookup {
	transit, err := geo.LoadTransitTable(cfg.Datasets.TransitPath(), cfg.Datasets.Transit.Encoding)
	if err != nil {
		zap.L().Warn("transit dataset unavailable, lookups fall back",
			zap.String("path", cfg.Datasets.TransitPath()),
			zap.Error(err))
	}

	stops, err := loadStops(cfg.Datasets)
	if err != nil {
		zap.L().Warn("stop registry unavailable, lookups fall back",
			zap.String("path", cfg.Datasets.StopsPath()),
			zap.Error(err))
	}

	var osm overpass.Client
	if !offline {
		retry := cfg.Overpass.RetryPolicy()
		retry.OnRetry = resilience.RetryLogger("overpass", "query")
		osm = overpass.NewClient(
			overpass.WithBaseURL(cfg.Overpass.BaseURL),
			overpass.WithRateLimit(cfg.Overpass.RateRPS),
			overpass.WithRetry(retry),
		)
	}

	var lookup scoring.GeoLookup = geo.NewSources(
		transit, stops, osm,
		cfg.Overpass.MotorwayRadiusM, cfg.Overpass.ParkingRadiusM,
		geo.WithBreaker(cfg.Overpass.BreakerPolicy()),
	)
	if cfg.Store.CacheLookups && cache != nil {
		lookup = geo.NewCachedSources(lookup, cache)
	}
	return lookup
}

// loadStops reads the stop registry, dispatching on the configured file
// extension: shapefiles go through the shp reader, anything else through
// the CSV reader.
func loadStops(d config.DatasetsConfig) (*geo.StopIndex, error) {
	path := d.StopsPath()
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return geo.LoadStopsShapefile(path, d.Stops.NameField)
	}
	return geo.LoadStopsCSV(path, d.Stops.Encoding)
}

// failRun marks the run failed. Uses a fresh context so the update still
// lands after an interrupt.
func failRun(st store.Store, runID string) {
	if err := st.UpdateRunStatus(context.Background(), runID, model.RunStatusFailed); err != nil {
		zap.L().Warn("run status update failed",
			zap.String("run_id", runID),
			zap.Error(err))
	}
}

func printBatchHeader(out io.Writer, start time.Time, companies int) {
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(out, "STANDORT- UND FIRMEN-SCORE-RECHNER")
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))
	_, _ = fmt.Fprintf(out, "Startzeit: %s\n", start.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintf(out, "\n📊 Berechne Scores für %d Firmen...\n\n", companies)
}

func printBatchFooter(out io.Writer, end time.Time) {
	_, _ = fmt.Fprintf(out, "\nEndzeit: %s\n", end.Format("2006-01-02 15:04:05"))
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))
}

// printCompanyFailure writes the skip notice for one company. A company
// referencing an unknown municipality gets the dedicated warning, any other
// fault the generic error line.
func printCompanyFailure(out io.Writer, spec portfolio.CompanySpec, err error) {
	if eris.Is(err, portfolio.ErrUnknownLocation) {
		_, _ = fmt.Fprintf(out, "   ⚠️  Standort '%s' nicht in Konfiguration gefunden!\n", spec.Location)
		return
	}
	_, _ = fmt.Fprintf(out, "   ❌ Fehler bei %s: %v\n", spec.Name, err)
}
