// Command planbatch runs the ingestion and planning pipeline over many
// files with a fixed worker pool.
//
// Each file's pipeline run is fully independent (the core holds no
// shared mutable state), so parallelism is a plain jobs channel fanned
// out to N workers. Per-file results can be:
//
//   - written as JSON artifacts next to a chosen output directory
//     (-out-dir),
//   - persisted to a relational artifact store (-store/-dsn, backends:
//     sqlite, postgres, mssql),
//   - counted and timed in Datadog (-datadog).
//
// Input selection is either explicit file arguments or -dir, which scans
// one directory level for *.csv.
//
// DSN precedence mirrors cmd/plancsv's sibling tools: the -dsn flag
// wins, then the DSN environment variable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dataplan/internal/ingest"
	"dataplan/internal/metrics"
	"dataplan/internal/metrics/datadog"
	"dataplan/internal/planner"
	"dataplan/internal/store"

	_ "dataplan/internal/store/mssql"
	_ "dataplan/internal/store/postgres"
	_ "dataplan/internal/store/sqlite"
)

type artifact struct {
	Report ingest.Report `json:"report"`
	Plan   planner.Plan  `json:"plan"`
}

type result struct {
	path       string
	capability planner.Capability
	success    bool
	err        error
}

func main() {
	var (
		flagDir     = flag.String("dir", "", "Directory to scan for *.csv (alternative to file arguments)")
		flagWorkers = flag.Int("workers", 4, "Number of parallel pipeline workers")
		flagOutDir  = flag.String("out-dir", "", "Directory for per-file JSON artifacts (optional)")

		flagNA      = flag.String("na", "", "Comma-separated extra missing-value tokens")
		flagNoDates = flag.Bool("no-dates", false, "Disable datetime reinterpretation of text columns")

		flagStore = flag.String("store", "", "Artifact store backend: sqlite, postgres, or mssql")
		flagDSN   = flag.String("dsn", "", "Artifact store DSN (falls back to the DSN env var)")

		flagDatadog = flag.Bool("datadog", false, "Publish run metrics to Datadog")
		flagDDJob   = flag.String("dd-job", "planbatch", "Datadog job tag")
		flagDDTags  = flag.String("dd-tags", "", "Extra Datadog tags, comma-separated (e.g. env:prod)")
	)
	flag.Parse()

	files, err := collectFiles(*flagDir, flag.Args())
	if err != nil {
		log.Fatalf("planbatch: %v", err)
	}
	if len(files) == 0 {
		log.Fatal("planbatch: no input files (pass file arguments or -dir)")
	}

	ctx := context.Background()

	var backend metrics.Backend = metrics.Nop{}
	var ddBackend *datadog.Backend
	if *flagDatadog {
		ddBackend, err = datadog.NewBackend(ctx, datadog.Options{
			JobName: *flagDDJob,
			Tags:    datadog.ParseTagsCSV(*flagDDTags),
		})
		if err != nil {
			log.Fatalf("planbatch: datadog init: %v", err)
		}
		backend = ddBackend
		defer func() {
			if err := ddBackend.Close(); err != nil {
				log.Printf("planbatch: datadog flush: %v", err)
			}
		}()
	}

	var repo store.Repository
	if *flagStore != "" {
		dsn := *flagDSN
		if dsn == "" {
			dsn = os.Getenv("DSN")
		}
		repo, err = store.Open(ctx, store.Config{Kind: *flagStore, DSN: dsn})
		if err != nil {
			log.Fatalf("planbatch: open store: %v", err)
		}
		defer repo.Close()
		if err := repo.Init(ctx); err != nil {
			log.Fatalf("planbatch: init store: %v", err)
		}
	}

	opt := ingest.DefaultOptions()
	opt.ParseDates = !*flagNoDates
	if *flagNA != "" {
		opt.NAValues = strings.Split(*flagNA, ",")
	}

	workers := *flagWorkers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan string)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- runOne(ctx, path, opt, backend, repo, *flagOutDir)
			}
		}()
	}

	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var ok, failed, aborted int
	for r := range results {
		switch {
		case r.err != nil:
			failed++
			log.Printf("planbatch: %s: %v", r.path, r.err)
		case r.capability == planner.CapabilityAbort:
			aborted++
			log.Printf("planbatch: %s: ingestion failed, plan aborted", r.path)
		default:
			ok++
			log.Printf("planbatch: %s: %s", r.path, r.capability)
		}
	}

	log.Printf("planbatch: done: %d planned, %d aborted, %d failed (of %d files)",
		ok, aborted, failed, len(files))
	if failed > 0 {
		os.Exit(1)
	}
}

// runOne executes the full pipeline for a single file and fans the
// outcome out to the configured sinks. Pipeline errors never abort the
// batch; they are reported per file.
func runOne(ctx context.Context, path string, opt ingest.Options, backend metrics.Backend, repo store.Repository, outDir string) result {
	start := time.Now()

	_, rep, err := ingest.Load(path, opt)
	if err != nil {
		backend.IncCounter(datadog.MetricFilesTotal, 1, metrics.Labels{"status": "read_error"})
		return result{path: path, err: err}
	}

	plan := planner.Build(rep, planner.Overrides{}, "")

	backend.ObserveHistogram(datadog.MetricLoadDuration, time.Since(start).Seconds(), nil)
	status := "ok"
	if !rep.Success {
		status = "ingest_failed"
	}
	backend.IncCounter(datadog.MetricFilesTotal, 1, metrics.Labels{"status": status})
	backend.IncCounter(datadog.MetricPlansTotal, 1, metrics.Labels{"capability": string(plan.ChosenCapability)})

	payload := artifact{Report: rep, Plan: plan}
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return result{path: path, err: fmt.Errorf("marshal report: %w", err)}
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return result{path: path, err: fmt.Errorf("marshal plan: %w", err)}
	}

	if outDir != "" {
		b, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return result{path: path, err: fmt.Errorf("marshal artifact: %w", err)}
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".plan.json"
		if err := os.WriteFile(filepath.Join(outDir, name), append(b, '\n'), 0o644); err != nil {
			return result{path: path, err: fmt.Errorf("write artifact: %w", err)}
		}
	}

	if repo != nil {
		rec := store.RunRecord{
			Path:       path,
			Capability: string(plan.ChosenCapability),
			Success:    rep.Success,
			Report:     reportJSON,
			Plan:       planJSON,
			CreatedAt:  time.Now().UTC(),
		}
		if err := repo.SaveRun(ctx, rec); err != nil {
			return result{path: path, err: fmt.Errorf("save run: %w", err)}
		}
	}

	return result{path: path, capability: plan.ChosenCapability, success: rep.Success}
}

func collectFiles(dir string, args []string) ([]string, error) {
	files := append([]string(nil), args...)
	if dir == "" {
		return files, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	files = append(files, matches...)
	return files, nil
}
