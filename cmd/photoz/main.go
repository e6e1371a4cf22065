// Command photoz trains and runs the photometric-redshift estimation
// pipeline against sqlite photometry catalogs, keeping trained models
// and per-source results in a run store.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/banshee-data/photoz/internal/catalog"
	"github.com/banshee-data/photoz/internal/gpz"
	"github.com/banshee-data/photoz/internal/photoz"
	"github.com/banshee-data/photoz/internal/pzdb"
	"github.com/banshee-data/photoz/internal/report"
	"github.com/banshee-data/photoz/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("photoz: ")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "synth":
		runSynth(os.Args[2:])
	case "train":
		runTrain(os.Args[2:])
	case "estimate":
		runEstimate(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "serve-debug":
		runServeDebug(os.Args[2:])
	case "version":
		fmt.Printf("photoz %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: photoz <command> [flags]

Commands:
  synth        generate a synthetic photometry catalog
  train        train a model on a labeled catalog
  estimate     estimate redshift posteriors for a catalog range
  report       render an HTML report for an estimation run
  migrate      manage the run-store schema (up, down, version)
  serve-debug  serve the run-store debug console
  version      print build information
  help         show this message

Run photoz <command> -h for command flags.`)
}

func runSynth(args []string) {
	fs := flag.NewFlagSet("synth", flag.ExitOnError)
	out := fs.String("out", "catalog.db", "Output catalog database")
	table := fs.String("table", "photometry", "Catalog table name")
	rows := fs.Int("rows", 1000, "Number of sources to generate")
	seed := fs.Int64("seed", 87, "Random seed")
	unlabeled := fs.Bool("unlabeled", false, "Omit the redshift column")
	nondetect := fs.Float64("nondetect", 0.02, "Per-band non-detection probability")
	fs.Parse(args)

	cfg := catalog.DefaultSyntheticConfig()
	cfg.NumRows = *rows
	cfg.Seed = *seed
	cfg.NondetectFrac = *nondetect
	if *unlabeled {
		cfg.RedshiftCol = ""
	}

	tbl, err := catalog.Synthetic(cfg)
	if err != nil {
		log.Fatalf("generate catalog: %v", err)
	}

	db, err := catalog.Open(*out)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer db.Close()

	columns := catalogColumns(cfg.Bands, cfg.RedshiftCol)
	if err := catalog.WriteTable(db, *table, tbl, columns); err != nil {
		log.Fatalf("write catalog: %v", err)
	}
	log.Printf("wrote %d rows to %s (table %s)", tbl.NumRows(), *out, *table)
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	catalogPath := fs.String("catalog", "catalog.db", "Labeled catalog database")
	table := fs.String("table", "photometry", "Catalog table name")
	storePath := fs.String("store", "photoz.db", "Run-store database")
	configPath := fs.String("config", "", "Optional JSON training config")
	seed := fs.Int64("seed", 0, "Override random seed")
	maxIter := fs.Int("maxiter", 0, "Override max optimizer iterations")
	maxAttempt := fs.Int("maxattempt", 0, "Override max no-progress attempts")
	fs.Parse(args)

	cfg := photoz.DefaultTrainConfig()
	if *configPath != "" {
		var err error
		if cfg, err = photoz.LoadTrainConfig(*configPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = *seed
		case "maxiter":
			cfg.MaxIter = *maxIter
		case "maxattempt":
			cfg.MaxAttempts = *maxAttempt
		}
	})

	db, err := catalog.Open(*catalogPath)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer db.Close()

	columns := catalogColumns(cfg.Bands, cfg.RedshiftCol)
	tbl, err := catalog.ReadTable(db, *table, columns)
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}

	model, err := gpz.New(gpz.Hyperparams{
		NumBasis:        cfg.NumBasis,
		Method:          cfg.Method,
		JointMean:       cfg.LearnJointly,
		Heteroscedastic: cfg.HeteroNoise,
		Decorrelate:     cfg.Decorrelate,
		Seed:            cfg.Seed,
	})
	if err != nil {
		log.Fatalf("create model: %v", err)
	}

	trainer, err := photoz.NewTrainer(cfg, model, gpz.Omega)
	if err != nil {
		log.Fatalf("create trainer: %v", err)
	}
	if err := trainer.Run(tbl); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	blob, err := model.MarshalBinary()
	if err != nil {
		log.Fatalf("serialize model: %v", err)
	}
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		log.Fatalf("serialize config: %v", err)
	}

	store := openStore(*storePath)
	defer store.Close()

	run := &pzdb.Run{Kind: "train", Config: cfgJSON, Model: blob}
	if err := store.InsertRun(run); err != nil {
		log.Fatalf("save run: %v", err)
	}
	log.Printf("trained model saved as run %s", run.RunID)
}

func runEstimate(args []string) {
	fs := flag.NewFlagSet("estimate", flag.ExitOnError)
	catalogPath := fs.String("catalog", "catalog.db", "Unlabeled catalog database")
	table := fs.String("table", "photometry", "Catalog table name")
	storePath := fs.String("store", "photoz.db", "Run-store database")
	trainRunID := fs.String("run", "", "Training run ID (default: most recent)")
	configPath := fs.String("config", "", "Optional JSON estimate config")
	start := fs.Int("start", 0, "First row of the estimation range")
	end := fs.Int("end", 0, "Row past the end of the range (0 = all rows)")
	chunk := fs.Int("chunk", 0, "Override chunk size")
	plots := fs.String("plots", "", "Directory for posterior plots (disabled when empty)")
	fs.Parse(args)

	cfg := photoz.DefaultEstimateConfig()
	if *configPath != "" {
		var err error
		if cfg, err = photoz.LoadEstimateConfig(*configPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	if *chunk > 0 {
		cfg.ChunkSize = *chunk
	}

	store := openStore(*storePath)
	defer store.Close()

	trainRun := loadRun(store, *trainRunID, "train")
	model, err := gpz.Load(trainRun.Model)
	if err != nil {
		log.Fatalf("load model from run %s: %v", trainRun.RunID, err)
	}

	db, err := catalog.Open(*catalogPath)
	if err != nil {
		log.Fatalf("open catalog: %v", err)
	}
	defer db.Close()

	tbl, err := catalog.ReadTable(db, *table, catalogColumns(cfg.Bands, ""))
	if err != nil {
		log.Fatalf("read catalog: %v", err)
	}
	rangeEnd := *end
	if rangeEnd == 0 {
		rangeEnd = tbl.NumRows()
	}
	sub, err := tbl.Slice(*start, rangeEnd)
	if err != nil {
		log.Fatalf("select rows: %v", err)
	}

	est, err := photoz.NewEstimator(cfg, model)
	if err != nil {
		log.Fatalf("create estimator: %v", err)
	}
	ens, err := est.Run(sub)
	if err != nil {
		log.Fatalf("estimation failed: %v", err)
	}

	zmode, ok := ens.Ancil(photoz.ZModeAncil)
	if !ok {
		log.Fatalf("estimation produced no zmode values")
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		log.Fatalf("serialize config: %v", err)
	}
	run := &pzdb.Run{Kind: "estimate", Config: cfgJSON}
	if err := store.InsertRun(run); err != nil {
		log.Fatalf("save run: %v", err)
	}

	results := make([]pzdb.Result, ens.Len())
	for i := range results {
		results[i] = pzdb.Result{
			RunID:    run.RunID,
			RowIndex: *start + i,
			ZMode:    zmode[i],
			Mu:       ens.Loc(i),
			Sigma:    ens.Scale(i),
		}
	}
	if err := store.InsertResults(results); err != nil {
		log.Fatalf("save results: %v", err)
	}
	log.Printf("estimated %d sources (rows %d - %d) as run %s", ens.Len(), *start, rangeEnd, run.RunID)

	if *plots != "" {
		rows := []int{0}
		if ens.Len() > 1 {
			rows = append(rows, ens.Len()/2, ens.Len()-1)
		}
		out, err := report.PlotPosteriors(*plots, ens, rows, est.Grid())
		if err != nil {
			log.Fatalf("plot posteriors: %v", err)
		}
		log.Printf("wrote %s", out)
	}
}

func runReport(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	storePath := fs.String("store", "photoz.db", "Run-store database")
	runID := fs.String("run", "", "Estimation run ID (default: most recent)")
	out := fs.String("out", "report.html", "Output HTML file")
	fs.Parse(args)

	store := openStore(*storePath)
	defer store.Close()

	run := loadRun(store, *runID, "estimate")
	results, err := store.ResultsForRun(run.RunID)
	if err != nil {
		log.Fatalf("load results: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatalf("create report: %v", err)
	}
	defer f.Close()

	if err := report.WriteHTML(f, "photoz run "+run.RunID, results); err != nil {
		log.Fatalf("render report: %v", err)
	}
	log.Printf("wrote %s (%d sources)", *out, len(results))
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	storePath := fs.String("store", "photoz.db", "Run-store database")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("Usage: photoz migrate [-store <path>] <up|down|version>")
	}

	store, err := pzdb.Open(*storePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	switch fs.Arg(0) {
	case "up":
		if err := store.MigrateUp(); err != nil {
			log.Fatalf("migration up failed: %v", err)
		}
		log.Println("all migrations applied")
	case "down":
		if err := store.MigrateDown(); err != nil {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("rolled back one migration")
	case "version":
		version, dirty, err := store.MigrateVersion()
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		log.Printf("schema version %d (dirty=%v)", version, dirty)
	default:
		log.Fatalf("unknown migrate action %q", fs.Arg(0))
	}
}

func runServeDebug(args []string) {
	fs := flag.NewFlagSet("serve-debug", flag.ExitOnError)
	storePath := fs.String("store", "photoz.db", "Run-store database")
	listen := fs.String("listen", "127.0.0.1:8090", "Listen address")
	fs.Parse(args)

	store := openStore(*storePath)
	defer store.Close()

	mux := http.NewServeMux()
	store.AttachAdminRoutes(mux)
	log.Printf("debug console on http://%s/debug/", *listen)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Fatalf("serve: %v", err)
	}
}

// openStore opens the run store and brings its schema up to date.
func openStore(path string) *pzdb.DB {
	store, err := pzdb.Open(path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	if err := store.MigrateUp(); err != nil {
		log.Fatalf("migrate store: %v", err)
	}
	return store
}

// loadRun fetches the requested run, or the most recent run of the
// given kind when no ID is supplied.
func loadRun(store *pzdb.DB, runID, kind string) *pzdb.Run {
	if runID != "" {
		run, err := store.Run(runID)
		if err != nil {
			log.Fatalf("load run: %v", err)
		}
		return run
	}
	runs, err := store.ListRuns(kind)
	if err != nil {
		log.Fatalf("list runs: %v", err)
	}
	if len(runs) == 0 {
		log.Fatalf("no %s runs in store", kind)
	}
	return runs[0]
}

// catalogColumns lists the catalog columns a band layout needs, plus
// the redshift column when labeled.
func catalogColumns(bands photoz.BandConfig, redshiftCol string) []string {
	columns := make([]string, 0, 2*len(bands.Bands)+1)
	columns = append(columns, bands.Bands...)
	columns = append(columns, bands.ErrBands...)
	if redshiftCol != "" {
		columns = append(columns, redshiftCol)
	}
	return columns
}
