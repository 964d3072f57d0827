// Command metropolis sweeps a parameter space over a metropolis Monte-Carlo
// simulation of a molecular spintronic device, dispatching one simulation
// per combination across a bounded pool of worker slots and recording every
// result into a crash-tolerant XML document.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/msd-research/metropolis/internal/fsutil"
	"github.com/msd-research/metropolis/internal/monitoring"
	"github.com/msd-research/metropolis/internal/msd"
	"github.com/msd-research/metropolis/internal/params"
	"github.com/msd-research/metropolis/internal/sweep"
	"github.com/msd-research/metropolis/internal/sweepdb"
	"github.com/msd-research/metropolis/internal/timeutil"
	"github.com/msd-research/metropolis/internal/version"
	"github.com/msd-research/metropolis/internal/xmlout"
)

// Exit codes, by failure class. Configuration errors are reported before
// any simulation starts.
const (
	exitMissingParamFile = 1
	exitMissingOutFile   = 2
	exitBadModel         = 3
	exitBadThreads       = 4
	exitBadInitMode      = 5
	exitBadDatabase      = 6
	exitParamFileError   = 0x10
	exitMissingParam     = 0x18
	exitOutputError      = 0x20
)

type options struct {
	paramsPath string
	outPath    string
	model      msd.FlipModel
	initMode   msd.InitMode
	threads    int
	dbPath     string
	seed       uint64
}

func main() {
	var (
		paramsPath  = flag.String("params", "", "parameters file (required)")
		outPath     = flag.String("out", "", "results XML file (required)")
		modelName   = flag.String("model", "CONTINUOUS_SPIN_MODEL", "flip model: CONTINUOUS_SPIN_MODEL or UP_DOWN_MODEL")
		initName    = flag.String("init", "REINITIALIZE", "initial spins: REINITIALIZE or RANDOMIZE")
		threads     = flag.Int("threads", runtime.NumCPU(), "worker slot count")
		dbPath      = flag.String("db", "", "optional sqlite results database")
		seed        = flag.Uint64("seed", uint64(time.Now().UnixNano()), "simulation RNG seed")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("metropolis %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *paramsPath == "" {
		fmt.Fprintln(os.Stderr, "missing -params")
		flag.Usage()
		os.Exit(exitMissingParamFile)
	}
	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		flag.Usage()
		os.Exit(exitMissingOutFile)
	}
	model, err := msd.ParseFlipModel(*modelName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadModel)
	}
	initMode, err := msd.ParseInitMode(*initName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBadInitMode)
	}
	if *threads < 1 {
		fmt.Fprintf(os.Stderr, "thread count %d must be at least 1\n", *threads)
		os.Exit(exitBadThreads)
	}

	os.Exit(run(options{
		paramsPath: *paramsPath,
		outPath:    *outPath,
		model:      model,
		initMode:   initMode,
		threads:    *threads,
		dbPath:     *dbPath,
		seed:       *seed,
	}, os.Stdout))
}

// run executes one sweep start to finish and returns the process exit code.
func run(opts options, progress io.Writer) int {
	f, err := os.Open(opts.paramsPath)
	if err != nil {
		monitoring.Logf("cannot open parameters file: %v", err)
		return exitParamFileError
	}
	spec, err := params.Parse(f)
	f.Close()
	if err != nil {
		monitoring.Logf("corrupted parameters file %s: %v", opts.paramsPath, err)
		return exitParamFileError
	}
	if spec.Empty() {
		monitoring.Logf("%s: %v", opts.paramsPath, params.ErrNoAxesDefined)
		return exitParamFileError
	}

	base, err := msd.BaseJob(spec, opts.model, opts.initMode, opts.seed)
	if err != nil {
		monitoring.Logf("%s: %v", opts.paramsPath, err)
		return exitMissingParam
	}
	if err := base.Config.Validate(); err != nil {
		monitoring.Logf("%s: %v", opts.paramsPath, err)
		return exitParamFileError
	}

	runID := uuid.NewString()
	it := sweep.NewIterator(spec)
	total := it.Count()

	sink := xmlout.NewSink(opts.outPath, total, fsutil.OSFileSystem{}, timeutil.RealClock{}, progress)
	gen := xmlout.Gen{
		Program:   "metropolis",
		Version:   version.Version,
		RunID:     runID,
		Timestamp: time.Now().Unix(),
		Model:     opts.model.String(),
		InitMode:  opts.initMode.String(),
		Threads:   opts.threads,
		ParamFile: opts.paramsPath,
	}
	if err := sink.Start(gen, xmlout.GlobalFromSpec(spec)); err != nil {
		monitoring.Logf("cannot write output file %s: %v", opts.outPath, err)
		return exitOutputError
	}

	var db *sweepdb.DB
	if opts.dbPath != "" {
		db, err = sweepdb.Open(opts.dbPath)
		if err != nil {
			monitoring.Logf("cannot open results database %s: %v", opts.dbPath, err)
			return exitBadDatabase
		}
		defer db.Close()
		if err := db.InsertRun(sweepdb.Run{
			ID:         runID,
			Program:    "metropolis",
			Model:      opts.model.String(),
			InitMode:   opts.initMode.String(),
			ParamFile:  opts.paramsPath,
			OutputFile: opts.outPath,
		}); err != nil {
			monitoring.Logf("failed to record run: %v", err)
		}
	}

	seq := 0
	record := func(res msd.Result) {
		sink.Record(res)
		if db != nil {
			if err := db.InsertResult(runID, seq, res); err != nil {
				monitoring.Logf("failed to store result %d: %v", seq, err)
			}
		}
		seq++
	}

	// A simulation fault aborts the whole run; there is no skipping a
	// combination and continuing.
	runTask := func(job msd.Job) msd.Result {
		res, err := msd.Run(job)
		if err != nil {
			log.Fatalf("simulation aborted: %v", err)
		}
		return res
	}

	pool, err := sweep.NewPool(opts.threads, runTask, timeutil.RealClock{})
	if err != nil {
		monitoring.Logf("%v", err)
		return exitBadThreads
	}

	monitoring.Logf("run %s: %d combinations on %d threads", runID, total, opts.threads)
	started := time.Now()

	for a, ok := it.Next(); ok; a, ok = it.Next() {
		if res, collected := pool.Submit(msd.BuildJob(base, a)); collected {
			record(res)
		}
	}
	pool.Drain(record)

	if err := sink.Close(); err != nil {
		monitoring.Logf("final write of %s failed: %v", opts.outPath, err)
	}
	monitoring.Logf("run %s: recorded %d results in %s",
		runID, sink.Recorded(), timeutil.FormatElapsed(time.Since(started)))
	return 0
}
