// The main package for the `hsort` executable: histogram-driven distributed sort
// of N generated shards across N destination nodes, verified end to end.
/*
 * Copyright (c) 2018-2025, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/NVIDIA/hsort/cmn"
	"github.com/NVIDIA/hsort/cmn/cos"
	"github.com/NVIDIA/hsort/cmn/jsp"
	"github.com/NVIDIA/hsort/cmn/nlog"
	"github.com/NVIDIA/hsort/dsort"
	"github.com/NVIDIA/hsort/stats"
	"github.com/NVIDIA/hsort/tracing"
)

const myName = "hsort"

// exit codes
const (
	exitPassed = iota
	exitFailed // verification failed
	exitError  // the run did not complete
)

var (
	version = "1.0"
	build   string
)

type params struct {
	configPath   string
	reportPath   string
	metrics      string
	timeout      time.Duration
	seed         int64
	shardLen     int64
	stride       int64
	numNodes     int
	parallelSend bool
	parallelSort bool
	compress     bool
	cksum        bool
	dryRun       bool
	version      bool
}

func main() {
	os.Exit(run())
}

func run() int {
	config, p, err := parseCmdLine(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if p.version {
		fmt.Printf("version %s, build %s\n", version, build)
		return exitPassed
	}
	nlog.SetLogDirRole(config.Log.Dir, myName)
	if config.Log.ToStderr {
		nlog.SetToStderr(true)
	}
	nlog.SetTitle(myName + " " + version)
	defer nlog.Flush(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if p.dryRun {
		return dryRun(ctx, config)
	}

	prom := stats.NewProm()
	if config.Metrics.Listen != "" {
		srv, err := prom.Serve(config.Metrics.Listen)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitError
		}
		fmt.Printf("Serving metrics at %s\n", srv.URL())
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}()
	}

	m, err := dsort.NewManager(config, prom)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	if err := tracing.Init(&config.Tracing, m.UUID, version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitError
	}
	defer tracing.Shutdown()

	report, err := m.Run(ctx)
	if p.reportPath != "" && report != nil {
		opts := jsp.Plain()
		if config.Transport.Compression == cmn.CompressAlways {
			opts = jsp.CCSign()
		}
		if errS := report.Save(p.reportPath, opts); errS != nil {
			fmt.Fprintln(os.Stderr, errS)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Distributed sort failed: %v\n", err)
		return exitError
	}
	printResults(report)
	if !report.Passed {
		return exitFailed
	}
	return exitPassed
}

func parseCmdLine(args []string) (*cmn.Config, *params, error) {
	var (
		p   = &params{}
		def = cmn.DefaultConfig()
		f   = flag.NewFlagSet(myName, flag.ContinueOnError)
	)
	f.StringVar(&p.configPath, "config", "", "configuration file (JSON or YAML); command-line flags override")
	f.IntVar(&p.numNodes, "nodes", def.NumNodes, "number of source (and destination) nodes")
	f.Int64Var(&p.shardLen, "len", def.ShardLen, "number of keys per shard")
	f.Int64Var(&p.stride, "stride", def.Stride, "coarse histogram stride")
	f.Int64Var(&p.seed, "seed", 0, "random seed to achieve deterministic reproducible results (0 - use current time in nanoseconds)")
	f.DurationVar(&p.timeout, "timeout", def.Timeout.D(), "bounded wait for every peer exchange (0 - wait forever)")
	f.BoolVar(&p.parallelSend, "parallel-send", false, "stream fragments to all destinations concurrently")
	f.BoolVar(&p.parallelSort, "parallel-sort", false, "split the top levels of each merge sort across goroutines")
	f.BoolVar(&p.compress, "compress", false, "lz4-compress transport payloads")
	f.BoolVar(&p.cksum, "cksum", false, "xxhash transport payloads")
	f.StringVar(&p.metrics, "metrics", "", "Prometheus listen address, e.g. localhost:9090 (empty - disabled)")
	f.StringVar(&p.reportPath, "report", "", "save the run report (JSON) to this file")
	f.BoolVar(&p.dryRun, "dry-run", false, "resolve the partition ranges in-process and show them, without running the nodes")
	f.BoolVar(&p.version, "version", false, "show version")
	nlog.InitFlags(f)

	if err := f.Parse(args); err != nil {
		return nil, nil, err
	}
	if p.version {
		return def, p, nil
	}

	config := def
	if p.configPath != "" {
		var err error
		if config, err = cmn.LoadConfig(p.configPath); err != nil {
			return nil, nil, err
		}
	}
	// explicitly set flags override the config file
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "nodes":
			config.NumNodes = p.numNodes
		case "len":
			config.ShardLen = p.shardLen
		case "stride":
			config.Stride = p.stride
		case "seed":
			config.Seed = p.seed
		case "timeout":
			config.Timeout = cos.Duration(p.timeout)
		case "parallel-send":
			config.ParallelSend = p.parallelSend
		case "parallel-sort":
			config.ParallelSort = p.parallelSort
		case "compress":
			if p.compress {
				config.Transport.Compression = cmn.CompressAlways
			} else {
				config.Transport.Compression = cmn.CompressNever
			}
		case "cksum":
			config.Transport.Checksum = p.cksum
		case "metrics":
			config.Metrics.Listen = p.metrics
		case "logtostderr":
			config.Log.ToStderr = true
		}
	})
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	if config.Seed == 0 {
		config.Seed = config.SeedOrNow()
	}
	printArguments(f, config)
	return config, p, nil
}

func printArguments(set *flag.FlagSet, config *cmn.Config) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)

	_, _ = fmt.Fprintf(w, "==== COMMAND LINE ARGUMENTS ====\n")
	_, _ = fmt.Fprintf(w, "=========== DEFAULTS ===========\n")
	set.VisitAll(func(f *flag.Flag) {
		if f.Value.String() == f.DefValue {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", f.Name, f.Value.String())
		}
	})
	_, _ = fmt.Fprintf(w, "============ CUSTOM ============\n")
	set.VisitAll(func(f *flag.Flag) {
		if f.Value.String() != f.DefValue {
			_, _ = fmt.Fprintf(w, "%s:\t%s\n", f.Name, f.Value.String())
		}
	})
	_, _ = fmt.Fprintf(w, "Effective config:\t%s\n", config)
	_, _ = fmt.Fprintf(w, "Seed:\t%d\n", config.Seed)
	_, _ = fmt.Fprintf(w, "=================================\n\n")
	_ = w.Flush()
}

func printResults(report *dsort.RunReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	_, _ = fmt.Fprintf(w, "NODE\tMIN\tMAX\tCOUNT\tCHECKSUM\n")
	for _, r := range report.Verification.Results {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", r.NID, r.Min, r.Max, r.Count, r.Cksum)
	}
	_ = w.Flush()

	rs := &report.Metrics.Resolver
	fmt.Printf("\nResolved with %d refinement(s), %d detailed entries; elapsed %v\n",
		rs.Refinements, rs.DetailEntries, report.Elapsed)
	for _, s := range report.Verification.Errors {
		fmt.Println("  -", s)
	}
	verdict := "PASSED"
	if !report.Passed {
		verdict = "FAILED"
	}
	fmt.Printf("Distributed sort complete, test %s\n", verdict)
}

func dryRun(ctx context.Context, config *cmn.Config) int {
	ranges, rs, err := dsort.DryRun(ctx, config)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitError
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
	_, _ = fmt.Fprintf(w, "SOURCE\tDESTINATION\tFIRST\tLAST\tCOUNT\n")
	for _, rr := range ranges {
		for i := range rr {
			r := &rr[i]
			_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\n", r.SID, r.DID, r.First, r.Last, r.Len())
		}
	}
	_ = w.Flush()
	fmt.Printf("\nResolved with %d refinement(s), %d detailed entries (dry run)\n", rs.Refinements, rs.DetailEntries)
	return exitPassed
}
