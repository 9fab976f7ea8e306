package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/PhyloKorp/ipkdb/alignment"
	"github.com/PhyloKorp/ipkdb/appcontext"
	"github.com/PhyloKorp/ipkdb/builder"
	"github.com/PhyloKorp/ipkdb/config"
	"github.com/PhyloKorp/ipkdb/logging"
	"github.com/PhyloKorp/ipkdb/proba"
)

func main() {
	os.Exit(entryPoint())
}

func usage(out *os.File) {
	fmt.Fprintf(out, "usage: %s [options] build | help\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(out, "options:\n")
	flag.PrintDefaults()
}

func entryPoint() int {
	optCPUDefault := runtime.GOMAXPROCS(0)
	if optCPUDefault != 1 {
		optCPUDefault = optCPUDefault - 1
	}

	var optConfigFile string
	var optWorkDir string
	var optOutput string
	var optTree string
	var optAlign string
	var optARTree string
	var optMatrices string
	var optK int
	var optOmega float64
	var optMu float64
	var optFilter string
	var optAlgorithm string
	var optGhosts string
	var optThreads int
	var optOnDisk bool
	var optPositions bool
	var optUseUnrooted bool
	var optTrace string
	var optInfo bool

	flag.StringVar(&optConfigFile, "config", "", "build configuration file")
	flag.StringVar(&optWorkDir, "workdir", ".", "working directory for intermediates")
	flag.StringVar(&optOutput, "output", "", "output database file")
	flag.StringVar(&optTree, "tree", "", "reference tree (newick)")
	flag.StringVar(&optAlign, "align", "", "reference alignment (fasta)")
	flag.StringVar(&optARTree, "ar-tree", "", "ancestral reconstruction tree (newick)")
	flag.StringVar(&optMatrices, "matrices", "", "directory of per-node probability matrices")
	flag.IntVar(&optK, "k", 0, "k-mer size")
	flag.Float64Var(&optOmega, "omega", 0, "score threshold parameter")
	flag.Float64Var(&optMu, "mu", 0, "fraction of k-mers to keep")
	flag.StringVar(&optFilter, "filter", "", "filter: mif0, mif1, random, none")
	flag.StringVar(&optAlgorithm, "algorithm", "", "enumerator: BB, DC, DCLA, DCCW")
	flag.StringVar(&optGhosts, "ghosts", "", "ghost strategy: both, inner-only, outer-only")
	flag.IntVar(&optThreads, "threads", optCPUDefault, "number of worker threads")
	flag.BoolVar(&optOnDisk, "on-disk", false, "merge batches from disk instead of RAM")
	flag.BoolVar(&optPositions, "positions", false, "keep k-mer positions in the database")
	flag.BoolVar(&optUseUnrooted, "use-unrooted", false, "root an unrooted reference tree")
	flag.StringVar(&optTrace, "trace", "", "enable tracing for subsystems (comma-separated, or 'all')")
	flag.BoolVar(&optInfo, "info", false, "enable informational messages")
	flag.Parse()

	if flag.NArg() == 0 {
		usage(os.Stderr)
		return 1
	}
	switch flag.Arg(0) {
	case "help":
		usage(os.Stdout)
		return 0
	case "build":
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", filepath.Base(os.Args[0]), flag.Arg(0))
		return 1
	}

	var cfg *config.Config
	var err error
	if optConfigFile != "" {
		cfg, err = config.LoadOrCreate(optConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			return 1
		}
	} else {
		cfg = config.Default()
	}

	// command line overrides
	if optK != 0 {
		cfg.KmerSize = optK
	}
	if optOmega != 0 {
		cfg.Omega = optOmega
	}
	if optMu != 0 {
		cfg.Mu = optMu
	}
	if optFilter != "" {
		cfg.Filter = optFilter
	}
	if optAlgorithm != "" {
		cfg.Algorithm = optAlgorithm
	}
	if optGhosts != "" {
		cfg.GhostStrategy = optGhosts
	}
	if optThreads > 0 {
		cfg.Threads = optThreads
	}
	if optOnDisk {
		cfg.OnDisk = true
	}
	if optPositions {
		cfg.WithPositions = true
	}
	if optUseUnrooted {
		cfg.UseUnrooted = true
	}

	if optTree == "" || optARTree == "" || optMatrices == "" || optOutput == "" {
		fmt.Fprintf(os.Stderr, "error: -tree, -ar-tree, -matrices and -output are required\n")
		return 1
	}

	logger := logging.NewLogger(os.Stdout, os.Stderr)
	if optInfo {
		logger.EnableInfo()
	}
	if optTrace != "" {
		logger.EnableTracing(optTrace)
	}

	ctx := appcontext.NewAppContext()
	defer ctx.Close()
	ctx.SetLogger(logger)
	ctx.Config = cfg
	ctx.WorkDir = optWorkDir
	ctx.MaxConcurrency = cfg.Threads

	if err := runBuild(ctx, optTree, optAlign, optARTree, optMatrices, optOutput); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}

func runBuild(ctx *appcontext.AppContext, treeFile, alignFile, arTreeFile, matricesDir, output string) error {
	treeData, err := os.ReadFile(treeFile)
	if err != nil {
		return err
	}
	original, extended, ghostMapping, err := builder.PreprocessTree(string(treeData), ctx.Config.UseUnrooted)
	if err != nil {
		return err
	}

	var align *alignment.Alignment
	if alignFile != "" {
		align, err = alignment.ReadFastaFile(alignFile)
		if err != nil {
			return err
		}
	}
	if err := builder.WriteIntermediates(ctx.WorkDir, extended, align, ctx.Config.ReductionRatio); err != nil {
		return err
	}

	arData, err := os.ReadFile(arTreeFile)
	if err != nil {
		return err
	}
	arMapping, err := builder.PrepareARTree(ctx.WorkDir, extended, string(arData))
	if err != nil {
		return err
	}

	b, err := builder.New(ctx, builder.Inputs{
		OriginalTree: original,
		ExtendedTree: extended,
		GhostMapping: ghostMapping,
		ARMapping:    arMapping,
		Matrices:     proba.DirStore(matricesDir),
		OutputFile:   output,
	})
	if err != nil {
		return err
	}
	return b.Run()
}
