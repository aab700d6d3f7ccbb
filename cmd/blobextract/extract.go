package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nicholas-fedor/blobextract/internal/driver"
	"github.com/nicholas-fedor/blobextract/internal/handler"
	"github.com/nicholas-fedor/blobextract/internal/report"
	"github.com/nicholas-fedor/blobextract/internal/scanner"
	"github.com/nicholas-fedor/blobextract/internal/scheduler"
	"github.com/nicholas-fedor/blobextract/internal/task"
)

// extractOptions holds CLI flags for the extract command.
type extractOptions struct {
	depth      int
	workers    int
	force      bool
	keepChunks bool
	suffix     string
	skipMagic  string
	verbose    bool
	noProgress bool
}

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	opts := &extractOptions{
		depth:   10,
		workers: runtime.NumCPU(),
		suffix:  "_extract",
	}

	cmd := &cobra.Command{
		Use:   "extract <path>",
		Short: "Recursively find and extract every container embedded in path",
		Long: `Scans path for every container format blobextract knows how to recognize,
carves and extracts each one, then recurses into the result up to --depth
levels deep. Unrecognized byte ranges between containers are carved out as
*.unknown files for manual inspection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runExtract(args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.depth, "depth", "d", opts.depth, "Maximum recursion depth")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", opts.workers, "Number of parallel workers")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Extract even if the output directory already exists")
	cmd.Flags().BoolVar(&opts.keepChunks, "keep-chunks", false, "Keep carved chunk files after their handler extracts them")
	cmd.Flags().StringVar(&opts.suffix, "suffix", opts.suffix, "Suffix appended to a path to name its extraction directory")
	cmd.Flags().StringVar(&opts.skipMagic, "skip-magic", "", "Comma-separated detected-type prefixes to never scan (default: ELF,JPEG,GIF,PNG)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug-level detail, including per-chunk entropy")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")

	return cmd
}

func runExtract(path string, opts *extractOptions) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	extractDir := path + opts.suffix

	if _, err := os.Stat(extractDir); err == nil {
		if !opts.force {
			return fmt.Errorf("%s already exists, use --force to overwrite: %s",
				report.ExtractDirectoriesExist, extractDir)
		}

		if err := os.RemoveAll(extractDir); err != nil {
			return fmt.Errorf("remove existing extraction directory %s: %w", extractDir, err)
		}
	}

	log := logrus.New()
	if opts.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	reg := handler.Default()

	scn, err := scanner.New(reg)
	if err != nil {
		return fmt.Errorf("compile pattern rules: %w", err)
	}

	defer scn.Close()

	cfg := driver.Config{
		MaxDepth:     opts.depth,
		KeepChunks:   opts.keepChunks,
		Suffix:       opts.suffix,
		SkipMagic:    splitSkipMagic(opts.skipMagic),
		EntropyDepth: opts.depth,
	}

	d := driver.New(reg, scn, cfg, log)
	sched := scheduler.New(opts.workers, d, !opts.noProgress)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if _, ok := <-sigCh; ok {
			log.Warn("received shutdown signal, draining in-flight work")
			sched.Cancel()
			cancel()
		}
	}()

	defer signal.Stop(sigCh)

	fmt.Fprintf(os.Stderr, "extracting %s (%s)\n", path, humanize.IBytes(uint64(info.Size())))

	reports := sched.Run(ctx, task.Task{Path: path, Depth: 0})

	for _, r := range reports {
		fmt.Fprintf(os.Stderr, "error: %s\n", r.Error())
	}

	if len(reports) > 0 {
		return fmt.Errorf("completed with %d error(s)", len(reports))
	}

	return nil
}
