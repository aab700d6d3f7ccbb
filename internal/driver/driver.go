// Package driver implements the per-Task pipeline: scan a file for
// candidate containers, validate and reconcile them into outer chunks
// and gaps, carve and extract each, sanitize the result, and enqueue it
// as the next recursion depth's Task.
//
// Grounded on unblob's processing._FileTask.process and _extract_chunk,
// generalized from a single-process loop into scheduler.Processor so it
// can run under the worker pool in internal/scheduler.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/blobextract/internal/carver"
	"github.com/nicholas-fedor/blobextract/internal/chunk"
	"github.com/nicholas-fedor/blobextract/internal/entropy"
	"github.com/nicholas-fedor/blobextract/internal/handler"
	"github.com/nicholas-fedor/blobextract/internal/magic"
	"github.com/nicholas-fedor/blobextract/internal/report"
	"github.com/nicholas-fedor/blobextract/internal/sanitize"
	"github.com/nicholas-fedor/blobextract/internal/scanner"
	"github.com/nicholas-fedor/blobextract/internal/task"
)

// Config holds the per-run knobs the CLI exposes.
type Config struct {
	// MaxDepth bounds recursion: a file discovered at this depth is
	// never itself scanned for further containers.
	MaxDepth int

	// KeepChunks leaves carved intermediate chunk files on disk instead
	// of deleting them once their handler has extracted them.
	KeepChunks bool

	// Suffix names the directory an extracted container's contents are
	// written to: <path><Suffix>.
	Suffix string

	// SkipMagic lists detected-type prefixes whose files are never
	// scanned (default: magic.DefaultSkip).
	SkipMagic []string

	// EntropyDepth bounds how deep entropy is calculated and logged; 0
	// disables it entirely.
	EntropyDepth int
}

// Driver processes one Task at a time: stat it, dispatch to directory
// enumeration or file extraction, and return the Tasks and Reports that
// produced.
type Driver struct {
	reg *handler.Registry
	scn *scanner.Scanner
	cfg Config
	log *logrus.Logger
}

// New builds a Driver over reg's handlers, using scn to locate
// candidates and log for structured diagnostics.
func New(reg *handler.Registry, scn *scanner.Scanner, cfg Config, log *logrus.Logger) *Driver {
	if len(cfg.SkipMagic) == 0 {
		cfg.SkipMagic = magic.DefaultSkip
	}

	return &Driver{reg: reg, scn: scn, cfg: cfg, log: log}
}

// Process implements scheduler.Processor.
func (d *Driver) Process(ctx context.Context, t task.Task) task.Result {
	var result task.Result

	if reason := invalidPathReason(t.Path); reason != "" {
		result.AddReport(report.New(report.InvalidPath, t.Path, errors.New(reason)))

		return result
	}

	info, err := os.Lstat(t.Path)
	if err != nil {
		result.AddReport(report.New(report.UnknownError, t.Path, err))

		return result
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		d.log.WithField("path", t.Path).Debug("ignoring symlink")

		return result
	case info.IsDir():
		return d.processDir(t)
	case info.Size() == 0:
		d.log.WithField("path", t.Path).Debug("ignoring empty file")

		return result
	}

	if t.Depth >= d.cfg.MaxDepth {
		d.log.WithFields(logrus.Fields{"path": t.Path, "depth": t.Depth}).Debug("depth limit reached")

		return result
	}

	return d.processFile(ctx, t, info.Size(), result)
}

func (d *Driver) processDir(t task.Task) task.Result {
	var result task.Result

	entries, err := os.ReadDir(t.Path)
	if err != nil {
		result.AddReport(report.New(report.UnknownError, t.Path, err))

		return result
	}

	for _, e := range entries {
		result.AddTask(task.Task{Path: filepath.Join(t.Path, e.Name()), Depth: t.Depth})
	}

	return result
}

func (d *Driver) processFile(ctx context.Context, t task.Task, size int64, result task.Result) task.Result {
	header := make([]byte, 16)

	f, err := os.Open(t.Path)
	if err != nil {
		result.AddReport(report.New(report.UnknownError, t.Path, err))

		return result
	}

	defer f.Close()

	if n, _ := f.Read(header); magic.ShouldSkip(header[:n], d.cfg.SkipMagic) {
		d.log.WithField("path", t.Path).Debug("ignoring file based on magic")

		return result
	}

	candidates, err := d.scn.Scan(t.Path)
	if err != nil {
		result.AddReport(report.New(report.ScanError, t.Path, err))

		return result
	}

	var valid []chunk.ValidChunk

	for _, c := range candidates {
		r, err := handler.NewLimitedStartReader(f, c.Offset)
		if err != nil {
			result.AddReport(report.New(report.ValidationError, t.Path, err).WithHandler(c.Handler.Name()))

			continue
		}

		vc, err := c.Handler.Validate(r, c.Offset)
		if err != nil {
			result.AddReport(report.New(report.ValidationError, t.Path, err).WithHandler(c.Handler.Name()))

			continue
		}

		if vc != nil {
			valid = append(valid, *vc)
		}
	}

	outer := chunk.OuterChunks(valid)
	gaps := chunk.Gaps(outer, size)

	if len(outer) == 0 && len(gaps) == 0 {
		d.logEntropy(t, t.Path)

		return result
	}

	extractDir := t.Path + d.cfg.Suffix

	for _, g := range gaps {
		carvedPath, err := carver.Carve(f, g.Start, g.End, extractDir, carver.UnknownName(g))
		if err != nil {
			result.AddReport(report.New(report.ExtractError, t.Path, err))

			continue
		}

		d.logEntropy(t, carvedPath)
	}

	sort.Slice(outer, func(i, j int) bool { return outer[i].Start < outer[j].Start })

	for _, vc := range outer {
		d.extractChunk(ctx, t, f, size, vc, extractDir, &result)
	}

	if t.Depth == 0 {
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			result.AddReport(report.New(report.UnknownError, t.Path, err))
		}
	}

	return result
}

func (d *Driver) extractChunk(
	ctx context.Context,
	t task.Task,
	f *os.File,
	fileSize int64,
	vc chunk.ValidChunk,
	extractDir string,
	result *task.Result,
) {
	h := d.reg.Lookup(vc.Handler)
	if h == nil {
		result.AddReport(report.New(report.ExtractError, t.Path, fmt.Errorf("no handler registered for %q", vc.Handler)))

		return
	}

	var inPath, outDir, carvedPath string

	isWholeFile := vc.Start == 0 && vc.End == fileSize
	if isWholeFile {
		inPath = t.Path
		outDir = extractDir
	} else {
		name := carver.ValidName(vc)

		cp, err := carver.Carve(f, vc.Start, vc.End, extractDir, name)
		if err != nil {
			result.AddReport(report.New(report.ExtractError, t.Path, err).WithHandler(vc.Handler))

			return
		}

		inPath = cp
		carvedPath = cp
		outDir = filepath.Join(extractDir, name+d.cfg.Suffix)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		result.AddReport(report.New(report.ExtractError, t.Path, err).WithHandler(vc.Handler))

		return
	}

	if err := h.Extract(ctx, inPath, outDir); err != nil {
		result.AddReport(report.New(report.ExtractError, t.Path, err).WithHandler(vc.Handler))
	} else if carvedPath != "" && !d.cfg.KeepChunks {
		if err := os.Remove(carvedPath); err != nil {
			d.log.WithError(err).WithField("path", carvedPath).Debug("could not remove carved chunk")
		}
	}

	result.Reports = append(result.Reports, sanitize.Sanitize(outDir)...)

	if _, err := os.Stat(outDir); err == nil {
		result.AddTask(task.Task{Path: outDir, Depth: t.Depth + 1})
	}
}

// invalidPathReason reports why path would confuse the external
// extractor binaries this driver shells out to (tar, unzip, unar,
// gzip), or "" if it's fine. A NUL byte truncates the path differently
// in Go than in the C string the binary receives; other control bytes
// routinely break naive argv/shell handling in those tools.
func invalidPathReason(path string) string {
	if strings.IndexByte(path, 0) >= 0 {
		return "path contains a NUL byte"
	}

	for _, r := range path {
		if r < 0x20 && r != '\t' {
			return fmt.Sprintf("path contains control character %U", r)
		}
	}

	return ""
}

func (d *Driver) logEntropy(t task.Task, path string) {
	if t.Depth >= d.cfg.EntropyDepth {
		return
	}

	samples, err := entropy.Calculate(path)
	if err != nil || len(samples) == 0 {
		return
	}

	min, max, sum := samples[0].Percentage, samples[0].Percentage, 0.0
	for _, s := range samples {
		if s.Percentage < min {
			min = s.Percentage
		}

		if s.Percentage > max {
			max = s.Percentage
		}

		sum += s.Percentage
	}

	d.log.WithFields(logrus.Fields{
		"path": path, "mean": sum / float64(len(samples)), "min": min, "max": max,
	}).Debug("entropy calculated")
}
