package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"rill/internal/diag"
	"rill/internal/diagfmt"
	"rill/internal/driver"
	"rill/internal/observ"
	"rill/internal/project"
	"rill/internal/source"
	"rill/internal/tir"
)

var (
	analyzeJSON    bool
	analyzeJobs    int
	analyzeNoCache bool
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit diagnostics as JSON")
	analyzeCmd.Flags().IntVar(&analyzeJobs, "jobs", 0, "number of parallel workers (0 = from rill.toml or CPU count)")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "disable the on-disk analysis cache")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <snapshot.rsn | dir>",
	Short: "Run memory analysis over typed-tree snapshots",
	Long: `Analyze reads typed-tree snapshots (*.rsn) produced by the type
checker, infers ownership and lifetimes for every function, and reports
memory violations. A clean module prints nothing and exits zero.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// listSnapshots returns the sorted *.rsn files under target; target may
// also name a single snapshot file.
func listSnapshots(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{target}, nil
	}
	var files []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".rsn") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// reportFailure renders an I/O or configuration failure through the same
// diagnostic pipeline as analysis findings, anchored at the failing file.
func reportFailure(cmd *cobra.Command, path string, code diag.Code, err error) {
	fileSet := source.NewFileSet()
	id := fileSet.AddVirtual(path, nil)
	bag := diag.NewBag(1)
	bag.Add(diag.NewError(code, source.Span{File: id}, err.Error()))
	renderBag(cmd, bag, fileSet)
}

func renderBag(cmd *cobra.Command, bag *diag.Bag, fileSet *source.FileSet) {
	if analyzeJSON {
		_ = diagfmt.JSON(cmd.OutOrStdout(), bag, fileSet, diagfmt.JSONOpts{
			IncludePositions: true,
			PathMode:         diagfmt.PathModeRelative,
			IncludeNotes:     true,
		})
		return
	}
	colorMode, _ := cmd.Flags().GetString("color")
	diagfmt.Pretty(cmd.OutOrStdout(), bag, fileSet, diagfmt.PrettyOpts{
		Color:     useColor(colorMode, os.Stdout),
		PathMode:  diagfmt.PathModeRelative,
		ShowNotes: true,
	})
}

// snapshotFailureCode maps a load error to its diagnostic code.
func snapshotFailureCode(err error) diag.Code {
	switch {
	case errors.Is(err, tir.ErrSnapshotSchema):
		return diag.IOSnapshotSchema
	case errors.Is(err, tir.ErrSnapshotDecode):
		return diag.IOSnapshotDecode
	default:
		return diag.IOLoadFileError
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	target := args[0]

	snapshots, err := listSnapshots(target)
	if err != nil {
		return err
	}
	if len(snapshots) == 0 {
		return fmt.Errorf("no *.rsn snapshots under %s", target)
	}

	startDir := target
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		startDir = filepath.Dir(target)
	}
	mem := project.DefaultMemoryConfig()
	cacheDir := filepath.Join(startDir, mem.CacheDir)
	if manifest, ok, err := project.LoadManifest(startDir); err != nil {
		code := diag.PrjManifestParse
		if errors.Is(err, project.ErrManifestInvalid) {
			code = diag.PrjManifestInvalid
		}
		anchor := filepath.Join(startDir, "rill.toml")
		if p, found, ferr := project.FindRillToml(startDir); ferr == nil && found {
			anchor = p
		}
		reportFailure(cmd, anchor, code, err)
		return errors.New("memory analysis failed")
	} else if ok {
		mem = manifest.Config.Memory
		cacheDir = manifest.CachePath()
	}

	maxDiags, _ := cmd.Flags().GetInt("max-diagnostics")
	if maxDiags <= 0 {
		maxDiags = mem.MaxDiagnostics
	}
	jobs := analyzeJobs
	if jobs <= 0 {
		jobs = mem.Jobs
	}

	var cache *driver.DiskCache
	if mem.Cache && !analyzeNoCache {
		cache, err = driver.OpenDiskCache(cacheDir)
		if err != nil {
			return fmt.Errorf("open analysis cache: %w", err)
		}
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	timings, _ := cmd.Flags().GetBool("timings")

	var timer *observ.Timer
	if timings {
		timer = observ.NewTimer()
	}

	errorCount, warningCount := 0, 0
	failed := false
	for _, path := range snapshots {
		var loadPhase int
		if timer != nil {
			loadPhase = timer.Begin("load " + filepath.Base(path))
		}
		snap, fileSet, err := driver.LoadSnapshot(path)
		if timer != nil {
			timer.End(loadPhase, "")
		}
		if err != nil {
			reportFailure(cmd, path, snapshotFailureCode(err), err)
			errorCount++
			continue
		}
		fileSet.SetBaseDir(startDir)

		result, err := driver.AnalyzeModule(cmd.Context(), &snap.Module, driver.Options{
			MaxDiagnostics: maxDiags,
			Jobs:           jobs,
			Cache:          cache,
			Timer:          timer,
		})
		if err != nil {
			return err
		}

		renderBag(cmd, result.Bag, fileSet)

		for _, d := range result.Bag.Items() {
			if d.Severity.Fails(mem.WarningsAsErrors) {
				failed = true
			}
			switch {
			case d.Severity >= diag.SevError:
				errorCount++
			case d.Severity == diag.SevWarning:
				warningCount++
			}
		}
	}

	if timer != nil {
		if analyzeJSON {
			enc := json.NewEncoder(cmd.ErrOrStderr())
			enc.SetIndent("", "  ")
			_ = enc.Encode(timer.Report())
		} else {
			fmt.Fprint(cmd.ErrOrStderr(), timer.Summary())
		}
	}
	if !quiet && !analyzeJSON && (errorCount > 0 || warningCount > 0) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d error(s), %d warning(s)\n", errorCount, warningCount)
	}

	if errorCount > 0 || failed {
		return errors.New("memory analysis failed")
	}
	return nil
}
