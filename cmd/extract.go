package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/config"
	"github.com/binarysemaphore/ylex/internal/logscan"
	"github.com/binarysemaphore/ylex/internal/output"
	"github.com/binarysemaphore/ylex/internal/prompt"
	"github.com/binarysemaphore/ylex/internal/scene"
	"github.com/binarysemaphore/ylex/internal/store"
)

// extractor runs one pass of log -> JSON file.
type extractor struct {
	cfg *config.Config

	logFS   billy.Filesystem
	logName string

	outDir  string
	outName string
	writer  *output.Writer

	workFS billy.Filesystem // error.txt lands here
	dbPath string

	prompter *prompt.Prompter
	out      io.Writer
}

func newExtractor(cmd *cobra.Command, cfg *config.Config, p *prompt.Prompter) (*extractor, error) {
	logFS, _, logName, err := hostFile(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	outFS, outDir, outName, err := hostFile(outputPath)
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working dir: %w", err)
	}

	return &extractor{
		cfg:     cfg,
		logFS:   logFS,
		logName: logName,
		outDir:  outDir,
		outName: outName,
		writer: &output.Writer{
			FS:       outFS,
			Pretty:   cfg.Pretty,
			Force:    force,
			Prompter: p,
		},
		workFS:   osfs.New(wd),
		prompter: p,
		out:      cmd.OutOrStdout(),
	}, nil
}

func (x *extractor) run() error {
	logPath := x.cfg.LogPath()
	fmt.Fprintf(x.out, "Loading log file %q...\n", logPath)

	exp, data, err := logscan.Extract(x.logFS, x.logName)
	var decodeErr *logscan.DecodeError
	switch {
	case err == nil:
	case errors.Is(err, logscan.ErrNoData):
		return &ExitError{Code: 1, Err: fmt.Errorf("%s: %w", logPath, err)}
	case errors.Is(err, logscan.ErrNoExport):
		return &ExitError{Code: 1, Err: fmt.Errorf("%w, please try restarting Ylands and rerunning the export tool", err)}
	case errors.As(err, &decodeErr):
		fmt.Fprintf(x.out, "Storing raw data in %q\n", output.ErrorFile)
		if dumpErr := output.DumpRaw(x.workFS, output.ErrorFile, decodeErr.Raw); dumpErr != nil {
			return &ExitError{Code: 2, Err: errors.Join(err, dumpErr)}
		}
		return &ExitError{Code: 2, Err: err}
	default:
		return err
	}

	fmt.Fprintf(x.out, "Found %s exported data\n", exp.Kind)
	logger.Debugw("export located",
		"kind", exp.Kind,
		"start_line", exp.StartLine,
		"end_line", exp.EndLine,
		"bytes", len(exp.Raw))

	nested := false
	if exp.Kind == logscan.KindScene && x.cfg.NestScene {
		fmt.Fprintf(x.out, "Reformat %s JSON from flat to nested...\n", exp.Kind)
		tree, err := scene.NestValue(data)
		if err != nil {
			fmt.Fprintf(x.out, "Failed to reformat data: %v\n", err)
			if !x.continueFlat() {
				return &ExitError{Code: 3, Err: fmt.Errorf("abort: %w", err)}
			}
		} else {
			data = tree
			nested = true
		}
	}

	fmt.Fprintf(x.out, "Writing JSON to file %q...\n", filepath.Join(x.outDir, x.outName))
	written, err := x.writer.Write(x.outName, data)
	if errors.Is(err, output.ErrAborted) {
		fmt.Fprintln(x.out, "Abort write and exit")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(x.out, "JSON for %s written to %q\n", exp.Kind, filepath.Join(x.outDir, written))

	if x.dbPath != "" {
		if err := x.index(exp.Kind, data, nested); err != nil {
			return err
		}
	}
	return nil
}

func (x *extractor) continueFlat() bool {
	if x.prompter == nil {
		return false
	}
	ok, err := x.prompter.Confirm("Failed to reformat data, continue without nesting?")
	return err == nil && ok
}

func (x *extractor) index(kind logscan.Kind, data any, nested bool) error {
	if kind != logscan.KindScene {
		logger.Infow("skipping index, not a scene", "kind", kind)
		return nil
	}
	tree, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("index %s: %w", x.dbPath, scene.ErrNotObject)
	}
	n, err := store.IndexScene(x.dbPath, tree)
	if err != nil {
		return fmt.Errorf("index %s: %w", x.dbPath, err)
	}
	logger.Infow("scene indexed", "db", x.dbPath, "entities", n, "nested", nested)
	fmt.Fprintf(x.out, "Indexed %d entities into %q\n", n, x.dbPath)
	return nil
}
