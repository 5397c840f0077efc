package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/output"
	"github.com/binarysemaphore/ylex/internal/scene"
)

var nestPretty bool

var nestCmd = &cobra.Command{
	Use:   "nest [scene.json]",
	Short: "Nest a flat exported scene file by parent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcFS, _, srcName, err := hostFile(args[0])
		if err != nil {
			return err
		}
		raw, err := util.ReadFile(srcFS, srcName)
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		flat, err := output.Decode(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		tree, err := scene.NestValue(flat)
		if err != nil {
			return err
		}

		outFS, outDir, outName, err := hostFile(outputPath)
		if err != nil {
			return err
		}
		w := &output.Writer{
			FS:       outFS,
			Pretty:   nestPretty,
			Force:    force,
			Prompter: newPrompter(cmd),
		}
		written, err := w.Write(outName, tree)
		if errors.Is(err, output.ErrAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "Abort write and exit")
			return nil
		}
		if err != nil {
			return err
		}

		logger.Debugw("scene nested", "source", args[0], "roots", len(tree))
		fmt.Fprintf(cmd.OutOrStdout(), "Nested scene written to %q\n", filepath.Join(outDir, written))
		return nil
	},
}

func init() {
	nestCmd.Flags().BoolVar(&nestPretty, "pretty", false, "Indent output by four spaces")
	rootCmd.AddCommand(nestCmd)
}
