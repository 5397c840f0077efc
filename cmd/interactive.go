package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/prompt"
)

// newPrompter returns nil when the run must not ask questions: --no-input
// was given or stdin is a file or pipe rather than a terminal.
func newPrompter(cmd *cobra.Command) *prompt.Prompter {
	if noInput {
		return nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		fd := f.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return nil
		}
	}
	return prompt.New(in, cmd.OutOrStdout())
}
