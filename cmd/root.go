package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/config"
	"github.com/binarysemaphore/ylex/internal/log"
	"github.com/binarysemaphore/ylex/internal/output"
	"github.com/binarysemaphore/ylex/internal/prompt"
)

var (
	outputPath string
	configPath string
	dbPath     string
	force      bool
	verbose    bool
	logJSON    bool
	noInput    bool

	logger = log.NewNop()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", output.DefaultFile, "Output JSON file")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultFile, "Config file (.json, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Overwrite the output file without asking")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON lines")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false, "Never prompt; invalid config or existing output is an error")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Also index the nested scene into this SQLite database")
}

var rootCmd = &cobra.Command{
	Use:   "ylex",
	Short: "Extract Ylands block and scene exports from the userscript log",
	Long: `ylex pulls the most recent EXPORTBLOCKDEFS or EXPORTSCENE payload out of
Ylands' userscript log, repairs it into JSON and writes it to a file. Scene
exports are nested by parent when "Auto Nest Scenes" is enabled.

Example config.json:
{
    "Ylands Install Location": "C:\\Program Files (x86)\\Steam\\steamapps\\common\\Ylands",
    "Log Location": "Ylands_Data\\log_userscript_ct.txt",
    "Auto Nest Scenes": true,
    "Output Pretty": false
}`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := log.NewLogger(logJSON, verbose)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p := newPrompter(cmd)
		cfg, err := resolveConfig(cmd, p)
		if err != nil {
			return err
		}
		x, err := newExtractor(cmd, cfg, p)
		if err != nil {
			return err
		}
		x.dbPath = dbPath
		return x.run()
	},
}

// ExitError carries the process exit status of a failed run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			if exit.Err != nil {
				fmt.Fprintln(os.Stderr, exit.Err)
			}
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// hostFile opens the directory holding path as a billy filesystem and returns
// it with the directory and the file's base name.
func hostFile(path string) (billy.Filesystem, string, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", "", fmt.Errorf("resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)
	return osfs.New(dir), dir, filepath.Base(abs), nil
}

// resolveConfig loads .env and the config file, prompting for invalid values
// when p is not nil.
func resolveConfig(cmd *cobra.Command, p *prompt.Prompter) (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	fsys, _, name, err := hostFile(configPath)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Loading config file %q...\n", configPath)
	r := &config.Resolver{
		FS:       fsys,
		Path:     name,
		Prompter: p,
		Out:      cmd.OutOrStdout(),
		Lookup:   os.LookupEnv,
	}
	cfg, err := r.Resolve()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	logger.Debugw("config loaded",
		"install_dir", cfg.InstallDir,
		"log", cfg.LogPath(),
		"nest", cfg.NestScene,
		"pretty", cfg.Pretty)
	return cfg, nil
}
