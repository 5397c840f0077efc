package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/util"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/binarysemaphore/ylex/internal/output"
	"github.com/binarysemaphore/ylex/internal/query"
	"github.com/binarysemaphore/ylex/internal/scene"
	"github.com/binarysemaphore/ylex/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query [file.json|scene.db] [jsonpath]",
	Short: "Print the values a JSONPath selects, one JSON document per line",
	Example: `  ylex query out.json '$..[?(@.type == "block")].name'
  ylex query scene.db '$.*.children'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := loadDocument(args[0])
		if err != nil {
			return err
		}
		matches, err := query.Select(data, args[1])
		if err != nil {
			return err
		}

		opts := ojg.DefaultOptions
		opts.Sort = true
		for _, m := range matches {
			fmt.Fprintln(cmd.OutOrStdout(), oj.JSON(m.Value(), &opts))
		}
		logger.Debugw("query done", "source", args[0], "matches", len(matches))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// loadDocument reads a JSON file, or rebuilds the nested scene from an index
// written with --db.
func loadDocument(path string) (any, error) {
	if strings.EqualFold(filepath.Ext(path), ".db") {
		flat, err := store.LoadFlat(path)
		if err != nil {
			return nil, err
		}
		return scene.Nest(flat)
	}

	fsys, _, name, err := hostFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := util.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	data, err := output.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return data, nil
}
