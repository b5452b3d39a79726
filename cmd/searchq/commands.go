package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"telemetry_search/query"
)

// errIssues is returned by lint when the query has structural problems.
var errIssues = errors.New("query has issues")

// options holds the flags shared by every subcommand.
type options struct {
	json bool
}

// editFile is the layout of the file read by "searchq edit".
type editFile struct {
	Edits []query.Edit `yaml:"edits"`
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "searchq",
		Short: "Format, inspect and edit search queries",
		Long: `searchq works on search query text such as

  browser:Chrome (level:error OR level:fatal) "connection reset"

The query is taken from the last argument or, when omitted, from stdin.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Print the full result as JSON")

	root.AddCommand(
		newFormatCmd(opts),
		newKeysCmd(opts),
		newValuesCmd(opts),
		newRemoveCmd(opts),
		newSetCmd(opts),
		newLintCmd(opts),
		newEditCmd(opts),
	)
	return root
}

func newFormatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "format [QUERY]",
		Short: "Print the canonical form of a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			return printResult(cmd, opts, query.Compile(raw))
		},
	}
}

func newKeysCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [QUERY]",
		Short: "List the filter keys used by a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			expr := query.Parse(raw)
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), expr.FilterKeys())
			}
			return printLines(cmd.OutOrStdout(), expr.FilterKeys())
		},
	}
}

func newValuesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "values KEY [QUERY]",
		Short: "List the values of one filter key",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readQuery(cmd, args[1:])
			if err != nil {
				return err
			}
			values := query.Parse(raw).FilterValues(args[0])
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), values)
			}
			return printLines(cmd.OutOrStdout(), values)
		},
	}
}

func newRemoveCmd(opts *options) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "remove KEY [QUERY]",
		Short: "Remove a filter, or one of its values with --value",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readQuery(cmd, args[1:])
			if err != nil {
				return err
			}
			expr := query.Parse(raw)
			if cmd.Flags().Changed("value") {
				expr.RemoveFilterValue(args[0], value)
			} else {
				expr.RemoveFilter(args[0])
			}
			return printResult(cmd, opts, query.Summarize(expr))
		},
	}
	cmd.Flags().StringVar(&value, "value", "", "Remove only this value")
	return cmd
}

func newSetCmd(opts *options) *cobra.Command {
	var (
		operator string
		rawQuery string
	)

	cmd := &cobra.Command{
		Use:   "set KEY VALUE...",
		Short: "Replace every filter on KEY with the given values",
		Long: `set replaces every filter on KEY with one filter per VALUE. The query is
read from --query or stdin, since all positional arguments are values.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := rawQuery
			if !cmd.Flags().Changed("query") {
				var err error
				if raw, err = readQuery(cmd, nil); err != nil {
					return err
				}
			}
			expr := query.Parse(raw)
			edit := query.Edit{
				Op:       query.EditSetFilter,
				Key:      args[0],
				Values:   args[1:],
				Operator: query.Operator(operator),
			}
			if err := expr.Apply(edit); err != nil {
				return err
			}
			return printResult(cmd, opts, query.Summarize(expr))
		},
	}
	cmd.Flags().StringVar(&operator, "operator", string(query.OpEquals), "equals, contains, starts_with or ends_with")
	cmd.Flags().StringVarP(&rawQuery, "query", "q", "", "Query to edit")
	return cmd
}

func newLintCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [QUERY]",
		Short: "Report structural problems in a query",
		Long:  "lint prints one line per issue and exits non-zero when any are found.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			result := query.Compile(raw)
			if opts.json {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				for _, issue := range result.Issues {
					fmt.Fprintln(cmd.OutOrStdout(), issue.String())
				}
			}
			if !result.Valid {
				return fmt.Errorf("%w: %d found", errIssues, len(result.Issues))
			}
			return nil
		},
	}
}

func newEditCmd(opts *options) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "edit --file EDITS.yaml [QUERY]",
		Short: "Apply a list of edits from a YAML file",
		Long: `edit applies edits in order. The file looks like:

  edits:
    - op: remove_filter
      key: level
    - op: set_filter
      key: browser
      values: [Firefox]`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := loadEdits(path)
			if err != nil {
				return err
			}
			raw, err := readQuery(cmd, args)
			if err != nil {
				return err
			}
			expr := query.Parse(raw)
			if err := expr.Apply(edits...); err != nil {
				return err
			}
			return printResult(cmd, opts, query.Summarize(expr))
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "YAML file with the edits to apply")
	cmd.MarkFlagRequired("file")
	return cmd
}

// loadEdits reads an edit file.
func loadEdits(path string) ([]query.Edit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read edits: %w", err)
	}
	var f editFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f.Edits, nil
}

// readQuery returns the query argument, or stdin when there is none.
func readQuery(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func printResult(cmd *cobra.Command, opts *options, result *query.Result) error {
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), result.Query)
	return err
}

func printLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
