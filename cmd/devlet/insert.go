package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/presenter"
	"github.com/jingkaihe/devlet/pkg/tools"
)

// InsertOptions contains all options for the insert command
type InsertOptions struct {
	start       string
	end         string
	content     string
	contentFile string
	batch       string
	create      bool
	noBackup    bool
	json        bool
}

var insertOptions = &InsertOptions{}

var insertCmd = &cobra.Command{
	Use:   "insert <file>",
	Short: "Replace the content between two anchors in a file",
	Long: `Replace the content between a start and an end anchor in a file. When the anchors
are not found the anchored block is appended. With --batch, a YAML or JSON list of
start_anchor/end_anchor/content objects is applied in order.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := newState(viper.GetViper(), ".")
		if err != nil {
			return err
		}
		backup := !insertOptions.noBackup
		create := insertOptions.create || viper.GetBool("create_if_missing")
		out := presenter.Default()
		out.SetQuiet(insertOptions.json)

		if insertOptions.batch != "" {
			raw, err := os.ReadFile(insertOptions.batch)
			if err != nil {
				return errors.Wrap(err, "failed to read batch file")
			}
			patches, err := tools.ParseInsertions(string(raw))
			if err != nil {
				return err
			}
			res := state.Patcher().InsertMultiple(cmd.Context(), anchor.BatchRequest{
				Path:            args[0],
				Patches:         patches,
				CreateIfMissing: create,
				Backup:          backup,
			})
			if insertOptions.json {
				return printJSON(cmd.OutOrStdout(), res)
			}
			out.Batch(res)
			return res.Err
		}

		content, err := insertContent(insertOptions)
		if err != nil {
			return err
		}
		res := state.Patcher().Insert(cmd.Context(), anchor.InsertRequest{
			Path: args[0],
			Patch: anchor.Patch{
				StartAnchor: insertOptions.start,
				EndAnchor:   insertOptions.end,
				Content:     content,
			},
			CreateIfMissing: create,
			Backup:          backup,
		})
		if insertOptions.json {
			return printJSON(cmd.OutOrStdout(), res)
		}
		out.Patch(res)
		return res.Err
	},
}

func insertContent(opts *InsertOptions) (string, error) {
	if opts.contentFile == "" {
		return opts.content, nil
	}
	if opts.content != "" {
		return "", errors.New("--content and --content-file are mutually exclusive")
	}
	if opts.contentFile == "-" {
		return readInput(nil, os.Stdin, true)
	}
	b, err := os.ReadFile(opts.contentFile)
	if err != nil {
		return "", errors.Wrap(err, "failed to read content file")
	}
	return string(b), nil
}

func init() {
	flags := insertCmd.Flags()
	flags.StringVar(&insertOptions.start, "start", "", "Start anchor")
	flags.StringVar(&insertOptions.end, "end", "", "End anchor")
	flags.StringVar(&insertOptions.content, "content", "", "Content to place between the anchors")
	flags.StringVar(&insertOptions.contentFile, "content-file", "", "Read the content from a file, - for stdin")
	flags.StringVar(&insertOptions.batch, "batch", "", "YAML or JSON file with a list of insertions")
	flags.BoolVar(&insertOptions.create, "create", false, "Create the file when it does not exist")
	flags.BoolVar(&insertOptions.noBackup, "no-backup", false, "Do not write a .bak copy before modifying the file")
	flags.BoolVar(&insertOptions.json, "json", false, "Print the result as JSON")
	insertCmd.MarkFlagsMutuallyExclusive("batch", "start")
	insertCmd.MarkFlagsMutuallyExclusive("batch", "content")
}
