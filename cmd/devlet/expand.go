package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/devlet/pkg/directive"
	"github.com/jingkaihe/devlet/pkg/tools"
)

var expandTo string

var expandCmd = &cobra.Command{
	Use:   "expand [text...]",
	Short: "Expand inline directives against the built-in tools",
	Long: `Expand every "@/name args" directive in the text by running the named tool and
splicing " --> result" after its arguments. The text is read from stdin when piped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(args, os.Stdin, stdinPiped())
		if err != nil {
			return err
		}
		state, err := newState(viper.GetViper(), expandTo)
		if err != nil {
			return err
		}

		scanner := directive.NewScanner(
			directive.WithPrefix(viper.GetString("directive.prefix")),
			directive.WithSkipUnknown(viper.GetBool("directive.skip_unknown")),
		)
		expansion, err := scanner.Expand(cmd.Context(), text, tools.DefaultRegistry().DirectiveTable(state))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), expansion.Text)
		return nil
	},
}

func init() {
	expandCmd.Flags().StringVar(&expandTo, "to", ".", "Directory relative paths resolve against")
}
