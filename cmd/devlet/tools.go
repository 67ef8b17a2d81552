package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/devlet/pkg/tools"
)

var showSchema bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools replies and directives can call",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		for _, tool := range tools.DefaultRegistry().Tools() {
			summary, _, _ := strings.Cut(strings.TrimSpace(tool.Description()), "\n")
			fmt.Fprintf(w, "%-16s %s\n", tool.Name(), summary)
			if args := tool.Positional(); len(args) > 0 {
				fmt.Fprintf(w, "%-16s @/%s %s\n", "", tool.Name(), strings.Join(args, " "))
			}
			if showSchema {
				b, err := json.MarshalIndent(tool.GenerateSchema(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\n", b)
			}
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&showSchema, "schema", false, "Print the JSON schema of each tool")
}
