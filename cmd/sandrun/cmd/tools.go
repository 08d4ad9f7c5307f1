package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/virelia/sandrun/internal/tools"
)

var toolArgsFlag string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and invoke registered tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered tool",
	RunE:  runToolsList,
}

var toolsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search tools by name, tag, or description",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsSearch,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Invoke a tool",
	Long:  "Invoke a registered tool. Arguments are passed as a JSON object or array via --args.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToolsCall,
}

func init() {
	toolsCallCmd.Flags().StringVarP(&toolArgsFlag, "args", "a", "", `Arguments as JSON, e.g. '{"a": 2, "b": 3}' or '[2, 3]'`)

	toolsCmd.AddCommand(toolsListCmd)
	toolsCmd.AddCommand(toolsSearchCmd)
	toolsCmd.AddCommand(toolsCallCmd)
}

func runToolsList(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	printDefinitions(a.registry.List())
	return nil
}

func runToolsSearch(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	matches := a.registry.Search(args[0])
	if len(matches) == 0 {
		fmt.Println("no tools match")
		return nil
	}
	printDefinitions(matches)
	return nil
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	var callArgs any
	if toolArgsFlag != "" {
		if err := json.Unmarshal([]byte(toolArgsFlag), &callArgs); err != nil {
			return fmt.Errorf("parse --args: %w", err)
		}
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	value, err := a.executor.Call(context.Background(), args[0], callArgs)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func printDefinitions(defs []tools.Definition) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tPARAMETERS\tDESCRIPTION")
	for _, def := range defs {
		params := make([]string, 0, len(def.Params))
		for _, p := range def.Params {
			name := p.Name
			if p.Required {
				name += "*"
			}
			params = append(params, fmt.Sprintf("%s:%s", name, p.Type))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			def.Name, def.Category, strings.Join(params, ", "), def.Description)
	}
	w.Flush()
}
