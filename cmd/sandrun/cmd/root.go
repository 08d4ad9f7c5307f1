package cmd

import (
	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "sandrun",
	Short: "sandrun - sandboxed code execution and tool calling",
	Long:  `sandrun runs untrusted code snippets in restricted runtimes behind a static risk analyzer, and exposes a registry of typed, cached tools.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (default ~/.sandrun/config.yaml)")

	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(versionCmd)
}
