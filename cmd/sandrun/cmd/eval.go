package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/virelia/sandrun/internal/runtime"
)

var evalLanguage string

var evalCmd = &cobra.Command{
	Use:   "eval <expression>",
	Short: "Evaluate a single expression",
	Long:  "Evaluate one expression in the reduced-risk expression mode, with a tight timeout. Useful as a calculator.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalLanguage, "language", "l", "lua", "Language with an expression mode")
}

func runEval(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Eval(context.Background(), evalLanguage, args[0])
	if err != nil {
		return err
	}
	if res.Status != runtime.StatusSuccess {
		return fmt.Errorf("%s: %s", res.Status, res.ErrorDetail)
	}
	fmt.Println(res.Stdout)
	return nil
}
