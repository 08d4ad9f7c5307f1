package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/virelia/sandrun/internal/engine"
	"github.com/virelia/sandrun/internal/runtime"
)

var (
	execLanguage string
	execTimeout  int
	execInputs   string
	execJSON     bool
)

var execCmd = &cobra.Command{
	Use:   "exec [file]",
	Short: "Run a code snippet in a sandboxed runtime",
	Long:  "Execute a snippet from a file, or from stdin when no file is given. The snippet passes through the risk analyzer before any runtime sees it.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExec,
}

func init() {
	execCmd.Flags().StringVarP(&execLanguage, "language", "l", engine.LanguageAuto, "Language (python, javascript, lua, shell, or auto)")
	execCmd.Flags().IntVarP(&execTimeout, "timeout", "t", 0, "Timeout in seconds (0 uses the configured default)")
	execCmd.Flags().StringVarP(&execInputs, "inputs", "i", "", "JSON object of input bindings exposed to the snippet")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "Print the full result as JSON")
}

func runExec(cmd *cobra.Command, args []string) error {
	source, err := readSource(args)
	if err != nil {
		return err
	}

	var bindings map[string]any
	if execInputs != "" {
		if err := json.Unmarshal([]byte(execInputs), &bindings); err != nil {
			return fmt.Errorf("parse --inputs: %w", err)
		}
	}

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	timeout := a.cfg.DefaultTimeout()
	if execTimeout > 0 {
		timeout = time.Duration(execTimeout) * time.Second
	}
	if timeout > a.cfg.MaxTimeout() {
		return fmt.Errorf("timeout %s exceeds the configured maximum %s", timeout, a.cfg.MaxTimeout())
	}

	res, err := a.engine.Run(context.Background(), engine.CodeRequest{
		Source:   string(source),
		Language: execLanguage,
		Timeout:  timeout,
		Bindings: bindings,
	})
	if err != nil {
		return err
	}
	return printResult(res)
}

func readSource(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func printResult(res runtime.Result) error {
	if execJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"status":      string(res.Status),
			"output":      res.Stdout,
			"error":       res.ErrorDetail,
			"line":        res.Line,
			"duration_ms": res.Duration.Milliseconds(),
			"language":    res.Language,
			"truncated":   res.Truncated,
		})
	}

	if res.Stdout != "" {
		fmt.Print(res.Stdout)
	}
	switch res.Status {
	case runtime.StatusSuccess:
		return nil
	case runtime.StatusBlocked:
		return fmt.Errorf("blocked: %s", res.ErrorDetail)
	case runtime.StatusTimeout:
		return fmt.Errorf("timeout: %s", res.ErrorDetail)
	default:
		if res.Line > 0 {
			return fmt.Errorf("error at line %d: %s", res.Line, res.ErrorDetail)
		}
		return fmt.Errorf("error: %s", res.ErrorDetail)
	}
}
