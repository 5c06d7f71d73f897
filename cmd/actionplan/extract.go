package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Extract metadata and findings from a workbook and print them as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args[0], func(a *app, doc []byte) (any, error) {
			ext, err := a.svc.Preview(cmd.Context(), doc)
			if err != nil {
				return nil, err
			}
			return previewOutput{Metadata: ext.Metadata, Findings: ext.Findings, Count: len(ext.Findings)}, nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a workbook into the configured gateway",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDocument(cmd, args[0], func(a *app, doc []byte) (any, error) {
			return a.svc.Import(cmd.Context(), doc)
		})
	},
}

type previewOutput struct {
	Metadata any `json:"metadata"`
	Findings any `json:"findings"`
	Count    int `json:"count"`
}

// runDocument reads path, wires the backends and prints fn's result as JSON.
func runDocument(cmd *cobra.Command, path string, fn func(a *app, doc []byte) (any, error)) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(a, doc)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
