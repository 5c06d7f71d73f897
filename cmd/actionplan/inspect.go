package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"actionplan/internal/workbook"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Print every row of the active sheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return inspect(cmd.OutOrStdout(), data)
	},
}

func inspect(w io.Writer, data []byte) error {
	wb, err := workbook.Open(data)
	if err != nil {
		return err
	}
	defer func() { _ = wb.Close() }()

	fmt.Fprintf(w, "Feuille active: %s\n", wb.SheetName())
	it := wb.Rows(1, 0)
	for it.Next() {
		fmt.Fprintf(w, "Ligne %d: [%s]\n", it.Row(), formatRow(it.Values()))
	}
	return it.Err()
}

func formatRow(values []workbook.Scalar) string {
	parts := make([]string, len(values))
	for i, v := range values {
		switch v.Kind {
		case workbook.Null:
			parts[i] = "null"
		case workbook.String:
			parts[i] = strconv.Quote(v.Str)
		default:
			parts[i] = v.String()
		}
	}
	return strings.Join(parts, ", ")
}
