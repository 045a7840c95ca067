package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/g2gml/pg/neo"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <table>",
		Short: "Print the columns and row count of a generated table",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usageError("expected exactly one table, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0])
		},
	}
}

// inspect prints a table's header columns followed by its row count
func inspect(out io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := neo.NewReader(f)
	cols, err := r.Header()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(out, "%s\n", path)
	for i, c := range cols {
		name := neo.Quote(c.Name)
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "  %3d  %-24s %s\n", i+1, name, c.Type)
	}

	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rows++
	}
	fmt.Fprintf(out, "rows: %d\n", rows)
	return nil
}
