package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON writes v to the command's stdout as indented JSON.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
