package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"radreject/internal/domain/reject"
	"radreject/internal/errs"
)

func outputFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return "", fmt.Errorf("unsupported format %q (expected: text or json)", format)
	}
	return format, nil
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", "text", "Output format: text|json")
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(value); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

// newTable writes aligned columns; callers must Flush.
func newTable(cmd *cobra.Command, header ...string) *tabwriter.Writer {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(header, "\t"))
	return w
}

func monthFlag(cmd *cobra.Command, name string) (reject.Month, error) {
	raw, _ := cmd.Flags().GetString(name)
	month, err := reject.ParseMonth(raw)
	if err != nil {
		return reject.Month{}, fmt.Errorf("--%s: %w", name, err)
	}
	return month, nil
}

func optionalMonthFlag(cmd *cobra.Command, name string) (*reject.Month, error) {
	raw, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	month, err := monthFlag(cmd, name)
	if err != nil {
		return nil, err
	}
	return &month, nil
}

func valueOr(value *string, fallback string) string {
	if value == nil || *value == "" {
		return fallback
	}
	return *value
}
