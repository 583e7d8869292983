package freemap

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-agcfs/pkg/app"
)

// FormatOutput writes simulation results to w according to format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func joinExtents(list []app.Extent) string {
	parts := make([]string, 0, len(list))
	for _, e := range list {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, " ")
}

func formatTable(w io.Writer, response *Response) error {
	fmt.Fprintf(w, "Free list: %s (capacity %d)\n", response.Source, response.Capacity)
	fmt.Fprintf(w, "Initial: %s\n\n", joinExtents(response.Initial))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "OPERATION\tRESULT\tENTRIES\tFREE\n")
	for _, s := range response.Steps {
		result := joinExtents(s.Allocated)
		if s.Error != "" {
			result = fmt.Sprintf("%s [%s] %s", result, s.Code, s.Error)
		}
		if result == "" {
			result = "ok"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.Operation, strings.TrimSpace(result), s.Entries, s.FreeSectors)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nFinal: %s\n", joinExtents(response.Final))
	fmt.Fprintf(w, "%d free sectors\n", response.FreeSectors)
	return nil
}
