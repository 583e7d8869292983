package extract

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes extraction results to w according to format
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

func formatTable(w io.Writer, response *Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "SOURCE\tFID\tSIZE\tDESTINATION\n")
	for _, f := range response.Files {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", f.Source, f.FileID, f.Size, f.Destination)
	}
	tw.Flush()

	for _, f := range response.Failures {
		fmt.Fprintf(w, "FAILED %s [%s]: %s\n", f.Source, f.Code, f.Error)
	}
	fmt.Fprintf(w, "\nExtracted %d files (%d bytes), %d directories in %v\n",
		len(response.Files), response.TotalBytes, response.Directories, response.ElapsedTime)
	return nil
}
