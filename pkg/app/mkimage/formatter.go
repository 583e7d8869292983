package mkimage

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes creation results to w according to format
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
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Image\t%s\n", response.Output)
		fmt.Fprintf(tw, "Size\t%d sectors (%d bytes)\n", response.Sectors, response.Bytes)
		fmt.Fprintf(tw, "Home blocks\t0x%X 0x%X 0x%X\n", response.HomeBlocks[0], response.HomeBlocks[1], response.HomeBlocks[2])
		fmt.Fprintf(tw, "Entries added\t%d\n", response.Added)
		fmt.Fprintf(tw, "File IDs in use\t%d\n", response.FileIDs)
		fmt.Fprintf(tw, "Free sectors\t%d\n", response.FreeSectors)
		fmt.Fprintf(tw, "Free map consistent\t%v\n", response.Consistent)
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
