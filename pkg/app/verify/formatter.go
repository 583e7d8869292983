package verify

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes verification results to w according to format
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

func status(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

func formatTable(w io.Writer, response *Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	home := response.HomeBlock
	fmt.Fprintf(tw, "CHECK\tSTATUS\tDETAIL\n")
	fmt.Fprintf(tw, "home block\t%s\tcopy %d, valid %s, matching %s\n",
		status(len(home.Rejected) == 0 && home.Matching == "111"), home.Copy, home.Valid, home.Matching)
	fm := response.FreeMap
	fmt.Fprintf(tw, "free map\t%s\t%d used runs (%d sectors), merged into %d entries, expected %s\n",
		status(fm.Consistent), fm.UsedRuns, fm.UsedSectors, len(fm.Merged), fm.Expected)
	fmt.Fprintf(tw, "tree\t%s\t%d directories, %d files, %d orphans\n",
		status(len(response.Tree.Orphans) == 0), response.Tree.Directories, response.Tree.Files, len(response.Tree.Orphans))
	tw.Flush()

	for _, r := range home.Rejected {
		fmt.Fprintf(w, "  rejected home block %s\n", r)
	}
	for _, c := range fm.Conflicts {
		fmt.Fprintf(w, "  conflict: %s claims %s: %s\n", c.Owner, c.Extent, c.Error)
	}
	for _, u := range fm.Unreadable {
		fmt.Fprintf(w, "  unreadable header: fid %d: %s\n", u.FileID, u.Error)
	}
	for _, fid := range response.Tree.Orphans {
		fmt.Fprintf(w, "  orphan: fid %d\n", fid)
	}

	c := response.Capacity
	fmt.Fprintf(w, "\n%d of %d blocks free (%d available), %d of %d file ids free\n", c.BFree, c.Blocks, c.BAvail, c.FFree, c.Files)
	if response.Healthy {
		fmt.Fprintf(w, "Volume is healthy\n")
	} else {
		fmt.Fprintf(w, "Volume is NOT healthy\n")
	}
	return nil
}
