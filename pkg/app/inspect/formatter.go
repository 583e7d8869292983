package inspect

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// FormatOutput writes inspection results to w according to format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		return formatJSON(w, response)
	case "yaml":
		return formatYAML(w, response)
	case "table":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable prints every section present in the response
func formatTable(w io.Writer, response *Response) error {
	if response.Home != nil {
		formatHome(w, response.Home)
	}
	if response.Index != nil {
		fmt.Fprintf(w, "\nIndex (%d in use)\n", len(response.Index))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "FID\tNAME\tLBA0\tLBA1\tLBA2\n")
		for _, slot := range response.Index {
			fmt.Fprintf(tw, "%d\t%s\t0x%08X\t0x%08X\t0x%08X\n", slot.FileID, slot.Name, slot.LBAs[0], slot.LBAs[1], slot.LBAs[2])
		}
		tw.Flush()
	}
	if response.FreeMap != nil {
		fm := response.FreeMap
		fmt.Fprintf(w, "\nFree map (%d of %d entries, %d free sectors)\n", len(fm.Entries), fm.Capacity, fm.FreeSectors)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "START\tEND\tLENGTH\n")
		for _, e := range fm.Entries {
			fmt.Fprintf(tw, "0x%08X\t0x%08X\t%d\n", e.Start, e.Start+e.Length-1, e.Length)
		}
		tw.Flush()
	}
	if response.Directory != nil {
		fmt.Fprintf(w, "\nDirectory %s (fid %d)\n", response.Directory.Path, response.Directory.FileID)
		formatFiles(w, response.Directory.Entries)
	}
	if response.Lookup != nil {
		fmt.Fprintf(w, "\nLookup %s\n", response.Lookup.Path)
		formatFiles(w, []FileInfo{*response.Lookup})
	}
	if response.Tree != nil {
		fmt.Fprintf(w, "\nTree\n")
		for _, e := range response.Tree {
			name := e.Name
			if e.Depth == 0 {
				name = e.Path
			}
			if e.Type == "DIR" && e.Depth > 0 {
				name += "/"
			}
			fmt.Fprintf(w, "%s%s (fid %d, %d bytes)\n", strings.Repeat("  ", e.Depth), name, e.FileID, e.Size)
		}
	}

	fmt.Fprintf(w, "\nSession %s, %v\n", response.SessionID, response.ElapsedTime)
	return nil
}

func formatHome(w io.Writer, home *HomeInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "Home block\n")
	fmt.Fprintf(tw, "  copy used\t%d (LBAs 0x%X 0x%X 0x%X)\n", home.Copy, home.LBAs[0], home.LBAs[1], home.LBAs[2])
	fmt.Fprintf(tw, "  valid / matching\t%s / %s\n", home.Valid, home.Matching)
	for _, e := range home.CopyErrors {
		fmt.Fprintf(tw, "  rejected\t%s\n", e)
	}
	fmt.Fprintf(tw, "  version\t%s\n", home.Version)
	fmt.Fprintf(tw, "  checksum\t0x%08X (computed 0x%08X)\n", home.Checksum, home.ComputedChecksum)
	fmt.Fprintf(tw, "  max lba\t0x%08X\n", home.MaxLBA)
	fmt.Fprintf(tw, "  def extend\t%d\n", home.DefExtend)
	fmt.Fprintf(tw, "  features / options\t0x%08X / 0x%08X\n", home.Features, home.Options)
	fmt.Fprintf(tw, "  update in progress\t%v\n", home.UpdateInProgress)
	fmt.Fprintf(tw, "  created\t%s\n", home.Created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "  modified\t%s\n", home.Modified.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(tw, "  index.sys\t0x%X 0x%X 0x%X\n", home.Index[0], home.Index[1], home.Index[2])
	fmt.Fprintf(tw, "  journal.sys\t0x%X 0x%X 0x%X\n", home.Journal[0], home.Journal[1], home.Journal[2])
}

func formatFiles(w io.Writer, files []FileInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "FID\tGEN\tTYPE\tSIZE\tCLUSTERS\tCOPIES\tMODIFIED\tNAME\n")
	for _, f := range files {
		if f.Error != "" {
			fmt.Fprintf(tw, "%d\t%d\t%s\t-\t-\t-\t-\t%s (%s)\n", f.FileID, f.Generation, f.Type, f.Name, f.Error)
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%d\t%d\t%s\t%s\n", f.FileID, f.Generation, f.Type, f.Size, f.Clusters,
			f.Copies, f.Modified.Format("2006-01-02 15:04"), f.Name)
		for i, list := range f.Extents {
			parts := make([]string, 0, len(list))
			for _, e := range list {
				parts = append(parts, e.String())
			}
			fmt.Fprintf(tw, "\t\t\t\t\t\t\t  copy %d: %s\n", i, strings.Join(parts, " "))
		}
	}
}

// formatJSON formats results as JSON
func formatJSON(w io.Writer, response *Response) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// formatYAML formats results as YAML
func formatYAML(w io.Writer, response *Response) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(response)
}
