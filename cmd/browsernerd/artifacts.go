package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"browsernerd/internal/artifacts"

	"github.com/spf13/cobra"
)

var (
	listKind  string
	listLimit int
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect recorded screenshots, traces and videos",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts from the index, newest first",
	RunE:  listArtifacts,
}

func listArtifacts(cmd *cobra.Command, args []string) error {
	switch artifacts.Kind(listKind) {
	case "", artifacts.KindScreenshot, artifacts.KindTrace, artifacts.KindVideo:
	default:
		return fmt.Errorf("unknown artifact kind %q (expected screenshot, trace or video)", listKind)
	}

	path := cfg.IndexFile()
	if path == "" {
		return fmt.Errorf("artifact index is disabled (artifacts.index_path is empty)")
	}
	idx, err := artifacts.OpenIndex(path)
	if err != nil {
		return err
	}
	defer idx.Close()

	recs, err := idx.List(context.Background(), artifacts.Kind(listKind), listLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(recs) == 0 {
		fmt.Fprintln(out, "No artifacts recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tKIND\tCOMMAND\tSESSION\tPATH")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.UTC().Format(time.RFC3339), r.Kind, r.Command, shortID(r.SessionID), r.Path)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
