package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raumwerk/standort-cli/internal/fetch"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "Manage the federal datasets",
	Long:  "Commands for downloading and inspecting the transit quality table and the stop registry used by the scoring lookups.",
}

var datasetsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the configured datasets",
	Long: `Download the transit quality table and the stop registry into the
data directory.

HTTP sources keep an ETag sidecar so unchanged datasets are skipped on the
next sync; ftp:// URLs are downloaded unconditionally.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("datasets"); err != nil {
			return err
		}
		log := zap.L().With(zap.String("command", "datasets.sync"))

		if err := os.MkdirAll(cfg.Datasets.Dir, 0o755); err != nil {
			return eris.Wrapf(err, "datasets sync: create data dir %s", cfg.Datasets.Dir)
		}

		syncer := fetch.NewSyncer(cfg.Datasets.Dir, cfg.Datasets.HTTPOptions(), cfg.Datasets.FTPOptions())

		log.Info("syncing datasets", zap.String("dir", cfg.Datasets.Dir))

		results, err := syncer.Sync(ctx, cfg.Datasets.All())
		formatSyncResults(os.Stdout, results)
		if err != nil {
			return eris.Wrap(err, "datasets sync")
		}

		fmt.Println("Sync complete")
		return nil
	},
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the configured datasets and their local state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("datasets"); err != nil {
			return err
		}
		formatDatasetList(os.Stdout, cfg.Datasets.Dir, cfg.Datasets.All())
		return nil
	},
}

func init() {
	datasetsCmd.AddCommand(datasetsSyncCmd)
	datasetsCmd.AddCommand(datasetsListCmd)
	rootCmd.AddCommand(datasetsCmd)
}

// formatSyncResults writes one line per synced dataset to w.
func formatSyncResults(out io.Writer, results []fetch.SyncResult) {
	for _, res := range results {
		if res.Skipped {
			_, _ = fmt.Fprintf(out, "%-10s unchanged (%s)\n", res.Dataset.Name, res.Path)
			continue
		}
		_, _ = fmt.Fprintf(out, "%-10s %s (%d bytes)\n", res.Dataset.Name, res.Path, res.Bytes)
	}
}

// formatDatasetList writes a tabular overview of the datasets to w.
func formatDatasetList(out io.Writer, dir string, datasets []fetch.Dataset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tFILE\tSIZE\tSYNCED\tURL")

	for _, d := range datasets {
		size := "-"
		synced := "never"
		if info, err := os.Stat(filepath.Join(dir, d.File)); err == nil {
			size = fmt.Sprintf("%d", info.Size())
			synced = info.ModTime().Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Name, d.File, size, synced, d.URL)
	}
	_ = w.Flush()
}
