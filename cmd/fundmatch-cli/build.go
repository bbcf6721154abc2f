package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"indiafinance/fundmatch/fundmatch"
)

func newBuildCmd(root *rootOptions) *cobra.Command {
	var fundsPath, outPath string
	var workers int
	var listOpts fundmatch.FundListOptions
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed a scheme list and write an artifact",
		Long:  "Reads a scheme list (mfapi-style JSON, CSV or TSV), embeds every name and writes a .json or .db artifact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if fundsPath == "" {
				return errors.New("missing required --funds file")
			}
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = cfg.StorePath
			}
			if outPath == "" {
				return errors.New("missing --out and no store path configured")
			}
			records, err := fundmatch.ParseFundListWithOptions(fundsPath, listOpts)
			if err != nil {
				return fmt.Errorf("read fund list: %w", err)
			}
			embedder, err := fundmatch.NewOrtEmbedder(cfg.Embedder)
			if err != nil {
				return fmt.Errorf("init embedder: %w", err)
			}
			defer embedder.Close()

			store, err := fundmatch.BuildArtifact(commandContext(cmd), embedder, records, workers, root.logger())
			if err != nil {
				return err
			}
			if err := fundmatch.WriteArtifact(outPath, store); err != nil {
				return err
			}
			fmt.Fprintf(root.out, "Wrote %d funds (dim %d) to %s\n", store.Len(), store.Dim(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&fundsPath, "funds", "", "Scheme list to embed (.json, .csv or .tsv)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Artifact to write (.json or .db; default: configured store path)")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent embedding calls")
	cmd.Flags().StringVar(&listOpts.CodeColumn, "code-column", "", "Column name or #index holding scheme codes")
	cmd.Flags().StringVar(&listOpts.NameColumn, "name-column", "", "Column name or #index holding scheme names")
	return cmd
}
