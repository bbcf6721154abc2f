package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"indiafinance/fundmatch/fundmatch"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	var showDuplicates bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate the configured artifact and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			store, err := fundmatch.LoadStore(cfg.StorePath, root.logger())
			if err != nil {
				return err
			}
			names := fundmatch.BuildNameIndex(store.Records())
			dups := names.Duplicates()
			fmt.Fprintf(root.out, "artifact:   %s\n", cfg.StorePath)
			fmt.Fprintf(root.out, "records:    %d\n", store.Len())
			fmt.Fprintf(root.out, "names:      %d distinct\n", names.Len())
			fmt.Fprintf(root.out, "dimension:  %d\n", store.Dim())
			fmt.Fprintf(root.out, "duplicates: %d\n", len(dups))
			if showDuplicates {
				for _, d := range dups {
					code, _ := names.Lookup(d)
					fmt.Fprintf(root.out, "  - %s (kept code=%d)\n", d, code)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDuplicates, "duplicates", false, "List names that occur more than once")
	return cmd
}
