package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"indiafinance/fundmatch/fundmatch"
)

type rootOptions struct {
	configPath string
	envFiles   []string
	storePath  string
	verbose    bool
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}
	root := &cobra.Command{
		Use:           "fundmatch-cli",
		Short:         "Resolve mutual fund names to scheme codes",
		Long:          "Exact and embedding-based lookup of Indian mutual fund scheme codes by name.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.json or config.yaml (default: ./config.json)")
	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", nil, "Extra .env files to load (default: ./.env when present)")
	root.PersistentFlags().StringVar(&opts.storePath, "store", "", "Embedding artifact (.json or .db); overrides config and environment")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log matching steps to stderr")

	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newSuggestCmd(opts))
	root.AddCommand(newBuildCmd(opts))
	root.AddCommand(newInspectCmd(opts))
	return root
}

// loadConfig resolves file, .env and environment settings in that order of precedence, lowest first.
func (o *rootOptions) loadConfig() (fundmatch.Config, error) {
	if err := fundmatch.LoadDotenv(o.envFiles...); err != nil {
		return fundmatch.Config{}, err
	}
	cfg, err := fundmatch.LoadConfig(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if o.storePath != "" {
		cfg.StorePath = o.storePath
	}
	return cfg, nil
}

func (o *rootOptions) logger() *log.Logger {
	if !o.verbose {
		return nil
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}
