package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kobzarvs/qdecomp/internal/app"
	"github.com/kobzarvs/qdecomp/internal/database"
)

func main() {
	var opts app.Options
	rootCmd := &cobra.Command{
		Use:   "qdecomp [address|name]",
		Short: "Browse and rename decompiled functions of an analysis database",
		Long: `qdecomp shows pseudocode views of the functions in an analysis database.
Names under the cursor can be followed, and locals and globals renamed;
renames are written back to the database.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				opts.Target = args[0]
			}
			return app.New(opts).Run()
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "Analysis database (default from config)")
	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Config file (default ~/.config/qdecomp/config.toml)")
	rootCmd.Flags().BoolVar(&opts.Debug, "debug", false, "Write debug messages to the log")

	importCmd := &cobra.Command{
		Use:   "import <project.toml>",
		Short: "Load functions, names, segments and frames into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args[0])
		},
	}
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qdecomp:", err)
		os.Exit(1)
	}
}

func runImport(cmd *cobra.Command, opts app.Options, path string) (err error) {
	cfg, err := app.LoadConfig(opts)
	if err != nil {
		return err
	}
	project, err := database.LoadProject(path)
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); err == nil {
			err = cerr
		}
	}()
	sum, err := db.Import(project)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "imported %d functions, %d names, %d segments, %d frame members into %s\n",
		sum.Functions, sum.Names, sum.Segments, sum.Members, cfg.Database.Path)
	return nil
}
