package main

import (
	"fmt"
	"os"

	"github.com/aescanero/nodecomp/internal/application/drivers"
	"github.com/aescanero/nodecomp/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nodecomp",
		Short:         "Service chain node composition orchestrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCommand())
	cmd.AddCommand(driversCommand())
	cmd.AddCommand(versionCommand())

	return cmd
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator API servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func driversCommand() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List the node drivers of a catalog in scheduling order",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}

			registry, _, err := drivers.Build(catalog, zap.NewNop())
			if err != nil {
				return fmt.Errorf("failed to build driver registry: %w", err)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer func() { _ = enc.Close() }()
			return enc.Encode(map[string]interface{}{
				"plumber": catalog.Plumber,
				"drivers": registry.Drivers(),
			})
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", os.Getenv("DRIVER_CATALOG"), "driver catalog YAML file (default: built-in catalog)")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nodecomp %s (built %s)\n", Version, BuildTime)
		},
	}
}

// loadCatalog reads a catalog file, or returns the built-in catalog for an
// empty path
func loadCatalog(path string) (*drivers.Catalog, error) {
	if path == "" {
		return drivers.DefaultCatalog(), nil
	}
	catalog, err := drivers.LoadCatalog(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load driver catalog: %w", err)
	}
	return catalog, nil
}
