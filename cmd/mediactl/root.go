package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/config"
	"github.com/wavecms/mediastore/pkg/mediastore/gc"
	"github.com/wavecms/mediastore/pkg/mediastore/scan"
	"github.com/wavecms/mediastore/pkg/mediastore/usage"
)

// components bundles everything a subcommand may need. They are built
// lazily so commands that fail flag parsing never touch the backends.
type components struct {
	svc       mediastore.Service
	repo      mediastore.Repository
	scanner   *scan.Scanner
	tracker   *usage.Tracker
	collector *gc.Collector
}

func newRootCmd(env config.EnvConfig) *cobra.Command {
	var jsonOutput bool

	root := &cobra.Command{
		Use:           "mediactl",
		Short:         "Maintenance commands for the media store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	root.AddCommand(
		newCleanCmd(env, &jsonOutput),
		newRecomputeCmd(env, &jsonOutput),
		newListCmd(env, &jsonOutput),
		newUsageCmd(env, &jsonOutput),
	)
	return root
}

func buildComponents(env config.EnvConfig) (*components, error) {
	cfg, err := config.Load(config.FromEnv(env))
	if err != nil {
		return nil, err
	}

	repo, err := cfg.BuildRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	store, err := cfg.BuildStorage()
	if err != nil {
		return nil, fmt.Errorf("failed to build storage: %w", err)
	}
	svc, err := mediastore.New(
		mediastore.WithRepository(repo),
		mediastore.WithBlobStore(cfg.StorageBackend.Type, store),
	)
	if err != nil {
		return nil, err
	}

	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema description: %w", err)
	}
	source, err := cfg.BuildSchemaSource(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema source: %w", err)
	}

	scanner := scan.New(registry, source, repo, store)
	// No dispatcher: CLI recomputes run inline.
	tracker := usage.New(repo, scanner, store, nil)

	return &components{
		svc:       svc,
		repo:      repo,
		scanner:   scanner,
		tracker:   tracker,
		collector: gc.New(svc, repo, tracker),
	}, nil
}

func newCleanCmd(env config.EnvConfig, jsonOutput *bool) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Recompute usage flags and delete unused media",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(env)
			if err != nil {
				return err
			}

			if dryRun {
				recomputed, err := c.tracker.RecomputeAll(cmd.Context())
				if err != nil {
					return err
				}
				unused, err := c.repo.ListMedia(cmd.Context(), mediastore.MediaListFilters{
					Used: mediastore.UsedFilter(false),
				})
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]interface{}{
						"recomputed":   recomputed,
						"would_delete": len(unused),
					})
				}
				fmt.Printf("recomputed %d flags; %d records would be deleted\n", recomputed, len(unused))
				for _, record := range unused {
					fmt.Printf("  %s  %s\n", record.ID, record.Title)
				}
				return nil
			}

			result, err := c.collector.CleanUnused(cmd.Context())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(result)
			}
			fmt.Printf("recomputed %d flags, deleted %d records\n", result.Recomputed, result.Deleted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	return cmd
}

func newRecomputeCmd(env config.EnvConfig, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute [media-id]",
		Short: "Recompute cached usage flags (all records, or one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(env)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid media id %q: %w", args[0], err)
				}
				changed, err := c.tracker.Recompute(cmd.Context(), id)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]interface{}{"media_id": id, "changed": changed})
				}
				fmt.Printf("recomputed %s (changed: %t)\n", id, changed)
				return nil
			}

			changed, err := c.tracker.RecomputeAll(cmd.Context())
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(map[string]interface{}{"changed": changed})
			}
			fmt.Printf("recomputed usage flags, %d changed\n", changed)
			return nil
		},
	}
}

func newListCmd(env config.EnvConfig, jsonOutput *bool) *cobra.Command {
	var unusedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List media records",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildComponents(env)
			if err != nil {
				return err
			}

			var filters mediastore.MediaListFilters
			if unusedOnly {
				filters.Used = mediastore.UsedFilter(false)
			}

			records, err := c.svc.ListMedia(cmd.Context(), filters)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(records)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSED\tUPLOADED\tTITLE")
			for _, record := range records {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\n",
					record.ID, record.IsUsedCached,
					record.UploadedAt.Format("2006-01-02 15:04"), record.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&unusedOnly, "unused", false, "only records with a false usage flag")
	return cmd
}

func newUsageCmd(env config.EnvConfig, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "usage <media-id>",
		Short: "Show where a media record is referenced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid media id %q: %w", args[0], err)
			}

			c, err := buildComponents(env)
			if err != nil {
				return err
			}

			details, err := c.scanner.UsageDetails(cmd.Context(), id)
			if err != nil {
				return err
			}
			if *jsonOutput {
				return writeJSON(details)
			}

			if len(details) == 0 {
				fmt.Println("not referenced")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENTITY TYPE\tFIELD\tCOUNT")
			for _, u := range details {
				fmt.Fprintf(w, "%s\t%s\t%d\n", u.EntityType, u.Field, u.Count)
			}
			return w.Flush()
		},
	}
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
