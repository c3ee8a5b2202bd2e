package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmark/classmark/internal/config"
	"github.com/classmark/classmark/internal/roster"
	"github.com/classmark/classmark/internal/store"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect and sync the student roster",
	Long: `Load the roster from the configured images directory and print what
was enrolled, including images that were rejected. --dupes flags pairs
of identities with suspiciously close encodings; --push uploads the
encodings to the store backend for server-side similarity queries.`,
	RunE: runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)

	rosterCmd.Flags().Bool("dupes", false, "List identity pairs with near-duplicate encodings")
	rosterCmd.Flags().Float64("max-distance", 0.3, "Distance cutoff for --dupes")
	rosterCmd.Flags().Bool("push", false, "Push roster encodings to the store backend")
}

func runRoster(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	lg, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}
	defer func() { _ = lg.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	rosterStore := newRosterStore(cfg, true)
	r, err := rosterStore.Get(ctx)
	if err != nil {
		return fmt.Errorf("could not load roster: %w", err)
	}

	fmt.Printf("Roster: %d students enrolled from %s\n", r.Len(), cfg.Roster.ImagesDir)
	for _, id := range r.IDs() {
		fmt.Printf("  %s\n", id)
	}

	if rejections := rosterStore.Rejections(); len(rejections) > 0 {
		fmt.Printf("\nRejected images:\n")
		for _, rej := range rejections {
			fmt.Printf("  %s: %s\n", rej.File, rej.Reason)
		}
	}

	if dupes, _ := cmd.Flags().GetBool("dupes"); dupes {
		maxDistance, _ := cmd.Flags().GetFloat64("max-distance")
		pairs := roster.NearDuplicates(r, maxDistance)
		if len(pairs) == 0 {
			fmt.Printf("\nNo near-duplicate encodings within distance %.2f\n", maxDistance)
		} else {
			fmt.Printf("\nNear-duplicate encodings (distance < %.2f):\n", maxDistance)
			for _, p := range pairs {
				fmt.Printf("  %s <-> %s  distance=%.4f\n", p.A, p.B, p.Distance)
			}
		}
	}

	if push, _ := cmd.Flags().GetBool("push"); push {
		return pushEncodings(ctx, cfg, r)
	}

	return nil
}

func pushEncodings(ctx context.Context, cfg *config.Config, r *roster.Roster) error {
	db, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	syncer, ok := db.(store.RosterSyncer)
	if !ok {
		return fmt.Errorf("store backend %q cannot hold roster encodings, use postgres", cfg.Store.Backend)
	}

	encodings := make(map[string][]float32, r.Len())
	for _, id := range r.IDs() {
		if enc, ok := r.Encoding(id); ok {
			encodings[id] = enc
		}
	}
	if err := syncer.PushEncodings(ctx, encodings); err != nil {
		return fmt.Errorf("could not push encodings: %w", err)
	}

	fmt.Printf("\nPushed %d encodings to the %s backend\n", len(encodings), cfg.Store.Backend)
	return nil
}
