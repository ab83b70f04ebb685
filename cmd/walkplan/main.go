package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samirrijal/walkguide/internal/adapters/catalog"
	"github.com/samirrijal/walkguide/internal/adapters/kmlexport"
	"github.com/samirrijal/walkguide/internal/adapters/memory"
	"github.com/samirrijal/walkguide/internal/core/domain"
	"github.com/samirrijal/walkguide/internal/core/usecases"
)

var (
	catalogPath string
	anchor      = domain.GeoPoint{Lat: 48.1372, Lon: 11.5755}
)

var rootCmd = &cobra.Command{
	Use:   "walkplan",
	Short: "Plan guided walks and replay discovery offline",
	Long: `walkplan works on a catalog file without any services: it lists
categories, prints the nearest-neighbour walk through one of them and
replays the discovery simulation.`,
	SilenceUsage: true,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List categories in catalog order",
	RunE: func(cmd *cobra.Command, args []string) error {
		walks, err := openWalks()
		if err != nil {
			return err
		}
		cats, err := walks.Categories(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range cats {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var guidedCmd = &cobra.Command{
	Use:   "guided",
	Short: "Print the guided walk through a category",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		kmlPath, _ := cmd.Flags().GetString("kml")

		walks, err := openWalks()
		if err != nil {
			return err
		}
		route, err := walks.PlanGuidedWalk(cmd.Context(), category, false)
		if err != nil {
			return err
		}
		printRoute(cmd.OutOrStdout(), route)

		if kmlPath != "" {
			f, err := os.Create(kmlPath)
			if err != nil {
				return err
			}
			if err := kmlexport.Encode(f, route); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", kmlPath)
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Replay the discovery simulation and print each state change",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		steps, _ := cmd.Flags().GetInt("steps")
		threshold, _ := cmd.Flags().GetFloat64("threshold")
		policy, _ := cmd.Flags().GetString("policy")
		if steps < 0 || steps > usecases.MaxProgress {
			return fmt.Errorf("--steps must be 0-%d", usecases.MaxProgress)
		}

		walks, err := openWalks()
		if err != nil {
			return err
		}
		discovery, err := usecases.NewDiscoveryService(walks, memory.NewSessionStore(0), nil, usecases.DiscoveryOptions{
			ThresholdKm:     threshold,
			Policy:          domain.ProximityPolicy(policy),
			SimulationStart: domain.GeoPoint{Lat: 48.1351, Lon: 11.575},
		})
		if err != nil {
			return err
		}
		return replay(cmd.Context(), cmd.OutOrStdout(), discovery, category, steps)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "data/places-in-munich.csv", "catalog file (CSV or YAML)")
	rootCmd.PersistentFlags().Float64Var(&anchor.Lat, "anchor-lat", anchor.Lat, "walk start latitude")
	rootCmd.PersistentFlags().Float64Var(&anchor.Lon, "anchor-lon", anchor.Lon, "walk start longitude")

	guidedCmd.Flags().String("category", "", "category to walk through")
	guidedCmd.Flags().String("kml", "", "also write the walk to this KML file")
	_ = guidedCmd.MarkFlagRequired("category")

	discoverCmd.Flags().String("category", "", "restrict discovery to one category")
	discoverCmd.Flags().Int("steps", usecases.MaxProgress, "last simulation step")
	discoverCmd.Flags().Float64("threshold", 0.3, "discovery radius in km")
	discoverCmd.Flags().String("policy", string(domain.FirstMatch), "first or closest")

	rootCmd.AddCommand(categoriesCmd, guidedCmd, discoverCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func openWalks() (*usecases.WalkService, error) {
	store, err := catalog.Open(catalogPath)
	if err != nil {
		return nil, err
	}
	if err := anchor.Validate(); err != nil {
		return nil, err
	}
	return usecases.NewWalkService(store, nil, nil, usecases.WalkServiceOptions{Anchor: anchor}), nil
}

func printRoute(w io.Writer, route *domain.WalkRoute) {
	fmt.Fprintf(w, "%s walk, %d stops\n", route.Category, len(route.Stops))
	for i, p := range route.Stops {
		fmt.Fprintf(w, "%2d. %-32s %.4f, %.4f\n", i+1, p.Name, p.Location.Lat, p.Location.Lon)
	}
	fmt.Fprintf(w, "Total Distance: %.2f km\n", route.DistanceKm)
	fmt.Fprintf(w, "Estimated Time: %d minutes\n", route.DurationMin)
}

// replay walks the simulation from step 0 to steps and prints a line
// whenever the state or the nearby place changes.
func replay(ctx context.Context, w io.Writer, discovery *usecases.DiscoveryService, category string, steps int) error {
	sess, err := discovery.StartSession(ctx, category)
	if err != nil {
		return err
	}

	var last string
	for step := 0; step <= steps; step++ {
		pos, res, err := discovery.Simulate(ctx, sess.ID, step)
		if err != nil {
			return err
		}
		name := ""
		if res.Nearby != nil {
			name = res.Nearby.Name
		}
		key := res.State.String() + "|" + name
		if key == last {
			continue
		}
		last = key

		switch res.State {
		case domain.NewlyVisited:
			fmt.Fprintf(w, "step %3d (%.4f, %.4f): discovered %s (%.0f m)\n", step, pos.Lat, pos.Lon, name, res.DistanceKm*1000)
		case domain.Revisited:
			fmt.Fprintf(w, "step %3d (%.4f, %.4f): near %s again\n", step, pos.Lat, pos.Lon, name)
		default:
			fmt.Fprintf(w, "step %3d (%.4f, %.4f): nothing nearby\n", step, pos.Lat, pos.Lon)
		}
	}

	final, err := discovery.Session(ctx, sess.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "visited %d: %s\n", final.Visited.Len(), strings.Join(final.Visited.Names(), ", "))
	return nil
}
