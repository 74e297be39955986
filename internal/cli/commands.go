package cli

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/colthorp/proximity-cli/internal/core"
	"github.com/colthorp/proximity-cli/internal/output"
	"github.com/colthorp/proximity-cli/internal/proximity"
)

func init() {
	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(centerCmd)
	rootCmd.AddCommand(nearbyCmd)
	rootCmd.AddCommand(distanceCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheResetAmenityCmd)

	// Nearby command flags
	nearbyCmd.Flags().Float64("lat", 0, "Centre latitude (requires --lng; default: city centre)")
	nearbyCmd.Flags().Float64("lng", 0, "Centre longitude (requires --lat)")
	nearbyCmd.Flags().Int("radius", 0, "Search radius in meters (default from config)")
	nearbyCmd.Flags().Int("max-pages", 0, "Maximum result pages to request (default from config)")
	nearbyCmd.Flags().Bool("refresh", false, "Search again even if the query is cached")
	nearbyCmd.Flags().Bool("single-page", false, "Request only the first result page")
	nearbyCmd.Flags().String("type", "", "Provider place type filter")

	// Distance command flags
	distanceCmd.Flags().String("mode", "", "Travel mode: walking, driving, bicycling, transit (default from config)")

	// Enrich command flags
	enrichCmd.Flags().String("plan", "", "YAML plan listing addresses and amenities")
	_ = enrichCmd.MarkFlagRequired("plan")
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>...",
	Short: "Resolve addresses to coordinates",
	Args:  cobra.MinimumNArgs(1),
	RunE:  handleGeocode,
}

var centerCmd = &cobra.Command{
	Use:   "center",
	Short: "Show the configured city centre",
	Args:  cobra.NoArgs,
	RunE:  handleCenter,
}

var nearbyCmd = &cobra.Command{
	Use:   "nearby <query>",
	Short: "List places matching an amenity query around a centre",
	Args:  cobra.ExactArgs(1),
	RunE:  handleNearby,
}

var distanceCmd = &cobra.Command{
	Use:   "distance <origin> <destination>",
	Short: "Travel distance in meters; points are \"lat,lng\" or addresses",
	Args:  cobra.ExactArgs(2),
	RunE:  handleDistance,
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Measure distances from listings to their nearest amenities",
	Args:  cobra.NoArgs,
	RunE:  handleEnrich,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the local stores",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts for the geocode, amenity and distance stores",
	Args:  cobra.NoArgs,
	RunE:  handleCacheStats,
}

var cacheResetAmenityCmd = &cobra.Command{
	Use:   "reset-amenity <query>",
	Short: "Forget the stored places for a query so the next search fetches them again",
	Args:  cobra.ExactArgs(1),
	RunE:  handleResetAmenity,
}

// mcpCmd starts the MCP server
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI integration",
	Args:  cobra.NoArgs,
	RunE:  handleMCP,
}

// withService opens the service for the duration of fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *proximity.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := openService(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, svc)
}

func handleGeocode(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		out := cmd.OutOrStdout()
		results := make(map[string]proximity.GeocodeResult, len(args))
		for _, addr := range core.UniqueStrings(args) {
			result, err := svc.Geocode(ctx, addr)
			if err != nil {
				return err
			}
			results[addr] = result
			if !jsonOut {
				output.PrintGeocode(out, addr, result)
			}
		}
		if jsonOut {
			return output.PrintJSON(out, results)
		}
		return nil
	})
}

func handleCenter(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		center, err := svc.CityCenter(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
				"address":    svc.Options().CityCenterAddress,
				"coordinate": center,
			})
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", svc.Options().CityCenterAddress, center)
		return err
	})
}

func handleNearby(cmd *cobra.Command, args []string) error {
	radius, _ := cmd.Flags().GetInt("radius")
	maxPages, _ := cmd.Flags().GetInt("max-pages")
	refresh, _ := cmd.Flags().GetBool("refresh")
	singlePage, _ := cmd.Flags().GetBool("single-page")
	placeType, _ := cmd.Flags().GetString("type")

	latSet := cmd.Flags().Changed("lat")
	lngSet := cmd.Flags().Changed("lng")
	if latSet != lngSet {
		return eris.New("--lat and --lng must be used together")
	}

	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		var center proximity.Coordinate
		var err error
		if latSet {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lng, _ := cmd.Flags().GetFloat64("lng")
			center, err = proximity.NewCoordinate(lat, lng)
		} else {
			center, err = svc.CityCenter(ctx)
		}
		if err != nil {
			return err
		}

		bucket, err := svc.Search(ctx, proximity.NearbyQuery{
			Query:        args[0],
			Center:       center,
			RadiusMeters: radius,
			MaxPages:     maxPages,
			BypassCache:  refresh,
			SinglePage:   singlePage,
			Type:         placeType,
		})
		if err != nil {
			return err
		}

		places := bucket.Records()
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), places)
		}
		output.PrintPlaces(cmd.OutOrStdout(), places)
		core.ProgressPrint(fmt.Sprintf("%d place(s) for %q", len(places), args[0]), quiet)
		return nil
	})
}

func handleDistance(cmd *cobra.Command, args []string) error {
	modeFlag, _ := cmd.Flags().GetString("mode")
	mode, err := proximity.ParseTravelMode(modeFlag)
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		if modeFlag == "" {
			mode = svc.Options().DefaultMode
		}
		origin, err := resolvePoint(ctx, svc, args[0])
		if err != nil {
			return err
		}
		destination, err := resolvePoint(ctx, svc, args[1])
		if err != nil {
			return err
		}

		meters, err := svc.Distance(ctx, origin, destination, mode)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
				"origin":      origin,
				"destination": destination,
				"mode":        mode,
				"meters":      meters,
			})
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.0f m (%s)\n", meters, mode)
		return err
	})
}

func handleEnrich(cmd *cobra.Command, _ []string) error {
	planPath, _ := cmd.Flags().GetString("plan")
	plan, err := proximity.LoadPlan(planPath)
	if err != nil {
		return err
	}

	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		report, err := svc.Enrich(ctx, plan)
		if err != nil {
			return err
		}
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), report)
		}
		output.PrintRows(cmd.OutOrStdout(), report)
		return nil
	})
}

func handleCacheStats(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(_ context.Context, svc *proximity.Service) error {
		stats := svc.Stats()
		if jsonOut {
			return output.PrintJSON(cmd.OutOrStdout(), stats)
		}
		output.PrintStats(cmd.OutOrStdout(), stats)
		return nil
	})
}

func handleResetAmenity(cmd *cobra.Command, args []string) error {
	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		if _, ok := svc.Bucket(args[0]); !ok {
			core.ProgressPrint(fmt.Sprintf("No stored places for %q", args[0]), quiet)
			return nil
		}
		if err := svc.ResetAmenity(ctx, args[0]); err != nil {
			return err
		}
		core.ProgressPrint(fmt.Sprintf("Removed stored places for %q", args[0]), quiet)
		return nil
	})
}

func handleMCP(cmd *cobra.Command, _ []string) error {
	return withService(cmd, func(ctx context.Context, svc *proximity.Service) error {
		return newMCPServer(svc, cmd.InOrStdin(), cmd.OutOrStdout()).serve(ctx)
	})
}

// resolvePoint accepts "lat,lng" or an address.
func resolvePoint(ctx context.Context, svc *proximity.Service, s string) (proximity.Coordinate, error) {
	if core.LooksLikeLatLng(s) {
		return proximity.ParseCoordinate(s)
	}
	return svc.Locate(ctx, s)
}
