package cmd

import (
	"fmt"
	"strconv"

	"realmkeeper-backend/internal/config"
	"realmkeeper-backend/internal/geo"
	"realmkeeper-backend/internal/services"

	"github.com/spf13/cobra"
)

func newDistanceCmd() *cobra.Command {
	var radius float64

	cmd := &cobra.Command{
		Use:   "distance [--radius m] [--] <lat1> <lng1> <lat2> <lng2>",
		Short: "Print the great-circle distance between two points in meters",
		Long: `Print the haversine distance between two points. With --radius, also
report whether the second point lies inside the circle of that radius around
the first one (boundary inclusive). Flags go before the coordinates; put "--"
before them when the first latitude is negative.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var coords [4]float64
			for i, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid coordinate %q: %w", arg, err)
				}
				coords[i] = v
			}

			a := geo.Point{Latitude: coords[0], Longitude: coords[1]}
			b := geo.Point{Latitude: coords[2], Longitude: coords[3]}
			for _, p := range []geo.Point{a, b} {
				if err := p.Validate(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "distance: %.2f m\n", geo.Distance(a, b))
			if cmd.Flags().Changed("radius") {
				fmt.Fprintf(out, "inside: %t\n", geo.Contains(a, radius, b))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "containment radius around the first point, in meters")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newTokenCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load(configFile)
				if err != nil {
					return err
				}
				secret = cfg.JWT.Secret
			}
			if secret == "" {
				return config.ErrMissingJWT
			}

			token, err := services.NewAuthService(secret).GenerateJWT(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default: jwt.secret from the config file)")
	return cmd
}
