package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Sternrassler/places-scout/pkg/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run one search and print the JSON response",
	Long: `search runs the full pipeline once and writes the response to stdout.
Repeat --keyword for several queries. --lat/--lng take precedence over
--location when both are given.`,
	Example: `  places-scout search --keyword diner --keyword cafe --location "Springfield" --threshold 3.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := searchRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.pipeline.Run(cmd.Context(), req)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	addSearchFlags(searchCmd.Flags())
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(flags *pflag.FlagSet) {
	flags.StringArray("keyword", nil, "search keyword (repeatable)")
	flags.String("location", "", "free-text location bias")
	flags.Float64("lat", 0, "latitude of the location bias")
	flags.Float64("lng", 0, "longitude of the location bias")
	flags.Int("limit", pipeline.DefaultLimit, "maximum number of places")
	flags.Float64("threshold", pipeline.DefaultThreshold, "keep places rated strictly below this value")
}

// searchRequestFromFlags builds a request from the search flags. The
// coordinate is only set when both --lat and --lng were given.
func searchRequestFromFlags(cmd *cobra.Command) (pipeline.Request, error) {
	flags := cmd.Flags()

	keywords, _ := flags.GetStringArray("keyword")
	location, _ := flags.GetString("location")
	limit, _ := flags.GetInt("limit")
	threshold, _ := flags.GetFloat64("threshold")

	req := pipeline.Request{
		Keywords:     keywords,
		LocationText: location,
		Limit:        &limit,
		Threshold:    &threshold,
	}

	latSet, lngSet := flags.Changed("lat"), flags.Changed("lng")
	switch {
	case latSet && lngSet:
		lat, _ := flags.GetFloat64("lat")
		lng, _ := flags.GetFloat64("lng")
		req.LatLng = &pipeline.LatLng{Lat: lat, Lng: lng}
	case latSet || lngSet:
		return req, fmt.Errorf("--lat and --lng must be given together")
	}

	return req, nil
}
