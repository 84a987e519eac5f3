package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cutout-forge/internal/cutout"
)

var fetchFlags struct {
	coords     string
	out        string
	sizeArcmin float64
	baseURL    string
}

var fetchCmd = &cobra.Command{
	Use:   "fetch --coords <table> --out <dir>",
	Short: "Downloads FITS cutouts for every position in a coordinate table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(fetchFlags.coords)
		if err != nil {
			return err
		}
		coords, err := cutout.ReadCoordinates(f)
		f.Close()
		if err != nil {
			return err
		}

		s := cutout.NewSession(cutout.Options{
			BaseURL:   fetchFlags.baseURL,
			ImageSize: fetchFlags.sizeArcmin,
			Logger:    logger,
		})
		defer s.Close()

		rep, err := s.FetchAll(cmd.Context(), coords, fetchFlags.out)
		if err != nil {
			return err
		}
		for _, fail := range rep.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "could not fetch %d %s: %v\n", fail.Index, fail.Coordinate, fail.Err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "fetched %d of %d cutouts into %s\n", len(rep.Written), len(coords), fetchFlags.out)
		return nil
	},
}

func init() {
	fl := fetchCmd.Flags()
	fl.StringVar(&fetchFlags.coords, "coords", "", "Whitespace separated table of id, RA and Dec.")
	fl.StringVar(&fetchFlags.out, "out", "cutouts", "Directory to write cutouts to.")
	fl.Float64Var(&fetchFlags.sizeArcmin, "size-arcmin", cutout.DefaultImageSize, "Cutout edge in arcminutes.")
	fl.StringVar(&fetchFlags.baseURL, "base-url", cutout.DefaultBaseURL, "Cutout service endpoint.")
	fetchCmd.MarkFlagRequired("coords")
	rootCmd.AddCommand(fetchCmd)
}
