package main

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/export"
	"github.com/sells-group/kmz2csv/internal/kml"
)

var (
	convertOutput  string
	convertGeocode bool
	convertFormat  string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.kmz|file.kml>",
	Short: "Convert a placemark file to a tabular export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if convertFormat != "csv" && convertFormat != "xlsx" {
			return eris.Errorf("unsupported format %q (want csv or xlsx)", convertFormat)
		}

		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}

		kmlBytes, err := kml.SelectDocument(data, filepath.Base(path))
		if err != nil {
			return err
		}
		doc, err := kml.Parse(kmlBytes)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		table, err := env.converter.Convert(cmd.Context(), doc, export.Options{Geocode: convertGeocode})
		if err != nil {
			return err
		}

		out := os.Stdout
		if convertOutput != "" {
			f, err := os.Create(convertOutput)
			if err != nil {
				return eris.Wrapf(err, "create %s", convertOutput)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if convertFormat == "xlsx" {
			if convertOutput == "" {
				return eris.New("xlsx output requires --output")
			}
			err = export.WriteXLSX(out, table)
		} else {
			err = export.WriteCSV(out, table)
		}
		if err != nil {
			return err
		}

		if convertOutput != "" {
			zap.L().Info("wrote export",
				zap.String("path", convertOutput),
				zap.String("format", convertFormat),
				zap.Int("rows", len(table.Rows)),
			)
		}
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "output file (default stdout for csv)")
	convertCmd.Flags().BoolVar(&convertGeocode, "geocode", false, "reverse-geocode a street name per point")
	convertCmd.Flags().StringVar(&convertFormat, "format", "csv", "output format: csv or xlsx")
	rootCmd.AddCommand(convertCmd)
}
