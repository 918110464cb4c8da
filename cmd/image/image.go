// Package image implements the single-image inspection command.
package image

import (
	"context"
	"fmt"
	stdimage "image"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/detector"
	"github.com/tphakala/ppe-go/internal/export"
	"github.com/tphakala/ppe-go/internal/inspection"
)

// Command creates the image command.
func Command(settings *conf.Settings) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "image [file]",
		Short: "Inspect a single JPEG or PNG image",
		Long:  "Detect PPE in one image, print the compliance report and optionally write the annotated image and detections.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := detector.New(settings)
			if err != nil {
				return err
			}
			defer det.Close()

			svc := inspection.NewService(det, inspection.WithNode(settings.Main.Name))
			defer svc.Close()
			return Inspect(cmd.Context(), cmd.OutOrStdout(), svc.Inspect, args[0], outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for ppe_detection.jpg and detections.json")
	return cmd
}

// InspectFunc matches inspection.Service.Inspect.
type InspectFunc func(ctx context.Context, img stdimage.Image, source compliance.Source) (*inspection.Report, error)

// Inspect runs one file through inspect, prints the report to out and
// writes the artifacts when outputDir is set.
func Inspect(ctx context.Context, out io.Writer, inspect InspectFunc, path, outputDir string) error {
	img, err := export.OpenImage(path)
	if err != nil {
		return err
	}
	report, err := inspect(ctx, img, compliance.SourceUpload)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n", filepath.Base(path))
	if err := inspection.WriteText(out, report); err != nil {
		return err
	}
	if outputDir == "" {
		return nil
	}
	if err := export.WriteArtifacts(outputDir, report.Annotated, report.Detections); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s and %s to %s\n", export.ImageFilename, export.DetectionsFilename, outputDir)
	return nil
}
