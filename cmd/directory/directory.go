// Package directory implements batch inspection of an image directory.
package directory

import (
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/ppe-go/internal/compliance"
	"github.com/tphakala/ppe-go/internal/conf"
	"github.com/tphakala/ppe-go/internal/detector"
	"github.com/tphakala/ppe-go/internal/errors"
	"github.com/tphakala/ppe-go/internal/export"
	"github.com/tphakala/ppe-go/internal/inspection"
)

// Options controls a directory run.
type Options struct {
	Recursive bool
	OutputDir string // per-image artifacts go to OutputDir/<file stem>
}

// Command creates the directory command.
func Command(settings *conf.Settings) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "directory [path]",
		Short: "Inspect all JPEG and PNG images in a directory",
		Long:  "Provide a directory path to inspect every *.jpg, *.jpeg and *.png file within it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			det, err := detector.New(settings)
			if err != nil {
				return err
			}
			defer det.Close()

			svc := inspection.NewService(det, inspection.WithNode(settings.Main.Name))
			defer svc.Close()

			_, err = Run(cmd.Context(), cmd.OutOrStdout(), svc.Inspect, args[0], opts)
			return err
		},
	}

	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "Recursively inspect subdirectories")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "Directory for per-image artifacts")
	return cmd
}

// InspectFunc matches inspection.Service.Inspect.
type InspectFunc func(ctx context.Context, img image.Image, source compliance.Source) (*inspection.Report, error)

// Run inspects every image under dir in lexical order, printing one line per
// file and a totals line. Files that fail to decode are reported and skipped.
func Run(ctx context.Context, out io.Writer, inspect InspectFunc, dir string, opts Options) (*inspection.Totals, error) {
	files, err := FindImages(dir, opts.Recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Newf("no JPEG or PNG images found in %s", dir).
			Component("directory").
			Category(errors.CategoryValidation).
			Build()
	}

	totals := &inspection.Totals{}
	failed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return totals, err
		}

		name, _ := filepath.Rel(dir, path)
		img, err := export.OpenImage(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "%-40s error: %v\n", name, err)
			continue
		}
		report, err := inspect(ctx, img, compliance.SourceUpload)
		if err != nil {
			return totals, err
		}
		totals.Add(report)
		fmt.Fprintln(out, inspection.SummaryLine(name, report))

		if opts.OutputDir != "" {
			if err := export.WriteArtifacts(filepath.Join(opts.OutputDir, artifactDir(name)), report.Annotated, report.Detections); err != nil {
				return totals, err
			}
		}
	}

	fmt.Fprintln(out, totals.String())
	if failed > 0 {
		fmt.Fprintf(out, "%d file(s) could not be decoded\n", failed)
	}
	return totals, nil
}

// FindImages lists image files under dir sorted by path.
func FindImages(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if isImage(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.FileError(err, dir)
	}
	slices.Sort(files)
	return files, nil
}

// artifactDir names the per-image output directory, keeping the extension so
// site.jpg and site.png do not share one ("site_jpg", "site_png").
func artifactDir(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + strings.TrimPrefix(ext, ".")
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
