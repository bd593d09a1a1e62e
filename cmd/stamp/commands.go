package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"artifact-stamper/internal/config"
	"artifact-stamper/internal/domain"

	"github.com/spf13/cobra"
)

// newContainer builds the application; tests swap it for a container over
// temporary directories
var newContainer = config.NewContainer

func fileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file <path>...",
		Short: "Ingest each file independently",
		Long: `Store each file and write its stamped PDF.

PDFs get a code pointing at the stamped copy itself; images are wrapped in a
one-page PDF whose code points at the original. Several paths run as a batch
where one failure does not affect the others.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := loadUploads(args)
			if err != nil {
				return err
			}
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			ctx := cmd.Context()
			if len(uploads) == 1 {
				result, err := container.Pipeline.IngestSingleFile(ctx, uploads[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			}

			items := container.Pipeline.IngestFileBatch(ctx, uploads)
			if err := printJSON(cmd.OutOrStdout(), items); err != nil {
				return err
			}
			failed := 0
			for _, item := range items {
				if !item.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(items))
			}
			return nil
		},
	}
}

func imagesCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "images <path>...",
		Short: "Compose images into one stamped PDF, one page per image",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads, err := loadUploads(args)
			if err != nil {
				return err
			}
			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Pipeline.IngestImageBatch(cmd.Context(), uploads, strict)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", true, "Reject the batch if any file is not an image (otherwise skip it)")
	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pdf>",
		Short: "Print the URL encoded in a stamped PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			container, err := newContainer()
			if err != nil {
				return err
			}
			defer container.Close()

			url, err := container.Verifier.ReadDocumentCode(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

// loadUploads reads each path fully. The media type comes from the extension,
// or from the content when the extension is unknown.
func loadUploads(paths []string) ([]domain.RawUpload, error) {
	uploads := make([]domain.RawUpload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		name := filepath.Base(path)
		mimeType := domain.NormalizeMimeType("", name)
		if mimeType == "" && len(data) > 0 {
			mimeType = http.DetectContentType(data)
		}
		uploads = append(uploads, domain.RawUpload{OriginalName: name, MimeType: mimeType, Bytes: data})
	}
	return uploads, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
