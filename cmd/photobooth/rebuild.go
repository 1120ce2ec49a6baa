package main

import (
	"context"
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/logic/photo"
)

func newRebuildCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate web photos from the full-size originals",
		Long: `rebuild re-derives every web-sized photo from photos_fullsize/, for
example after changing max_image_size. Originals are never modified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			defer debug.Close()

			if err := cfg.EnsureDirs(); err != nil {
				return err
			}
			n, err := rebuild(cmd.Context(), newProcessor(cfg), cmd.ErrOrStderr())
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d photo(s)\n", n)
			return err
		},
	}
}

func rebuild(ctx context.Context, p *photo.Processor, w io.Writer) (int, error) {
	total, err := p.FullSizeCount()
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Resizing"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
	)
	n, err := p.Rebuild(ctx, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	fmt.Fprintln(w)
	return n, err
}
