package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openixkit/openiximg/pkg/imagewty"
	"github.com/openixkit/openiximg/pkg/unpack"
)

var (
	unpackInput  string
	unpackOutput string
	unpackFormat string
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Extract files from an IMAGEWTY image",
	Long: `Loads an image (decrypting it if needed), writes every contained file into
the output directory and generates an image.cfg describing the contents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(unpackInput)
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}

		img, err := imagewty.Load(data, imagewty.LoadOptions{Decrypt: true})
		if err != nil {
			return fmt.Errorf("could not load image: %w", err)
		}

		format := unpack.UNIMG
		switch unpackFormat {
		case "unimg":
		case "imgrepacker":
			format = unpack.IMGRepacker
		default:
			glog.Warningf("Unknown output format %q, using default (unimg)", unpackFormat)
		}

		u := &unpack.Unpacker{
			Format:    format,
			ImagePath: unpackInput,
		}
		if err := u.Unpack(img, unpackOutput); err != nil {
			return fmt.Errorf("could not unpack image: %w", err)
		}

		glog.Infof("Done!")
		return nil
	},
}
