package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openixkit/openiximg/pkg/imagewty"
)

var (
	decryptInput  string
	decryptOutput string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt",
	Short: "Decrypt an encrypted IMAGEWTY image",
	Long: `Removes the RC6 envelope from an image and writes the plaintext container.
A plaintext input is copied through unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(decryptInput)
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}

		img, err := imagewty.Load(data, imagewty.LoadOptions{Decrypt: true})
		if err != nil {
			return fmt.Errorf("could not load image: %w", err)
		}
		if !img.Encrypted() {
			glog.Infof("Image is not encrypted, copying verbatim.")
		}

		f, err := os.Create(decryptOutput)
		if err != nil {
			return fmt.Errorf("could not create output: %w", err)
		}
		defer f.Close()

		if err := img.WriteDecrypted(f); err != nil {
			return fmt.Errorf("could not write output: %w", err)
		}

		glog.Infof("Decrypted image written to %s", decryptOutput)
		return nil
	},
}
