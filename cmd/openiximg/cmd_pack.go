package main

import (
	"github.com/spf13/cobra"

	"github.com/openixkit/openiximg/pkg/unpack"
)

var (
	packInput     string
	packOutput    string
	packNoEncrypt bool
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack a directory into an IMAGEWTY image (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return unpack.Pack(packInput, packOutput, !packNoEncrypt)
	},
}
