package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/openixkit/openiximg/pkg/imagewty"
	"github.com/openixkit/openiximg/pkg/partition"
)

var (
	partitionInput  string
	partitionOutput string
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Show the partition table of an IMAGEWTY image",
	Long: `Reads sys_partition.fex out of an image and prints the flash partition
layout, to stdout or to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(partitionInput)
		if err != nil {
			return fmt.Errorf("could not read input: %w", err)
		}

		img, err := imagewty.Load(data, imagewty.LoadOptions{Decrypt: true})
		if err != nil {
			return fmt.Errorf("could not load image: %w", err)
		}

		entry := img.FindByFilename("sys_partition.fex")
		if entry == nil {
			return fmt.Errorf("no sys_partition.fex in image")
		}

		tbl, err := partition.ParseBytes(img.FileBytes(entry))
		if err != nil {
			return fmt.Errorf("could not parse sys_partition.fex: %w", err)
		}

		out := tbl.DumpText()
		if partitionOutput != "" {
			if err := os.WriteFile(partitionOutput, []byte(out), 0666); err != nil {
				return fmt.Errorf("could not write output: %w", err)
			}
			glog.Infof("Partition table written to %s", partitionOutput)
		} else {
			fmt.Print(out)
		}

		return nil
	},
}
