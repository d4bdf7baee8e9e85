package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var rootCmd = &cobra.Command{
	Use:   "openiximg",
	Short: "openiximg is a toolkit for Allwinner IMAGEWTY firmware images",
	Long: `Reads, decrypts and unpacks Allwinner IMAGEWTY firmware images as used by
the LiveSuit/PhoenixSuit flashing workflow, and parses the DragonEx
image.cfg and sys_partition.fex configuration formats carried inside.`,
	SilenceUsage: true,
}

var verboseLog bool

func main() {
	unpackCmd.Flags().StringVarP(&unpackInput, "input", "i", "", "Path to the image file to unpack")
	unpackCmd.Flags().StringVarP(&unpackOutput, "output", "o", "", "Directory to unpack into")
	unpackCmd.Flags().StringVar(&unpackFormat, "format", "unimg", "Output layout (one of 'unimg', 'imgrepacker')")
	unpackCmd.MarkFlagRequired("input")
	unpackCmd.MarkFlagRequired("output")

	decryptCmd.Flags().StringVarP(&decryptInput, "input", "i", "", "Path to the image file to decrypt")
	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "Path to write the decrypted image to")
	decryptCmd.MarkFlagRequired("input")
	decryptCmd.MarkFlagRequired("output")

	partitionCmd.Flags().StringVarP(&partitionInput, "input", "i", "", "Path to the image file to read")
	partitionCmd.Flags().StringVarP(&partitionOutput, "output", "o", "", "File to write the partition table to (default: stdout)")
	partitionCmd.MarkFlagRequired("input")

	packCmd.Flags().StringVarP(&packInput, "input", "i", "", "Directory to pack")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "Path to write the image to")
	packCmd.Flags().BoolVar(&packNoEncrypt, "no-encrypt", false, "Do not apply the RC6 envelope")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolVarP(&verboseLog, "verbose", "v", false, "Enable verbose debug logging")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verboseLog {
			flag.Set("alsologtostderr", "true")
			flag.Set("v", "1")
		}
	}
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		defaultHelp(cmd, args)
		os.Exit(1)
	})
	rootCmd.AddCommand(unpackCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(partitionCmd)
	rootCmd.AddCommand(packCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
}
