package cmd

import (
	"io"
	"os"

	"github.com/andresmejia3/maskguard/internal/mask"
	"github.com/andresmejia3/maskguard/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var palettePath string

var paletteCmd = &cobra.Command{
	Use:   "palette",
	Short: "Print the effective mask palette as YAML",
	Long:  "Prints the colour ranges and threshold in use. Redirect the output to a file to start a custom --palette.",
	Run: func(cmd *cobra.Command, args []string) {
		classifier, err := loadClassifier(palettePath)
		if err != nil {
			utils.Die("Failed to load mask palette", err, nil)
		}
		if err := writePalette(os.Stdout, classifier.Config()); err != nil {
			utils.Die("Failed to encode palette", err, nil)
		}
	},
}

func init() {
	paletteCmd.Flags().StringVarP(&palettePath, "palette", "p", "", "YAML palette to validate and print")
	rootCmd.AddCommand(paletteCmd)
}

func writePalette(w io.Writer, cfg mask.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
