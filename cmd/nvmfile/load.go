package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rgehrsitz/nvm/internal/storage"
)

func newLoadCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "load <image>",
		Short: "Install an image into program memory at offset 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mem, err := cfg.OpenBackend()
			if err != nil {
				return err
			}
			defer mem.Close()

			n, err := storage.Install(mem, args[0])
			if err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Loading %s, size %d\n", args[0], n)
			}
			log.Info().Str("kind", string(mem.Kind())).Int("capacity", mem.Capacity()).Msg("Image installed")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not report the image size")
	return cmd
}
