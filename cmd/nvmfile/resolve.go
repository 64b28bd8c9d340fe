package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var imagePath string
	cmd := &cobra.Command{
		Use:   "resolve <class> <id>",
		Short: "Resolve a method by class and id through the superclass chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			class, err := strconv.ParseUint(args[0], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid class %q: %w", args[0], err)
			}
			id, err := strconv.ParseUint(args[1], 0, 8)
			if err != nil {
				return fmt.Errorf("invalid method id %q: %w", args[1], err)
			}

			l, mem, err := openImage(imagePath)
			if err != nil {
				return err
			}
			defer mem.Close()

			idx, err := l.FindMethod(uint8(class), uint8(id))
			if err != nil {
				return err
			}
			m, err := l.MethodHeader(idx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d.%d -> method %d (declared by class %d)\n", class, id, idx, m.ID.Class())
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "install this image before resolving")
	return cmd
}
