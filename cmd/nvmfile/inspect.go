package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"rgehrsitz/nvm/internal/image"
	"rgehrsitz/nvm/internal/loader"
	"rgehrsitz/nvm/internal/storage"
)

var heading = color.New(color.Bold, color.FgCyan).SprintFunc()

// openImage opens the configured memory, optionally installs path into it
// and validates the result. The caller owns the returned backend.
func openImage(path string) (*loader.Loader, storage.Backend, error) {
	mem, err := cfg.OpenBackend()
	if err != nil {
		return nil, nil, err
	}
	if path != "" {
		if _, err := storage.Install(mem, path); err != nil {
			mem.Close()
			return nil, nil, err
		}
	}

	features, err := cfg.Features()
	if err != nil {
		mem.Close()
		return nil, nil, err
	}

	l := loader.New(mem, loader.WithFeatures(features))
	if err := l.Init(); err != nil {
		mem.Close()
		return nil, nil, err
	}
	return l, mem, nil
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [image]",
		Short: "Validate the installed image and print its tables",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}
			l, mem, err := openImage(path)
			if err != nil {
				return err
			}
			defer mem.Close()
			return printImage(cmd.OutOrStdout(), l)
		},
	}
}

func printImage(w io.Writer, l *loader.Loader) error {
	h, err := l.Header()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, heading("Header"))
	fmt.Fprintf(w, "  features      %s\n", h.Features)
	fmt.Fprintf(w, "  version       %d\n", h.Version)
	fmt.Fprintf(w, "  constants     0x%04x (%d)\n", h.ConstantPool, l.ConstantCount())
	fmt.Fprintf(w, "  strings       0x%04x\n", h.StringTable)
	fmt.Fprintf(w, "  methods       0x%04x (%d)\n", h.MethodTable, h.MethodCount)
	fmt.Fprintf(w, "  static fields %d\n", h.StaticFields)
	fmt.Fprintf(w, "  main          %d\n", h.Main)

	fmt.Fprintln(w, heading("Classes"))
	for c := 0; c < l.ClassCount(); c++ {
		ch, err := l.ClassHeader(uint8(c))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %3d fields=%d super=%d\n", c, ch.Fields, ch.Super)
	}

	fmt.Fprintln(w, heading("Methods"))
	for i := 0; i < l.MethodCount(); i++ {
		m, err := l.MethodHeader(i)
		if err != nil {
			return err
		}
		var mark string
		if m.IsClinit() {
			mark = " clinit"
		}
		if i == int(h.Main) {
			mark += " main"
		}
		fmt.Fprintf(w, "  %3d id=%-7s args=%d locals=%d stack=%d code=0x%04x%s\n",
			i, m.ID, m.Args, m.MaxLocals, m.MaxStack, m.Code, mark)
	}

	fmt.Fprintln(w, heading("Constants"))
	for i := 0; i < l.ConstantCount(); i++ {
		c, err := l.Constant(uint16(i))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %3d %s\n", i, c)
	}

	n, err := l.StringCount()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, heading("Strings"))
	for i := 0; i < n; i++ {
		ref := image.StringRef(i)
		s, err := l.String(ref)
		if err != nil {
			return err
		}
		addr, err := l.ResolveAddress(ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %3d %s %q\n", l.ConstantCount()+i, addr, s)
	}
	return nil
}
