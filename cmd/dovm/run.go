package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dovm/asm"
	"dovm/vm"
)

// loadImage reads path and returns its bytecode image, assembling it first
// if the extension is .asm, or treating it as an already-assembled .bc image
// otherwise. The returned symbol table is non-nil only when path was
// assembled from source; a .bc image carries no symbol information.
func loadImage(path string) ([]byte, *asm.SymbolTable, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".asm") {
		img, err := asm.Assemble(string(contents))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "assembling %s", path)
		}
		return img.Bytes, img.Symbols, nil
	}
	return contents, nil, nil
}

func newRunCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "assemble (if .asm) or load (if .bc) a program and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bytes, _, err := loadImage(args[0])
			if err != nil {
				return err
			}

			machine := vm.New(log)
			if err := machine.SetBytecode(bytes); err != nil {
				return errors.Wrap(err, "loading bytecode")
			}
			return machine.Run()
		},
	}
}

func newAsmCmd(log *logrus.Logger) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "asm <file.asm>",
		Short: "assemble a source file into a bytecode image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "reading %s", args[0])
			}

			img, err := asm.Assemble(string(source))
			if err != nil {
				return errors.Wrap(err, "assembling")
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".bc"
			}
			if err := os.WriteFile(out, img.Bytes, 0o644); err != nil {
				return errors.Wrapf(err, "writing %s", out)
			}
			log.Infof("wrote %d bytes to %s", len(img.Bytes), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: input with .bc extension)")
	return cmd
}

func newDisasmCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "print one disassembled line per instruction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bytes, _, err := loadImage(args[0])
			if err != nil {
				return err
			}

			machine := vm.New(log)
			if err := machine.SetBytecode(bytes); err != nil {
				return errors.Wrap(err, "loading bytecode")
			}

			for _, line := range asm.Disassemble(machine.Code()) {
				cmd.Println(line)
			}
			return nil
		},
	}
}
