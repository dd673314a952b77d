package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})

	rootCmd := &cobra.Command{
		Use:   "dovm",
		Short: "assembler and register VM for a simple expression language toolchain",
	}

	rootCmd.AddCommand(
		newRunCmd(log),
		newAsmCmd(log),
		newDisasmCmd(log),
		newReplCmd(log),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
