// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"log"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

type Config struct {
	configFile string
	key        string
	input      string
	output     string
	metrics    string
}

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
}

func newRootCommand() *cobra.Command {
	var conf Config

	cmd := &cobra.Command{
		Use:   "hashcrypt-sim",
		Short: "HASHCRYPT AES-128-ECB driver task simulator",
		Long: `Runs the HASHCRYPT driver task against an emulated engine and encrypts
the input with AES-128-ECB through the task IPC interface.

The input length must be a multiple of 16 bytes.`,
		Example: `  # encrypt a file
  hashcrypt-sim --key 2b7e151628aed2a6abf7158809cf4f3c --in plain.bin --out cipher.bin

  # run the driver known answer test
  hashcrypt-sim selftest`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return encryptFile(cmd.Context(), &conf)
		},
	}

	cmd.PersistentFlags().StringVarP(&conf.configFile, "config", "c", "", "driver configuration file (TOML)")
	cmd.PersistentFlags().StringVarP(&conf.metrics, "metrics", "m", "", "serve prometheus metrics on this address until interrupted")

	cmd.Flags().StringVarP(&conf.key, "key", "k", "", "AES-128 key (hex)")
	cmd.Flags().StringVarP(&conf.input, "in", "i", "-", "input file (- for stdin)")
	cmd.Flags().StringVarP(&conf.output, "out", "o", "-", "output file (- for stdout)")

	_ = cmd.MarkFlagRequired("key")

	cmd.AddCommand(newSelftestCommand(&conf))

	return cmd
}

func newSelftestCommand(conf *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Encrypt the FIPS-197 and SP 800-38A test vectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return selftest(cmd.Context(), conf)
		},
	}
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCommand(),
		fang.WithVersion(versioninfo.Short()),
	); err != nil {
		os.Exit(1)
	}
}
