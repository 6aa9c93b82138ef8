// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/jcodagnone/psweed/server"
	"github.com/jcodagnone/psweed/weed"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	Addr         string
	MaxGridCells int
}

var serveOpts = &serveOptions{}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the weeding HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		s := server.NewServer(repo, weed.Options{MaxGridCells: serveOpts.MaxGridCells})

		return s.Run(serveOpts.Addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveOpts.Addr,
		"addr",
		"localhost:8080",
		"Address to listen on",
	)
	serveCmd.Flags().IntVar(
		&serveOpts.MaxGridCells,
		"max-grid-cells",
		weed.DefaultMaxGridCells,
		"Largest claim grid a request may allocate. Negative disables the limit",
	)
}
