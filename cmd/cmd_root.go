// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	"github.com/jcodagnone/psweed/pscands"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

// counts formats numbers with thousands separators in log lines.
var counts = message.NewPrinter(language.English)

var rootCmd = &cobra.Command{
	Use:   "psweed",
	Short: "persistent scatterer candidate weeding",
	Long: `
psweed removes spatially redundant persistent scatterer candidates, keeping the
most coherent candidate of every neighborhood cluster. Candidate sets and
weeding runs are stored in a local DuckDB database.
`,
}

var Version = "dev"

var dbPath string

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dbPath,
		"db-path",
		"db",
		"Directory holding the candidate database",
	)
}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// openRepository opens the database under dbPath and ensures its schema.
func openRepository() (*sql.DB, pscands.Repository, error) {
	if err := os.MkdirAll(dbPath, 0o750); err != nil {
		return nil, nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dbPath, "psweed.duckdb"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	repo := pscands.NewSQLRepository(db)
	if err := repo.CreateSchema(); err != nil {
		db.Close()

		return nil, nil, fmt.Errorf("creating schema: %w", err)
	}

	return db, repo, nil
}
