// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jcodagnone/psweed/spatial"
	"github.com/jcodagnone/psweed/weed"
	"github.com/spf13/cobra"
)

// isTerminal reports whether f is a character device. When f can't be
// inspected we say that it isn't.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return (info.Mode() & os.ModeCharDevice) != 0
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Dev tools",
}

var debugGridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Prints the claim grid and keep-mask of a few candidates",
	Long: `Reads one candidate per line as "row col coherence" and prints the claim
grid (candidate index per cell, "." for empty) followed by the keep-mask.

$ printf '0 0 0.90\n0 1 0.95\n' | psweed debug grid
`,
	RunE: func(_ *cobra.Command, _ []string) error {
		input := os.Stdin
		if isTerminal(input) {
			fmt.Fprintln(os.Stderr, "Enter candidates as 'row col coherence', one per line…")
		}

		cands, err := readCandidates(input)
		if err != nil {
			return err
		}

		return printGrid(os.Stdout, cands)
	},
}

func readCandidates(r io.Reader) ([]weed.Candidate, error) {
	var cands []weed.Candidate

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 'row col coherence', got %q", line, scanner.Text())
		}

		row, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: row: %w", line, err)
		}

		col, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: col: %w", line, err)
		}

		coh, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: coherence: %w", line, err)
		}

		cands = append(cands, weed.Candidate{
			ID:        len(cands),
			Pixel:     spatial.Pixel{Row: row, Col: col},
			Coherence: coh,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}

	return cands, nil
}

func printGrid(w io.Writer, cands []weed.Candidate) error {
	weeder := weed.New(weed.Options{MaxGridCells: 1 << 16})

	table, err := weeder.Claims(cands)
	if err != nil {
		return err
	}

	res, err := weeder.Weed(cands)
	if err != nil {
		return err
	}

	width := len(strconv.Itoa(len(cands)))

	for _, row := range table.Claims {
		cells := make([]string, len(row))
		for i, c := range row {
			if c < 0 {
				cells[i] = fmt.Sprintf("%*s", width, ".")
			} else {
				cells[i] = fmt.Sprintf("%*d", width, c)
			}
		}

		fmt.Fprintln(w, strings.Join(cells, " "))
	}

	fmt.Fprintf(w, "shift %s\n", table.Shift)

	for i, c := range cands {
		fmt.Fprintf(w, "%d\t%s\t%g\t%t\n", i, c.Pixel.Add(table.Shift), c.Coherence, res.Keep[i])
	}

	return nil
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugGridCmd)
}
