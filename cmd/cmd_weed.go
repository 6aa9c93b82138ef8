// Copyright 2025 The PsWeed Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jcodagnone/psweed/pscands"
	"github.com/jcodagnone/psweed/weed"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type weedOptions struct {
	Set    string
	Input  string
	H3Res  int
	DryRun bool
	weed.Options
}

var weedOpts = &weedOptions{}

var importCmd = &cobra.Command{
	Use:   "import <set> <file.csv>",
	Short: "Imports a candidate set from a CSV file",
	Long: `Imports candidates from a CSV file with a header row. Required columns are
id, row, col and coherence; lon and lat are optional. Rows are kept in file
order, which is the order used when weeding.`,
	Args: cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := repo.ImportCSV(args[0], args[1])
		if err != nil {
			return fmt.Errorf("importing %s: %w", args[1], err)
		}

		log.Print(counts.Sprintf("Imported %d candidates into set %s", n, args[0]))

		return nil
	},
}

var weedCmd = &cobra.Command{
	Use:   "weed",
	Short: "Weeds a stored candidate set",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		if weedOpts.Set == "" {
			return errors.New("--set is required")
		}

		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		if weedOpts.Input != "" {
			n, err := repo.ImportCSV(weedOpts.Set, weedOpts.Input)
			if err != nil {
				return fmt.Errorf("importing %s: %w", weedOpts.Input, err)
			}

			log.Print(counts.Sprintf("Imported %d candidates into set %s", n, weedOpts.Set))
		}

		cands, err := repo.LoadCandidates(weedOpts.Set)
		if err != nil {
			return fmt.Errorf("loading candidates: %w", err)
		}

		if len(cands) == 0 {
			return fmt.Errorf("set %s has no candidates", weedOpts.Set)
		}

		log.Print(counts.Sprintf("Weeding %d candidates of set %s", len(cands), weedOpts.Set))

		res, err := weed.New(weedOpts.Options).Weed(cands)
		if err != nil {
			return fmt.Errorf("weeding %s: %w", weedOpts.Set, err)
		}

		log.Print(counts.Sprintf(
			"Grid %dx%d, %d neighbor links, %d clusters",
			res.Bounds.Rows(), res.Bounds.Cols(), res.Links, len(res.Clusters),
		))
		log.Print(counts.Sprintf(
			"Weeding complete - %d kept, %d removed from %d candidates",
			res.Kept(), res.Removed(), len(cands),
		))

		if weedOpts.DryRun {
			return nil
		}

		return saveRun(repo, cands, res)
	},
}

func saveRun(repo pscands.Repository, cands []weed.Candidate, res *weed.Result) error {
	var bar *progressbar.ProgressBar
	if isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(cands),
			progressbar.OptionSetDescription("Saving "+weedOpts.Set),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	onRow := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	run := &pscands.Run{
		Set:            weedOpts.Set,
		SkipNeighbours: weedOpts.SkipNeighbours,
		H3Res:          weedOpts.H3Res,
	}
	if err := repo.SaveRun(run, cands, res, onRow); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	log.Printf("Stored run %d for set %s", run.ID, run.Set)

	return nil
}

var runsCmd = &cobra.Command{
	Use:   "runs [set]",
	Short: "Lists stored weeding runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		db, repo, err := openRepository()
		if err != nil {
			return err
		}
		defer db.Close()

		set := ""
		if len(args) > 0 {
			set = args[0]
		}

		runs, err := repo.ListRuns(set)
		if err != nil {
			return err
		}

		a, b, c := strings.Repeat("─", 5), strings.Repeat("─", 16), strings.Repeat("─", 10)
		fmt.Printf("╭─%5s─┬─%-16s─┬─%-16s─┬─%10s─┬─%10s─┬─%10s─╮\n", a, b, b, c, c, c)
		fmt.Printf("│ %5s │ %-16s │ %-16s │ %10s │ %10s │ %10s │\n", "Id", "Set", "Created", "Total", "Kept", "Clusters")
		fmt.Printf("├─%5s─┼─%-16s─┼─%-16s─┼─%10s─┼─%10s─┼─%10s─┤\n", a, b, b, c, c, c)

		for _, r := range runs {
			fmt.Printf("│ %5d │ %-16s │ %-16s │ %10d │ %10d │ %10d │\n",
				r.ID, r.Set, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Total, r.Kept, r.Clusters)
		}

		fmt.Printf("╰─%5s─┴─%-16s─┴─%-16s─┴─%10s─┴─%10s─┴─%10s─╯\n", a, b, b, c, c, c)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(weedCmd)
	rootCmd.AddCommand(runsCmd)

	weedCmd.Flags().StringVar(
		&weedOpts.Set,
		"set",
		"",
		"Candidate set to weed",
	)
	weedCmd.Flags().StringVar(
		&weedOpts.Input,
		"input",
		"",
		"CSV file imported into the set before weeding",
	)
	weedCmd.Flags().IntVar(
		&weedOpts.MaxGridCells,
		"max-grid-cells",
		weed.DefaultMaxGridCells,
		"Largest claim grid to allocate. Negative disables the limit",
	)
	weedCmd.Flags().BoolVar(
		&weedOpts.SkipNeighbours,
		"skip-neighbours",
		false,
		"Keeps every candidate without neighbor weeding",
	)
	weedCmd.Flags().IntVar(
		&weedOpts.H3Res,
		"h3-res",
		9,
		"H3 resolution survivors are indexed at. 0 disables indexing",
	)
	weedCmd.Flags().BoolVar(
		&weedOpts.DryRun,
		"dry-run",
		false,
		"Does not store the run",
	)
}
