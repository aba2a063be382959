// Package summary collects benchmark results written by prediction runs.
// A results root holds one directory per sequence length, each containing
// a pred/summary.csv with three rows: header, task names, and scores.
package summary

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Summary holds the tasks and scores recorded for one sequence length.
type Summary struct {
	Label  string
	Tasks  []string
	Scores []string
}

// Collect reads every <seq_len>/pred/summary.csv under root, in sorted
// order. Entries without a summary file are skipped; malformed files are
// reported in the returned error while the walk continues.
func Collect(root string) ([]Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read results root %q: %w", root, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var summaries []Summary
	var errs []error
	for _, name := range names {
		path := filepath.Join(root, name, "pred", "summary.csv")
		if _, err := os.Stat(path); err != nil {
			continue
		}

		s, err := readSummary(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		s.Label = name
		summaries = append(summaries, s)
	}

	return summaries, errors.Join(errs...)
}

func readSummary(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open summary: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Row 1 is a header, row 2 task names, row 3 scores.
	if _, err := reader.Read(); err != nil {
		return Summary{}, fmt.Errorf("read header row: %w", err)
	}
	tasks, err := reader.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("read tasks row: %w", err)
	}
	scores, err := reader.Read()
	if err != nil {
		return Summary{}, fmt.Errorf("read scores row: %w", err)
	}

	return Summary{Tasks: tasks, Scores: scores}, nil
}

// Render writes summaries in the report layout: the sequence-length label,
// each task name, a separator, then each score.
func Render(w io.Writer, summaries []Summary) {
	for _, s := range summaries {
		fmt.Fprintf(w, "%s:\n", s.Label)
		for _, task := range s.Tasks {
			fmt.Fprintln(w, task)
		}
		fmt.Fprintln(w, strings.Repeat("==", 20))
		for _, score := range s.Scores {
			fmt.Fprintln(w, score)
		}
		fmt.Fprintln(w)
	}
}
