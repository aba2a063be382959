package summary

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeSummaryCSV(t *testing.T, root, label, content string) {
	t.Helper()
	dir := filepath.Join(root, label, "pred")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.csv"), []byte(content), 0o644); err != nil {
		t.Fatalf("write summary csv: %v", err)
	}
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeSummaryCSV(t, root, "8192", "Tasks,Score\nqa_2,niah_1\n41.2,99.0\n")
	writeSummaryCSV(t, root, "4096", "Tasks,Score\nqa_1\n87.5\n")

	// An entry without a summary file is skipped.
	if err := os.MkdirAll(filepath.Join(root, "16384"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	summaries, err := Collect(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}

	// Sorted by label.
	if summaries[0].Label != "4096" || summaries[1].Label != "8192" {
		t.Errorf("expected sorted labels [4096 8192], got [%s %s]", summaries[0].Label, summaries[1].Label)
	}
	if !reflect.DeepEqual(summaries[0].Tasks, []string{"qa_1"}) {
		t.Errorf("unexpected tasks %v", summaries[0].Tasks)
	}
	if !reflect.DeepEqual(summaries[1].Scores, []string{"41.2", "99.0"}) {
		t.Errorf("unexpected scores %v", summaries[1].Scores)
	}
}

func TestCollectContinuesPastMalformedFile(t *testing.T) {
	root := t.TempDir()
	writeSummaryCSV(t, root, "1024", "only one row\n")
	writeSummaryCSV(t, root, "2048", "Tasks,Score\nqa_1\n87.5\n")

	summaries, err := Collect(root)
	if err == nil {
		t.Fatal("expected error for malformed summary")
	}
	if !strings.Contains(err.Error(), "1024") {
		t.Errorf("expected error naming the bad entry, got %v", err)
	}

	if len(summaries) != 1 || summaries[0].Label != "2048" {
		t.Errorf("expected the valid entry to survive, got %v", summaries)
	}
}

func TestCollectMissingRoot(t *testing.T) {
	if _, err := Collect(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestRender(t *testing.T) {
	summaries := []Summary{
		{Label: "4096", Tasks: []string{"qa_1", "niah_1"}, Scores: []string{"87.5", "99.0"}},
	}

	var sb strings.Builder
	Render(&sb, summaries)

	want := "4096:\n" +
		"qa_1\n" +
		"niah_1\n" +
		strings.Repeat("==", 20) + "\n" +
		"87.5\n" +
		"99.0\n" +
		"\n"
	if sb.String() != want {
		t.Errorf("unexpected report:\n%q\nwant:\n%q", sb.String(), want)
	}
}
