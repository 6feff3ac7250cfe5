package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/oddsgrid/betgrader/internal/pipeline"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"odds -110", "odds \\-110"},
		{"a.b(c)!", "a\\.b\\(c\\)\\!"},
		{"run_id=abc", "run\\_id\\=abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeMarkdownV2(tt.input); got != tt.want {
			t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatSummary(t *testing.T) {
	report := &pipeline.Report{
		RunID:           "run-1",
		Duration:        1500 * time.Millisecond,
		TotalSource:     120,
		TotalCandidates: 10,
		TotalNew:        7,
		TotalStale:      3,
		TotalScored:     9,
		TotalSkipped:    1,
		TotalUpserted:   9,
		TotalChunks:     1,
		Days: []pipeline.DayReport{
			{Day: "2025-01-15", Scored: 9, Skipped: 1},
		},
	}

	text := formatSummary(report)
	for _, want := range []string{
		"Grading run complete",
		"run\\-1",
		"Source rows: 120",
		"10 \\(7 new, 3 stale\\)",
		"Scored: 9, skipped: 1",
		"2025\\-01\\-15",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
}

func TestFormatSummary_NoDays(t *testing.T) {
	text := formatSummary(&pipeline.Report{RunID: "empty-run"})
	if strings.Contains(text, "By day") {
		t.Error("empty run should not include a day breakdown")
	}
}
