package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseFlexTime(t *testing.T) {
	want := time.Date(2025, 1, 15, 19, 30, 0, 0, time.UTC)
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-01-15T19:30:00Z", want},
		{"2025-01-15T19:30:00.000Z", want},
		{"2025-01-15T19:30:00", want},
		{"2025-01-15 19:30:00", want},
		{"2025-01-15 19:30", want},
		{"2025-01-15T14:30:00-05:00", want},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFlexTime(tt.input)
			if err != nil {
				t.Fatalf("ParseFlexTime(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got.Time, tt.want)
			}
		})
	}
}

func TestParseFlexTime_Rejects(t *testing.T) {
	for _, input := range []string{"", "  ", "yesterday", "15/01/2025"} {
		if _, err := ParseFlexTime(input); err == nil {
			t.Errorf("ParseFlexTime(%q) succeeded, want error", input)
		}
	}
}

func TestFlexTime_JSONRoundtrip(t *testing.T) {
	orig := NewTime(time.Date(2025, 1, 15, 19, 30, 0, 0, time.UTC))
	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2025-01-15T19:30:00Z"` {
		t.Errorf("marshaled as %s", data)
	}
	var back FlexTime
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(orig.Time) {
		t.Errorf("roundtrip changed value: %v -> %v", orig.Time, back.Time)
	}
}

func TestFlexTime_UnmarshalLegacyLayout(t *testing.T) {
	var rec BettingRecord
	blob := `{"bet_id":"b","timestamp":"2025-01-15 19:30:00","event_time":"2025-01-16T00:00:00Z"}`
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Timestamp.Hour() != 19 || rec.Timestamp.Minute() != 30 {
		t.Errorf("timestamp = %v", rec.Timestamp.Time)
	}
}

func TestFlexTime_Day(t *testing.T) {
	// A late-evening eastern time lands on the next UTC day.
	est := time.FixedZone("EST", -5*3600)
	ft := NewTime(time.Date(2025, 1, 15, 22, 0, 0, 0, est))
	if got := ft.Day(); got != "2025-01-16" {
		t.Errorf("Day() = %s, want 2025-01-16", got)
	}
}

func TestBettingRecord_Validate(t *testing.T) {
	valid := BettingRecord{BetID: "b", Timestamp: NewTime(time.Now())}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}
	missing := BettingRecord{Timestamp: NewTime(time.Now())}
	if err := missing.Validate(); err == nil {
		t.Error("record without bet ID accepted")
	}
	noTime := BettingRecord{BetID: "b"}
	if err := noTime.Validate(); err == nil {
		t.Error("record without timestamp accepted")
	}
}

func TestGradeRecord_Validate(t *testing.T) {
	base := GradeRecord{
		BetID:          "b",
		Grade:          GradeA,
		CompositeScore: 92,
		CalculatedAt:   NewTime(time.Now()),
	}
	if err := base.Validate(); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*GradeRecord)
	}{
		{"empty id", func(g *GradeRecord) { g.BetID = "" }},
		{"bad grade", func(g *GradeRecord) { g.Grade = "E" }},
		{"negative composite", func(g *GradeRecord) { g.CompositeScore = -1 }},
		{"composite above 100", func(g *GradeRecord) { g.CompositeScore = 101 }},
		{"zero calculated_at", func(g *GradeRecord) { g.CalculatedAt = FlexTime{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := base
			tt.mutate(&g)
			if err := g.Validate(); err == nil {
				t.Error("invalid record accepted")
			}
		})
	}
}
