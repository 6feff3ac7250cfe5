package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oddsgrid/betgrader/internal/logger"
	"github.com/oddsgrid/betgrader/internal/models"
	"github.com/oddsgrid/betgrader/internal/store"
)

func newTestClient(t *testing.T, baseURL string, pageSize, chunkSize int) *Client {
	t.Helper()
	c, err := New(Config{
		BaseURL:        baseURL,
		APIKey:         "test-key",
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: time.Millisecond,
		PageSize:       pageSize,
		ChunkSize:      chunkSize,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func sourceRows(n int) []models.BettingRecord {
	base := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	rows := make([]models.BettingRecord, n)
	for i := range rows {
		rows[i] = models.BettingRecord{
			BetID:          fmt.Sprintf("bet-%03d", i),
			Timestamp:      models.NewTime(base.Add(time.Duration(i) * time.Minute)),
			EventTime:      models.NewTime(base.Add(24 * time.Hour)),
			EVPercent:      "5.2%",
			Odds:           "-110",
			WinProbability: "55",
		}
	}
	return rows
}

func TestNew_RequiresCredentials(t *testing.T) {
	if _, err := New(Config{APIKey: "k"}, logger.Nop()); err == nil {
		t.Error("expected error for missing URL")
	}
	if _, err := New(Config{BaseURL: "http://x"}, logger.Nop()); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestFetchBettingRecords_Pagination(t *testing.T) {
	rows := sourceRows(25)
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/betting_data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("apikey header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		q := r.URL.Query()
		requests = append(requests, q.Get("offset"))
		if q.Get("order") != "timestamp.asc" {
			t.Errorf("order = %q", q.Get("order"))
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page := rows[offset:end]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10, 100)
	got, err := c.FetchBettingRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchBettingRecords: %v", err)
	}
	if len(got) != 25 {
		t.Fatalf("fetched %d rows, want 25", len(got))
	}
	wantOffsets := []string{"0", "10", "20"}
	if len(requests) != len(wantOffsets) {
		t.Fatalf("made %d requests, want %d", len(requests), len(wantOffsets))
	}
	for i, off := range wantOffsets {
		if requests[i] != off {
			t.Errorf("request %d offset = %s, want %s", i, requests[i], off)
		}
	}
	if got[0].BetID != "bet-000" || got[24].BetID != "bet-024" {
		t.Errorf("rows out of order: first=%s last=%s", got[0].BetID, got[24].BetID)
	}
}

func TestFetchBettingRecords_ExactPageBoundary(t *testing.T) {
	// 20 rows with page size 10: the third request returns an empty page.
	rows := sourceRows(20)
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := offset + 10
		if offset > len(rows) {
			offset = len(rows)
		}
		if end > len(rows) {
			end = len(rows)
		}
		_ = json.NewEncoder(w).Encode(rows[offset:end])
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10, 100)
	got, err := c.FetchBettingRecords(context.Background())
	if err != nil {
		t.Fatalf("FetchBettingRecords: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("fetched %d rows, want 20", len(got))
	}
	if pages != 3 {
		t.Errorf("made %d requests, want 3 (last one empty)", pages)
	}
}

func TestFetch_ErrorCarriesContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10, 100)
	_, err := c.FetchGradeRecords(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"bet_grades", "offset 0", "403"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestUpsertGradeRecords_Protocol(t *testing.T) {
	var gotConflict, gotPrefer string
	var bodies [][]models.GradeRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/rest/v1/bet_grades" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotConflict = r.URL.Query().Get("on_conflict")
		gotPrefer = r.Header.Get("Prefer")
		var chunk []models.GradeRecord
		if err := json.NewDecoder(r.Body).Decode(&chunk); err != nil {
			t.Errorf("bad chunk body: %v", err)
		}
		bodies = append(bodies, chunk)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	records := make([]models.GradeRecord, 5)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	for i := range records {
		records[i] = models.GradeRecord{
			BetID:        fmt.Sprintf("bet-%d", i),
			Grade:        models.GradeB,
			CalculatedAt: models.NewTime(now),
		}
	}

	c := newTestClient(t, srv.URL, 100, 2)
	stats, err := c.UpsertGradeRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("UpsertGradeRecords: %v", err)
	}
	if gotConflict != store.ConflictKey {
		t.Errorf("on_conflict = %q, want %q", gotConflict, store.ConflictKey)
	}
	if gotPrefer != "resolution=merge-duplicates,return=minimal" {
		t.Errorf("Prefer = %q", gotPrefer)
	}
	if len(bodies) != 3 {
		t.Fatalf("got %d chunks, want 3", len(bodies))
	}
	if stats.Upserted != 5 || stats.Dropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestUpsertGradeRecords_BisectsFailedChunk(t *testing.T) {
	// The server rejects any chunk containing the poison record.
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	records := make([]models.GradeRecord, 4)
	for i := range records {
		records[i] = models.GradeRecord{
			BetID:        fmt.Sprintf("bet-%d", i),
			Grade:        models.GradeB,
			CalculatedAt: models.NewTime(now),
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var chunk []models.GradeRecord
		_ = json.NewDecoder(r.Body).Decode(&chunk)
		for _, g := range chunk {
			if g.BetID == "bet-2" {
				http.Error(w, `{"message":"value too long"}`, http.StatusBadRequest)
				return
			}
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 100, 4)
	stats, err := c.UpsertGradeRecords(context.Background(), records)
	if err != nil {
		t.Fatalf("a rejected record must not abort the upsert: %v", err)
	}
	if stats.Upserted != 3 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 3 upserted, 1 dropped", stats)
	}
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode([]models.GradeRecord{})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10, 100)
	if _, err := c.FetchGradeRecords(context.Background()); err != nil {
		t.Fatalf("expected recovery after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("made %d calls, want 3", calls.Load())
	}
}

func TestDoRequest_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 10, 100)
	if _, err := c.FetchGradeRecords(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("made %d calls, want 1 (4xx is not retried)", calls.Load())
	}
}
