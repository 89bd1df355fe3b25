package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"cdphar/pkg/har"
)

func openTestStore(t *testing.T, bodyThreshold int64) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "captures.sqlite3")
	s, err := Open(dsn, "cdphar_", bodyThreshold, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func sampleArchive(bodies ...string) *har.HAR {
	doc := &har.HAR{
		Log: har.Log{
			Version: har.Version,
			Creator: har.Creator{Name: "cdphar", Version: "1.0.0"},
		},
	}
	for i, body := range bodies {
		doc.Log.Entries = append(doc.Log.Entries, har.Entry{
			Request: har.Request{Method: "GET", URL: "https://example.com"},
			Response: &har.Response{
				Status:  200,
				Content: har.Content{Text: body, Size: int64(len(body))},
			},
			Pageref: "page_1",
			Time:    float64(i),
		})
	}
	return doc
}

func TestSaveArchiveRoundTrip(t *testing.T) {
	s := openTestStore(t, 0)
	started := time.Now().Add(-time.Minute)

	id, err := s.SaveArchive(sampleArchive("hello"), "https://example.com/app", started)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == "" {
		t.Fatal("empty record id")
	}

	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.TargetURL != "https://example.com/app" || rec.EntryCount != 1 {
		t.Fatalf("record = %+v", rec)
	}
	if got := gjson.GetBytes(rec.Document, "log.entries.0.response.content.text").String(); got != "hello" {
		t.Fatalf("stored body = %q, want hello", got)
	}
	if v := gjson.GetBytes(rec.Document, "log.version").String(); v != har.Version {
		t.Fatalf("stored version = %q", v)
	}
}

func TestSaveArchiveTrimsLargeBodies(t *testing.T) {
	s := openTestStore(t, 16)
	big := strings.Repeat("x", 64)

	id, err := s.SaveArchive(sampleArchive("small", big), "https://example.com", time.Now())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got := gjson.GetBytes(rec.Document, "log.entries.0.response.content.text").String(); got != "small" {
		t.Fatalf("small body should survive, got %q", got)
	}
	if gjson.GetBytes(rec.Document, "log.entries.1.response.content.text").Exists() {
		t.Fatal("oversized body should be trimmed")
	}
	// 裁剪只移除文本，其余响应字段保留
	if got := gjson.GetBytes(rec.Document, "log.entries.1.response.status").Int(); got != 200 {
		t.Fatalf("status lost after trim: %d", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t, 0)
	if _, err := s.SaveArchive(sampleArchive(), "https://a.example.com", time.Now()); err != nil {
		t.Fatalf("save: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	id2, err := s.SaveArchive(sampleArchive("x"), "https://b.example.com", time.Now())
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	recs, err := s.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID != id2 {
		t.Fatalf("newest record first: got %s", recs[0].ID)
	}
	if len(recs[0].Document) != 0 {
		t.Fatal("list must not load document payloads")
	}
}
