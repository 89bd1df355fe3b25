package capture

import (
	"testing"

	"cdphar/pkg/model"
)

func TestParseCookies(t *testing.T) {
	headers := []model.HeaderEntry{
		{Name: "Cookie", Value: "sid=abc123; theme=dark; =orphan; flag; token=a=b"},
	}
	got := parseCookies(headers)
	want := []struct{ name, value string }{
		{"sid", "abc123"},
		{"theme", "dark"},
		{"flag", ""},
		{"token", "a=b"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d cookies, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Value != w.value {
			t.Fatalf("cookie %d = %q=%q, want %q=%q", i, got[i].Name, got[i].Value, w.name, w.value)
		}
	}
}

func TestParseCookiesNoHeader(t *testing.T) {
	got := parseCookies([]model.HeaderEntry{{Name: "Accept", Value: "*/*"}})
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestParseQueryPreservesOrder(t *testing.T) {
	got := parseQuery("https://example.com/search?z=1&a=two%20words&empty=&novalue")
	want := []struct{ name, value string }{
		{"z", "1"},
		{"a", "two words"},
		{"empty", ""},
		{"novalue", ""},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d params, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Name != w.name || got[i].Value != w.value {
			t.Fatalf("param %d = %q=%q, want %q=%q", i, got[i].Name, got[i].Value, w.name, w.value)
		}
	}
}

func TestParseQueryInvalidURL(t *testing.T) {
	if got := parseQuery("::not a url::"); len(got) != 0 {
		t.Fatalf("invalid url should yield no params, got %+v", got)
	}
}

func TestComputeTimingsNegativeBoundaries(t *testing.T) {
	got := computeTimings(&model.ResourceTiming{
		DNSStart: -1, DNSEnd: 5,
		ConnectStart: 5, ConnectEnd: -1,
		SSLStart: -1, SSLEnd: -1,
		SendStart: 10, SendEnd: 12,
		ReceiveHeadersEnd: 40,
	})
	if got.DNS != 0 || got.Connect != 0 || got.SSL != 0 {
		t.Fatalf("negative boundaries must yield 0, got %+v", got)
	}
	if got.Send != 2 || got.Wait != 28 {
		t.Fatalf("send/wait = %v/%v, want 2/28", got.Send, got.Wait)
	}
}

func TestComputeTimingsNilTiming(t *testing.T) {
	got := computeTimings(nil)
	if got.Send != 0 || got.Wait != 0 || got.DNS != 0 {
		t.Fatalf("nil timing must yield zero phases, got %+v", got)
	}
}

func TestNewTransactionPostData(t *testing.T) {
	body := `{"q":"x"}`
	tx := newTransaction(&model.RequestWillBeSent{
		RequestID: "r1",
		URL:       "https://api.example.com/search",
		Method:    "POST",
		Headers: []model.HeaderEntry{
			{Name: "Content-Type", Value: "application/json"},
		},
		PostData:  &body,
		Timestamp: 1,
		WallTime:  1700000000,
	}, model.CategoryXHR)

	if tx.entry.Request.PostData == nil {
		t.Fatal("post data not recorded")
	}
	if tx.entry.Request.PostData.MimeType != "application/json" {
		t.Fatalf("post mime = %q", tx.entry.Request.PostData.MimeType)
	}
	if tx.entry.Request.PostData.Text != body {
		t.Fatalf("post text = %q", tx.entry.Request.PostData.Text)
	}
	if tx.entry.Request.BodySize != int64(len(body)) {
		t.Fatalf("body size = %d, want %d", tx.entry.Request.BodySize, len(body))
	}
}

func TestParseSetCookies(t *testing.T) {
	got := parseSetCookies([]model.HeaderEntry{
		{Name: "Set-Cookie", Value: "sid=abc; Path=/; HttpOnly"},
		{Name: "set-cookie", Value: "theme=dark"},
		{Name: "Content-Type", Value: "text/html"},
	})
	if len(got) != 2 {
		t.Fatalf("got %d cookies, want 2: %+v", len(got), got)
	}
	if got[0].Name != "sid" || got[0].Value != "abc" {
		t.Fatalf("cookie 0 = %+v", got[0])
	}
	if got[1].Name != "theme" || got[1].Value != "dark" {
		t.Fatalf("cookie 1 = %+v", got[1])
	}
}

func TestAttachBodyBase64(t *testing.T) {
	tx := &transaction{}
	attachBody(tx, "ignored", true)
	if tx.entry.Response != nil {
		t.Fatal("attach without response must be a no-op")
	}

	tx = newTransaction(&model.RequestWillBeSent{RequestID: "r1", URL: "https://x", Method: "GET"}, model.CategoryXHR)
	fillResponse(tx, &model.ResponseReceived{RequestID: "r1", Status: 200, MimeType: "image/png"})
	attachBody(tx, "aGVsbG8=", true)
	if tx.entry.Response.Content.Encoding != "base64" {
		t.Fatalf("encoding = %q, want base64", tx.entry.Response.Content.Encoding)
	}
	if tx.entry.Response.Content.Size != int64(len("aGVsbG8=")) {
		t.Fatalf("content size = %d", tx.entry.Response.Content.Size)
	}
}

func TestFailTransactionKeepsExistingResponse(t *testing.T) {
	tx := newTransaction(&model.RequestWillBeSent{RequestID: "r1", URL: "https://x", Method: "GET", Timestamp: 10}, model.CategoryXHR)
	fillResponse(tx, &model.ResponseReceived{RequestID: "r1", Status: 502, StatusText: "Bad Gateway"})
	failTransaction(tx, &model.LoadingFailed{RequestID: "r1", Timestamp: 10.1, ErrorText: "net::ERR_FAILED"})

	if tx.entry.Response.Status != 502 {
		t.Fatalf("existing response overwritten: %+v", tx.entry.Response)
	}
	if tx.entry.Error != "net::ERR_FAILED" {
		t.Fatalf("error not recorded: %q", tx.entry.Error)
	}
}
