package model

import "testing"

func TestCategoryFromProtocol(t *testing.T) {
	cases := []struct {
		raw  string
		want ResourceCategory
	}{
		{"XHR", CategoryXHR},
		{"Fetch", CategoryFetch},
		{"WebSocket", CategoryWebSocket},
		{"Document", CategoryDocument},
		{"Stylesheet", CategoryStylesheet},
		{"Script", CategoryScript},
		{"Image", CategoryImage},
		{"Font", CategoryFont},
		{"Media", CategoryMedia},
		{"Prefetch", CategoryOther},
		{"xhr", CategoryOther}, // 协议类型大小写敏感
		{"", CategoryOther},
	}
	for _, tc := range cases {
		if got := CategoryFromProtocol(tc.raw); got != tc.want {
			t.Fatalf("CategoryFromProtocol(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
