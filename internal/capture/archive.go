package capture

import (
	"strings"
	"time"

	"cdphar/pkg/har"
)

const (
	creatorName    = "cdphar"
	creatorVersion = "1.0.0"
	pageID         = "page_1"
)

// buildDocument 组装最终归档：已完成条目在前，仍在途的事务
// （如从未显式关闭的 websocket 连接）按到达顺序追加，不被丢弃。
// 页面级加载耗时未被本引擎跟踪，使用显式未知哨兵而非 0。
func (e *Engine) buildDocument(targetURL string) *har.HAR {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]har.Entry, 0, len(e.completed)+len(e.flight))
	entries = append(entries, e.completed...)
	for _, id := range e.order {
		if tx, ok := e.flight[id]; ok {
			entries = append(entries, tx.entry)
		}
	}
	for i := range entries {
		entries[i].Pageref = pageID
	}

	return &har.HAR{
		Log: har.Log{
			Version: har.Version,
			Creator: har.Creator{Name: creatorName, Version: creatorVersion},
			Browser: parseBrowser(e.browser),
			Pages: []har.Page{{
				StartedDateTime: e.startedAt.UTC().Format(time.RFC3339Nano),
				ID:              pageID,
				Title:           targetURL,
				PageTimings: har.PageTimings{
					OnContentLoad: har.UnknownTiming,
					OnLoad:        har.UnknownTiming,
				},
			}},
			Entries: entries,
		},
	}
}

// parseBrowser 从协议产品串（如 "HeadlessChrome/120.0.6099.28"）
// 尽力解析浏览器标识，失败回退为显式 unknown
func parseBrowser(product string) har.Browser {
	if product == "" {
		return har.Browser{Name: "unknown"}
	}
	parts := strings.SplitN(product, "/", 2)
	b := har.Browser{Name: parts[0]}
	if len(parts) == 2 {
		b.Version = parts[1]
	}
	if b.Name == "" {
		b.Name = "unknown"
	}
	return b
}
