package capture

import (
	"net/url"
	"strings"
	"time"

	"cdphar/pkg/har"
	"cdphar/pkg/model"
)

// transaction 在途事务：协议标识到部分构建条目的映射值
type transaction struct {
	id       string
	category model.ResourceCategory
	// startTS 协议单调时钟（秒），用于相对耗时计算
	startTS float64
	// started 墙上时钟，写入 startedDateTime
	started time.Time
	entry   har.Entry
	// sendMS/waitMS 已知阶段耗时，finish 时用于推导 receive
	sendMS float64
	waitMS float64
	// fetchingBody finish 已到达、响应体拉取进行中
	fetchingBody bool
}

// newTransaction 由请求事件构建在途事务，纯函数
func newTransaction(ev *model.RequestWillBeSent, cat model.ResourceCategory) *transaction {
	req := har.Request{
		Method:      ev.Method,
		URL:         ev.URL,
		Cookies:     parseCookies(ev.Headers),
		Headers:     toNameValues(ev.Headers),
		QueryString: parseQuery(ev.URL),
		HeadersSize: -1,
		BodySize:    -1,
	}
	if ev.PostData != nil {
		req.PostData = &har.PostData{
			MimeType: headerValue(ev.Headers, "content-type"),
			Text:     *ev.PostData,
		}
		req.BodySize = int64(len(*ev.PostData))
	}

	started := time.Unix(0, int64(ev.WallTime*float64(time.Second)))
	return &transaction{
		id:       ev.RequestID,
		category: cat,
		startTS:  ev.Timestamp,
		started:  started,
		entry: har.Entry{
			StartedDateTime: started.UTC().Format(time.RFC3339Nano),
			Request:         req,
			ResourceType:    string(cat),
			Initiator:       ev.DocumentURL,
		},
	}
}

// fillResponse 将响应事件数据合入事务，并计算阶段耗时
func fillResponse(tx *transaction, ev *model.ResponseReceived) {
	res := &har.Response{
		Status:      ev.Status,
		StatusText:  ev.StatusText,
		HTTPVersion: ev.Protocol,
		Cookies:     parseSetCookies(ev.Headers),
		Headers:     toNameValues(ev.Headers),
		Content:     har.Content{MimeType: ev.MimeType},
		RedirectURL: headerValue(ev.Headers, "location"),
		HeadersSize: -1,
		BodySize:    -1,
	}
	tx.entry.Response = res
	tx.entry.Request.HTTPVersion = ev.Protocol
	tx.entry.ServerIPAddress = ev.RemoteIPAddress
	tx.entry.Timings = computeTimings(ev.Timing)
	tx.sendMS = tx.entry.Timings.Send
	tx.waitMS = tx.entry.Timings.Wait
}

// finishTransaction 由完成事件推导总耗时与 receive 阶段。
// receive = total − send − wait，上游阶段数据缺失时结果可能为负，按原样保留。
func finishTransaction(tx *transaction, ev *model.LoadingFinished) {
	total := (ev.Timestamp - tx.startTS) * 1000
	tx.entry.Time = total
	tx.entry.Timings.Receive = total - tx.sendMS - tx.waitMS
	if tx.entry.Response != nil && ev.EncodedDataLength > 0 {
		tx.entry.Response.BodySize = int64(ev.EncodedDataLength)
	}
}

// failTransaction 记录失败信息；若响应从未到达则合成状态 0 的占位响应，
// 保证带错误的已终止事务不会对外暴露空响应。
func failTransaction(tx *transaction, ev *model.LoadingFailed) {
	tx.entry.Error = ev.ErrorText
	tx.entry.Canceled = ev.Canceled
	if ev.Timestamp > tx.startTS {
		tx.entry.Time = (ev.Timestamp - tx.startTS) * 1000
	}
	if tx.entry.Response == nil {
		tx.entry.Response = &har.Response{
			Status:      0,
			StatusText:  ev.ErrorText,
			Cookies:     []har.Cookie{},
			Headers:     []har.NameValue{},
			HeadersSize: -1,
			BodySize:    -1,
		}
	}
}

// attachBody 附加响应体内容，协议报告二进制编码时标记 base64
func attachBody(tx *transaction, body string, base64Encoded bool) {
	if tx.entry.Response == nil {
		return
	}
	tx.entry.Response.Content.Text = body
	tx.entry.Response.Content.Size = int64(len(body))
	if base64Encoded {
		tx.entry.Response.Content.Encoding = "base64"
	}
}

// summarize 生成事务的精简摘要，通知载荷不携带完整条目
func summarize(tx *transaction, elapsedMS float64) *model.TransactionSummary {
	s := &model.TransactionSummary{
		ID:        tx.id,
		Method:    tx.entry.Request.Method,
		URL:       tx.entry.Request.URL,
		Category:  tx.category,
		ElapsedMS: elapsedMS,
	}
	if res := tx.entry.Response; res != nil {
		s.Status = res.Status
		if res.BodySize > 0 {
			s.Size = res.BodySize
		}
	}
	return s
}

// computeTimings 按协议阶段边界成对相减得到各阶段耗时，
// 任一边界为负哨兵值时该阶段记 0 而非负数
func computeTimings(t *model.ResourceTiming) har.Timings {
	if t == nil {
		return har.Timings{}
	}
	return har.Timings{
		DNS:     span(t.DNSStart, t.DNSEnd),
		Connect: span(t.ConnectStart, t.ConnectEnd),
		SSL:     span(t.SSLStart, t.SSLEnd),
		Send:    span(t.SendStart, t.SendEnd),
		Wait:    span(t.SendEnd, t.ReceiveHeadersEnd),
	}
}

func span(start, end float64) float64 {
	if start < 0 || end < 0 || end < start {
		return 0
	}
	return end - start
}

// parseCookies 解析 Cookie 头：按 ";" 分段后取第一个 "="，
// 去除空白后名字为空的片段丢弃
func parseCookies(headers []model.HeaderEntry) []har.Cookie {
	out := []har.Cookie{}
	raw := headerValue(headers, "cookie")
	if raw == "" {
		return out
	}
	for _, part := range strings.Split(raw, ";") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		name := strings.TrimSpace(kv[0])
		if name == "" {
			continue
		}
		c := har.Cookie{Name: name}
		if len(kv) == 2 {
			c.Value = kv[1]
		}
		out = append(out, c)
	}
	return out
}

// parseSetCookies 从响应头解析 Set-Cookie（仅取名值对，忽略属性）
func parseSetCookies(headers []model.HeaderEntry) []har.Cookie {
	out := []har.Cookie{}
	for _, h := range headers {
		if !strings.EqualFold(h.Name, "set-cookie") {
			continue
		}
		first := strings.TrimSpace(strings.SplitN(h.Value, ";", 2)[0])
		kv := strings.SplitN(first, "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			out = append(out, har.Cookie{Name: kv[0], Value: kv[1]})
		}
	}
	return out
}

// parseQuery 从 URL 查询串解析参数，保留出现顺序
func parseQuery(raw string) []har.NameValue {
	out := []har.NameValue{}
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return out
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		nv := har.NameValue{Name: unescape(kv[0])}
		if len(kv) == 2 {
			nv.Value = unescape(kv[1])
		}
		out = append(out, nv)
	}
	return out
}

func unescape(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return s
}

func toNameValues(headers []model.HeaderEntry) []har.NameValue {
	out := make([]har.NameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, har.NameValue{Name: h.Name, Value: h.Value})
	}
	return out
}

func headerValue(headers []model.HeaderEntry, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
