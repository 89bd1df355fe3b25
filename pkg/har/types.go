// Package har 定义 HAR 1.2 归档文档结构，可被任何支持 HAR 的工具消费。
package har

// Version HAR 格式版本号
const Version = "1.2"

// UnknownTiming 页面级耗时未跟踪时的显式哨兵值
const UnknownTiming = -1

// HAR 归档文档根节点
type HAR struct {
	Log Log `json:"log"`
}

// Log 归档主体
type Log struct {
	Version string  `json:"version"`
	Creator Creator `json:"creator"`
	Browser Browser `json:"browser"`
	Pages   []Page  `json:"pages"`
	Entries []Entry `json:"entries"`
}

// Creator 归档生成器标识
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Browser 产生流量的浏览器标识
type Browser struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Page 逻辑页面描述
type Page struct {
	StartedDateTime string      `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
}

// PageTimings 页面加载耗时，-1 表示未知
type PageTimings struct {
	OnContentLoad float64 `json:"onContentLoad"`
	OnLoad        float64 `json:"onLoad"`
}

// Entry 单个捕获事务。Time 为事务总耗时（毫秒），
// Response 为空表示事务从未收到响应。
type Entry struct {
	Pageref         string    `json:"pageref,omitempty"`
	StartedDateTime string    `json:"startedDateTime"`
	Time            float64   `json:"time"`
	Request         Request   `json:"request"`
	Response        *Response `json:"response,omitempty"`
	Cache           Cache     `json:"cache"`
	Timings         Timings   `json:"timings"`
	ServerIPAddress string    `json:"serverIPAddress,omitempty"`

	// Chrome DevTools 风格的扩展字段
	ResourceType string `json:"_resourceType,omitempty"`
	Initiator    string `json:"_initiator,omitempty"`
	Error        string `json:"_error,omitempty"`
	Canceled     bool   `json:"_canceled,omitempty"`
}

// Request 请求部分
type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []Cookie    `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
}

// Response 响应部分
type Response struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []Cookie    `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
}

// Content 响应体内容
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// PostData 请求体
type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Cookie 解析后的 Cookie
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NameValue 通用键值对（头部、查询参数）
type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Cache 缓存信息，本引擎不跟踪缓存
type Cache struct{}

// Timings 阶段耗时，来自协议边界不可用时记为 0
type Timings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	SSL     float64 `json:"ssl"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}
