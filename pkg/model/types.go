package model

import "cdphar/pkg/har"

type TargetID string

// ResourceCategory 资源分类，用于捕获过滤
type ResourceCategory string

const (
	CategoryXHR        ResourceCategory = "xhr"
	CategoryFetch      ResourceCategory = "fetch"
	CategoryWebSocket  ResourceCategory = "websocket"
	CategoryDocument   ResourceCategory = "document"
	CategoryStylesheet ResourceCategory = "stylesheet"
	CategoryScript     ResourceCategory = "script"
	CategoryImage      ResourceCategory = "image"
	CategoryFont       ResourceCategory = "font"
	CategoryMedia      ResourceCategory = "media"
	CategoryOther      ResourceCategory = "other"
)

// categoryTable 协议资源类型到分类的固定映射表
var categoryTable = map[string]ResourceCategory{
	"XHR":        CategoryXHR,
	"Fetch":      CategoryFetch,
	"WebSocket":  CategoryWebSocket,
	"Document":   CategoryDocument,
	"Stylesheet": CategoryStylesheet,
	"Script":     CategoryScript,
	"Image":      CategoryImage,
	"Font":       CategoryFont,
	"Media":      CategoryMedia,
}

// CategoryFromProtocol 将协议原始资源类型映射为分类，未识别的归为 other
func CategoryFromProtocol(raw string) ResourceCategory {
	if c, ok := categoryTable[raw]; ok {
		return c
	}
	return CategoryOther
}

// CaptureOptions 单次捕获会话的配置
type CaptureOptions struct {
	// Categories 需要保留的资源分类，空表示沿用当前配置
	Categories []ResourceCategory `json:"categories"`
	// MaxTotalBufferSize 网络缓冲总上限（字节）
	MaxTotalBufferSize int `json:"maxTotalBufferSize"`
	// MaxResourceBufferSize 单资源缓冲上限（字节）
	MaxResourceBufferSize int `json:"maxResourceBufferSize"`
}

// CaptureStats 捕获统计
type CaptureStats struct {
	Total      int64                      `json:"total"`
	ByCategory map[ResourceCategory]int64 `json:"byCategory"`
}

// TargetInfo 可附加的调试目标信息
type TargetInfo struct {
	ID    TargetID `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}

// TransactionSummary 单个事务的精简摘要，用于通知推送
type TransactionSummary struct {
	ID        string           `json:"id"`
	Method    string           `json:"method"`
	URL       string           `json:"url"`
	Category  ResourceCategory `json:"category"`
	Status    int              `json:"status"`
	ElapsedMS float64          `json:"elapsedMs"`
	Size      int64            `json:"size"`
}

// 通知类型
const (
	NotifyStarted  = "started"
	NotifyRequest  = "request"
	NotifyResponse = "response"
	NotifyComplete = "complete"
	NotifyFailed   = "failed"
	NotifyStopped  = "stopped"
)

// Notification 捕获生命周期与事务进度通知
type Notification struct {
	Type        string              `json:"type"`
	Transaction *TransactionSummary `json:"transaction,omitempty"`
	Archive     *har.HAR            `json:"archive,omitempty"`
}

// HeaderEntry 保序的头部键值对
type HeaderEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EventKind 协议事件类型
type EventKind string

const (
	EventRequestWillBeSent EventKind = "requestWillBeSent"
	EventResponseReceived  EventKind = "responseReceived"
	EventLoadingFinished   EventKind = "loadingFinished"
	EventLoadingFailed     EventKind = "loadingFailed"
)

// NetworkEvent 协议网络事件，按 Kind 填充对应载荷
type NetworkEvent struct {
	Kind     EventKind
	Target   TargetID
	Request  *RequestWillBeSent
	Response *ResponseReceived
	Finished *LoadingFinished
	Failed   *LoadingFailed
}

// RequestWillBeSent 请求发出事件载荷
type RequestWillBeSent struct {
	RequestID    string
	URL          string
	Method       string
	Headers      []HeaderEntry
	PostData     *string
	ResourceType string
	// DocumentURL 发起请求的文档地址（来源上下文）
	DocumentURL string
	// Timestamp 协议单调时钟（秒）
	Timestamp float64
	// WallTime 墙上时钟（Unix 秒）
	WallTime float64
}

// ResponseReceived 响应到达事件载荷
type ResponseReceived struct {
	RequestID       string
	Status          int
	StatusText      string
	Headers         []HeaderEntry
	MimeType        string
	Protocol        string
	RemoteIPAddress string
	Timestamp       float64
	Timing          *ResourceTiming
}

// ResourceTiming 协议阶段边界，除 RequestTime 外均为相对毫秒，-1 表示不可用
type ResourceTiming struct {
	RequestTime       float64
	DNSStart          float64
	DNSEnd            float64
	ConnectStart      float64
	ConnectEnd        float64
	SSLStart          float64
	SSLEnd            float64
	SendStart         float64
	SendEnd           float64
	ReceiveHeadersEnd float64
}

// LoadingFinished 加载完成事件载荷
type LoadingFinished struct {
	RequestID         string
	Timestamp         float64
	EncodedDataLength float64
}

// LoadingFailed 加载失败事件载荷
type LoadingFailed struct {
	RequestID string
	Timestamp float64
	ErrorText string
	Canceled  bool
}
