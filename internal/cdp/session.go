package cdp

import (
	"context"
	"fmt"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/rpcc"
	"github.com/tidwall/gjson"

	"cdphar/internal/logger"
	"cdphar/pkg/model"
)

// Session 基于 DevTools 协议的调试会话，实现 capture.Session
type Session struct {
	target    model.TargetID
	targetURL string
	wsURL     string
	log       logger.Logger

	conn   *rpcc.Conn
	client *cdp.Client
}

// ListTargets 列出调试端点上可附加的目标
func ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error) {
	targets, err := devtool.New(devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		out = append(out, model.TargetInfo{
			ID:    model.TargetID(t.ID),
			Type:  string(t.Type),
			URL:   t.URL,
			Title: t.Title,
		})
	}
	return out, nil
}

// NewSession 解析目标并创建会话；target 为空时取第一个页面目标
func NewSession(ctx context.Context, devtoolsURL string, target model.TargetID, l logger.Logger) (*Session, error) {
	if l == nil {
		l = logger.NewNop()
	}
	targets, err := devtool.New(devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == string(target) {
			sel = targets[i]
			break
		}
		if target == "" && targets[i].Type == devtool.Page && sel == nil {
			sel = targets[i]
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("no matching target %q", string(target))
	}
	return &Session{
		target:    model.TargetID(sel.ID),
		targetURL: sel.URL,
		wsURL:     sel.WebSocketDebuggerURL,
		log:       l,
	}, nil
}

// Target 返回目标标识
func (s *Session) Target() model.TargetID { return s.target }

// TargetURL 返回目标当前地址
func (s *Session) TargetURL() string { return s.targetURL }

// Attach 建立到目标的协议连接
func (s *Session) Attach(ctx context.Context) error {
	conn, err := rpcc.DialContext(ctx, s.wsURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.wsURL, err)
	}
	s.conn = conn
	s.client = cdp.NewClient(conn)
	return nil
}

// Detach 断开协议连接
func (s *Session) Detach(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnableNetwork 开启网络插桩并下发缓冲上限
func (s *Session) EnableNetwork(ctx context.Context, maxTotalBufferSize, maxResourceBufferSize int) error {
	if s.client == nil {
		return fmt.Errorf("not attached")
	}
	args := network.NewEnableArgs().
		SetMaxTotalBufferSize(maxTotalBufferSize).
		SetMaxResourceBufferSize(maxResourceBufferSize)
	return s.client.Network.Enable(ctx, args)
}

// Events 订阅四类网络事件并汇聚为单一事件流；
// rpcc.Sync 保证跨流的到达顺序与协议发送顺序一致
func (s *Session) Events(ctx context.Context) (<-chan model.NetworkEvent, error) {
	if s.client == nil {
		return nil, fmt.Errorf("not attached")
	}
	reqC, err := s.client.Network.RequestWillBeSent(ctx)
	if err != nil {
		return nil, err
	}
	resC, err := s.client.Network.ResponseReceived(ctx)
	if err != nil {
		reqC.Close()
		return nil, err
	}
	finC, err := s.client.Network.LoadingFinished(ctx)
	if err != nil {
		reqC.Close()
		resC.Close()
		return nil, err
	}
	failC, err := s.client.Network.LoadingFailed(ctx)
	if err != nil {
		reqC.Close()
		resC.Close()
		finC.Close()
		return nil, err
	}
	if err := rpcc.Sync(reqC, resC, finC, failC); err != nil {
		reqC.Close()
		resC.Close()
		finC.Close()
		failC.Close()
		return nil, err
	}

	out := make(chan model.NetworkEvent, 256)
	go func() {
		defer close(out)
		defer reqC.Close()
		defer resC.Close()
		defer finC.Close()
		defer failC.Close()
		for {
			var ev model.NetworkEvent
			select {
			case <-ctx.Done():
				return
			case <-reqC.Ready():
				r, err := reqC.Recv()
				if err != nil {
					s.log.Debug("请求事件流终止", "error", err)
					return
				}
				ev = s.convertRequest(r)
			case <-resC.Ready():
				r, err := resC.Recv()
				if err != nil {
					s.log.Debug("响应事件流终止", "error", err)
					return
				}
				ev = s.convertResponse(r)
			case <-finC.Ready():
				r, err := finC.Recv()
				if err != nil {
					s.log.Debug("完成事件流终止", "error", err)
					return
				}
				ev = s.convertFinished(r)
			case <-failC.Ready():
				r, err := failC.Recv()
				if err != nil {
					s.log.Debug("失败事件流终止", "error", err)
					return
				}
				ev = s.convertFailed(r)
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// ResponseBody 拉取响应体；事务被中止或缓冲被丢弃时返回错误，由上层容忍
func (s *Session) ResponseBody(ctx context.Context, requestID string) (string, bool, error) {
	if s.client == nil {
		return "", false, fmt.Errorf("not attached")
	}
	reply, err := s.client.Network.GetResponseBody(ctx, network.NewGetResponseBodyArgs(network.RequestID(requestID)))
	if err != nil {
		return "", false, err
	}
	return reply.Body, reply.Base64Encoded, nil
}

// BrowserVersion 返回浏览器产品标识串
func (s *Session) BrowserVersion(ctx context.Context) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("not attached")
	}
	reply, err := s.client.Browser.GetVersion(ctx)
	if err != nil {
		return "", err
	}
	return reply.Product, nil
}

func (s *Session) convertRequest(r *network.RequestWillBeSentReply) model.NetworkEvent {
	return model.NetworkEvent{
		Kind:   model.EventRequestWillBeSent,
		Target: s.target,
		Request: &model.RequestWillBeSent{
			RequestID:    string(r.RequestID),
			URL:          r.Request.URL,
			Method:       r.Request.Method,
			Headers:      toHeaderEntries(r.Request.Headers),
			PostData:     r.Request.PostData,
			ResourceType: string(r.Type),
			DocumentURL:  r.DocumentURL,
			Timestamp:    float64(r.Timestamp),
			WallTime:     float64(r.WallTime.Time().UnixNano()) / 1e9,
		},
	}
}

func (s *Session) convertResponse(r *network.ResponseReceivedReply) model.NetworkEvent {
	ev := &model.ResponseReceived{
		RequestID:  string(r.RequestID),
		Status:     r.Response.Status,
		StatusText: r.Response.StatusText,
		Headers:    toHeaderEntries(r.Response.Headers),
		MimeType:   r.Response.MimeType,
		Timestamp:  float64(r.Timestamp),
	}
	if r.Response.Protocol != nil {
		ev.Protocol = *r.Response.Protocol
	}
	if r.Response.RemoteIPAddress != nil {
		ev.RemoteIPAddress = *r.Response.RemoteIPAddress
	}
	if t := r.Response.Timing; t != nil {
		ev.Timing = &model.ResourceTiming{
			RequestTime:       t.RequestTime,
			DNSStart:          t.DNSStart,
			DNSEnd:            t.DNSEnd,
			ConnectStart:      t.ConnectStart,
			ConnectEnd:        t.ConnectEnd,
			SSLStart:          t.SSLStart,
			SSLEnd:            t.SSLEnd,
			SendStart:         t.SendStart,
			SendEnd:           t.SendEnd,
			ReceiveHeadersEnd: t.ReceiveHeadersEnd,
		}
	}
	return model.NetworkEvent{Kind: model.EventResponseReceived, Target: s.target, Response: ev}
}

func (s *Session) convertFinished(r *network.LoadingFinishedReply) model.NetworkEvent {
	return model.NetworkEvent{
		Kind:   model.EventLoadingFinished,
		Target: s.target,
		Finished: &model.LoadingFinished{
			RequestID:         string(r.RequestID),
			Timestamp:         float64(r.Timestamp),
			EncodedDataLength: r.EncodedDataLength,
		},
	}
}

func (s *Session) convertFailed(r *network.LoadingFailedReply) model.NetworkEvent {
	return model.NetworkEvent{
		Kind:   model.EventLoadingFailed,
		Target: s.target,
		Failed: &model.LoadingFailed{
			RequestID: string(r.RequestID),
			Timestamp: float64(r.Timestamp),
			ErrorText: r.ErrorText,
			Canceled:  r.Canceled != nil && *r.Canceled,
		},
	}
}

// toHeaderEntries 按文档顺序遍历协议头部 JSON，保留头部出现顺序
func toHeaderEntries(raw network.Headers) []model.HeaderEntry {
	var out []model.HeaderEntry
	gjson.ParseBytes([]byte(raw)).ForEach(func(key, value gjson.Result) bool {
		out = append(out, model.HeaderEntry{Name: key.String(), Value: value.String()})
		return true
	})
	return out
}
