package capture

import (
	"context"

	"cdphar/pkg/model"
)

// Session 调试协议会话抽象，由协议适配层实现
type Session interface {
	// Attach 附加到调试目标
	Attach(ctx context.Context) error
	// Detach 分离调试目标
	Detach(ctx context.Context) error
	// EnableNetwork 开启网络插桩并设置缓冲上限（字节）
	EnableNetwork(ctx context.Context, maxTotalBufferSize, maxResourceBufferSize int) error
	// Events 订阅网络事件流，会话断开或 ctx 取消后通道关闭
	Events(ctx context.Context) (<-chan model.NetworkEvent, error)
	// ResponseBody 拉取指定事务的响应体，base64Encoded 为真表示内容已编码
	ResponseBody(ctx context.Context, requestID string) (body string, base64Encoded bool, err error)
	// BrowserVersion 返回浏览器产品标识（如 "Chrome/120.0.6099.28"）
	BrowserVersion(ctx context.Context) (string, error)
	// Target 返回目标标识
	Target() model.TargetID
	// TargetURL 返回目标当前地址
	TargetURL() string
}
