package api

import (
	"context"

	"cdphar/internal/capture"
	icdp "cdphar/internal/cdp"
	"cdphar/internal/logger"
	"cdphar/pkg/har"
	"cdphar/pkg/model"
)

// Service 捕获服务接口
type Service interface {
	// ListTargets 列出调试端点上可附加的目标
	ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error)

	// Start 对指定目标启动捕获会话
	Start(ctx context.Context, devtoolsURL string, target model.TargetID, opts *model.CaptureOptions) error

	// Stop 停止捕获并返回归档文档，无活动会话时返回 nil
	Stop(ctx context.Context) *har.HAR

	// IsCapturing 查询是否存在活动会话
	IsCapturing() bool

	// Stats 返回当前捕获统计
	Stats() model.CaptureStats

	// AddListener 订阅通知流，返回移除句柄
	AddListener(fn func(model.Notification)) string

	// RemoveListener 移除订阅
	RemoveListener(id string)
}

type service struct {
	log    logger.Logger
	engine *capture.Engine
}

// NewService 创建捕获服务
func NewService(l logger.Logger, defaults model.CaptureOptions) Service {
	if l == nil {
		l = logger.NewNop()
	}
	return &service{
		log:    l,
		engine: capture.New(l, defaults),
	}
}

func (s *service) ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error) {
	return icdp.ListTargets(ctx, devtoolsURL)
}

func (s *service) Start(ctx context.Context, devtoolsURL string, target model.TargetID, opts *model.CaptureOptions) error {
	sess, err := icdp.NewSession(ctx, devtoolsURL, target, s.log)
	if err != nil {
		return err
	}
	return s.engine.Start(ctx, sess, opts)
}

func (s *service) Stop(ctx context.Context) *har.HAR {
	return s.engine.Stop(ctx)
}

func (s *service) IsCapturing() bool {
	return s.engine.IsCapturing()
}

func (s *service) Stats() model.CaptureStats {
	return s.engine.Stats()
}

func (s *service) AddListener(fn func(model.Notification)) string {
	return s.engine.AddListener(fn)
}

func (s *service) RemoveListener(id string) {
	s.engine.RemoveListener(id)
}
