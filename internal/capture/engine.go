package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cdphar/internal/logger"
	"cdphar/pkg/har"
	"cdphar/pkg/model"
)

// Engine 捕获引擎：管理会话生命周期，独占在途事务表与已完成条目序列
type Engine struct {
	log logger.Logger
	bus *bus

	mu sync.Mutex
	// starting 会话正在建立（附加/插桩进行中），此阶段对 Stop 视同无会话
	starting  bool
	active    bool
	session   Session
	target    model.TargetID
	opts      model.CaptureOptions
	filter    map[model.ResourceCategory]bool
	startedAt time.Time
	browser   string
	completed []har.Entry
	flight    map[string]*transaction
	// order 在途事务的到达顺序，归档时未终止的事务按此顺序追加
	order  []string
	stats  model.CaptureStats
	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建捕获引擎
func New(l logger.Logger, defaults model.CaptureOptions) *Engine {
	if l == nil {
		l = logger.NewNop()
	}
	return &Engine{
		log:    l,
		bus:    newBus(l),
		opts:   defaults,
		flight: make(map[string]*transaction),
		stats:  model.CaptureStats{ByCategory: make(map[model.ResourceCategory]int64)},
	}
}

// Start 启动捕获会话。已有活动会话返回 ErrAlreadyCapturing，
// 目标协议受限返回 RestrictedTargetError，失败均不改变现有状态。
func (e *Engine) Start(ctx context.Context, sess Session, opts *model.CaptureOptions) error {
	if err := checkTargetURL(sess.TargetURL()); err != nil {
		return err
	}

	e.mu.Lock()
	if e.active || e.starting {
		e.mu.Unlock()
		return ErrAlreadyCapturing
	}
	// 预占建立标记，保证并发的第二次 Start 立即被拒绝；
	// active 在会话状态（session/cancel/done）就绪前保持 false，
	// 建立窗口内到达的 Stop 视同无会话返回 nil
	e.starting = true
	e.mu.Unlock()

	fail := func(err error) error {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
		return err
	}

	if err := sess.Attach(ctx); err != nil {
		return fail(fmt.Errorf("attach target: %w", err))
	}

	merged := mergeOptions(e.opts, opts)
	if err := sess.EnableNetwork(ctx, merged.MaxTotalBufferSize, merged.MaxResourceBufferSize); err != nil {
		if derr := sess.Detach(ctx); derr != nil {
			e.log.Warn("启用网络插桩失败后分离目标失败", "error", derr)
		}
		return fail(fmt.Errorf("enable network: %w", err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	events, err := sess.Events(runCtx)
	if err != nil {
		cancel()
		if derr := sess.Detach(ctx); derr != nil {
			e.log.Warn("订阅事件流失败后分离目标失败", "error", derr)
		}
		return fail(fmt.Errorf("subscribe events: %w", err))
	}

	// 浏览器标识尽力获取，失败不阻断启动
	browser, err := sess.BrowserVersion(ctx)
	if err != nil {
		e.log.Debug("获取浏览器标识失败", "error", err)
		browser = ""
	}

	e.mu.Lock()
	e.starting = false
	e.active = true
	e.session = sess
	e.target = sess.Target()
	e.opts = merged
	e.filter = buildFilter(merged.Categories)
	e.startedAt = time.Now()
	e.browser = browser
	e.completed = nil
	e.flight = make(map[string]*transaction)
	e.order = nil
	e.stats = model.CaptureStats{ByCategory: make(map[model.ResourceCategory]int64)}
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	bodyc := make(chan bodyResult, 16)
	go e.run(runCtx, sess, events, bodyc)

	e.log.Info("捕获会话已启动", "target", string(e.target), "url", sess.TargetURL())
	e.bus.publish(model.Notification{Type: model.NotifyStarted})
	return nil
}

// Stop 停止捕获并返回归档文档；无活动会话时返回 nil。
// 分离失败只记录日志，捕获结果照常返回。
func (e *Engine) Stop(ctx context.Context) *har.HAR {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return nil
	}
	e.active = false
	sess := e.session
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	if err := sess.Detach(ctx); err != nil {
		e.log.Warn("分离调试会话失败", "error", err)
	}
	<-done

	doc := e.buildDocument(sess.TargetURL())
	e.log.Info("捕获会话已停止", "entries", len(doc.Log.Entries))
	e.bus.publish(model.Notification{Type: model.NotifyStopped, Archive: doc})
	return doc
}

// IsCapturing 查询是否存在活动会话
func (e *Engine) IsCapturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Stats 返回当前捕获统计快照
func (e *Engine) Stats() model.CaptureStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := model.CaptureStats{
		Total:      e.stats.Total,
		ByCategory: make(map[model.ResourceCategory]int64, len(e.stats.ByCategory)),
	}
	for k, v := range e.stats.ByCategory {
		out.ByCategory[k] = v
	}
	return out
}

// AddListener 注册通知订阅者，返回移除句柄
func (e *Engine) AddListener(fn func(model.Notification)) string {
	return e.bus.add(fn)
}

// RemoveListener 按句柄移除通知订阅者
func (e *Engine) RemoveListener(id string) {
	e.bus.remove(id)
}

// mergeOptions 将调用方提供的选项覆盖到当前值上，未指定的字段保持不变
func mergeOptions(cur model.CaptureOptions, opts *model.CaptureOptions) model.CaptureOptions {
	if opts == nil {
		return cur
	}
	if len(opts.Categories) > 0 {
		cur.Categories = opts.Categories
	}
	if opts.MaxTotalBufferSize > 0 {
		cur.MaxTotalBufferSize = opts.MaxTotalBufferSize
	}
	if opts.MaxResourceBufferSize > 0 {
		cur.MaxResourceBufferSize = opts.MaxResourceBufferSize
	}
	return cur
}

func buildFilter(cats []model.ResourceCategory) map[model.ResourceCategory]bool {
	f := make(map[model.ResourceCategory]bool, len(cats))
	for _, c := range cats {
		f[c] = true
	}
	return f
}
