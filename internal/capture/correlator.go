package capture

import (
	"context"

	"cdphar/pkg/model"
)

// bodyResult 响应体拉取结果，经内部通道回送事件循环
type bodyResult struct {
	id            string
	body          string
	base64Encoded bool
	err           error
}

// run 事件关联循环：单协程独占在途事务表的变更，保证同一事务的
// 事件串行处理；响应体拉取在独立协程执行并通过 bodyc 回送，
// 不会阻塞其他事务的事件处理。
func (e *Engine) run(ctx context.Context, sess Session, events <-chan model.NetworkEvent, bodyc chan bodyResult) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				// 浏览器侧断开；保留已有状态等待 Stop
				e.log.Warn("协议事件流已关闭", "target", string(e.target))
				events = nil
				continue
			}
			e.dispatch(ctx, sess, ev, bodyc)
		case res := <-bodyc:
			e.onBodyResult(res)
		}
	}
}

// dispatch 按事件类型分发，非本目标的事件直接忽略
func (e *Engine) dispatch(ctx context.Context, sess Session, ev model.NetworkEvent, bodyc chan bodyResult) {
	if ev.Target != e.target {
		return
	}
	switch ev.Kind {
	case model.EventRequestWillBeSent:
		e.onRequest(ev.Request)
	case model.EventResponseReceived:
		e.onResponse(ev.Response)
	case model.EventLoadingFinished:
		e.onFinished(ctx, sess, ev.Finished, bodyc)
	case model.EventLoadingFailed:
		e.onFailed(ev.Failed)
	}
}

// onRequest 处理请求发出：分类被过滤时整个事件丢弃，不建立事务
func (e *Engine) onRequest(ev *model.RequestWillBeSent) {
	cat := model.CategoryFromProtocol(ev.ResourceType)
	if !e.admits(cat) {
		return
	}
	tx := newTransaction(ev, cat)

	e.mu.Lock()
	e.flight[tx.id] = tx
	e.order = append(e.order, tx.id)
	e.stats.Total++
	e.stats.ByCategory[cat]++
	e.mu.Unlock()

	e.bus.publish(model.Notification{Type: model.NotifyRequest, Transaction: summarize(tx, 0)})
}

// onResponse 处理响应到达：无匹配在途事务时静默忽略
// （请求早于过滤配置或捕获启动）
func (e *Engine) onResponse(ev *model.ResponseReceived) {
	tx := e.lookup(ev.RequestID)
	if tx == nil || tx.fetchingBody {
		return
	}
	fillResponse(tx, ev)
	elapsed := (ev.Timestamp - tx.startTS) * 1000
	e.bus.publish(model.Notification{Type: model.NotifyResponse, Transaction: summarize(tx, elapsed)})
}

// onFinished 处理加载完成：计算总耗时后发起响应体拉取，
// 事务在响应体结果回送前保持在途
func (e *Engine) onFinished(ctx context.Context, sess Session, ev *model.LoadingFinished, bodyc chan bodyResult) {
	tx := e.lookup(ev.RequestID)
	if tx == nil || tx.fetchingBody {
		return
	}
	finishTransaction(tx, ev)
	tx.fetchingBody = true
	go fetchBody(ctx, sess, ev.RequestID, bodyc)
}

// fetchBody 在独立协程拉取响应体；Stop 后结果被丢弃
func fetchBody(ctx context.Context, sess Session, id string, bodyc chan bodyResult) {
	body, b64, err := sess.ResponseBody(ctx, id)
	select {
	case bodyc <- bodyResult{id: id, body: body, base64Encoded: b64, err: err}:
	case <-ctx.Done():
	}
}

// onBodyResult 响应体拉取完成：附加内容并将事务移入已完成序列。
// 拉取失败是预期情形（响应体已被丢弃、事务被中止等），内容保持为空。
func (e *Engine) onBodyResult(res bodyResult) {
	tx := e.take(res.id)
	if tx == nil {
		return
	}
	if res.err != nil {
		e.log.Debug("响应体不可用", "requestID", res.id, "error", res.err)
	} else {
		attachBody(tx, res.body, res.base64Encoded)
	}
	e.appendCompleted(tx)
	e.bus.publish(model.Notification{Type: model.NotifyComplete, Transaction: summarize(tx, tx.entry.Time)})
}

// onFailed 处理加载失败：记录错误与取消标记后移入已完成序列
func (e *Engine) onFailed(ev *model.LoadingFailed) {
	tx := e.take(ev.RequestID)
	if tx == nil {
		return
	}
	failTransaction(tx, ev)
	e.appendCompleted(tx)
	e.bus.publish(model.Notification{Type: model.NotifyFailed, Transaction: summarize(tx, tx.entry.Time)})
}

// admits 判断分类是否在捕获过滤范围内；
// xhr 与 fetch 属于同一逻辑网络调用组，启用其一即同时放行两者
func (e *Engine) admits(cat model.ResourceCategory) bool {
	if e.filter[cat] {
		return true
	}
	if cat == model.CategoryXHR || cat == model.CategoryFetch {
		return e.filter[model.CategoryXHR] || e.filter[model.CategoryFetch]
	}
	return false
}

// lookup 查找在途事务，临界区仅覆盖表访问
func (e *Engine) lookup(id string) *transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flight[id]
}

// take 将事务移出在途表
func (e *Engine) take(id string) *transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := e.flight[id]
	delete(e.flight, id)
	return tx
}

func (e *Engine) appendCompleted(tx *transaction) {
	e.mu.Lock()
	e.completed = append(e.completed, tx.entry)
	e.mu.Unlock()
}
