package capture

import (
	"sync"

	"github.com/google/uuid"

	"cdphar/internal/logger"
	"cdphar/pkg/model"
)

// subscriberQueueSize 单个订阅者的通知缓冲长度
const subscriberQueueSize = 64

// subscriber 单个订阅者：独立派发协程顺序消费缓冲队列，
// 保证每个订阅者内部的通知顺序与发布顺序一致
type subscriber struct {
	fn    func(model.Notification)
	queue chan model.Notification
}

// bus 通知总线：发布方仅做非阻塞入队，订阅者的阻塞或 panic
// 都不会影响发布方和其余订阅者
type bus struct {
	mu   sync.RWMutex
	subs map[string]*subscriber
	log  logger.Logger
}

func newBus(l logger.Logger) *bus {
	return &bus{
		subs: make(map[string]*subscriber),
		log:  l,
	}
}

// add 注册订阅者并启动其派发协程，返回用于移除的句柄
func (b *bus) add(fn func(model.Notification)) string {
	id := uuid.NewString()
	s := &subscriber{
		fn:    fn,
		queue: make(chan model.Notification, subscriberQueueSize),
	}
	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	go b.drain(s)
	return id
}

// remove 按句柄移除订阅者；关闭队列令派发协程在消费完余量后退出
func (b *bus) remove(id string) {
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(s.queue)
	}
}

// publish 向所有订阅者非阻塞入队；队列已满的订阅者丢弃本条通知
func (b *bus) publish(n model.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, s := range b.subs {
		select {
		case s.queue <- n:
		default:
			b.log.Warn("订阅者队列已满，丢弃通知", "listener", id, "type", n.Type)
		}
	}
}

func (b *bus) drain(s *subscriber) {
	for n := range s.queue {
		b.invoke(s.fn, n)
	}
}

func (b *bus) invoke(fn func(model.Notification), n model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("通知订阅者异常，已隔离", "type", n.Type, "panic", r)
		}
	}()
	fn(n)
}
