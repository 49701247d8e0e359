package core

import (
	"context"
	"sync"

	"github.com/RecoveryAshes/webgrab/internal/models"
)

// EventQueue 驱动回调(生产者)与处理器(消费者)之间的有界FIFO队列
// Finish关闭通道作为显式的流结束标记,之后的Push返回ErrQueueClosed
type EventQueue struct {
	ch     chan models.ResponseEvent
	mu     sync.RWMutex
	closed bool
}

// NewEventQueue 创建事件队列
func NewEventQueue(size int) *EventQueue {
	if size <= 0 {
		size = models.DefaultQueueSize
	}
	return &EventQueue{
		ch: make(chan models.ResponseEvent, size),
	}
}

// Push 入队一个事件,队列满时阻塞直到有空位或ctx取消
func (q *EventQueue) Push(ctx context.Context, ev models.ResponseEvent) error {
	// 发送期间持有读锁,Finish必须等待进行中的发送完成才能关闭通道
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return models.ErrQueueClosed
	}

	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish 标记流结束,可重复调用
func (q *EventQueue) Finish() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Events 消费端通道,流结束且队列排空后关闭
func (q *EventQueue) Events() <-chan models.ResponseEvent {
	return q.ch
}

// Len 队列中尚未消费的事件数
func (q *EventQueue) Len() int {
	return len(q.ch)
}
