package device

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"purecool/internal/pkg"
)

// UpdateListener 收到 STATE-CHANGE 推送时的回调，state 为更新后的状态快照
type UpdateListener func(d *PureCool, state map[string]string)

// listenerHub 维护注册顺序的监听器集合，按身份注销
type listenerHub struct {
	mu        sync.Mutex
	order     []uuid.UUID
	listeners map[uuid.UUID]UpdateListener
}

func newListenerHub() *listenerHub {
	return &listenerHub{
		listeners: make(map[uuid.UUID]UpdateListener),
	}
}

// add 注册一个监听器，返回注销函数
func (h *listenerHub) add(listener UpdateListener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.New()
	h.order = append(h.order, id)
	h.listeners[id] = listener

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
		for i, existing := range h.order {
			if existing == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
}

// notify 按注册顺序调用所有监听器。单个监听器 panic 不影响其余监听器
func (h *listenerHub) notify(d *PureCool, state map[string]string, logger *zap.Logger) {
	h.mu.Lock()
	callbacks := make([]UpdateListener, 0, len(h.order))
	for _, id := range h.order {
		if listener, ok := h.listeners[id]; ok {
			callbacks = append(callbacks, listener)
		}
	}
	h.mu.Unlock()

	metrics := pkg.GetPerformanceMetrics()
	for _, callback := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.IncMsgErrors("listener")
					logger.Error("update listener panicked", zap.Any("panic", r))
				}
			}()
			callback(d, state)
		}()
	}
}
