package pkg

import (
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMetrics 存储性能指标数据
type PerformanceMetrics struct {
	StartTime  time.Time
	ErrorCount int64

	// 消息处理指标 - 使用原子操作或细粒度锁替代全局锁
	msgStats *concurrentMsgStats
}

// concurrentMsgStats 使用分离锁保护不同类型的消息统计
type concurrentMsgStats struct {
	received  sync.Map // string -> *int64
	processed sync.Map // string -> *int64
	errors    sync.Map // string -> *int64
}

// 全局性能指标实例
var (
	perfMetrics *PerformanceMetrics
	once        sync.Once
)

// GetPerformanceMetrics 返回性能指标实例
func GetPerformanceMetrics() *PerformanceMetrics {
	once.Do(func() {
		perfMetrics = &PerformanceMetrics{
			StartTime: time.Now(),
			msgStats:  &concurrentMsgStats{},
		}
	})
	return perfMetrics
}

// IncErrorCount 增加错误计数并返回当前值
func (pm *PerformanceMetrics) IncErrorCount() int64 {
	return atomic.AddInt64(&pm.ErrorCount, 1)
}

// 从sync.Map中获取计数器，如果不存在则创建
func getOrCreateCounter(m *sync.Map, key string) *int64 {
	if val, ok := m.Load(key); ok {
		return val.(*int64)
	}

	counter := new(int64)
	if actual, loaded := m.LoadOrStore(key, counter); loaded {
		return actual.(*int64)
	}
	return counter
}

// IncMsgReceived 增加特定类型的接收消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgReceived(msgType string) int64 {
	counter := getOrCreateCounter(&pm.msgStats.received, msgType)
	return atomic.AddInt64(counter, 1)
}

// IncMsgProcessed 增加特定类型的处理消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgProcessed(msgType string) int64 {
	counter := getOrCreateCounter(&pm.msgStats.processed, msgType)
	return atomic.AddInt64(counter, 1)
}

// IncMsgErrors 增加特定类型的错误消息计数并返回当前值
func (pm *PerformanceMetrics) IncMsgErrors(msgType string) int64 {
	counter := getOrCreateCounter(&pm.msgStats.errors, msgType)
	return atomic.AddInt64(counter, 1)
}

// MsgStats 导出当前消息统计，供状态 API 使用
func (pm *PerformanceMetrics) MsgStats() map[string]map[string]int64 {
	result := map[string]map[string]int64{
		"received":  {},
		"processed": {},
		"errors":    {},
	}
	collect := func(m *sync.Map, into map[string]int64) {
		m.Range(func(key, value any) bool {
			into[key.(string)] = atomic.LoadInt64(value.(*int64))
			return true
		})
	}
	collect(&pm.msgStats.received, result["received"])
	collect(&pm.msgStats.processed, result["processed"])
	collect(&pm.msgStats.errors, result["errors"])
	return result
}
