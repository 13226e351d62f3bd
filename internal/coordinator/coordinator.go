package coordinator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"purecool/internal/device"
	"purecool/internal/pkg"
)

// Coordinator 周期性向设备请求环境传感器数据。
// 响应经由推送路径异步到达，这里只负责发出请求；
// 请求失败视为可恢复错误，记录后等待下一个周期
type Coordinator struct {
	ctx      context.Context
	device   *device.PureCool
	interval time.Duration
}

func New(ctx context.Context, d *device.PureCool) *Coordinator {
	return &Coordinator{
		ctx:      ctx,
		device:   d,
		interval: pkg.ConfigFromContext(ctx).Poll.Interval,
	}
}

// Start 在后台协程启动轮询循环
func (c *Coordinator) Start() {
	go c.run()
}

func (c *Coordinator) run() {
	logger := pkg.LoggerFromContext(c.ctx)
	metrics := pkg.GetPerformanceMetrics()

	logger.Info("===环境数据轮询启动===", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			logger.Info("环境数据轮询退出")
			return
		case <-ticker.C:
			if err := c.device.RequestEnvironmentData(); err != nil {
				metrics.IncMsgErrors("coordinator")
				logger.Warn("failed to request environmental data", zap.Error(err))
				continue
			}
			metrics.IncMsgProcessed("coordinator")
		}
	}
}
