package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"purecool/internal/pkg"
)

// 设备在本地网络上公布的 mDNS 服务类型
const (
	serviceType   = "_dyson_mqtt._tcp"
	serviceDomain = "local."
)

// ResolveTimeout mDNS 查询的默认超时
const ResolveTimeout = 10 * time.Second

// Resolve 通过 mDNS 解析设备地址。实例名约定为 <deviceType>_<serial>，
// 返回第一个解析到的 IPv4 地址
func Resolve(ctx context.Context, deviceType, serial string) (string, error) {
	logger := pkg.LoggerFromContext(ctx)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return "", fmt.Errorf("创建 mDNS resolver 失败: %w", err)
	}

	instance := fmt.Sprintf("%s_%s", deviceType, serial)
	logger.Debug("resolving device address", zap.String("instance", instance))

	lookupCtx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Lookup(lookupCtx, instance, serviceType, serviceDomain, entries); err != nil {
		return "", fmt.Errorf("mDNS 查询失败: %w", err)
	}

	for entry := range entries {
		if len(entry.AddrIPv4) > 0 {
			host := entry.AddrIPv4[0].String()
			logger.Debug("resolved device address",
				zap.String("instance", instance), zap.String("host", host))
			return host, nil
		}
	}

	return "", fmt.Errorf("未发现设备 %s", instance)
}
