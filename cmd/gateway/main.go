package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"purecool/internal/admin"
	"purecool/internal/bridge"
	"purecool/internal/coordinator"
	"purecool/internal/device"
	"purecool/internal/discovery"
	"purecool/internal/options"
	"purecool/internal/pkg"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand 创建根命令
func newRootCommand() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "purecool-gateway",
		Short: "Bridge a Dyson Pure Cool fan to Home Assistant over local MQTT",
		Long:  `purecool-gateway connects to the MQTT broker embedded in a Dyson Pure Cool appliance and exposes the fan, sensors and settings to Home Assistant via MQTT discovery.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configDir)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", "config", "配置目录")

	return rootCmd
}

func run(configDir string) error {
	// 1. 初始化common yaml
	config, _, err := pkg.InitCommon(configDir)
	if err != nil {
		return fmt.Errorf("[main] 加载配置失败: %w", err)
	}

	// 2. 初始化log
	log := pkg.NewLogger(&config.Log)
	log.Info("程序启动", zap.String("version", config.Version))
	log.Info("==== 初始化流程开始 ====")

	// 3. 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 10) // 创建一个只写的全局错误通道, 缓存大小为10
	ctx = pkg.WithErrChan(ctx, errChan)
	ctx = pkg.WithConfig(ctx, config)
	ctx = pkg.WithLogger(ctx, log)

	// 4. 加载持久化选项
	store := options.NewStore(config.Options.Path)
	opts, err := store.Load()
	if err != nil {
		log.Warn("加载持久化选项失败", zap.Error(err))
	}

	// 5. 确定设备地址：配置优先，其次 mDNS 发现，最后上次成功的地址
	host := config.Device.Host
	if host == "" {
		host, err = discovery.Resolve(ctx, config.Device.DeviceType, config.Device.Serial)
		if err != nil && opts != nil && opts.LastHost != "" {
			log.Warn("mDNS 发现失败，回退到上次地址", zap.Error(err), zap.String("host", opts.LastHost))
			host = opts.LastHost
			err = nil
		}
		if err != nil {
			return fmt.Errorf("[main] 无法确定设备地址: %w", err)
		}
	}

	// 6. 连接设备
	d := device.New(pkg.WithLoggerAndModule(ctx, log, "Device"),
		config.Device.Serial, config.Device.Credential, config.Device.DeviceType)
	log.Info("正在连接设备",
		zap.String("deviceType", config.Device.DeviceType),
		zap.String("serial", config.Device.Serial),
		zap.String("host", host))
	if err := d.Connect(host); err != nil {
		var authErr *device.InvalidAuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("[main] 设备凭据错误，请检查 credential 配置: %w", err)
		}
		return fmt.Errorf("[main] 连接设备失败: %w", err)
	}
	defer d.Disconnect()

	// 7. 重新下发持续监测偏好，记录本次地址
	if opts != nil {
		if err := d.SetContinuousMonitoring(opts.ContinuousMonitoring); err != nil {
			log.Warn("下发持续监测偏好失败", zap.Error(err))
		}
	} else {
		opts = &options.Options{ContinuousMonitoring: d.ContinuousMonitoring()}
	}
	opts.LastHost = host
	if err := store.Save(opts); err != nil {
		log.Warn("保存持久化选项失败", zap.Error(err))
	}

	// 8. 启动环境数据轮询
	coordinator.New(pkg.WithLoggerAndModule(ctx, log, "Coordinator"), d).Start()

	// 9. 启动 HA 桥接
	b := bridge.New(pkg.WithLoggerAndModule(ctx, log, "Bridge"), d)
	if err := b.Start(); err != nil {
		return fmt.Errorf("[main] 启动 HA 桥接失败: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("关闭 HA 桥接失败", zap.Error(err))
		}
	}()

	// 10. 启动状态查询 API
	admin.Run(pkg.WithLoggerAndModule(ctx, log, "Admin"), d)

	// 11. 主线程监听终止信号
	si := make(chan os.Signal, 1)
	signal.Notify(si, os.Interrupt, syscall.SIGTERM)
	select {
	case <-si:
		log.Info("Caught exit signal, exiting gateway...")
		cancel()                    // 取消上下文
		time.Sleep(1 * time.Second) // 给其他协程时间处理取消
		_ = log.Sync()
		return nil
	case bad := <-errChan:
		log.Error("Error occurred", zap.Error(bad))
		cancel()
		time.Sleep(1 * time.Second) // 确保日志输出完整
		_ = log.Sync()
		return bad
	}
}
