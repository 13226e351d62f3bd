package device

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"purecool/internal/pkg"
)

// ConnectTimeout 连接及首批数据交换的总超时窗口
const ConnectTimeout = 10 * time.Second

// ConnectionState 连接状态，仅由传输层回调驱动迁移
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// latch 一次性门闩，每个连接周期重新创建
type latch struct {
	once sync.Once
	ch   chan struct{}
}

func newLatch() *latch {
	return &latch{ch: make(chan struct{})}
}

func (l *latch) signal() {
	l.once.Do(func() { close(l.ch) })
}

func (l *latch) wait(timeout time.Duration) bool {
	select {
	case <-l.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

// PureCool 是 Dyson Pure Cool 设备的协议客户端。
// 它独占自己的传输会话、编解码状态和字段快照；
// 监听器的生命周期由其注册方负责，失效前应先注销
type PureCool struct {
	ctx context.Context

	serial     string
	credential string
	deviceType string

	statusTopic  string
	commandTopic string
	timeout      time.Duration

	newClient newClientFunc
	store     *stateStore
	hub       *listenerHub

	connState atomic.Int32

	mu         sync.Mutex // 保护 client 与连接周期内的门闩
	client     MQTTClient
	stateReady *latch
	envReady   *latch
}

// New 创建设备客户端。serial 唯一标识物理设备，deviceType 决定主题命名空间，
// credential 作为传输层密码
func New(ctx context.Context, serial, credential, deviceType string) *PureCool {
	d := &PureCool{
		ctx:          ctx,
		serial:       serial,
		credential:   credential,
		deviceType:   deviceType,
		statusTopic:  fmt.Sprintf("%s/%s/status/current", deviceType, serial),
		commandTopic: fmt.Sprintf("%s/%s/command", deviceType, serial),
		timeout:      ConnectTimeout,
		newClient:    defaultNewClient,
		store:        newStateStore(),
		hub:          newListenerHub(),
	}
	d.stateReady = newLatch()
	d.envReady = newLatch()
	return d
}

// Serial 返回设备序列号
func (d *PureCool) Serial() string {
	return d.serial
}

// DeviceType 返回设备类型码
func (d *PureCool) DeviceType() string {
	return d.deviceType
}

// State 返回当前连接状态
func (d *PureCool) State() ConnectionState {
	return ConnectionState(d.connState.Load())
}

// AddUpdateListener 注册一个状态推送监听器，返回注销函数
func (d *PureCool) AddUpdateListener(listener UpdateListener) func() {
	return d.hub.add(listener)
}

// Connect 连接设备内置 broker 并完成首批数据交换，阻塞直到就绪或超时。
// 任何失败路径都会先拆除会话再返回
func (d *PureCool) Connect(host string) error {
	logger := pkg.LoggerFromContext(d.ctx)
	metrics := pkg.GetPerformanceMetrics()
	deadline := time.Now().Add(d.timeout)

	d.mu.Lock()
	// 每次连接尝试重新武装首包门闩
	d.stateReady = newLatch()
	d.envReady = newLatch()
	client := d.newClient(d.clientOptions(host))
	d.client = client
	d.mu.Unlock()

	d.connState.Store(int32(StateConnecting))

	token := client.Connect()
	if !token.WaitTimeout(time.Until(deadline)) {
		d.teardown(StateFailed)
		metrics.IncMsgErrors("device_connect")
		return fmt.Errorf("%w: no acknowledgement from %s", ErrTimeout, host)
	}
	if err := token.Error(); err != nil {
		d.teardown(StateFailed)
		metrics.IncMsgErrors("device_connect")
		return classifyConnectError(err)
	}

	// 接受路径上无条件订阅状态主题，OnConnect 回调里的重复订阅无害
	sub := client.Subscribe(d.statusTopic, 0, d.onMessage)
	if !sub.WaitTimeout(time.Until(deadline)) {
		d.teardown(StateFailed)
		metrics.IncMsgErrors("device_subscribe")
		return fmt.Errorf("%w: subscribe %s", ErrTimeout, d.statusTopic)
	}
	if err := sub.Error(); err != nil {
		d.teardown(StateFailed)
		metrics.IncMsgErrors("device_subscribe")
		return fmt.Errorf("subscribe %s: %w", d.statusTopic, err)
	}

	d.connState.Store(int32(StateConnected))
	logger.Debug("connected to device",
		zap.String("deviceType", d.deviceType), zap.String("serial", d.serial))

	// 请求首批数据，两类快照都到齐才算就绪
	if err := d.requestFirstData(deadline); err != nil {
		d.teardown(StateFailed)
		return err
	}

	logger.Info("device ready",
		zap.String("deviceType", d.deviceType), zap.String("serial", d.serial))
	return nil
}

// requestFirstData 发出状态与环境数据请求并等待两者都到达
func (d *PureCool) requestFirstData(deadline time.Time) error {
	if err := d.RequestCurrentState(); err != nil {
		return err
	}
	if err := d.RequestEnvironmentData(); err != nil {
		return err
	}

	d.mu.Lock()
	stateReady, envReady := d.stateReady, d.envReady
	d.mu.Unlock()

	if !stateReady.wait(time.Until(deadline)) || !envReady.wait(time.Until(deadline)) {
		return fmt.Errorf("%w: first data exchange incomplete", ErrNotConnected)
	}
	return nil
}

// Disconnect 主动断开连接，幂等，从未连接时调用也安全
func (d *PureCool) Disconnect() {
	d.teardown(StateDisconnected)
}

func (d *PureCool) teardown(final ConnectionState) {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
	d.connState.Store(int32(final))
}

// onConnect paho 连接成功回调，防御性重复订阅
func (d *PureCool) onConnect(client mqtt.Client) {
	client.Subscribe(d.statusTopic, 0, d.onMessage)
}

// onConnectionLost 意外断连回调，只清理连接标志，不自动重连。
// 设备会话没有自动重连，断连对网关是致命的，上报到全局错误通道
func (d *PureCool) onConnectionLost(_ mqtt.Client, err error) {
	logger := pkg.LoggerFromContext(d.ctx)
	metrics := pkg.GetPerformanceMetrics()

	metrics.IncMsgErrors("device_connection_lost")
	d.connState.Store(int32(StateDisconnected))
	logger.Error("device connection lost", zap.Error(err))

	if errChan := pkg.ErrChanFromContext(d.ctx); errChan != nil {
		select {
		case errChan <- fmt.Errorf("device %s connection lost: %w", d.serial, err):
		default: // 通道已满时丢弃，主循环已经在退出路径上
		}
	}
}

// onMessage 入站消息回调，运行在 paho 的后台 I/O 协程
func (d *PureCool) onMessage(_ mqtt.Client, msg mqtt.Message) {
	logger := pkg.LoggerFromContext(d.ctx)
	metrics := pkg.GetPerformanceMetrics()

	metrics.IncMsgReceived("device")

	decoded, err := decodeInbound(msg.Payload())
	if err != nil {
		// 畸形消息只记录诊断日志并丢弃，绝不让会话崩溃
		metrics.IncMsgErrors("device")
		logger.Warn("dropping malformed message",
			zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	switch decoded.kind {
	case msgCurrentState:
		d.store.replaceState(decoded.state)
		d.currentStateLatch().signal()
	case msgStateChange:
		d.store.replaceState(decoded.state)
		d.currentStateLatch().signal()
		// 只有推送的状态变更触发监听器，轮询响应不触发
		d.hub.notify(d, d.store.stateMap(), logger)
	case msgEnvironmentalData:
		d.store.replaceEnvironment(decoded.environment)
		d.currentEnvLatch().signal()
	default:
		logger.Debug("ignoring unrecognized message", zap.String("topic", msg.Topic()))
		return
	}
	metrics.IncMsgProcessed("device")
}

func (d *PureCool) currentStateLatch() *latch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stateReady
}

func (d *PureCool) currentEnvLatch() *latch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.envReady
}

// RequestCurrentState 请求一次当前状态快照，响应经由推送路径异步到达
func (d *PureCool) RequestCurrentState() error {
	return d.publish(encodeRequest(msgRequestCurrentState, time.Now()), 0)
}

// RequestEnvironmentData 请求一次环境传感器数据，响应经由推送路径异步到达
func (d *PureCool) RequestEnvironmentData() error {
	return d.publish(encodeRequest(msgRequestEnvironmentData, time.Now()), 0)
}

// setConfiguration 发送 STATE-SET 命令，至少一次送达
func (d *PureCool) setConfiguration(data map[string]string) error {
	return d.publish(encodeStateSet(data, time.Now()), 1)
}

// publish 发布命令，发出即返回，不等待确认
func (d *PureCool) publish(payload []byte, qos byte) error {
	d.mu.Lock()
	client := d.client
	d.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}
	client.Publish(d.commandTopic, qos, false, payload)
	pkg.GetPerformanceMetrics().IncMsgProcessed("device_command")
	return nil
}
