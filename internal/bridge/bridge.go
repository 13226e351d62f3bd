package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"purecool/internal/device"
	"purecool/internal/pkg"
)

// Bridge 把设备客户端桥接到 Home Assistant 侧的 MQTT broker：
// 发布 discovery 配置与实体状态，订阅命令主题并转成设备命令。
// 每个逻辑实体对应 state 文档里的一个字段，推送与轮询共用同一份文档
type Bridge struct {
	ctx     context.Context
	device  *device.PureCool
	client  device.MQTTClient
	version string

	topicBase      string // <topicPrefix>/<serial>
	stateTopic     string
	availTopic     string
	discoveryTopic string

	connectTimeout time.Duration
	refreshEvery   time.Duration

	removeListener func()
}

// New 创建桥接器，尚未连接
func New(ctx context.Context, d *device.PureCool) *Bridge {
	config := pkg.ConfigFromContext(ctx)

	topicBase := fmt.Sprintf("%s/%s", config.Bridge.TopicPrefix, d.Serial())
	b := &Bridge{
		ctx:            ctx,
		device:         d,
		version:        config.Version,
		topicBase:      topicBase,
		stateTopic:     topicBase + "/state",
		availTopic:     topicBase + "/availability",
		discoveryTopic: fmt.Sprintf("%s/device/%s/config", config.Bridge.DiscoveryPrefix, d.Serial()),
		connectTimeout: config.Bridge.ConnectTimeout,
		refreshEvery:   config.Poll.Interval,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Bridge.Broker)
	opts.SetClientID(config.Bridge.ClientID)
	opts.SetUsername(config.Bridge.Username)
	opts.SetPassword(config.Bridge.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(b.availTopic, "offline", 0, true)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	return b
}

func (b *Bridge) commandTopic(key string) string {
	return fmt.Sprintf("%s/%s/set", b.topicBase, key)
}

// Start 连接 HA 侧 broker，发布 discovery 并开始转发
func (b *Bridge) Start() error {
	logger := pkg.LoggerFromContext(b.ctx)
	metrics := pkg.GetPerformanceMetrics()

	token := b.client.Connect()
	if !token.WaitTimeout(b.connectTimeout) {
		metrics.IncMsgErrors("bridge_connect")
		return fmt.Errorf("连接 HA broker 超时")
	}
	if err := token.Error(); err != nil {
		metrics.IncMsgErrors("bridge_connect")
		return fmt.Errorf("连接 HA broker 失败: %w", err)
	}

	// 每个逻辑实体注册一个设备监听器在这里合并为一个：
	// 实体状态共用一份文档，推送一次全量发布
	b.removeListener = b.device.AddUpdateListener(func(_ *device.PureCool, _ map[string]string) {
		b.publishState()
	})

	// 环境数据没有推送通知，按轮询节奏刷新传感器读数
	go b.refreshLoop()

	logger.Info("===HA 桥接启动===", zap.String("stateTopic", b.stateTopic))
	return nil
}

// Close 优雅关闭桥接
func (b *Bridge) Close() error {
	if b.removeListener != nil {
		b.removeListener()
		b.removeListener = nil
	}
	if b.client != nil && b.client.IsConnected() {
		b.client.Publish(b.availTopic, 0, true, "offline")
		b.client.Disconnect(250)
		pkg.LoggerFromContext(b.ctx).Info("HA 桥接已断开")
		return nil
	}
	return fmt.Errorf("HA 桥接未连接")
}

// onConnect 连接（或自动重连）成功后重新发布 discovery、可用性并订阅命令
func (b *Bridge) onConnect(client mqtt.Client) {
	logger := pkg.LoggerFromContext(b.ctx)

	payload, err := json.Marshal(b.buildDiscovery())
	if err != nil {
		logger.Error("序列化 discovery 消息失败", zap.Error(err))
		return
	}
	client.Publish(b.discoveryTopic, 0, true, payload)
	client.Publish(b.availTopic, 0, true, "online")

	if token := client.Subscribe(b.topicBase+"/+/set", 0, b.onCommand); token.Wait() && token.Error() != nil {
		logger.Error("订阅命令主题失败", zap.Error(token.Error()))
		return
	}

	b.publishState()
	logger.Info("HA 桥接已连接", zap.String("discoveryTopic", b.discoveryTopic))
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	pkg.GetPerformanceMetrics().IncMsgErrors("bridge_connection_lost")
	pkg.LoggerFromContext(b.ctx).Error("HA broker connect lost", zap.Error(err))
	// Paho 会自动重连，这里不需要手动重连
}

func (b *Bridge) refreshLoop() {
	ticker := time.NewTicker(b.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.publishState()
		}
	}
}

// publishState 发布实体状态文档
func (b *Bridge) publishState() {
	logger := pkg.LoggerFromContext(b.ctx)
	metrics := pkg.GetPerformanceMetrics()

	if !b.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(b.stateDocument())
	if err != nil {
		metrics.IncMsgErrors("bridge")
		logger.Error("序列化状态文档失败", zap.Error(err))
		return
	}
	b.client.Publish(b.stateTopic, 0, true, payload)
	metrics.IncMsgProcessed("bridge")
}

// stateDocument 从读模型组装状态文档，不可用的值序列化为 null
func (b *Bridge) stateDocument() map[string]any {
	d := b.device

	power := "OFF"
	if d.IsOn() {
		power = "ON"
	}

	percentage := 0
	if speed, ok := d.Speed(); ok && d.IsOn() {
		percentage = speed * 10
	}

	preset := ""
	if d.CurrentPresetMode() == device.PresetModeAuto {
		preset = string(device.PresetModeAuto)
	}

	nightMode := "OFF"
	if mode := d.CurrentPresetMode(); mode == device.PresetModeNight || mode == device.PresetModeAutoNight {
		nightMode = "ON"
	}

	doc := map[string]any{
		"power":       power,
		"percentage":  percentage,
		"preset":      preset,
		"oscillating": d.Oscillating(),
		"direction":   string(d.CurrentDirection()),
		"night_mode":  nightMode,
	}

	if osal, ok := d.OscillateLower(); ok {
		doc["osal"] = osal
	}
	if osau, ok := d.OscillateUpper(); ok {
		doc["osau"] = osau
	}
	if sltm, ok := d.SleepTimer(); ok {
		doc["sltm"] = sltm
	}
	for _, sensor := range Sensors {
		if value, ok := sensor.Value(d); ok {
			doc[sensor.ID] = value
		} else {
			doc[sensor.ID] = nil
		}
	}
	return doc
}

// onCommand 命令主题回调，主题形如 <topicPrefix>/<serial>/<key>/set
func (b *Bridge) onCommand(_ mqtt.Client, msg mqtt.Message) {
	logger := pkg.LoggerFromContext(b.ctx)
	metrics := pkg.GetPerformanceMetrics()

	metrics.IncMsgReceived("bridge_command")

	segments := strings.Split(msg.Topic(), "/")
	if len(segments) < 2 {
		return
	}
	key := segments[len(segments)-2]
	payload := strings.TrimSpace(string(msg.Payload()))

	if err := b.dispatchCommand(key, payload); err != nil {
		metrics.IncMsgErrors("bridge_command")
		logger.Warn("command failed",
			zap.String("key", key), zap.String("payload", payload), zap.Error(err))
		return
	}
	metrics.IncMsgProcessed("bridge_command")
}

// dispatchCommand 把实体命令翻译为设备命令
func (b *Bridge) dispatchCommand(key, payload string) error {
	d := b.device

	switch key {
	case "power":
		if payload == "ON" {
			return d.TurnOn()
		}
		return d.TurnOff()

	case "percentage":
		percentage, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("无效的百分比 %q: %w", payload, err)
		}
		if percentage == 0 {
			return d.TurnOff()
		}
		// 百分比向上取整映射到 1..10 档
		return d.SetSpeed((percentage + 9) / 10)

	case "preset":
		if payload == string(device.PresetModeAuto) {
			return d.SetPresetMode(device.PresetModeAuto)
		}
		return d.SetPresetMode(device.PresetModeNone)

	case "oscillating":
		if payload == "oscillate_on" {
			return d.Oscillate(true, nil, nil)
		}
		return d.Oscillate(false, nil, nil)

	case "direction":
		if payload == string(device.DirectionForward) {
			return d.SetDirection(device.DirectionForward)
		}
		return d.SetDirection(device.DirectionReverse)

	case "night_mode":
		current := d.CurrentPresetMode()
		if payload == "ON" {
			if current == device.PresetModeAuto {
				return d.SetPresetMode(device.PresetModeAutoNight)
			}
			return d.SetPresetMode(device.PresetModeNight)
		}
		if current == device.PresetModeAutoNight {
			return d.SetPresetMode(device.PresetModeAuto)
		}
		return d.SetPresetMode(device.PresetModeNone)

	case "osal":
		value, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("无效的下边界 %q: %w", payload, err)
		}
		return d.Oscillate(true, &value, nil)

	case "osau":
		value, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("无效的上边界 %q: %w", payload, err)
		}
		return d.Oscillate(true, nil, &value)

	case "sltm":
		minutes, err := strconv.Atoi(payload)
		if err != nil {
			return fmt.Errorf("无效的定时器 %q: %w", payload, err)
		}
		return d.SetSleepTimer(minutes)

	default:
		return fmt.Errorf("未知命令 %s", key)
	}
}
