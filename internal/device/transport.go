package device

import (
	"errors"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
)

// MQTTClient 定义一个接口，包含需要的 MQTT 客户端方法
type MQTTClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// newClientFunc 客户端工厂函数，测试时注入 mock
type newClientFunc func(opts *mqtt.ClientOptions) MQTTClient

func defaultNewClient(opts *mqtt.ClientOptions) MQTTClient {
	return mqtt.NewClient(opts)
}

// clientOptions 构造设备会话的 paho 选项。凭据即设备身份：
// 用户名为序列号，密码为设备 credential
func (d *PureCool) clientOptions(host string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:1883", host))
	opts.SetClientID(d.serial)
	opts.SetUsername(d.serial)
	opts.SetPassword(d.credential)
	opts.SetProtocolVersion(3)   // 设备内置 broker 只接受 MQTT v3.1
	opts.SetAutoReconnect(false) // 单次连接语义，掉线后由调用方重新 Connect
	opts.SetConnectTimeout(d.timeout)
	opts.SetOnConnectHandler(d.onConnect)
	opts.SetConnectionLostHandler(d.onConnectionLost)
	return opts
}

// classifyConnectError 将 broker 的 CONNACK 拒绝码映射为类型化错误。
// 凭据错误单独成类，调用方对它的补救方式不同于其他拒绝
func classifyConnectError(err error) error {
	switch {
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion):
		return &CannotConnectError{Reason: RefusedProtocolVersion}
	case errors.Is(err, packets.ErrorRefusedIDRejected):
		return &CannotConnectError{Reason: RefusedIdentifier}
	case errors.Is(err, packets.ErrorRefusedServerUnavailable):
		return &CannotConnectError{Reason: RefusedServerUnavailable}
	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		return &InvalidAuthError{}
	case errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return &CannotConnectError{Reason: RefusedNotAuthorized}
	default:
		return fmt.Errorf("connect: %w", err)
	}
}
