package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// 入站消息的 msg 判别值
const (
	msgCurrentState      = "CURRENT-STATE"
	msgStateChange       = "STATE-CHANGE"
	msgEnvironmentalData = "ENVIRONMENTAL-CURRENT-SENSOR-DATA"
)

// 出站命令的 msg 值
const (
	msgRequestCurrentState    = "REQUEST-CURRENT-STATE"
	msgRequestEnvironmentData = "REQUEST-PRODUCT-ENVIRONMENT-CURRENT-SENSOR-DATA"
	msgStateSet               = "STATE-SET"
)

// fieldValue 协议状态字段值，标量字符串或 [previous, current] 二元组。
// 固件对部分字段上报二元组，读模型始终取 current 即第二个元素。
type fieldValue struct {
	scalar string
	pair   [2]string
	isPair bool
}

func (f *fieldValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		var pair []string
		if err := json.Unmarshal(data, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("field pair has %d elements, want 2", len(pair))
		}
		f.pair = [2]string{pair[0], pair[1]}
		f.isPair = true
		return nil
	}
	f.isPair = false
	return json.Unmarshal(data, &f.scalar)
}

// current 返回字段的当前值
func (f fieldValue) current() string {
	if f.isPair {
		return f.pair[1]
	}
	return f.scalar
}

// inboundMessage 解码后的入站消息
type inboundMessage struct {
	kind        string
	state       map[string]fieldValue // CURRENT-STATE / STATE-CHANGE 携带
	environment map[string]string     // ENVIRONMENTAL-CURRENT-SENSOR-DATA 携带
}

// decodeInbound 解析一条入站 JSON 消息。未识别的 msg 判别值不算错误，
// kind 为空字符串表示忽略该消息（向前兼容）。
func decodeInbound(payload []byte) (*inboundMessage, error) {
	var envelope struct {
		Msg          string                `json:"msg"`
		ProductState map[string]fieldValue `json:"product-state"`
		Data         map[string]string     `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("unmarshal inbound message: %w", err)
	}

	switch envelope.Msg {
	case msgCurrentState, msgStateChange:
		if envelope.ProductState == nil {
			return nil, fmt.Errorf("message %s missing product-state", envelope.Msg)
		}
		return &inboundMessage{kind: envelope.Msg, state: envelope.ProductState}, nil
	case msgEnvironmentalData:
		if envelope.Data == nil {
			return nil, fmt.Errorf("message %s missing data", envelope.Msg)
		}
		return &inboundMessage{kind: envelope.Msg, environment: envelope.Data}, nil
	default:
		// 未识别的消息类型，忽略
		return &inboundMessage{}, nil
	}
}

// mqttTime 返回秒级精度、Z 结尾的 UTC 时间戳，设备固件的信封约定
func mqttTime(now time.Time) string {
	return now.UTC().Format("2006-01-02T15:04:05Z")
}

// encodeRequest 编码无附加字段的请求信封
func encodeRequest(msg string, now time.Time) []byte {
	payload, _ := json.Marshal(map[string]string{
		"msg":  msg,
		"time": mqttTime(now),
	})
	return payload
}

// stateSetEnvelope STATE-SET 命令信封
type stateSetEnvelope struct {
	Msg        string            `json:"msg"`
	Time       string            `json:"time"`
	ModeReason string            `json:"mode-reason"`
	Data       map[string]string `json:"data"`
}

// encodeStateSet 编码 STATE-SET 命令，data 为要设置的原始字段映射
func encodeStateSet(data map[string]string, now time.Time) []byte {
	payload, _ := json.Marshal(stateSetEnvelope{
		Msg:        msgStateSet,
		Time:       mqttTime(now),
		ModeReason: "LAPP",
		Data:       data,
	})
	return payload
}
