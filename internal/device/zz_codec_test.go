package device

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeInbound(t *testing.T) {
	Convey("给定入站 JSON 消息", t, func() {

		Convey("CURRENT-STATE 携带标量字段", func() {
			payload := `{"msg": "CURRENT-STATE", "product-state": {"fpwr": "ON", "fnsp": "0004"}}`

			decoded, err := decodeInbound([]byte(payload))

			So(err, ShouldBeNil)
			So(decoded.kind, ShouldEqual, msgCurrentState)
			So(decoded.state["fpwr"].current(), ShouldEqual, "ON")
			So(decoded.state["fnsp"].current(), ShouldEqual, "0004")
		})

		Convey("STATE-CHANGE 携带 [previous, current] 二元组", func() {
			payload := `{"msg": "STATE-CHANGE", "product-state": {"fpwr": ["OFF", "ON"], "fnsp": ["0002", "0005"]}}`

			decoded, err := decodeInbound([]byte(payload))

			So(err, ShouldBeNil)
			So(decoded.kind, ShouldEqual, msgStateChange)
			So(decoded.state["fpwr"].current(), ShouldEqual, "ON")
			So(decoded.state["fnsp"].current(), ShouldEqual, "0005")
		})

		Convey("环境数据携带 data 映射", func() {
			payload := `{"msg": "ENVIRONMENTAL-CURRENT-SENSOR-DATA", "data": {"tact": "2931", "pm25": "0009"}}`

			decoded, err := decodeInbound([]byte(payload))

			So(err, ShouldBeNil)
			So(decoded.kind, ShouldEqual, msgEnvironmentalData)
			So(decoded.environment["tact"], ShouldEqual, "2931")
		})

		Convey("未识别的 msg 判别值不算错误", func() {
			payload := `{"msg": "FAULT-CHANGE", "data": {"x": "1"}}`

			decoded, err := decodeInbound([]byte(payload))

			So(err, ShouldBeNil)
			So(decoded.kind, ShouldBeEmpty)
		})

		Convey("非 JSON 载荷返回错误", func() {
			_, err := decodeInbound([]byte("garbage"))
			So(err, ShouldNotBeNil)
		})

		Convey("状态消息缺少 product-state 返回错误", func() {
			_, err := decodeInbound([]byte(`{"msg": "CURRENT-STATE"}`))
			So(err, ShouldNotBeNil)
		})

		Convey("字段二元组元素数量不是 2 返回错误", func() {
			payload := `{"msg": "STATE-CHANGE", "product-state": {"fpwr": ["OFF", "ON", "ON"]}}`
			_, err := decodeInbound([]byte(payload))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEncode(t *testing.T) {
	Convey("给定固定的时间点", t, func() {
		now := time.Date(2026, 8, 23, 10, 30, 0, 0, time.FixedZone("CST", 8*3600))

		Convey("时间戳编码为秒级 UTC 并以 Z 结尾", func() {
			So(mqttTime(now), ShouldEqual, "2026-08-23T02:30:00Z")
		})

		Convey("请求信封只含 msg 和 time", func() {
			var envelope map[string]string
			So(json.Unmarshal(encodeRequest(msgRequestCurrentState, now), &envelope), ShouldBeNil)
			So(envelope, ShouldResemble, map[string]string{
				"msg":  "REQUEST-CURRENT-STATE",
				"time": "2026-08-23T02:30:00Z",
			})
		})

		Convey("STATE-SET 信封携带 mode-reason 和字段映射", func() {
			var envelope struct {
				Msg        string            `json:"msg"`
				Time       string            `json:"time"`
				ModeReason string            `json:"mode-reason"`
				Data       map[string]string `json:"data"`
			}
			payload := encodeStateSet(map[string]string{"fpwr": "ON"}, now)

			So(json.Unmarshal(payload, &envelope), ShouldBeNil)
			So(envelope.Msg, ShouldEqual, "STATE-SET")
			So(envelope.ModeReason, ShouldEqual, "LAPP")
			So(envelope.Data, ShouldResemble, map[string]string{"fpwr": "ON"})
		})
	})
}
