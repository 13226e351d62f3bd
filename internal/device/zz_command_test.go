package device

import (
	"encoding/json"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"
)

// commandRecorder 把设备客户端接到一个记录 STATE-SET 载荷的 mock 上
func commandRecorder(d *PureCool) *[]map[string]string {
	captured := &[]map[string]string{}

	mockClient := new(MockMQTTClient)
	mockToken := new(MockToken)
	mockClient.On("IsConnected").Return(true)
	mockClient.On("Publish", d.commandTopic, mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) {
			var envelope struct {
				Msg        string            `json:"msg"`
				Time       string            `json:"time"`
				ModeReason string            `json:"mode-reason"`
				Data       map[string]string `json:"data"`
			}
			So(json.Unmarshal(args.Get(3).([]byte), &envelope), ShouldBeNil)
			So(envelope.Msg, ShouldEqual, "STATE-SET")
			So(envelope.ModeReason, ShouldEqual, "LAPP")
			*captured = append(*captured, envelope.Data)
		}).Return(mockToken)

	d.client = mockClient
	return captured
}

func seedState(d *PureCool, fields map[string]string) {
	state := make(map[string]fieldValue, len(fields))
	for code, value := range fields {
		state[code] = fieldValue{scalar: value}
	}
	d.store.replaceState(state)
}

func TestSetSpeed(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("设置合法风速时应该零填充编码并重申开机", func() {
			So(d.SetSpeed(3), ShouldBeNil)
			So(*sent, ShouldHaveLength, 1)
			So((*sent)[0]["fnsp"], ShouldEqual, "0003")
			So((*sent)[0]["fpwr"], ShouldEqual, "ON")

			So(d.SetSpeed(10), ShouldBeNil)
			So((*sent)[1]["fnsp"], ShouldEqual, "0010")
		})

		Convey("风速超出范围时应该返回校验错误且不发出任何消息", func() {
			err := d.SetSpeed(0)
			So(err, ShouldHaveSameTypeAs, &ValidationError{})
			err = d.SetSpeed(11)
			So(err, ShouldHaveSameTypeAs, &ValidationError{})
			So(*sent, ShouldBeEmpty)
		})
	})
}

func TestTurnOnOff(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("已知当前风速时开机应该重申风速", func() {
			seedState(d, map[string]string{"fnsp": "0007"})

			So(d.TurnOn(), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "ON", "fnsp": "0007"})
		})

		Convey("风速未知（AUTO）时开机只发电源字段", func() {
			seedState(d, map[string]string{"fnsp": "AUTO"})

			So(d.TurnOn(), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "ON"})
		})

		Convey("关机只翻转电源字段", func() {
			So(d.TurnOff(), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "OFF"})
		})
	})
}

func TestOscillate(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		lower := func(v int) *int { return &v }
		upper := func(v int) *int { return &v }

		Convey("边界超出允许角度时应该夹取到 5..355", func() {
			So(d.Oscillate(true, lower(10), upper(400)), ShouldBeNil)
			So((*sent)[0]["osal"], ShouldEqual, "0010")
			So((*sent)[0]["osau"], ShouldEqual, "0355")
			So((*sent)[0]["ancp"], ShouldEqual, "CUST")
			So((*sent)[0]["fpwr"], ShouldEqual, "ON")
		})

		Convey("弧度不足 30 度时应该折叠到中点", func() {
			So(d.Oscillate(true, lower(100), upper(110)), ShouldBeNil)
			So((*sent)[0]["osal"], ShouldEqual, "0105")
			So((*sent)[0]["osau"], ShouldEqual, "0105")
		})

		Convey("下界大于上界时应该交换", func() {
			So(d.Oscillate(true, lower(200), upper(50)), ShouldBeNil)
			So((*sent)[0]["osal"], ShouldEqual, "0050")
			So((*sent)[0]["osau"], ShouldEqual, "0200")
		})

		Convey("未指定边界时缺省取当前存储值", func() {
			seedState(d, map[string]string{"osal": "0090", "osau": "0270"})

			So(d.Oscillate(true, nil, nil), ShouldBeNil)
			So((*sent)[0]["osal"], ShouldEqual, "0090")
			So((*sent)[0]["osau"], ShouldEqual, "0270")
		})

		Convey("固件使用 OION/OIOF 变体时应该保留该变体", func() {
			seedState(d, map[string]string{"oson": "OION"})

			So(d.Oscillate(true, lower(50), upper(300)), ShouldBeNil)
			So((*sent)[0]["oson"], ShouldEqual, "OION")

			So(d.Oscillate(false, nil, nil), ShouldBeNil)
			So((*sent)[1], ShouldResemble, map[string]string{"oson": "OIOF"})
		})

		Convey("固件使用 ON/OFF 变体时关闭摆动发 OFF", func() {
			seedState(d, map[string]string{"oson": "ON"})

			So(d.Oscillate(false, nil, nil), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"oson": "OFF"})
		})
	})
}

func TestSetPresetMode(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("自动类模式应该强制开机", func() {
			So(d.SetPresetMode(PresetModeAuto), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "ON", "auto": "ON", "nmod": "OFF"})

			So(d.SetPresetMode(PresetModeAutoNight), ShouldBeNil)
			So((*sent)[1], ShouldResemble, map[string]string{"fpwr": "ON", "auto": "ON", "nmod": "ON"})
		})

		Convey("夜间模式应该保留当前电源状态", func() {
			seedState(d, map[string]string{"fpwr": "OFF"})

			So(d.SetPresetMode(PresetModeNight), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "OFF", "auto": "OFF", "nmod": "ON"})
		})

		Convey("电源状态未知时不补电源字段", func() {
			So(d.SetPresetMode(PresetModeNone), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"auto": "OFF", "nmod": "OFF"})
		})
	})
}

func TestSetSleepTimer(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("合法分钟数应该零填充编码", func() {
			So(d.SetSleepTimer(45), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"sltm": "0045"})

			So(d.SetSleepTimer(0), ShouldBeNil)
			So((*sent)[1], ShouldResemble, map[string]string{"sltm": "0000"})
		})

		Convey("超出范围应该返回校验错误且不发出任何消息", func() {
			So(d.SetSleepTimer(-1), ShouldHaveSameTypeAs, &ValidationError{})
			So(d.SetSleepTimer(541), ShouldHaveSameTypeAs, &ValidationError{})
			So(*sent, ShouldBeEmpty)
		})
	})
}

func TestSetContinuousMonitoring(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("开机状态下开启持续监测", func() {
			seedState(d, map[string]string{"fpwr": "ON"})

			So(d.SetContinuousMonitoring(true), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "ON", "rhtm": "ON"})
		})

		Convey("关机状态下关闭持续监测", func() {
			So(d.SetContinuousMonitoring(false), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fpwr": "OFF", "rhtm": "OFF"})
		})
	})
}

func TestSetDirection(t *testing.T) {
	Convey("给定一个已连接的设备客户端", t, func() {
		d := newTestDevice()
		sent := commandRecorder(d)

		Convey("正向送风发 fdir ON", func() {
			So(d.SetDirection(DirectionForward), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fdir": "ON"})
		})

		Convey("反向送风发 fdir OFF", func() {
			So(d.SetDirection(DirectionReverse), ShouldBeNil)
			So((*sent)[0], ShouldResemble, map[string]string{"fdir": "OFF"})
		})
	})
}
