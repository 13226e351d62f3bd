package device

import (
	"fmt"
)

// 风速与睡眠定时器的允许范围
const (
	speedMin = 1
	speedMax = 10

	sleepTimerMin = 0
	sleepTimerMax = 540

	oscillateAngleMin = 5
	oscillateAngleMax = 355
	oscillateMinArc   = 30 // 硬件最小摆动弧度
)

// TurnOn 开机并重申当前风速。固件要求风速以 4 位零填充编码
func (d *PureCool) TurnOn() error {
	data := map[string]string{"fpwr": "ON"}
	if speed, ok := d.Speed(); ok {
		data["fnsp"] = fmt.Sprintf("%04d", speed)
	}
	return d.setConfiguration(data)
}

// TurnOff 关机
func (d *PureCool) TurnOff() error {
	return d.setConfiguration(map[string]string{"fpwr": "OFF"})
}

// SetSpeed 设置风速，超出 1..10 返回 ValidationError 且不发出任何消息
func (d *PureCool) SetSpeed(speed int) error {
	if speed < speedMin || speed > speedMax {
		return &ValidationError{Field: "speed", Value: speed, Min: speedMin, Max: speedMax}
	}
	return d.setConfiguration(map[string]string{
		"fpwr": "ON",
		"fnsp": fmt.Sprintf("%04d", speed),
	})
}

// SetDirection 设置送风方向
func (d *PureCool) SetDirection(direction Direction) error {
	if direction == DirectionForward {
		return d.setConfiguration(map[string]string{"fdir": "ON"})
	}
	return d.setConfiguration(map[string]string{"fdir": "OFF"})
}

// Oscillate 开启或关闭摆动。开启时缺省边界取当前存储值；
// 下界大于上界时交换；下界不低于 5 度、上界不超过 355 度；
// 弧度不足 30 度时两边界折叠到中点。oson 的 IO 变体按当前值保留
func (d *PureCool) Oscillate(oscillating bool, lower, upper *int) error {
	oson, _ := d.store.field("oson")
	ioVariant := oson == "OION" || oson == "OIOF"

	if !oscillating {
		// 关闭只翻转摆动字段，电源状态不动
		value := "OFF"
		if ioVariant {
			value = "OIOF"
		}
		return d.setConfiguration(map[string]string{"oson": value})
	}

	osal := oscillateAngleMin
	if lower != nil {
		osal = *lower
	} else if current, ok := d.OscillateLower(); ok {
		osal = current
	}
	osau := oscillateAngleMax
	if upper != nil {
		osau = *upper
	} else if current, ok := d.OscillateUpper(); ok {
		osau = current
	}

	if osal > osau {
		osal, osau = osau, osal
	}
	osal = max(osal, oscillateAngleMin)
	osau = min(osau, oscillateAngleMax)

	if osau-osal < oscillateMinArc {
		mid := osal + (osau-osal)/2
		osal, osau = mid, mid
	}

	value := "ON"
	if ioVariant {
		value = "OION"
	}
	return d.setConfiguration(map[string]string{
		"oson": value,
		"fpwr": "ON",
		"ancp": "CUST",
		"osal": fmt.Sprintf("%04d", osal),
		"osau": fmt.Sprintf("%04d", osau),
	})
}

// SetPresetMode 设置预设模式。自动类模式强制开机，
// 夜间模式和无模式保留当前电源状态
func (d *PureCool) SetPresetMode(mode PresetMode) error {
	switch mode {
	case PresetModeAutoNight:
		return d.setConfiguration(map[string]string{"fpwr": "ON", "auto": "ON", "nmod": "ON"})
	case PresetModeAuto:
		return d.setConfiguration(map[string]string{"fpwr": "ON", "auto": "ON", "nmod": "OFF"})
	case PresetModeNight:
		return d.setConfiguration(d.withCurrentPower(map[string]string{"auto": "OFF", "nmod": "ON"}))
	default:
		return d.setConfiguration(d.withCurrentPower(map[string]string{"auto": "OFF", "nmod": "OFF"}))
	}
}

// SetSleepTimer 设置睡眠定时器分钟数，0 表示关闭，编码方式相同
func (d *PureCool) SetSleepTimer(minutes int) error {
	if minutes < sleepTimerMin || minutes > sleepTimerMax {
		return &ValidationError{Field: "sleep timer", Value: minutes, Min: sleepTimerMin, Max: sleepTimerMax}
	}
	return d.setConfiguration(map[string]string{"sltm": fmt.Sprintf("%04d", minutes)})
}

// SetContinuousMonitoring 开关持续监测。固件要求每条 state-set 都带电源状态，
// 否则行为不可预测，因此重申当前电源状态
func (d *PureCool) SetContinuousMonitoring(enabled bool) error {
	rhtm := "OFF"
	if enabled {
		rhtm = "ON"
	}
	fpwr := "OFF"
	if d.IsOn() {
		fpwr = "ON"
	}
	return d.setConfiguration(map[string]string{"fpwr": fpwr, "rhtm": rhtm})
}

// withCurrentPower 在字段映射中补上当前电源状态，值未知时不补
func (d *PureCool) withCurrentPower(data map[string]string) map[string]string {
	if fpwr, ok := d.store.field("fpwr"); ok {
		data["fpwr"] = fpwr
	}
	return data
}
