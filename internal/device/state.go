package device

import (
	"math"
	"strconv"
	"sync"
)

// PresetMode 由 auto/nmod 两个布尔字段组合推导出的预设模式
type PresetMode string

const (
	PresetModeNone      PresetMode = ""
	PresetModeAuto      PresetMode = "Auto mode"
	PresetModeNight     PresetMode = "Night mode"
	PresetModeAutoNight PresetMode = "Auto + Night mode"
)

// Direction 风扇送风方向
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// stateStore 持有最近一次完整替换的状态快照和环境快照。
// 后台网络回调写入，任意调用方读取，整体替换避免读到撕裂的映射。
type stateStore struct {
	mu          sync.RWMutex
	state       map[string]fieldValue
	environment map[string]string
}

func newStateStore() *stateStore {
	return &stateStore{}
}

// replaceState 整体替换状态快照，每条状态消息视为全量而非增量
func (s *stateStore) replaceState(fields map[string]fieldValue) {
	s.mu.Lock()
	s.state = fields
	s.mu.Unlock()
}

// replaceEnvironment 整体替换环境快照
func (s *stateStore) replaceEnvironment(fields map[string]string) {
	s.mu.Lock()
	s.environment = fields
	s.mu.Unlock()
}

// field 解析一个字段码：先查状态快照（二元组取 current），再查环境快照。
// 两边都没有时返回 false，调用方应视为值暂不可用而非错误。
func (s *stateStore) field(code string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value, ok := s.state[code]; ok {
		return value.current(), true
	}
	if value, ok := s.environment[code]; ok {
		return value, true
	}
	return "", false
}

// stateMap 返回当前状态快照的扁平副本，传递给监听器
func (s *stateStore) stateMap() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(s.state))
	for code, value := range s.state {
		result[code] = value.current()
	}
	return result
}

// intField 解析整数字段，丢弃前导零。非数字返回 false（值不可用）
func (s *stateStore) intField(code string) (int, bool) {
	raw, ok := s.field(code)
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// --- 读模型，全部为当前快照的纯函数 ---

// IsOn 设备是否开机
func (d *PureCool) IsOn() bool {
	value, _ := d.store.field("fpwr")
	return value == "ON"
}

// Speed 当前风速 1..10，AUTO 或无数据时返回 false
func (d *PureCool) Speed() (int, bool) {
	raw, ok := d.store.field("fnsp")
	if !ok || raw == "AUTO" {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// CurrentDirection 当前送风方向，fdir 为 ON 表示正向
func (d *PureCool) CurrentDirection() Direction {
	if value, _ := d.store.field("fdir"); value == "ON" {
		return DirectionForward
	}
	return DirectionReverse
}

// Oscillating 是否正在摆动，oson 的 OION 和 ON 两个变体都算开
func (d *PureCool) Oscillating() bool {
	value, _ := d.store.field("oson")
	return value == "OION" || value == "ON"
}

// OscillateLower 摆动下边界角度
func (d *PureCool) OscillateLower() (int, bool) {
	return d.store.intField("osal")
}

// OscillateUpper 摆动上边界角度
func (d *PureCool) OscillateUpper() (int, bool) {
	return d.store.intField("osau")
}

// CurrentPresetMode 由 auto 和 nmod 组合推导预设模式
func (d *PureCool) CurrentPresetMode() PresetMode {
	auto, _ := d.store.field("auto")
	nmod, _ := d.store.field("nmod")

	switch {
	case auto == "ON" && nmod == "ON":
		return PresetModeAutoNight
	case auto == "ON":
		return PresetModeAuto
	case nmod == "ON":
		return PresetModeNight
	default:
		return PresetModeNone
	}
}

// ErrorCode 设备错误码
func (d *PureCool) ErrorCode() (string, bool) {
	return d.store.field("ercd")
}

// WarningCode 设备警告码
func (d *PureCool) WarningCode() (string, bool) {
	return d.store.field("wacd")
}

// Temperature 室内温度，单位摄氏度。tact 上报为十分之一开尔文
func (d *PureCool) Temperature() (float64, bool) {
	raw, ok := d.store.field("tact")
	if !ok {
		return 0, false
	}
	tact, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	celsius := tact/10 - 273.15
	return math.Round(celsius*10) / 10, true
}

// Humidity 室内相对湿度百分比
func (d *PureCool) Humidity() (int, bool) {
	return d.store.intField("hact")
}

// PM25 细颗粒物浓度
func (d *PureCool) PM25() (int, bool) {
	return d.store.intField("pm25")
}

// PM10 可吸入颗粒物浓度
func (d *PureCool) PM10() (int, bool) {
	return d.store.intField("pm10")
}

// VOC 挥发性有机物指数
func (d *PureCool) VOC() (int, bool) {
	return d.store.intField("va10")
}

// NOx 二氧化氮及其他氧化性气体指数
func (d *PureCool) NOx() (int, bool) {
	return d.store.intField("noxl")
}

// HEPAFilterLife HEPA 滤网剩余寿命百分比
func (d *PureCool) HEPAFilterLife() (int, bool) {
	return d.store.intField("hflr")
}

// CarbonFilterLife 活性炭滤网剩余寿命百分比
func (d *PureCool) CarbonFilterLife() (int, bool) {
	return d.store.intField("cflr")
}

// SleepTimer 睡眠定时器剩余分钟数，OFF 时为 0
func (d *PureCool) SleepTimer() (int, bool) {
	raw, ok := d.store.field("sltm")
	if !ok {
		return 0, false
	}
	if raw == "OFF" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ContinuousMonitoring 持续监测是否开启
func (d *PureCool) ContinuousMonitoring() bool {
	value, _ := d.store.field("rhtm")
	return value == "ON"
}
