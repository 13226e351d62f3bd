package bridge

import (
	"fmt"

	"purecool/internal/device"
)

// discoveryMessage Home Assistant MQTT device discovery 消息
type discoveryMessage struct {
	Device     deviceInfo           `json:"device"`
	Origin     originInfo           `json:"origin"`
	Components map[string]component `json:"components"`
	StateTopic string               `json:"state_topic"`
	QOS        int                  `json:"qos"`
}

type deviceInfo struct {
	Identifiers  string `json:"identifiers"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

type originInfo struct {
	Name            string `json:"name"`
	SoftwareVersion string `json:"sw_version"`
}

type component struct {
	Platform          string `json:"platform"`
	Name              string `json:"name,omitempty"`
	UniqueID          string `json:"unique_id,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`
	StateTopic        string `json:"state_topic,omitempty"`
	CommandTopic      string `json:"command_topic,omitempty"`
	AvailabilityTopic string `json:"availability_topic,omitempty"`
	EntityCategory    string `json:"entity_category,omitempty"`

	// switch
	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`

	// fan
	PercentageStateTopic     string   `json:"percentage_state_topic,omitempty"`
	PercentageCommandTopic   string   `json:"percentage_command_topic,omitempty"`
	PercentageValueTemplate  string   `json:"percentage_value_template,omitempty"`
	PresetModes              []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic     string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeCommandTopic   string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeValueTemplate  string   `json:"preset_mode_value_template,omitempty"`
	OscillationStateTopic    string   `json:"oscillation_state_topic,omitempty"`
	OscillationCommandTopic  string   `json:"oscillation_command_topic,omitempty"`
	OscillationValueTemplate string   `json:"oscillation_value_template,omitempty"`
	DirectionStateTopic      string   `json:"direction_state_topic,omitempty"`
	DirectionCommandTopic    string   `json:"direction_command_topic,omitempty"`
	DirectionValueTemplate   string   `json:"direction_value_template,omitempty"`

	// number
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`
	Step float64 `json:"step,omitempty"`
	Mode string  `json:"mode,omitempty"`
}

// SensorDescriptor 传感器种类的封闭枚举项：标识、显示名、单位与取值函数
type SensorDescriptor struct {
	ID          string
	Name        string
	DeviceClass string
	Unit        string
	Diagnostic  bool
	Value       func(d *device.PureCool) (any, bool)
}

// Sensors 全部传感器实体，每项对应设备一个环境/诊断读数
var Sensors = []SensorDescriptor{
	{
		ID: "temperature", Name: "Temperature",
		DeviceClass: "temperature", Unit: "°C",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.Temperature(); return v, ok },
	},
	{
		ID: "humidity", Name: "Humidity",
		DeviceClass: "humidity", Unit: "%",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.Humidity(); return v, ok },
	},
	{
		ID: "pm25", Name: "Particulate matter (PM2.5)",
		DeviceClass: "pm25", Unit: "µg/m³",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.PM25(); return v, ok },
	},
	{
		ID: "pm10", Name: "Particulate matter (PM10)",
		DeviceClass: "pm10", Unit: "µg/m³",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.PM10(); return v, ok },
	},
	{
		ID: "va10", Name: "Volatile organic compounds",
		DeviceClass: "volatile_organic_compounds", Unit: "µg/m³",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.VOC(); return v, ok },
	},
	{
		ID: "noxl", Name: "Nitrogen dioxide and other oxidising gases",
		DeviceClass: "nitrogen_dioxide", Unit: "µg/m³",
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.NOx(); return v, ok },
	},
	{
		ID: "hflr", Name: "HEPA filter life",
		Unit: "%", Diagnostic: true,
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.HEPAFilterLife(); return v, ok },
	},
	{
		ID: "cflr", Name: "Carbon filter life",
		Unit: "%", Diagnostic: true,
		Value: func(d *device.PureCool) (any, bool) { v, ok := d.CarbonFilterLife(); return v, ok },
	},
}

// buildDiscovery 组装整机的 discovery 消息，所有实体共用一个 state topic
func (b *Bridge) buildDiscovery() *discoveryMessage {
	serial := b.device.Serial()
	components := make(map[string]component)

	// 风扇本体
	components[serial+"_fan"] = component{
		Platform:     "fan",
		Name:         "Dyson Pure Cool",
		UniqueID:     serial,
		StateTopic:   b.stateTopic,
		CommandTopic: b.commandTopic("power"),
		ValueTemplate: "{{ value_json.power }}",

		PercentageStateTopic:    b.stateTopic,
		PercentageCommandTopic:  b.commandTopic("percentage"),
		PercentageValueTemplate: "{{ value_json.percentage }}",

		PresetModes:             []string{string(device.PresetModeAuto)},
		PresetModeStateTopic:    b.stateTopic,
		PresetModeCommandTopic:  b.commandTopic("preset"),
		PresetModeValueTemplate: "{{ value_json.preset }}",

		OscillationStateTopic:    b.stateTopic,
		OscillationCommandTopic:  b.commandTopic("oscillating"),
		OscillationValueTemplate: "{{ 'oscillate_on' if value_json.oscillating else 'oscillate_off' }}",

		DirectionStateTopic:    b.stateTopic,
		DirectionCommandTopic:  b.commandTopic("direction"),
		DirectionValueTemplate: "{{ value_json.direction }}",
	}

	// 夜间模式开关
	components[serial+"_nmod"] = component{
		Platform:       "switch",
		Name:           "Night mode",
		UniqueID:       serial + "-nmod",
		StateTopic:     b.stateTopic,
		CommandTopic:   b.commandTopic("night_mode"),
		ValueTemplate:  "{{ value_json.night_mode }}",
		PayloadOn:      "ON",
		PayloadOff:     "OFF",
		EntityCategory: "config",
	}

	// 摆动边界与睡眠定时器
	components[serial+"_osal"] = component{
		Platform:      "number",
		Name:          "Oscillation lower boundary",
		UniqueID:      serial + "-osal",
		StateTopic:    b.stateTopic,
		CommandTopic:  b.commandTopic("osal"),
		ValueTemplate: "{{ value_json.osal }}",
		Min:           5, Max: 355, Step: 1,
		Mode:           "box",
		EntityCategory: "config",
	}
	components[serial+"_osau"] = component{
		Platform:      "number",
		Name:          "Oscillation upper boundary",
		UniqueID:      serial + "-osau",
		StateTopic:    b.stateTopic,
		CommandTopic:  b.commandTopic("osau"),
		ValueTemplate: "{{ value_json.osau }}",
		Min:           5, Max: 355, Step: 1,
		Mode:           "box",
		EntityCategory: "config",
	}
	components[serial+"_sltm"] = component{
		Platform:      "number",
		Name:          "Sleep timer",
		UniqueID:      serial + "-sltm",
		StateTopic:    b.stateTopic,
		CommandTopic:  b.commandTopic("sltm"),
		ValueTemplate: "{{ value_json.sltm }}",
		Max:           540, Step: 1,
		Mode:           "box",
		EntityCategory: "config",
	}

	// 传感器
	for _, sensor := range Sensors {
		entry := component{
			Platform:          "sensor",
			Name:              sensor.Name,
			UniqueID:          fmt.Sprintf("%s-%s", serial, sensor.ID),
			DeviceClass:       sensor.DeviceClass,
			StateClass:        "measurement",
			UnitOfMeasurement: sensor.Unit,
			StateTopic:        b.stateTopic,
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", sensor.ID),
		}
		if sensor.Diagnostic {
			entry.EntityCategory = "diagnostic"
		}
		components[fmt.Sprintf("%s_%s", serial, sensor.ID)] = entry
	}

	return &discoveryMessage{
		Device: deviceInfo{
			Identifiers:  serial,
			Name:         "Dyson Pure Cool",
			Manufacturer: "Dyson",
			Model:        b.device.DeviceType(),
			SerialNumber: serial,
		},
		Origin: originInfo{
			Name:            "purecool-gateway",
			SoftwareVersion: b.version,
		},
		Components: components,
		StateTopic: b.stateTopic,
		QOS:        0,
	}
}
