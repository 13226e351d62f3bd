package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInitCommon(t *testing.T) {
	Convey("给定一个包含 yaml 的配置目录", t, func() {
		configDir := t.TempDir()
		content := `
version: "0.1.0"
device:
  serial: "NK6-CN-TEST0001A"
  credential: "secret"
  deviceType: "438"
bridge:
  broker: "tcp://127.0.0.1:1883"
  clientID: "purecool-gateway"
poll:
  interval: 7s
`
		So(os.WriteFile(filepath.Join(configDir, "common.yaml"), []byte(content), 0o600), ShouldBeNil)

		Convey("当调用 InitCommon 时", func() {
			config, v, err := InitCommon(configDir)

			Convey("应该成功反序列化配置", func() {
				So(err, ShouldBeNil)
				So(v, ShouldNotBeNil)
				So(config.Device.Serial, ShouldEqual, "NK6-CN-TEST0001A")
				So(config.Device.DeviceType, ShouldEqual, "438")
				So(config.Bridge.Broker, ShouldEqual, "tcp://127.0.0.1:1883")
				So(config.Poll.Interval, ShouldEqual, 7*time.Second)
			})

			Convey("未配置项应该填充默认值", func() {
				So(err, ShouldBeNil)
				So(config.Bridge.DiscoveryPrefix, ShouldEqual, "homeassistant")
				So(config.Bridge.TopicPrefix, ShouldEqual, "purecool")
				So(config.Bridge.ConnectTimeout, ShouldEqual, 10*time.Second)
				So(config.Options.Path, ShouldEqual, "options.yaml")
			})
		})

		Convey("子目录中的 yaml 也会被合并", func() {
			subDir := filepath.Join(configDir, "override")
			So(os.MkdirAll(subDir, 0o755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(subDir, "admin.yaml"),
				[]byte("admin:\n  enable: true\n  port: 8080\n"), 0o600), ShouldBeNil)

			config, _, err := InitCommon(configDir)

			So(err, ShouldBeNil)
			So(config.Admin.Enable, ShouldBeTrue)
			So(config.Admin.Port, ShouldEqual, 8080)
			So(config.Device.Serial, ShouldEqual, "NK6-CN-TEST0001A")
		})
	})

	Convey("给定一个空的配置目录", t, func() {
		config, _, err := InitCommon(t.TempDir())

		Convey("应该返回全默认值的配置", func() {
			So(err, ShouldBeNil)
			So(config.Poll.Interval, ShouldEqual, 5*time.Second)
		})
	})
}

func TestConfigContext(t *testing.T) {
	Convey("给定一个配置指针", t, func() {
		config := &Config{Version: "0.1.0"}

		Convey("存入 context 后应该能取回同一个指针", func() {
			ctx := WithConfig(context.Background(), config)
			So(ConfigFromContext(ctx), ShouldEqual, config)
		})

		Convey("context 中没有配置时返回空配置而不是 nil", func() {
			got := ConfigFromContext(context.Background())
			So(got, ShouldNotBeNil)
			So(got.Version, ShouldBeEmpty)
		})
	})
}
