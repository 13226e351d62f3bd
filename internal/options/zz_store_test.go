package options

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStore(t *testing.T) {
	Convey("给定一个选项文件存储", t, func() {
		path := filepath.Join(t.TempDir(), "options.yaml")
		store := NewStore(path)

		Convey("文件不存在时 Load 返回 nil 而不是错误", func() {
			opts, err := store.Load()
			So(err, ShouldBeNil)
			So(opts, ShouldBeNil)
		})

		Convey("保存后应该能原样读回", func() {
			saved := &Options{ContinuousMonitoring: true, LastHost: "192.168.1.50"}
			So(store.Save(saved), ShouldBeNil)

			loaded, err := store.Load()
			So(err, ShouldBeNil)
			So(loaded, ShouldResemble, saved)
		})

		Convey("选项文件不可解析时返回错误", func() {
			So(os.WriteFile(path, []byte(":\tnot yaml"), 0o600), ShouldBeNil)

			_, err := store.Load()
			So(err, ShouldNotBeNil)
		})
	})
}
