package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"purecool/internal/device"
	"purecool/internal/pkg"
)

func newTestRouter() (*gin.Engine, *device.PureCool) {
	gin.SetMode(gin.TestMode)
	logger, _ := zap.NewDevelopment()
	ctx := pkg.WithLogger(context.Background(), logger)
	d := device.New(ctx, "NK6-CN-TEST0001A", "secret", "438")
	return SetupRouter(d), d
}

func TestRouter(t *testing.T) {
	Convey("给定状态查询 API 的路由", t, func() {
		router, d := newTestRouter()

		get := func(path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, path, nil)
			router.ServeHTTP(w, req)
			return w
		}

		Convey("健康检查返回 OK", func() {
			w := get("/health")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldEqual, "OK")
		})

		Convey("设备信息包含身份和连接状态", func() {
			w := get("/api/v1/device")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["serial"], ShouldEqual, d.Serial())
			So(body["deviceType"], ShouldEqual, "438")
			So(body["connection"], ShouldEqual, "disconnected")
		})

		Convey("设备状态中不可用的值序列化为 null", func() {
			w := get("/api/v1/device/state")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["power"], ShouldEqual, false)
			So(body["speed"], ShouldBeNil)
			So(body["oscillateLower"], ShouldBeNil)
		})

		Convey("环境读数中不可用的值序列化为 null", func() {
			w := get("/api/v1/device/environment")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body["temperature"], ShouldBeNil)
			So(body["humidity"], ShouldBeNil)
		})

		Convey("消息统计返回三个分类", func() {
			w := get("/api/v1/stats")
			So(w.Code, ShouldEqual, http.StatusOK)

			var body map[string]map[string]int64
			So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
			So(body, ShouldContainKey, "received")
			So(body, ShouldContainKey, "processed")
			So(body, ShouldContainKey, "errors")
		})

		Convey("Prometheus 指标端点可访问", func() {
			w := get("/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
