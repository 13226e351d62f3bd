package admin

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"purecool/internal/device"
	"purecool/internal/pkg"
)

// SetupRouter 配置 Gin 路由
func SetupRouter(d *device.PureCool) *gin.Engine {
	r := gin.Default()

	// 配置 CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"} // 允许所有来源，生产环境应配置具体来源
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Prometheus 指标
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 分组
	apiV1 := r.Group("/api/v1")
	{
		deviceGroup := apiV1.Group("/device")
		{
			deviceGroup.GET("", getDevice(d))                 // GET /api/v1/device
			deviceGroup.GET("/state", getState(d))            // GET /api/v1/device/state
			deviceGroup.GET("/environment", getEnvironment(d)) // GET /api/v1/device/environment
		}
		apiV1.GET("/stats", getStats())
	}

	return r
}

// Run 启动状态查询 API
func Run(ctx context.Context, d *device.PureCool) {
	logger := pkg.LoggerFromContext(ctx)
	config := pkg.ConfigFromContext(ctx)

	if !config.Admin.Enable {
		logger.Debug("状态查询 API 未启用")
		return
	}

	router := SetupRouter(d)
	go func() {
		logger.Info("===状态查询 API 启动===", zap.Int("port", config.Admin.Port))
		if err := router.Run(fmt.Sprintf(":%d", config.Admin.Port)); err != nil {
			logger.Error("状态查询 API 启动失败", zap.Error(err))
		}
	}()
}

func getDevice(d *device.PureCool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"serial":     d.Serial(),
			"deviceType": d.DeviceType(),
			"connection": d.State().String(),
		})
	}
}

func getState(d *device.PureCool) gin.HandlerFunc {
	return func(c *gin.Context) {
		speed, speedOK := d.Speed()
		osal, osalOK := d.OscillateLower()
		osau, osauOK := d.OscillateUpper()
		sltm, sltmOK := d.SleepTimer()
		ercd, _ := d.ErrorCode()
		wacd, _ := d.WarningCode()

		c.JSON(http.StatusOK, gin.H{
			"power":                d.IsOn(),
			"speed":                nullable(speed, speedOK),
			"direction":            d.CurrentDirection(),
			"oscillating":          d.Oscillating(),
			"oscillateLower":       nullable(osal, osalOK),
			"oscillateUpper":       nullable(osau, osauOK),
			"presetMode":           d.CurrentPresetMode(),
			"sleepTimer":           nullable(sltm, sltmOK),
			"continuousMonitoring": d.ContinuousMonitoring(),
			"errorCode":            ercd,
			"warningCode":          wacd,
		})
	}
}

func getEnvironment(d *device.PureCool) gin.HandlerFunc {
	return func(c *gin.Context) {
		temperature, temperatureOK := d.Temperature()
		humidity, humidityOK := d.Humidity()
		pm25, pm25OK := d.PM25()
		pm10, pm10OK := d.PM10()
		voc, vocOK := d.VOC()
		nox, noxOK := d.NOx()
		hepa, hepaOK := d.HEPAFilterLife()
		carbon, carbonOK := d.CarbonFilterLife()

		c.JSON(http.StatusOK, gin.H{
			"temperature":      nullable(temperature, temperatureOK),
			"humidity":         nullable(humidity, humidityOK),
			"pm25":             nullable(pm25, pm25OK),
			"pm10":             nullable(pm10, pm10OK),
			"voc":              nullable(voc, vocOK),
			"nox":              nullable(nox, noxOK),
			"hepaFilterLife":   nullable(hepa, hepaOK),
			"carbonFilterLife": nullable(carbon, carbonOK),
		})
	}
}

func getStats() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, pkg.GetPerformanceMetrics().MsgStats())
	}
}

// nullable 值不可用时序列化为 null，而不是零值
func nullable[T any](value T, ok bool) any {
	if !ok {
		return nil
	}
	return value
}
