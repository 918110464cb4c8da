package conf

import "github.com/spf13/viper"

// setDefaultConfig registers defaults for every key so partial config files
// and environment-only deployments still produce a complete Settings.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "ppe-go")

	viper.SetDefault("detector.modelpath", "model/ppe_yolov8.tflite")
	viper.SetDefault("detector.labelpath", "")
	viper.SetDefault("detector.confidence", 0.40)
	viper.SetDefault("detector.maxdetections", 40)
	viper.SetDefault("detector.imagesize", 640)
	viper.SetDefault("detector.iouthreshold", 0.7)
	viper.SetDefault("detector.threads", 0)
	viper.SetDefault("detector.usexnnpack", true)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.bodylimit", "10M")
	viper.SetDefault("webserver.ratelimit", 5.0)
	viper.SetDefault("webserver.rateburst", 10)
	viper.SetDefault("webserver.cachettl", "30m")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")

	viper.SetDefault("output.sqlite.enabled", false)
	viper.SetDefault("output.sqlite.path", "ppe-go.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "ppe")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "ppe")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "ppe-go")
	viper.SetDefault("mqtt.clientid", "")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})
	viper.SetDefault("notification.minflags", 1)

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", true)
	viper.SetDefault("logging.file_output.path", "logs/ppe-go.log")
	viper.SetDefault("logging.file_output.level", "info")
	viper.SetDefault("logging.file_output.max_size", 100)
	viper.SetDefault("logging.file_output.max_age", 30)
	viper.SetDefault("logging.file_output.max_rotated_files", 10)
}
