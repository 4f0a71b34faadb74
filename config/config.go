package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "LANG")
		viper.BindEnv("cooldown_window", "COOLDOWN_WINDOW")
		viper.BindEnv("price_band_epsilon", "PRICE_BAND_EPSILON")
		viper.BindEnv("sweep_interval", "SWEEP_INTERVAL")
		viper.BindEnv("cron_poll_interval", "CRON_POLL_INTERVAL")
		viper.BindEnv("hyperliquid_api_url", "HYPERLIQUID_API_URL")
		viper.BindEnv("hyperliquid_ws_url", "HYPERLIQUID_WS_URL")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("db_path", "/app/data/alerts.db")
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("cooldown_window", 60*time.Second)
		viper.SetDefault("price_band_epsilon", 0.05)
		viper.SetDefault("sweep_interval", 5*time.Second)
		viper.SetDefault("cron_poll_interval", 60*time.Second)
		viper.SetDefault("hyperliquid_api_url", "https://api.hyperliquid.xyz")
		viper.SetDefault("hyperliquid_ws_url", "wss://api.hyperliquid.xyz/ws")
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}

func GetFloat64(key string) float64 {
	InitConfig()
	return viper.GetFloat64(key)
}

func GetDuration(key string) time.Duration {
	InitConfig()
	return viper.GetDuration(key)
}
