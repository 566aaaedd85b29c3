package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Game     GameConfig     `mapstructure:"game"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

type GameConfig struct {
	HouseEdge          float64 `mapstructure:"houseEdge"`
	SignupCredit       int64   `mapstructure:"signupCredit"`
	CrashGrowthRate    float64 `mapstructure:"crashGrowthRate"`
	CrashMinMultiplier float64 `mapstructure:"crashMinMultiplier"`
	CrashMaxMultiplier float64 `mapstructure:"crashMaxMultiplier"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	applyGameDefaults(&cfg.Game)
	GlobalConfig = &cfg
}

func applyGameDefaults(g *GameConfig) {
	if g.HouseEdge <= 0 || g.HouseEdge >= 1 {
		g.HouseEdge = 0.03
	}
	if g.SignupCredit <= 0 {
		g.SignupCredit = 10000
	}
	if g.CrashGrowthRate <= 0 {
		g.CrashGrowthRate = 0.5
	}
	if g.CrashMinMultiplier < 1 {
		g.CrashMinMultiplier = 1.0
	}
	if g.CrashMaxMultiplier <= g.CrashMinMultiplier {
		g.CrashMaxMultiplier = 10.0
	}
}
