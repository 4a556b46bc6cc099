package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Proctor  ProctorConfig
		Evidence EvidenceConfig
	}

	ServerConfig struct {
		Host               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ProctorConfig holds the tuning knobs of the violation pipeline.
	ProctorConfig struct {
		DebounceWindow    time.Duration
		StrikeThreshold   int
		FrameSampleEvery  int // process every Nth frame; 1 processes all frames
		DownscaleWidth    int
		GazeIrisThreshold float64
		PostureTolerance  float64
		DeviceConfidence  float64
	}

	EvidenceConfig struct {
		Root      string
		Workers   int
		QueueSize int
		Timeout   time.Duration
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// Enabled reports whether an archive database has been configured.
func (db DatabaseConfig) Enabled() bool {
	return db.Name != ""
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Proctor")
	v.SetDefault("secretKey", "t9w$-ko2(x8!v3pe=zq+4l#mh0_yr&ej7*cu1(fbn%d6s^ga")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Proctor <noreply@localhost>")

	v.SetDefault("serverHost", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 12*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "")
	v.SetDefault("dbUser", "")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("debounceWindow", 1500*time.Millisecond)
	v.SetDefault("strikeThreshold", 3)
	v.SetDefault("frameSampleEvery", 5)
	v.SetDefault("downscaleWidth", 320)
	v.SetDefault("gazeIrisThreshold", 0.012)
	v.SetDefault("postureTolerance", 0.08)
	v.SetDefault("deviceConfidence", 0.55)

	v.SetDefault("evidenceRoot", "evidence")
	v.SetDefault("evidenceWorkers", 2)
	v.SetDefault("evidenceQueueSize", 64)
	v.SetDefault("evidenceTimeout", 5*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Proctor: ProctorConfig{
			DebounceWindow:    v.GetDuration("debounceWindow"),
			StrikeThreshold:   v.GetInt("strikeThreshold"),
			FrameSampleEvery:  v.GetInt("frameSampleEvery"),
			DownscaleWidth:    v.GetInt("downscaleWidth"),
			GazeIrisThreshold: v.GetFloat64("gazeIrisThreshold"),
			PostureTolerance:  v.GetFloat64("postureTolerance"),
			DeviceConfidence:  v.GetFloat64("deviceConfidence"),
		},
		Evidence: EvidenceConfig{
			Root:      v.GetString("evidenceRoot"),
			Workers:   v.GetInt("evidenceWorkers"),
			QueueSize: v.GetInt("evidenceQueueSize"),
			Timeout:   v.GetDuration("evidenceTimeout"),
		},
	}
}
