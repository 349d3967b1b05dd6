package core

import (
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug        bool
		TestMode     bool
		AppName      string
		Build        string
		Env          string
		RollbarToken string
		Server       ServerConfig
		Backend      BackendConfig
		Database     DatabaseConfig
	}

	ServerConfig struct {
		Address         string
		DebugHost       string
		ShutdownTimeout time.Duration
		SessionTTL      time.Duration
	}

	// BackendConfig locates the school REST backend the attendance screen talks to.
	BackendConfig struct {
		BaseURL string
		Token   string
		Timeout time.Duration
		Paths   BackendPaths
	}

	// BackendPaths are path templates; "{classId}" is substituted where present.
	BackendPaths struct {
		MyClasses     string
		ClassStudents string
		Students      string
		Records       string
		Save          string
	}

	DatabaseConfig struct {
		Enabled    bool
		Engine     string
		Host       string
		Port       int
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// NewConfig reads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased ENV value, eg. `DEV_BACKEND_BASEURL`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Masomo Attendance")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.sessionTTL", 2*time.Hour)

	v.SetDefault("backend.baseURL", "http://localhost:5000/api")
	v.SetDefault("backend.token", "")
	v.SetDefault("backend.timeout", 15*time.Second)
	v.SetDefault("backend.paths.myClasses", "/teachers/me/classes")
	v.SetDefault("backend.paths.classStudents", "/classes/{classId}/students")
	v.SetDefault("backend.paths.students", "/students")
	v.SetDefault("backend.paths.records", "/attendance/class/{classId}")
	v.SetDefault("backend.paths.save", "/attendance/bulk")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "masomo_attendance")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("testMode", env == "TEST")
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			SessionTTL:      v.GetDuration("server.sessionTTL"),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(v.GetString("backend.baseURL"), "/"),
			Token:   v.GetString("backend.token"),
			Timeout: v.GetDuration("backend.timeout"),
			Paths: BackendPaths{
				MyClasses:     v.GetString("backend.paths.myClasses"),
				ClassStudents: v.GetString("backend.paths.classStudents"),
				Students:      v.GetString("backend.paths.students"),
				Records:       v.GetString("backend.paths.records"),
				Save:          v.GetString("backend.paths.save"),
			},
		},
		Database: DatabaseConfig{
			Enabled:    v.GetBool("database.enabled"),
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetInt("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
	}
}
