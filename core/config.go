package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Addr                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ComplianceConfig struct {
		// RosterPageSize bounds how many agents are loaded per page during an
		// evaluation run.
		RosterPageSize int
	}

	Config struct {
		Debug                bool
		TestMode             bool
		Env                  string
		Build                string
		AppName              string
		SecretKey            string
		WorkDir              string
		FrontendBaseURL      string
		DefaultFromName      string
		DefaultFromAddr      string
		SendgridApiKey       string
		RollbarToken         string
		PasswordResetTimeout time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		Compliance ComplianceConfig
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddr}
}

// NewConfig loads the app configuration from the environment,
// with `config/.env.<env>` loaded first if it exists.
func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("appName", "Caremint")
	conf.SetDefault("secretKey", "w3lv(t&=kx0^%fjc+9$$p!y@o7d#5qh-28gz4_u*ns6)rbma1e")
	conf.SetDefault("frontendBaseUrl", "http://localhost:3000")
	conf.SetDefault("defaultFromName", "Caremint")
	conf.SetDefault("defaultFromAddr", "noreply@localhost")
	conf.SetDefault("passwordResetTimeout", 3*24*time.Hour)

	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverAddr", ":8000")
	conf.SetDefault("serverDebugHost", "localhost:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 4*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 7*24*time.Hour)

	conf.SetDefault("databaseEngine", "postgres")
	conf.SetDefault("databaseName", "caremint")
	conf.SetDefault("databaseHost", "localhost")
	conf.SetDefault("databasePort", "5432")
	conf.SetDefault("databaseUser", "caremint")
	conf.SetDefault("databasePassword", "")
	conf.SetDefault("databaseAdminUser", "")
	conf.SetDefault("databaseAdminPassword", "")
	conf.SetDefault("databaseDisableTls", true)

	conf.SetDefault("complianceRosterPageSize", 100)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	conf.SetEnvPrefix(env)

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Debug:                conf.GetBool("debug"),
		TestMode:             env == "TEST",
		Env:                  env,
		Build:                conf.GetString("build"),
		AppName:              conf.GetString("appName"),
		SecretKey:            conf.GetString("secretKey"),
		WorkDir:              wd,
		FrontendBaseURL:      conf.GetString("frontendBaseUrl"),
		DefaultFromName:      conf.GetString("defaultFromName"),
		DefaultFromAddr:      conf.GetString("defaultFromAddr"),
		SendgridApiKey:       conf.GetString("sendgridApiKey"),
		RollbarToken:         conf.GetString("rollbarToken"),
		PasswordResetTimeout: conf.GetDuration("passwordResetTimeout"),
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Addr:                      conf.GetString("serverAddr"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("databaseEngine"),
			Name:          conf.GetString("databaseName"),
			Host:          conf.GetString("databaseHost"),
			Port:          conf.GetString("databasePort"),
			User:          conf.GetString("databaseUser"),
			Password:      conf.GetString("databasePassword"),
			AdminUser:     conf.GetString("databaseAdminUser"),
			AdminPassword: conf.GetString("databaseAdminPassword"),
			DisableTLS:    conf.GetBool("databaseDisableTls"),
		},
		Compliance: ComplianceConfig{
			RosterPageSize: conf.GetInt("complianceRosterPageSize"),
		},
	}
}
