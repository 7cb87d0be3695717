package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		RateLimit          float64 // requests per second per client on anonymous routes
		RateBurst          int
		// TrustProxy reads client IPs from X-Forwarded-For set by proxies on private networks.
		TrustProxy bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	GrantConfig struct {
		TTL            time.Duration // 0 disables expiry of stale pending grants
		CodeLength     int           // random bytes behind each access code
		ExpirySchedule string        // cron spec
	}

	MediaConfig struct {
		Root               string
		BaseURL            string
		MaxSignatureWidth  int
		// MaxSignaturePixels caps width*height of uploaded signatures before they are decoded.
		MaxSignaturePixels int64
		MaxUploadBytes     int64
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		SendgridApiKey   string
		RollbarToken     string
		defaultFromEmail string

		Server   ServerConfig
		Database DatabaseConfig
		Grant    GrantConfig
		Media    MediaConfig
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

// NewConfig reads the configuration from the environment (and config/.env.<env> when present).
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "OJT Portal")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "y3k+w1s$0=p9e(8d!t#kq2vz&hx^m4u7c6o@r5j)b_anf")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("rateLimit", 5.0)
	v.SetDefault("rateBurst", 20)
	v.SetDefault("serverTrustProxy", false)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", 5432)
	v.SetDefault("dbName", "ojt")
	v.SetDefault("dbUser", "ojt")
	v.SetDefault("dbPassword", "ojt")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("grantTTL", 30*24*time.Hour)
	v.SetDefault("grantCodeLength", 10)
	v.SetDefault("grantExpirySchedule", "@hourly")

	v.SetDefault("mediaRoot", filepath.Join(os.TempDir(), "ojt-media"))
	v.SetDefault("mediaBaseURL", "/media")
	v.SetDefault("mediaMaxSignatureWidth", 600)
	v.SetDefault("mediaMaxSignaturePixels", int64(4_000_000))
	v.SetDefault("mediaMaxUploadBytes", int64(2<<20))

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
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
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Address:            v.GetString("serverAddress"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			RateLimit:          v.GetFloat64("rateLimit"),
			RateBurst:          v.GetInt("rateBurst"),
			TrustProxy:         v.GetBool("serverTrustProxy"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetInt("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Grant: GrantConfig{
			TTL:            v.GetDuration("grantTTL"),
			CodeLength:     v.GetInt("grantCodeLength"),
			ExpirySchedule: v.GetString("grantExpirySchedule"),
		},
		Media: MediaConfig{
			Root:               v.GetString("mediaRoot"),
			BaseURL:            strings.TrimRight(v.GetString("mediaBaseURL"), "/"),
			MaxSignatureWidth:  v.GetInt("mediaMaxSignatureWidth"),
			MaxSignaturePixels: v.GetInt64("mediaMaxSignaturePixels"),
			MaxUploadBytes:     v.GetInt64("mediaMaxUploadBytes"),
		},
	}
}
