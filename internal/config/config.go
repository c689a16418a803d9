package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBDriver   string // sqlite | mysql | postgres
	DBDSN      string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBSeed     bool

	LogFile           string
	TemplateDir       string
	DefaultCustomerID string
	CORSOrigins       string
	RateLimitMax      int
	PurchaseListLimit int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AMQPURL string
}

// Load reads an optional .env file, then the environment.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		DBDriver:          strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBDSN:             os.Getenv("DB_DSN"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            getenv("DB_HOST", "localhost"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		DBSeed:            getbool("DB_SEED", true),
		LogFile:           os.Getenv("LOG_FILE"),
		TemplateDir:       getenv("TEMPLATE_DIR", "./web/templates"),
		DefaultCustomerID: getenv("DEFAULT_CUSTOMER_ID", "C001"),
		CORSOrigins:       getenv("CORS_ORIGINS", "http://localhost:3000"),
		RateLimitMax:      getint("RATE_LIMIT_MAX", 120),
		PurchaseListLimit: getint("PURCHASE_LIST_LIMIT", 10),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getint("REDIS_DB", 0),
		AMQPURL:           os.Getenv("AMQP_URL"),
	}
	if cfg.DBDriver == "postgresql" {
		cfg.DBDriver = "postgres"
	}

	log.Printf("[config] PORT=%s DB_DRIVER=%s DSN=%s LOG_FILE=%s REDIS_ADDR=%s AMQP=%t",
		cfg.Port, cfg.DBDriver, cfg.Redacted(), cfg.LogFile, cfg.RedisAddr, cfg.AMQPURL != "")
	return cfg
}

// DSN returns DB_DSN verbatim when set, otherwise builds one for DBDriver.
func (c Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "mysql":
		port := c.DBPort
		if port == "" {
			port = "3306"
		}
		auth := c.DBUser
		if c.DBPassword != "" {
			auth = c.DBUser + ":" + c.DBPassword
		}
		// parseTime keeps DATETIME columns scannable; tls=preferred matches managed MySQL hosts
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&tls=preferred",
			auth, c.DBHost, port, c.DBName)
	case "postgres":
		port := c.DBPort
		if port == "" {
			port = "5432"
		}
		user := url.User(c.DBUser)
		if c.DBPassword != "" {
			user = url.UserPassword(c.DBUser, c.DBPassword)
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     user,
			Host:     net.JoinHostPort(c.DBHost, port),
			Path:     "/" + c.DBName,
			RawQuery: "sslmode=prefer",
		}
		return u.String()
	default:
		return "pos.db"
	}
}

// Redacted is DSN with the password masked, for logs.
func (c Config) Redacted() string {
	if c.DBPassword == "" {
		return c.DSN()
	}
	if c.DBDSN == "" {
		masked := c
		masked.DBPassword = "xxxxx"
		return masked.DSN()
	}
	return strings.ReplaceAll(c.DBDSN, c.DBPassword, "xxxxx")
}

// Origins splits CORSOrigins into a cleaned list.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getint(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", k, v, d)
		return d
	}
	return n
}

func getbool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}
