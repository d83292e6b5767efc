package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time provides Duration for TTL settings
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for TTLs.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to sign JWTs

	Auth Auth // authentication lifecycle tunables
	Mail Mail // SMTP settings for the mail consumer
}

// Auth groups every knob the auth core consults.  All values are resolved
// once at startup; flows never read the environment directly.
type Auth struct {
	OTPTTL               time.Duration // validity window of a verification OTP
	OTPResendCooldown    time.Duration // minimum gap between OTP issuances for one address
	LockoutThreshold     int           // failed-login count that triggers a lock
	LockoutDuration      time.Duration // how long a lock lasts once triggered
	AccessTTL            time.Duration // access token lifetime
	RefreshTTL           time.Duration // refresh token lifetime
	RefreshTTLRemembered time.Duration // refresh lifetime with "remember me"
	ResetTokenTTL        time.Duration // password reset token lifetime
	BcryptCost           int           // bcrypt cost for password hashing
}

// Mail holds the SMTP endpoint the background mail consumer delivers
// through.  When Host is empty the consumer logs messages instead of
// sending them, which keeps dev setups working without a mail server.
type Mail struct {
	Host string // SMTP host (empty disables real delivery)
	Port int    // SMTP port
	User string // SMTP auth username (optional)
	Pass string // SMTP auth password (optional)
	From string // From address on outbound mail
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Auth tunables all
// have defaults so a minimal .env is enough to boot a dev instance.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),
		Auth: Auth{
			OTPTTL:               envDur("OTP_TTL", 5*time.Minute),
			OTPResendCooldown:    envDur("OTP_RESEND_COOLDOWN", 60*time.Second),
			LockoutThreshold:     envInt("LOCKOUT_THRESHOLD", 5),
			LockoutDuration:      envDur("LOCKOUT_DURATION", 15*time.Minute),
			AccessTTL:            envDur("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:           envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			RefreshTTLRemembered: envDur("REFRESH_TOKEN_TTL_REMEMBERED", 30*24*time.Hour),
			ResetTokenTTL:        envDur("RESET_TOKEN_TTL", time.Hour),
			BcryptCost:           envInt("BCRYPT_COST", 12),
		},
		Mail: Mail{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: envStr("MAIL_FROM", "no-reply@carecircle.local"),
		},
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	log.Fatalf("invalid int for %s: %q", k, v)
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	log.Fatalf("invalid duration for %s: %q", k, v)
	return d
}
