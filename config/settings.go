package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Settings holds the application level knobs that are not connection strings.
type Settings struct {
	App  AppSettings  `mapstructure:"app"`
	Mail MailSettings `mapstructure:"mail"`
	JD   JDSettings   `mapstructure:"jd"`
}

type AppSettings struct {
	Timezone     string `mapstructure:"timezone"`
	CompanyName  string `mapstructure:"company_name"`
	ReportSlowMs int    `mapstructure:"report_slow_ms"`
	// ReportCacheTTLSeconds is how long analytics responses stay in redis.
	ReportCacheTTLSeconds int `mapstructure:"report_cache_ttl_seconds"`
}

type MailSettings struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	// Topic is the Pub/Sub topic the mail outbox publishes to.
	Topic string `mapstructure:"topic"`
}

type JDSettings struct {
	Bucket    string `mapstructure:"bucket"`
	ObjectKey string `mapstructure:"object_key"`
	FileName  string `mapstructure:"file_name"`
	Subject   string `mapstructure:"subject"`
}

var (
	settings     *Settings
	settingsOnce sync.Once
	settingsErr  error
	location     *time.Location
)

func setSettingDefaults(v *viper.Viper) {
	v.SetDefault("app.timezone", "Asia/Kolkata")
	v.SetDefault("app.company_name", "HR CRM")
	v.SetDefault("app.report_slow_ms", 1500)
	v.SetDefault("app.report_cache_ttl_seconds", 60)

	v.SetDefault("mail.host", "smtp.gmail.com")
	v.SetDefault("mail.port", 465)
	v.SetDefault("mail.topic", "hrcrm-mail")
	// registered so AutomaticEnv values reach Unmarshal
	v.SetDefault("mail.user", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("jd.bucket", "")

	v.SetDefault("jd.object_key", "jd/company-jd.pdf")
	v.SetDefault("jd.file_name", "Job Description.pdf")
	v.SetDefault("jd.subject", "Job Description")
}

// LoadSettings reads ./config.yaml (optional) and env overrides such as
// APP_TIMEZONE, MAIL_HOST, MAIL_PORT, JD_BUCKET. The result is cached.
func LoadSettings() (*Settings, error) {
	settingsOnce.Do(func() {
		settings, settingsErr = loadSettings("")
	})
	return settings, settingsErr
}

// MustSettings is LoadSettings for call sites that cannot recover from bad config.
func MustSettings() *Settings {
	s, err := LoadSettings()
	if err != nil {
		panic(err)
	}
	return s
}

func loadSettings(path string) (*Settings, error) {
	v := viper.New()
	setSettingDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// a missing config.yaml is fine, defaults and env cover it
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.JD.Bucket == "" {
		s.JD.Bucket = v.GetString("gcs.bucket")
	}
	if _, err := time.LoadLocation(s.App.Timezone); err != nil {
		return nil, fmt.Errorf("invalid app.timezone %q: %w", s.App.Timezone, err)
	}
	return &s, nil
}

// Location is the timezone activity timestamps are bucketed in.
// It falls back to UTC when settings cannot be loaded.
func Location() *time.Location {
	if location != nil {
		return location
	}
	s, err := LoadSettings()
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.App.Timezone)
	if err != nil {
		return time.UTC
	}
	location = loc
	return loc
}

// SetLocation overrides the bucketing timezone (tests).
func SetLocation(loc *time.Location) {
	location = loc
}

// Now is the current instant in Location.
func Now() time.Time {
	return time.Now().In(Location())
}
