package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, ":8080", v.GetString("listen"))
	assert.Equal(t, "http://localhost:8080", v.GetString("public_url"))
	assert.Equal(t, "info", v.GetString("log_level"))
	assert.False(t, v.GetBool("enable_tls"))
}

func TestSetDefaults_Share(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.Equal(t, "memory", v.GetString("share.store_backend"))
	assert.Equal(t, time.Hour, v.GetDuration("share.sweep_interval"))
	assert.Equal(t, 24*time.Hour, v.GetDuration("share.default_duration"))
	assert.False(t, v.GetBool("share.verify_exists"))
}

func TestSetDefaults_Metrics(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	assert.True(t, v.GetBool("metrics.enable"))
	assert.Equal(t, "/metrics", v.GetString("metrics.path"))
}

func validConfig() *Config {
	return &Config{
		Listen:    ":8080",
		PublicURL: "http://localhost:8080",
		LogLevel:  "info",
		Share: ShareConfig{
			StoreBackend:    "memory",
			SweepInterval:   time.Hour,
			DefaultDuration: 24 * time.Hour,
		},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validate(validConfig()))
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Share.StoreBackend = "redis"
	assert.Error(t, validate(cfg))
}

func TestValidate_SQLiteRequiresDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Share.StoreBackend = "sqlite"
	assert.Error(t, validate(cfg))

	cfg.DataDir = t.TempDir()
	assert.NoError(t, validate(cfg))
}

func TestValidate_SweepInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Share.SweepInterval = 0
	assert.Error(t, validate(cfg))
}

func TestValidate_TLSRequiresCertAndKey(t *testing.T) {
	cfg := validConfig()
	cfg.EnableTLS = true
	assert.Error(t, validate(cfg))

	cfg.CertFile = "/etc/ssl/cert.pem"
	cfg.KeyFile = "/etc/ssl/key.pem"
	assert.NoError(t, validate(cfg))
}

func TestServerConfig_Struct(t *testing.T) {
	sc := ServerConfig{
		ID:       "nas",
		Name:     "Home NAS",
		Host:     "nas.local",
		Port:     22,
		Username: "share",
	}

	assert.Equal(t, "nas", sc.ID)
	assert.Equal(t, "Home NAS", sc.Name)
	assert.Equal(t, "nas.local", sc.Host)
	assert.Equal(t, 22, sc.Port)
}
