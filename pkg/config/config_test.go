package config

import (
	"net"
	"testing"
	"time"

	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/mka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv 设置全部必填环境变量
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MKAD_IFACE", "eth0")
	t.Setenv("MKAD_CKN", "96437a93ccf10d9dfe347846cce52d7e")
	t.Setenv("MKAD_CAK", "0135899d8e4f5b732ac55679c42d3c1e")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "eth0", cfg.Iface)
	assert.Equal(t, TransportPacket, cfg.Transport)
	assert.Equal(t, uint8(255), cfg.Priority)
	assert.Equal(t, "should-secure", cfg.Policy)
	assert.Equal(t, 2*time.Second, cfg.HelloTime)
	assert.Equal(t, 6*time.Second, cfg.LifeTime)
	assert.Equal(t, 30*time.Second, cfg.StatusInterval)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MKAD_MACSEC_IFACE", "macsec0")
	t.Setenv("MKAD_TRANSPORT", "tap")
	t.Setenv("MKAD_NETNS", "lab1")
	t.Setenv("MKAD_PRIORITY", "16")
	t.Setenv("MKAD_POLICY", "should-encrypt")
	t.Setenv("MKAD_CIPHER_SUITE", "GCM-AES-256")
	t.Setenv("MKAD_CONF_OFFSET", "30")
	t.Setenv("MKAD_HELLO_TIME", "500ms")
	t.Setenv("MKAD_LIFE_TIME", "3s")
	t.Setenv("MKAD_REPLAY_PROTECT", "true")
	t.Setenv("MKAD_REPLAY_WINDOW", "64")

	cfg, err := Load()
	require.NoError(t, err)

	addr := net.HardwareAddr{0x02, 0, 0, 0, 0, 1}
	kc := cfg.KaYConfig(addr)
	assert.Equal(t, "eth0", kc.IfName)
	assert.Equal(t, addr, kc.Addr)
	assert.Equal(t, uint8(16), kc.Priority)
	assert.Equal(t, kay.ShouldEncrypt, kc.Policy)
	assert.Equal(t, 1, kc.CipherSuite)
	assert.Equal(t, mka.ConfOffset30, kc.ConfOffset)
	assert.Equal(t, 500*time.Millisecond, kc.HelloTime)
	assert.Equal(t, 3*time.Second, kc.LifeTime)
	assert.Equal(t, 750*time.Millisecond, kc.DuplicateSCIGrace)
	assert.True(t, kc.ReplayProtect)
	assert.Equal(t, uint32(64), kc.ReplayWindow)
	assert.Equal(t, "macsec0", cfg.MACsecIface)
	assert.Equal(t, "lab1", cfg.NetNS)
}

func TestLoadMissingRequired(t *testing.T) {
	for _, key := range []string{"MKAD_IFACE", "MKAD_CKN", "MKAD_CAK"} {
		t.Run(key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(key, "")
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Iface:       "eth0",
			Transport:   TransportPacket,
			CKN:         "01",
			CAK:         "0135899d8e4f5b732ac55679c42d3c1e",
			Policy:      "should-secure",
			CipherSuite: "GCM-AES-128",
			ConfOffset:  "0",
			HelloTime:   2 * time.Second,
			LifeTime:    6 * time.Second,
			LogFormat:   "json",
		}
	}
	require.NoError(t, func() error { c := base(); return c.Validate() }())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"未知传输方式", func(c *Config) { c.Transport = "udp" }, "MKAD_TRANSPORT"},
		{"CKN 非十六进制", func(c *Config) { c.CKN = "zz" }, "MKAD_CKN"},
		{"CKN 过长", func(c *Config) { c.CKN = hexOf(33) }, "MKAD_CKN"},
		{"CAK 长度错误", func(c *Config) { c.CAK = hexOf(24) }, "MKAD_CAK"},
		{"未知策略", func(c *Config) { c.Policy = "always" }, "MKAD_POLICY"},
		{"未知密码套件", func(c *Config) { c.CipherSuite = "GCM-AES-XPN-128" }, "MKAD_CIPHER_SUITE"},
		{"非法偏移", func(c *Config) { c.ConfOffset = "10" }, "MKAD_CONF_OFFSET"},
		{"hello 为 0", func(c *Config) { c.HelloTime = 0 }, "MKAD_HELLO_TIME"},
		{"生存期不大于 hello", func(c *Config) { c.LifeTime = c.HelloTime }, "MKAD_LIFE_TIME"},
		{"未知日志格式", func(c *Config) { c.LogFormat = "xml" }, "MKAD_LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCAKBytesWraps(t *testing.T) {
	c := Config{CAK: hexOf(20)}
	_, err := c.CAKBytes()
	require.ErrorIs(t, err, kay.ErrInvalidCAK)
}

func hexOf(n int) string {
	b := make([]byte, 2*n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}
