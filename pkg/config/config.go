// Package config 从 MKAD_* 环境变量加载 mkad 守护进程配置
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/mka"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "MKAD"

// 二层传输方式
const (
	TransportPacket = "packet"
	TransportTAP    = "tap"
)

// Config mkad 运行配置
type Config struct {
	// 非受控端口（收发 EAPOL）
	Iface string `envconfig:"IFACE" required:"true"`
	// 受控端口（MACsec 网卡），为空时只维护 SA 状态
	MACsecIface string `envconfig:"MACSEC_IFACE"`
	Transport   string `envconfig:"TRANSPORT" default:"packet"`
	NetNS       string `envconfig:"NETNS"`

	// 预共享 CAK 与 CKN，十六进制
	CKN string `envconfig:"CKN" required:"true"`
	CAK string `envconfig:"CAK" required:"true"`

	Priority      uint8         `envconfig:"PRIORITY" default:"255"`
	Policy        string        `envconfig:"POLICY" default:"should-secure"`
	CipherSuite   string        `envconfig:"CIPHER_SUITE" default:"GCM-AES-128"`
	ConfOffset    string        `envconfig:"CONF_OFFSET" default:"0"`
	HelloTime     time.Duration `envconfig:"HELLO_TIME" default:"2s"`
	LifeTime      time.Duration `envconfig:"LIFE_TIME" default:"6s"`
	ReplayProtect bool          `envconfig:"REPLAY_PROTECT" default:"false"`
	ReplayWindow  uint32        `envconfig:"REPLAY_WINDOW" default:"0"`

	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"console"`
	StatusInterval time.Duration `envconfig:"STATUS_INTERVAL" default:"30s"`
}

// Load 从环境变量读取并校验配置
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}

// Validate 检查各字段取值，返回第一个错误
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Iface) == "" {
		return errors.New("MKAD_IFACE 不能为空")
	}
	switch c.Transport {
	case TransportPacket, TransportTAP:
	default:
		return fmt.Errorf("MKAD_TRANSPORT 必须为 %s 或 %s: %q", TransportPacket, TransportTAP, c.Transport)
	}
	if _, err := c.CKNBytes(); err != nil {
		return err
	}
	if _, err := c.CAKBytes(); err != nil {
		return err
	}
	if _, err := kay.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("MKAD_POLICY: %w", err)
	}
	if _, err := kay.CipherSuiteByName(c.CipherSuite); err != nil {
		return fmt.Errorf("MKAD_CIPHER_SUITE: %w", err)
	}
	if _, err := ParseConfOffset(c.ConfOffset); err != nil {
		return err
	}
	if c.HelloTime <= 0 {
		return fmt.Errorf("MKAD_HELLO_TIME 必须大于 0: %s", c.HelloTime)
	}
	if c.LifeTime <= c.HelloTime {
		return fmt.Errorf("MKAD_LIFE_TIME (%s) 必须大于 MKAD_HELLO_TIME (%s)", c.LifeTime, c.HelloTime)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("MKAD_STATUS_INTERVAL 不能为负: %s", c.StatusInterval)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("MKAD_LOG_FORMAT 必须为 console 或 json: %q", c.LogFormat)
	}
	return nil
}

// CKNBytes 解码 CKN (1..32 字节)
func (c *Config) CKNBytes() ([]byte, error) {
	ckn, err := hex.DecodeString(c.CKN)
	if err != nil {
		return nil, fmt.Errorf("MKAD_CKN 不是十六进制: %w", err)
	}
	if len(ckn) < 1 || len(ckn) > mka.MAX_CKN_LEN {
		return nil, fmt.Errorf("MKAD_CKN: %w", kay.ErrInvalidCKN)
	}
	return ckn, nil
}

// CAKBytes 解码 CAK (16 或 32 字节)
func (c *Config) CAKBytes() ([]byte, error) {
	cak, err := hex.DecodeString(c.CAK)
	if err != nil {
		return nil, fmt.Errorf("MKAD_CAK 不是十六进制: %w", err)
	}
	if len(cak) != 16 && len(cak) != 32 {
		return nil, fmt.Errorf("MKAD_CAK: %w", kay.ErrInvalidCAK)
	}
	return cak, nil
}

// ParseConfOffset 解析机密性偏移 "0"、"30"、"50"
func ParseConfOffset(s string) (mka.ConfOffset, error) {
	switch s {
	case "0", "":
		return mka.ConfOffset0, nil
	case "30":
		return mka.ConfOffset30, nil
	case "50":
		return mka.ConfOffset50, nil
	default:
		return 0, fmt.Errorf("MKAD_CONF_OFFSET 必须为 0、30 或 50: %q", s)
	}
}

// KaYConfig 转换为 kay.Config，addr 为非受控端口的 MAC。调用前需通过 Validate
func (c *Config) KaYConfig(addr net.HardwareAddr) kay.Config {
	kc := kay.DefaultConfig()
	kc.IfName = c.Iface
	kc.Addr = addr
	kc.Priority = c.Priority
	kc.Policy, _ = kay.ParsePolicy(c.Policy)
	kc.CipherSuite, _ = kay.CipherSuiteByName(c.CipherSuite)
	kc.ConfOffset, _ = ParseConfOffset(c.ConfOffset)
	kc.ReplayProtect = c.ReplayProtect
	kc.ReplayWindow = c.ReplayWindow
	kc.HelloTime = c.HelloTime
	kc.LifeTime = c.LifeTime
	kc.DuplicateSCIGrace = time.Duration(float64(c.HelloTime) * kay.DUPLICATE_SCI_GRACE_MUL)
	return kc
}
