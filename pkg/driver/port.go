package driver

import (
	"github.com/iniwex5/mka-go/pkg/cp"
	"github.com/iniwex5/mka-go/pkg/kay"
	"go.uber.org/zap"
)

// NewCPFactory 返回由 cp.Machine 驱动 port 的 CP 构造器。
// 发送延时取 MKA 生存期，退役延时取 SAK 退役时间
func NewCPFactory(port cp.PortControl, cfg kay.Config, log *zap.Logger) kay.CPFactory {
	return func(sa kay.SAControl, s kay.Settings) kay.CP {
		return cp.New(sa, port, cp.Config{
			Protect:       s.Protect,
			ReplayProtect: s.ReplayProtect,
			ReplayWindow:  s.ReplayWindow,
			Validate:      s.Validate,
			TransmitDelay: cfg.LifeTime,
			RetireDelay:   cfg.SAKRetireTime,
			Logger:        log,
		})
	}
}
