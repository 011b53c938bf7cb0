// Package cp 实现 MACsec 连接策略 (Connectivity Policy) 状态机。
// 它消费 KaY 的信号，决定何时安装、启用、退役 SA 以及受控端口的开关
package cp

import (
	"time"

	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/zap"
)

const (
	DefaultTransmitDelay = 6 * time.Second
	DefaultRetireDelay   = 3 * time.Second

	// 一次 Step 内最多迁移次数，防止信号抖动导致死循环
	maxTransitions = 64
)

// SAControl 由 KaY 提供的 SA 管理回调
type SAControl interface {
	CreateSAs(lki mka.KeyIdentifier) error
	DeleteSAs(ki mka.KeyIdentifier) error
	EnableTxSAs(lki mka.KeyIdentifier) error
	EnableRxSAs(lki mka.KeyIdentifier) error
	SetLatestSAAttr(lki mka.KeyIdentifier, lan uint8, ltx, lrx bool) error
	SetOldSAAttr(oki mka.KeyIdentifier, oan uint8, otx, orx bool) error
	EnableNewInfo() error
}

// PortControl SecY 受控端口参数
type PortControl interface {
	EnableControlledPort(enabled bool) error
	SetProtectFrames(protect bool) error
	SetReplayProtect(enabled bool, window uint32) error
	SetValidateFrames(v mka.ValidateFrames) error
	SetCipherSuite(id uint64) error
	SetConfidentialityOffset(offset mka.ConfOffset) error
}

type Config struct {
	Protect       bool
	ReplayProtect bool
	ReplayWindow  uint32
	Validate      mka.ValidateFrames

	TransmitDelay time.Duration
	RetireDelay   time.Duration

	Logger *zap.Logger
	// Now 测试注入时钟
	Now func() time.Time
}

// Machine CP 状态机。setter 只记录信号，迁移在 Step 中完成；
// Step 期间回调 KaY 引发的嵌套 Step 直接返回，由外层循环继续推进
type Machine struct {
	cfg  Config
	sa   SAControl
	port PortControl
	log  *zap.Logger
	now  func() time.Time

	state    State
	stepping bool

	// KaY 输入
	connect            Connect
	portEnabled        bool
	electedSelf        bool
	chgdServer         bool
	serverTransmitting bool
	allReceiving       bool
	newSAK             bool
	usingReceiveSAs    bool
	usingTransmitSA    bool
	cipherSuite        uint64
	cipherOffset       mka.ConfOffset
	distributedKI      mka.KeyIdentifier
	distributedAN      uint8

	// 当前生效的值
	currentCipherSuite    uint64
	confidentialityOffset mka.ConfOffset
	controlledPortEnabled bool
	portValid             bool
	protectFrames         bool
	replayProtect         bool
	validateFrames        mka.ValidateFrames

	lki      mka.KeyIdentifier
	lan      uint8
	ltx, lrx bool
	oki      mka.KeyIdentifier
	oan      uint8
	otx, orx bool

	transmitWhen time.Time
	retireWhen   time.Time
}

func New(sa SAControl, port PortControl, cfg Config) *Machine {
	if cfg.TransmitDelay == 0 {
		cfg.TransmitDelay = DefaultTransmitDelay
	}
	if cfg.RetireDelay == 0 {
		cfg.RetireDelay = DefaultRetireDelay
	}
	m := &Machine{
		cfg:         cfg,
		sa:          sa,
		port:        port,
		log:         cfg.Logger,
		now:         cfg.Now,
		portEnabled: true,
		cipherSuite: mka.DEFAULT_CS_ID,
	}
	if m.log == nil {
		m.log = logger.Named("cp")
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.enter(StateInit)
	m.Step()
	return m
}

func (m *Machine) State() State { return m.state }

// PortValid SECURED 及其后续状态下为 true
func (m *Machine) PortValid() bool { return m.portValid }

func (m *Machine) ControlledPortEnabled() bool { return m.controlledPortEnabled }

func (m *Machine) SetPortEnabled(enabled bool)           { m.portEnabled = enabled }
func (m *Machine) SetElectedSelf(elected bool)           { m.electedSelf = elected }
func (m *Machine) SignalChangedServer()                  { m.chgdServer = true }
func (m *Machine) SetServerTransmitting(b bool)          { m.serverTransmitting = b }
func (m *Machine) SetAllReceiving(b bool)                { m.allReceiving = b }
func (m *Machine) ConnectPending()                       { m.connect = ConnectPending }
func (m *Machine) ConnectUnauthenticated()               { m.connect = ConnectUnauthenticated }
func (m *Machine) ConnectAuthenticated()                 { m.connect = ConnectAuthenticated }
func (m *Machine) ConnectSecure()                        { m.connect = ConnectSecure }
func (m *Machine) SetCipherSuite(id uint64)              { m.cipherSuite = id }
func (m *Machine) SetOffset(offset mka.ConfOffset)       { m.cipherOffset = offset }
func (m *Machine) SetDistributedKI(ki mka.KeyIdentifier) { m.distributedKI = ki }
func (m *Machine) SetDistributedAN(an uint8)             { m.distributedAN = an }
func (m *Machine) SignalNewSAK()                         { m.newSAK = true }
func (m *Machine) SetUsingTransmitSAs(b bool)            { m.usingTransmitSA = b }
func (m *Machine) SetUsingReceiveSAs(b bool)             { m.usingReceiveSAs = b }

func (m *Machine) changedConnect() bool {
	return m.connect != ConnectSecure || m.chgdServer || m.cipherSuite != m.currentCipherSuite
}

func (m *Machine) elapsed(deadline time.Time) bool {
	return !m.now().Before(deadline)
}

// Step 推进状态机直到稳定
func (m *Machine) Step() {
	if m.stepping {
		return
	}
	m.stepping = true
	defer func() { m.stepping = false }()

	for i := 0; i < maxTransitions; i++ {
		next, ok := m.transition()
		if !ok {
			return
		}
		m.enter(next)
	}
	m.log.Warn("CP 状态机未能稳定", logger.Stringer("state", m.state))
}

func (m *Machine) transition() (State, bool) {
	if !m.portEnabled {
		return StateInit, true
	}

	switch m.state {
	case StateInit:
		return StateChange, true
	case StateChange:
		switch m.connect {
		case ConnectUnauthenticated:
			return StateAllowed, true
		case ConnectAuthenticated:
			return StateAuthenticated, true
		case ConnectSecure:
			return StateSecured, true
		}
	case StateAllowed:
		if m.connect != ConnectUnauthenticated {
			return StateChange, true
		}
	case StateAuthenticated:
		if m.connect != ConnectAuthenticated {
			return StateChange, true
		}
	case StateSecured:
		if m.changedConnect() {
			return StateChange, true
		}
		if m.newSAK {
			return StateReceive, true
		}
	case StateReceive:
		if m.usingReceiveSAs {
			return StateReceiving, true
		}
	case StateReceiving:
		switch {
		case m.newSAK || m.changedConnect():
			return StateAbandon, true
		case !m.electedSelf:
			return StateReady, true
		case m.allReceiving || !m.controlledPortEnabled || m.elapsed(m.transmitWhen):
			return StateTransmit, true
		}
	case StateReady:
		if m.newSAK || m.changedConnect() {
			return StateAbandon, true
		}
		if m.serverTransmitting || !m.controlledPortEnabled {
			return StateTransmit, true
		}
	case StateTransmit:
		if m.usingTransmitSA {
			return StateTransmitting, true
		}
	case StateTransmitting:
		if m.elapsed(m.retireWhen) || m.changedConnect() {
			return StateRetire, true
		}
	case StateRetire:
		if m.changedConnect() {
			return StateChange, true
		}
		if m.newSAK {
			return StateReceive, true
		}
	case StateAbandon:
		if m.changedConnect() {
			return StateRetire, true
		}
		if m.newSAK {
			return StateReceive, true
		}
	}
	return m.state, false
}

func (m *Machine) enter(s State) {
	m.log.Debug("CP 状态迁移", logger.Stringer("from", m.state), logger.Stringer("to", s))
	m.state = s

	switch s {
	case StateInit:
		m.setControlledPort(false)
		m.dropKeys()
		m.portValid = false
		m.chgdServer = false
		m.portEnabled = true
	case StateChange:
		m.portValid = false
		m.setControlledPort(false)
		m.dropKeys()
	case StateAllowed, StateAuthenticated:
		m.protectFrames = false
		m.replayProtect = false
		m.validateFrames = mka.ValidateChecked
		m.portValid = false
		m.warn("设置受控端口参数", m.applyPortParams())
		m.setControlledPort(true)
	case StateSecured:
		m.chgdServer = false
		m.protectFrames = m.cfg.Protect
		m.replayProtect = m.cfg.ReplayProtect
		m.validateFrames = m.cfg.Validate
		m.currentCipherSuite = m.cipherSuite
		m.confidentialityOffset = m.cipherOffset
		m.portValid = true
		m.warn("设置受控端口参数", m.applyPortParams())
	case StateReceive:
		// 从 ABANDON 进入时 lki 已清空，仍在使用的旧密钥保持不动
		if !m.lki.IsZero() {
			if !m.oki.IsZero() && m.oki != m.lki {
				m.warn("删除旧 SA", m.sa.DeleteSAs(m.oki))
			}
			m.oki, m.oan, m.otx, m.orx = m.lki, m.lan, m.ltx, m.lrx
			m.warn("设置旧 SA 属性", m.sa.SetOldSAAttr(m.oki, m.oan, m.otx, m.orx))
		}
		m.lki, m.lan = m.distributedKI, m.distributedAN
		m.ltx, m.lrx = false, false
		m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
		m.newSAK = false
		m.allReceiving = false
		if err := m.sa.CreateSAs(m.lki); err != nil {
			m.warn("创建 SA", err)
			return
		}
		m.warn("启用接收 SA", m.sa.EnableRxSAs(m.lki))
	case StateReceiving:
		m.lrx = true
		m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
		m.transmitWhen = m.now().Add(m.cfg.TransmitDelay)
		m.usingReceiveSAs = false
		m.serverTransmitting = false
	case StateReady:
		m.warn("通告新 SA 状态", m.sa.EnableNewInfo())
	case StateTransmit:
		m.setControlledPort(true)
		m.ltx = true
		m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
		m.allReceiving = false
		m.serverTransmitting = false
		m.warn("启用发送 SA", m.sa.EnableTxSAs(m.lki))
	case StateTransmitting:
		if m.orx {
			m.retireWhen = m.now().Add(m.cfg.RetireDelay)
		} else {
			m.retireWhen = m.now()
		}
		m.otx = false
		m.warn("设置旧 SA 属性", m.sa.SetOldSAAttr(m.oki, m.oan, m.otx, m.orx))
		m.usingTransmitSA = false
		m.warn("通告新 SA 状态", m.sa.EnableNewInfo())
	case StateAbandon:
		m.lrx = false
		m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
		if !m.lki.IsZero() {
			m.warn("删除最新 SA", m.sa.DeleteSAs(m.lki))
		}
		m.lki, m.lan, m.ltx = mka.KeyIdentifier{}, 0, false
		m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
	case StateRetire:
		if !m.oki.IsZero() && m.oki != m.lki {
			m.warn("删除旧 SA", m.sa.DeleteSAs(m.oki))
		}
		m.oki, m.oan, m.otx, m.orx = mka.KeyIdentifier{}, 0, false, false
		m.warn("设置旧 SA 属性", m.sa.SetOldSAAttr(m.oki, m.oan, m.otx, m.orx))
	}
}

// dropKeys 删除已安装的最新与旧 SA
func (m *Machine) dropKeys() {
	if !m.lki.IsZero() {
		m.warn("删除最新 SA", m.sa.DeleteSAs(m.lki))
	}
	if !m.oki.IsZero() && m.oki != m.lki {
		m.warn("删除旧 SA", m.sa.DeleteSAs(m.oki))
	}
	m.clearKeys()
}

func (m *Machine) clearKeys() {
	m.lki, m.lan, m.ltx, m.lrx = mka.KeyIdentifier{}, 0, false, false
	m.oki, m.oan, m.otx, m.orx = mka.KeyIdentifier{}, 0, false, false
	m.warn("设置最新 SA 属性", m.sa.SetLatestSAAttr(m.lki, m.lan, m.ltx, m.lrx))
	m.warn("设置旧 SA 属性", m.sa.SetOldSAAttr(m.oki, m.oan, m.otx, m.orx))
}

func (m *Machine) setControlledPort(enabled bool) {
	m.controlledPortEnabled = enabled
	if m.port != nil {
		m.warn("设置受控端口", m.port.EnableControlledPort(enabled))
	}
}

func (m *Machine) applyPortParams() error {
	if m.port == nil {
		return nil
	}
	if err := m.port.SetProtectFrames(m.protectFrames); err != nil {
		return err
	}
	if err := m.port.SetReplayProtect(m.replayProtect, m.cfg.ReplayWindow); err != nil {
		return err
	}
	if err := m.port.SetValidateFrames(m.validateFrames); err != nil {
		return err
	}
	if m.state != StateSecured {
		return nil
	}
	if err := m.port.SetCipherSuite(m.currentCipherSuite); err != nil {
		return err
	}
	return m.port.SetConfidentialityOffset(m.confidentialityOffset)
}

func (m *Machine) warn(what string, err error) {
	if err != nil {
		m.log.Warn("CP 操作失败", logger.String("op", what), logger.Err(err))
	}
}
