package kay

import "github.com/iniwex5/mka-go/pkg/mka"

// Transport 发送 EAPOL-MKA 帧（完整以太网帧）；接收方向由调用方把帧交给 KaY.Receive
type Transport interface {
	Send(frame []byte) error
}

// SecY MACsec 数据面控制接口
type SecY interface {
	GetCapability() (mka.Capability, error)

	CreateTransmitSC(sc *TransmitSC) error
	DeleteTransmitSC(sc *TransmitSC) error
	CreateReceiveSC(sc *ReceiveSC) error
	DeleteReceiveSC(sc *ReceiveSC) error

	CreateTransmitSA(sa *TransmitSA) error
	EnableTransmitSA(sa *TransmitSA) error
	DisableTransmitSA(sa *TransmitSA) error
	DeleteTransmitSA(sa *TransmitSA) error

	CreateReceiveSA(sa *ReceiveSA) error
	EnableReceiveSA(sa *ReceiveSA) error
	DisableReceiveSA(sa *ReceiveSA) error
	DeleteReceiveSA(sa *ReceiveSA) error

	GetReceiveLowestPN(sa *ReceiveSA) (uint32, error)
	SetReceiveLowestPN(sa *ReceiveSA, pn uint32) error
	GetTransmitNextPN(sa *TransmitSA) (uint32, error)
}

// CP 连接策略状态机。setter 只记录信号，状态迁移发生在 Step 中
type CP interface {
	SetPortEnabled(enabled bool)
	SetElectedSelf(elected bool)
	SignalChangedServer()
	SetServerTransmitting(transmitting bool)
	SetAllReceiving(receiving bool)

	ConnectPending()
	ConnectUnauthenticated()
	ConnectAuthenticated()
	ConnectSecure()

	SetCipherSuite(id uint64)
	SetOffset(offset mka.ConfOffset)
	SetDistributedKI(ki mka.KeyIdentifier)
	SetDistributedAN(an uint8)
	SignalNewSAK()

	SetUsingTransmitSAs(using bool)
	SetUsingReceiveSAs(using bool)

	Step()
}

// SAControl CP 回调 KaY 的接口，作用于主参与者 (principal)。
// 只能在 KaY 调用 CP.Step 的过程中使用（此时已持有 KaY 锁），
// 回调中产生的新信号在本轮 Step 结束后由 KaY 继续推进
type SAControl interface {
	CreateSAs(lki mka.KeyIdentifier) error
	DeleteSAs(ki mka.KeyIdentifier) error
	EnableTxSAs(lki mka.KeyIdentifier) error
	EnableRxSAs(lki mka.KeyIdentifier) error
	SetLatestSAAttr(lki mka.KeyIdentifier, lan uint8, ltx, lrx bool) error
	SetOldSAAttr(oki mka.KeyIdentifier, oan uint8, otx, orx bool) error
	EnableNewInfo() error
}

// Settings 由策略与 SecY 能力推导出的 MACsec 参数，交给 CP 使用
type Settings struct {
	Protect       bool
	Encrypt       bool
	ReplayProtect bool
	ReplayWindow  uint32
	Validate      mka.ValidateFrames
	Offset        mka.ConfOffset
	Capability    mka.Capability
	Desired       bool
}

// CPFactory 在 KaY 初始化时构造 CP
type CPFactory func(sa SAControl, s Settings) CP

type nopCP struct{}

func (nopCP) SetPortEnabled(bool)                {}
func (nopCP) SetElectedSelf(bool)                {}
func (nopCP) SignalChangedServer()               {}
func (nopCP) SetServerTransmitting(bool)         {}
func (nopCP) SetAllReceiving(bool)               {}
func (nopCP) ConnectPending()                    {}
func (nopCP) ConnectUnauthenticated()            {}
func (nopCP) ConnectAuthenticated()              {}
func (nopCP) ConnectSecure()                     {}
func (nopCP) SetCipherSuite(uint64)              {}
func (nopCP) SetOffset(mka.ConfOffset)           {}
func (nopCP) SetDistributedKI(mka.KeyIdentifier) {}
func (nopCP) SetDistributedAN(uint8)             {}
func (nopCP) SignalNewSAK()                      {}
func (nopCP) SetUsingTransmitSAs(bool)           {}
func (nopCP) SetUsingReceiveSAs(bool)            {}
func (nopCP) Step()                              {}
