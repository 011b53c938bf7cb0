package driver

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrSCExists   = errors.New("SC 已存在")
	ErrSCNotFound = errors.New("SC 不存在")
	ErrSAExists   = errors.New("SA 已存在")
	ErrSANotFound = errors.New("SA 不存在")
	ErrInvalidAN  = errors.New("AN 超出范围")
)

// PortGate 受控端口的链路开关
type PortGate interface {
	SetLinkUp(iface string) error
	SetLinkDown(iface string) error
}

type rxKey struct {
	sci mka.SCI
	an  uint8
}

type txEntry struct {
	sa      *kay.TransmitSA
	enabled bool
}

type rxEntry struct {
	sa      *kay.ReceiveSA
	enabled bool
}

// SoftSecY 软件 SecY：在内存中维护 SC/SA 表并通过 PortGate 开关受控端口。
// 实现 kay.SecY 与 cp.PortControl，方法可并发调用
type SoftSecY struct {
	mu  sync.Mutex
	log *zap.Logger

	capability mka.Capability
	gate       PortGate
	iface      string

	txSC  *kay.TransmitSC
	rxSCs map[mka.SCI]*kay.ReceiveSC
	txSAs map[uint8]*txEntry
	rxSAs map[rxKey]*rxEntry

	portEnabled   bool
	protect       bool
	replayProtect bool
	replayWindow  uint32
	validate      mka.ValidateFrames
	cipherSuite   uint64
	offset        mka.ConfOffset
}

// NewSoftSecY gate 为空时只记录端口状态；iface 为受控端口（MACsec 网卡）名
func NewSoftSecY(capability mka.Capability, gate PortGate, iface string, log *zap.Logger) *SoftSecY {
	if log == nil {
		log = logger.Named("secy")
	}
	return &SoftSecY{
		log:         log.With(logger.String("iface", iface)),
		capability:  capability,
		gate:        gate,
		iface:       iface,
		rxSCs:       make(map[mka.SCI]*kay.ReceiveSC),
		txSAs:       make(map[uint8]*txEntry),
		rxSAs:       make(map[rxKey]*rxEntry),
		cipherSuite: mka.DEFAULT_CS_ID,
	}
}

func (s *SoftSecY) GetCapability() (mka.Capability, error) {
	return s.capability, nil
}

func (s *SoftSecY) CreateTransmitSC(sc *kay.TransmitSC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txSC != nil {
		return fmt.Errorf("发送 %w: %s", ErrSCExists, s.txSC.SCI)
	}
	s.txSC = sc
	s.log.Debug("创建发送 SC", logger.Stringer("sci", sc.SCI))
	return nil
}

func (s *SoftSecY) DeleteTransmitSC(sc *kay.TransmitSC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txSC == nil || s.txSC != sc {
		return fmt.Errorf("发送 %w: %s", ErrSCNotFound, sc.SCI)
	}
	s.txSC = nil
	clear(s.txSAs)
	s.log.Debug("删除发送 SC", logger.Stringer("sci", sc.SCI))
	return nil
}

func (s *SoftSecY) CreateReceiveSC(sc *kay.ReceiveSC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rxSCs[sc.SCI]; ok {
		return fmt.Errorf("接收 %w: %s", ErrSCExists, sc.SCI)
	}
	s.rxSCs[sc.SCI] = sc
	s.log.Debug("创建接收 SC", logger.Stringer("sci", sc.SCI))
	return nil
}

func (s *SoftSecY) DeleteReceiveSC(sc *kay.ReceiveSC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rxSCs[sc.SCI] != sc {
		return fmt.Errorf("接收 %w: %s", ErrSCNotFound, sc.SCI)
	}
	delete(s.rxSCs, sc.SCI)
	for k := range s.rxSAs {
		if k.sci == sc.SCI {
			delete(s.rxSAs, k)
		}
	}
	s.log.Debug("删除接收 SC", logger.Stringer("sci", sc.SCI))
	return nil
}

func (s *SoftSecY) CreateTransmitSA(sa *kay.TransmitSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sa.AN > mka.MAX_AN {
		return fmt.Errorf("%w: %d", ErrInvalidAN, sa.AN)
	}
	if s.txSC == nil || s.txSC != sa.SC {
		return fmt.Errorf("发送 %w", ErrSCNotFound)
	}
	if _, ok := s.txSAs[sa.AN]; ok {
		return fmt.Errorf("发送 %w: AN %d", ErrSAExists, sa.AN)
	}
	s.txSAs[sa.AN] = &txEntry{sa: sa}
	s.log.Debug("创建发送 SA", logger.Uint8("an", sa.AN), logger.Stringer("ki", sa.Key.KI))
	return nil
}

func (s *SoftSecY) lookupTx(sa *kay.TransmitSA) (*txEntry, error) {
	e, ok := s.txSAs[sa.AN]
	if !ok || e.sa != sa {
		return nil, fmt.Errorf("发送 %w: AN %d", ErrSANotFound, sa.AN)
	}
	return e, nil
}

// EnableTransmitSA 同一时刻只有一个发送 SA 处于启用状态
func (s *SoftSecY) EnableTransmitSA(sa *kay.TransmitSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupTx(sa)
	if err != nil {
		return err
	}
	for _, other := range s.txSAs {
		other.enabled = false
	}
	e.enabled = true
	s.log.Debug("启用发送 SA", logger.Uint8("an", sa.AN))
	return nil
}

func (s *SoftSecY) DisableTransmitSA(sa *kay.TransmitSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupTx(sa)
	if err != nil {
		return err
	}
	e.enabled = false
	return nil
}

func (s *SoftSecY) DeleteTransmitSA(sa *kay.TransmitSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupTx(sa); err != nil {
		return err
	}
	delete(s.txSAs, sa.AN)
	s.log.Debug("删除发送 SA", logger.Uint8("an", sa.AN))
	return nil
}

func (s *SoftSecY) CreateReceiveSA(sa *kay.ReceiveSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sa.AN > mka.MAX_AN {
		return fmt.Errorf("%w: %d", ErrInvalidAN, sa.AN)
	}
	if s.rxSCs[sa.SC.SCI] != sa.SC {
		return fmt.Errorf("接收 %w: %s", ErrSCNotFound, sa.SC.SCI)
	}
	k := rxKey{sa.SC.SCI, sa.AN}
	if _, ok := s.rxSAs[k]; ok {
		return fmt.Errorf("接收 %w: %s AN %d", ErrSAExists, sa.SC.SCI, sa.AN)
	}
	s.rxSAs[k] = &rxEntry{sa: sa}
	s.log.Debug("创建接收 SA", logger.Stringer("sci", sa.SC.SCI), logger.Uint8("an", sa.AN))
	return nil
}

func (s *SoftSecY) lookupRx(sa *kay.ReceiveSA) (*rxEntry, error) {
	e, ok := s.rxSAs[rxKey{sa.SC.SCI, sa.AN}]
	if !ok || e.sa != sa {
		return nil, fmt.Errorf("接收 %w: %s AN %d", ErrSANotFound, sa.SC.SCI, sa.AN)
	}
	return e, nil
}

func (s *SoftSecY) EnableReceiveSA(sa *kay.ReceiveSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupRx(sa)
	if err != nil {
		return err
	}
	e.enabled = true
	return nil
}

func (s *SoftSecY) DisableReceiveSA(sa *kay.ReceiveSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookupRx(sa)
	if err != nil {
		return err
	}
	e.enabled = false
	return nil
}

func (s *SoftSecY) DeleteReceiveSA(sa *kay.ReceiveSA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupRx(sa); err != nil {
		return err
	}
	delete(s.rxSAs, rxKey{sa.SC.SCI, sa.AN})
	return nil
}

func (s *SoftSecY) GetReceiveLowestPN(sa *kay.ReceiveSA) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupRx(sa); err != nil {
		return 0, err
	}
	return sa.LowestPN, nil
}

func (s *SoftSecY) SetReceiveLowestPN(sa *kay.ReceiveSA, pn uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupRx(sa); err != nil {
		return err
	}
	if pn > sa.LowestPN {
		sa.LowestPN = pn
	}
	return nil
}

// GetTransmitNextPN 软件 SecY 不转发数据帧，PN 保持 KaY 设定的值
func (s *SoftSecY) GetTransmitNextPN(sa *kay.TransmitSA) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.lookupTx(sa); err != nil {
		return 0, err
	}
	return sa.NextPN, nil
}

// EnableControlledPort 通过 PortGate 拉起或关闭 MACsec 网卡
func (s *SoftSecY) EnableControlledPort(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portEnabled == enabled {
		return nil
	}
	if s.gate != nil && s.iface != "" {
		var err error
		if enabled {
			err = s.gate.SetLinkUp(s.iface)
		} else {
			err = s.gate.SetLinkDown(s.iface)
		}
		if err != nil {
			return err
		}
	}
	s.portEnabled = enabled
	s.log.Info("受控端口状态变化", logger.Bool("enabled", enabled))
	return nil
}

func (s *SoftSecY) SetProtectFrames(protect bool) error {
	s.mu.Lock()
	s.protect = protect
	s.mu.Unlock()
	return nil
}

func (s *SoftSecY) SetReplayProtect(enabled bool, window uint32) error {
	s.mu.Lock()
	s.replayProtect, s.replayWindow = enabled, window
	s.mu.Unlock()
	return nil
}

func (s *SoftSecY) SetValidateFrames(v mka.ValidateFrames) error {
	s.mu.Lock()
	s.validate = v
	s.mu.Unlock()
	return nil
}

func (s *SoftSecY) SetCipherSuite(id uint64) error {
	if _, _, err := kay.CipherSuiteByID(id); err != nil {
		return err
	}
	s.mu.Lock()
	s.cipherSuite = id
	s.mu.Unlock()
	return nil
}

func (s *SoftSecY) SetConfidentialityOffset(offset mka.ConfOffset) error {
	s.mu.Lock()
	s.offset = offset
	s.mu.Unlock()
	return nil
}

// SASnapshot 一个已安装 SA 的状态
type SASnapshot struct {
	SCI     mka.SCI
	AN      uint8
	KI      mka.KeyIdentifier
	Enabled bool
	PN      uint32
}

// SecYSnapshot SecY 状态快照，SA 按 SCI、AN 排序
type SecYSnapshot struct {
	PortEnabled   bool
	Protect       bool
	ReplayProtect bool
	ReplayWindow  uint32
	Validate      mka.ValidateFrames
	CipherSuite   uint64
	Offset        mka.ConfOffset

	RxSCs int
	TxSAs []SASnapshot
	RxSAs []SASnapshot
}

func compareSA(a, b SASnapshot) int {
	if c := bytes.Compare(a.SCI.Addr[:], b.SCI.Addr[:]); c != 0 {
		return c
	}
	if c := cmp.Compare(a.SCI.Port, b.SCI.Port); c != 0 {
		return c
	}
	return cmp.Compare(a.AN, b.AN)
}

func (s *SoftSecY) Snapshot() SecYSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := SecYSnapshot{
		PortEnabled:   s.portEnabled,
		Protect:       s.protect,
		ReplayProtect: s.replayProtect,
		ReplayWindow:  s.replayWindow,
		Validate:      s.validate,
		CipherSuite:   s.cipherSuite,
		Offset:        s.offset,
		RxSCs:         len(s.rxSCs),
	}
	for _, e := range s.txSAs {
		snap.TxSAs = append(snap.TxSAs, SASnapshot{
			SCI: e.sa.SC.SCI, AN: e.sa.AN, KI: e.sa.Key.KI, Enabled: e.enabled, PN: e.sa.NextPN,
		})
	}
	for _, e := range s.rxSAs {
		snap.RxSAs = append(snap.RxSAs, SASnapshot{
			SCI: e.sa.SC.SCI, AN: e.sa.AN, KI: e.sa.Key.KI, Enabled: e.enabled, PN: e.sa.LowestPN,
		})
	}
	slices.SortFunc(snap.TxSAs, compareSA)
	slices.SortFunc(snap.RxSAs, compareSA)
	return snap
}

// Close 关闭受控端口并清空 SC/SA 表，KaY 未释放的条目作为错误返回
func (s *SoftSecY) Close() error {
	var err error
	s.mu.Lock()
	for an := range s.txSAs {
		err = multierr.Append(err, fmt.Errorf("残留发送 SA: AN %d", an))
	}
	for k := range s.rxSAs {
		err = multierr.Append(err, fmt.Errorf("残留接收 SA: %s AN %d", k.sci, k.an))
	}
	s.txSC = nil
	clear(s.txSAs)
	clear(s.rxSAs)
	clear(s.rxSCs)
	s.mu.Unlock()

	return multierr.Append(err, s.EnableControlledPort(false))
}
