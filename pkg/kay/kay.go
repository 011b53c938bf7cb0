package kay

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// 协议定时与限制 (IEEE 802.1X-2010 表 9-3)
const (
	MKA_HELLO_TIME          = 2 * time.Second
	MKA_BOUNDED_HELLO_TIME  = 500 * time.Millisecond
	MKA_LIFE_TIME           = 6 * time.Second
	MKA_SAK_RETIRE_TIME     = 3 * time.Second
	MAX_RETRY_CNT           = 5
	MAX_MISSING_SAK_USE     = 10
	PENDING_PN_EXHAUSTION   = 0xC0000000
	DEFAULT_ACTOR_PRIORITY  = mka.DEFAULT_PRIO_NOT_KEY_SERVER
	DEFAULT_SCI_PORT        = 1
	DUPLICATE_SCI_GRACE_MUL = 1.5

	maxCPRounds = 16
)

// Policy MACsec 策略
type Policy int

const (
	DoNotSecure Policy = iota
	ShouldSecure
	ShouldEncrypt
)

func (p Policy) String() string {
	switch p {
	case DoNotSecure:
		return "do-not-secure"
	case ShouldSecure:
		return "should-secure"
	case ShouldEncrypt:
		return "should-encrypt"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy 解析配置中的策略名
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "do-not-secure":
		return DoNotSecure, nil
	case "should-secure", "":
		return ShouldSecure, nil
	case "should-encrypt":
		return ShouldEncrypt, nil
	default:
		return 0, fmt.Errorf("未知 MACsec 策略: %s", s)
	}
}

// Mode 参与者的创建方式
type Mode int

const (
	ModePSK Mode = iota
	ModeEAP
)

func (m Mode) String() string {
	if m == ModeEAP {
		return "EAP"
	}
	return "PSK"
}

type Config struct {
	IfName   string
	Addr     net.HardwareAddr
	Port     uint16
	Priority uint8
	Policy   Policy

	ReplayProtect bool
	ReplayWindow  uint32
	// CipherSuite CipherSuites 中的索引
	CipherSuite int
	// ConfOffset 加密时的机密性偏移，30/50 需要 SecY 支持，否则退回 0
	ConfOffset mka.ConfOffset

	HelloTime         time.Duration
	BoundedHelloTime  time.Duration
	LifeTime          time.Duration
	SAKRetireTime     time.Duration
	DuplicateSCIGrace time.Duration

	MaxRetry         int
	MaxMissingSAKUse int
	PNExhaustion     uint32
}

func DefaultConfig() Config {
	return Config{
		Port:              DEFAULT_SCI_PORT,
		Priority:          DEFAULT_ACTOR_PRIORITY,
		Policy:            ShouldSecure,
		CipherSuite:       DefaultCipherSuiteIndex,
		HelloTime:         MKA_HELLO_TIME,
		BoundedHelloTime:  MKA_BOUNDED_HELLO_TIME,
		LifeTime:          MKA_LIFE_TIME,
		SAKRetireTime:     MKA_SAK_RETIRE_TIME,
		DuplicateSCIGrace: time.Duration(float64(MKA_HELLO_TIME) * DUPLICATE_SCI_GRACE_MUL),
		MaxRetry:          MAX_RETRY_CNT,
		MaxMissingSAKUse:  MAX_MISSING_SAK_USE,
		PNExhaustion:      PENDING_PN_EXHAUSTION,
	}
}

// Deps KaY 的外部协作者
type Deps struct {
	Transport Transport
	SecY      SecY
	// NewCP 为空时不驱动连接策略
	NewCP  CPFactory
	Logger *zap.Logger
}

// KaY 一个端口上的 MKA 实体，管理该端口所有参与者。
// 所有状态由 mu 保护：入站帧处理、定时器回调与管理接口互斥执行
type KaY struct {
	mu sync.Mutex

	cfg       Config
	log       *zap.Logger
	transport Transport
	secy      SecY
	cp        CP
	alg       *mkaAlgorithm
	now       func() time.Time
	// random MI 与 SAK 随机数来源，测试可替换
	random    func(n int) ([]byte, error)

	enabled       bool
	active        bool
	authenticated bool
	secured       bool
	failed        bool

	actorSCI          mka.SCI
	actorPriority     uint8
	keyServerSCI      mka.SCI
	keyServerPriority uint8

	macsecCapable mka.Capability
	macsecDesired bool
	protect       bool
	encrypt       bool
	validate      mka.ValidateFrames
	replayProtect bool
	replayWindow  uint32
	confOffset    mka.ConfOffset
	helloTime     time.Duration
	csIndex       int

	distKN   uint32
	distAN   uint8
	distTime time.Time
	rcvdKeys uint32

	ltxKN, lrxKN, otxKN, orxKN uint32
	ltxAN, lrxAN, otxAN, orxAN uint8
	txEnable, rxEnable         bool
	portEnable                 bool

	participants []*Participant
	started      bool
	closed       bool
	cpPending    bool
}

// New 按策略与 SecY 能力初始化 KaY
func New(cfg Config, deps Deps) (*KaY, error) {
	if len(cfg.Addr) != 6 {
		return nil, fmt.Errorf("接口 MAC 地址非法: %v", cfg.Addr)
	}
	if cfg.CipherSuite < 0 || cfg.CipherSuite >= len(CipherSuites) {
		return nil, fmt.Errorf("%w: 索引 %d", ErrUnsupportedCipherSuite, cfg.CipherSuite)
	}
	if deps.SecY == nil {
		return nil, errors.New("SecY 不能为空")
	}
	alg, err := defaultAlgorithm()
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = DEFAULT_SCI_PORT
	}
	l := deps.Logger
	if l == nil {
		l = logger.Named("kay")
	}
	k := &KaY{
		cfg:           cfg,
		log:           l.With(logger.String("ifname", cfg.IfName)),
		transport:     deps.Transport,
		secy:          deps.SecY,
		alg:           alg,
		now:           time.Now,
		random:        crypto.RandomBytes,
		enabled:       true,
		actorSCI:      mka.NewSCI(cfg.Addr, port),
		actorPriority: cfg.Priority,
		distKN:        1,
		csIndex:       cfg.CipherSuite,
		helloTime:     cfg.HelloTime,
	}

	if cfg.Policy != DoNotSecure {
		capable, err := k.secy.GetCapability()
		if err != nil {
			return nil, wrapSecY("GetCapability", err)
		}
		k.macsecCapable = capable
	}
	if cfg.Policy == DoNotSecure || k.macsecCapable == mka.CapNotImplemented {
		k.macsecCapable = mka.CapNotImplemented
		k.validate = mka.ValidateDisabled
		k.confOffset = mka.ConfNone
	} else {
		k.macsecDesired = true
		k.protect = true
		if k.macsecCapable >= mka.CapIntegAndConf && cfg.Policy == ShouldEncrypt {
			k.encrypt = true
			k.confOffset = mka.ConfOffset0
			if cfg.ConfOffset > mka.ConfOffset0 && k.macsecCapable == mka.CapIntegAndConf0_30_50 {
				k.confOffset = cfg.ConfOffset
			}
		} else {
			k.confOffset = mka.ConfNone
		}
		k.validate = mka.ValidateStrict
		k.replayProtect = cfg.ReplayProtect
		k.replayWindow = cfg.ReplayWindow
	}
	if k.cfg.Policy != DoNotSecure && k.transport == nil {
		return nil, errors.New("Transport 不能为空")
	}

	k.cp = nopCP{}
	if deps.NewCP != nil {
		k.cp = deps.NewCP(saControl{k}, k.settings())
	}
	if cfg.Policy == DoNotSecure {
		k.cp.ConnectAuthenticated()
		k.scheduleCP()
		k.flushCP()
	}

	k.log.Info("KaY 已初始化",
		mkaSCI("sci", k.actorSCI),
		logger.Uint8("priority", k.actorPriority),
		logger.Stringer("policy", cfg.Policy),
		logger.Stringer("capability", k.macsecCapable))
	return k, nil
}

func (k *KaY) settings() Settings {
	return Settings{
		Protect:       k.protect,
		Encrypt:       k.encrypt,
		ReplayProtect: k.replayProtect,
		ReplayWindow:  k.replayWindow,
		Validate:      k.validate,
		Offset:        k.confOffset,
		Capability:    k.macsecCapable,
		Desired:       k.macsecDesired,
	}
}

// ActorSCI 本端 SCI
func (k *KaY) ActorSCI() mka.SCI { return k.actorSCI }

// Start 为所有参与者启动 hello 定时器
func (k *KaY) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started || k.closed {
		return
	}
	k.started = true
	for _, pt := range k.participants {
		k.armTimer(pt, pt.firstDelay)
	}
}

func (k *KaY) armTimer(pt *Participant, d time.Duration) {
	if !k.started || k.closed {
		return
	}
	pt.timer = time.AfterFunc(d, func() { k.onTimer(pt) })
}

func (k *KaY) onTimer(pt *Participant) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if pt.deleted || k.closed {
		return
	}
	k.hello(pt)
	if !pt.deleted {
		k.armTimer(pt, k.helloTime)
	}
}

// CreateMKA 为 CKN 创建参与者。life 为 CAK 生存期，0 表示不限
func (k *KaY) CreateMKA(ckn, cak []byte, life time.Duration, mode Mode, authenticator bool) (*Participant, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.log.Debug("创建 MKA 参与者",
		logger.Stringer("mode", mode),
		logger.Bool("authenticator", authenticator))
	if len(cak) != 16 && len(cak) != 32 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCAK, len(cak))
	}
	if len(ckn) == 0 || len(ckn) > mka.MAX_CKN_LEN {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCKN, len(ckn))
	}
	if !k.enabled || k.closed {
		return nil, ErrDisabled
	}
	if k.participantByCKN(ckn) != nil {
		return nil, ErrDuplicateParticipant
	}

	now := k.now()
	pt := &Participant{
		kay:  k,
		ckn:  append([]byte{}, ckn...),
		cak:  append([]byte{}, cak...),
		mode: mode,
		log:  k.log.With(logger.Hex("ckn", ckn)),
	}
	if life > 0 {
		pt.cakLife = now.Add(life)
	}
	switch {
	case mode == ModeEAP && authenticator:
		pt.isObligedKeyServer = true
		pt.canBeKeyServer = true
		pt.isKeyServer = true
		pt.principal = true
		pt.isElected = true
		k.keyServerSCI = k.actorSCI
		k.keyServerPriority = k.actorPriority
	case mode == ModeEAP:
		pt.isElected = true
	default:
		pt.canBeKeyServer = true
		pt.isKeyServer = true
	}
	if pt.isKeyServer {
		pt.principal = true
	}
	if err := pt.setupKeys(); err != nil {
		return nil, err
	}

	pt.txSC = &TransmitSC{SCI: k.actorSCI, Created: now}
	if err := k.secy.CreateTransmitSC(pt.txSC); err != nil {
		pt.zeroKeys()
		return nil, wrapSecY("CreateTransmitSC", err)
	}

	k.participants = append(k.participants, pt)
	pt.firstDelay = time.Duration(rand.Int64N(int64(k.helloTime)))
	// PSK 模式的"待机"参与者需要一直等待对端出现
	if mode != ModePSK {
		pt.mkaLife = now.Add(k.cfg.LifeTime + pt.firstDelay)
	}
	k.armTimer(pt, pt.firstDelay)

	pt.log.Info("MKA 参与者已创建", mkaMI("mi", pt.mi), logger.Stringer("mode", mode))
	return pt, nil
}

// DeleteMKA 删除参与者，释放所有 SA 并清零密钥
func (k *KaY) DeleteMKA(ckn []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	pt := k.participantByCKN(ckn)
	if pt == nil {
		return ErrUnknownParticipant
	}
	return k.deleteParticipant(pt)
}

func (k *KaY) deleteParticipant(pt *Participant) error {
	pt.deleted = true
	if pt.timer != nil {
		pt.timer.Stop()
	}
	for i, p := range k.participants {
		if p == pt {
			k.participants = append(k.participants[:i], k.participants[i+1:]...)
			break
		}
	}
	err := pt.destroy()
	pt.log.Info("MKA 参与者已删除")
	return err
}

// Participate 设置参与者的 active 标志
func (k *KaY) Participate(ckn []byte, active bool) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	pt := k.participantByCKN(ckn)
	if pt == nil {
		return ErrUnknownParticipant
	}
	pt.active = active
	return nil
}

// NewSAK 要求主参与者在下一个 hello 周期生成新 SAK
func (k *KaY) NewSAK() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	pt := k.principal()
	if pt == nil {
		return ErrNoPrincipal
	}
	pt.newSAK = true
	k.log.Debug("请求新 SAK")
	return nil
}

// ChangeCipherSuite 切换密码套件，主参与者将重新生成 SAK
func (k *KaY) ChangeCipherSuite(index int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if index < 0 || index >= len(CipherSuites) {
		return fmt.Errorf("%w: 索引 %d", ErrUnsupportedCipherSuite, index)
	}
	if index == k.csIndex {
		return ErrSameCipherSuite
	}
	k.csIndex = index
	k.macsecCapable = CipherSuites[index].Capable
	secyCap, err := k.secy.GetCapability()
	if err != nil {
		return wrapSecY("GetCapability", err)
	}
	if k.macsecCapable > secyCap {
		k.macsecCapable = secyCap
	}
	if pt := k.principal(); pt != nil {
		k.log.Info("密码套件已切换", logger.String("cipher_suite", CipherSuites[index].Name))
		pt.newSAK = true
	}
	return nil
}

// SetPortEnabled 通知 CP 物理端口状态
func (k *KaY) SetPortEnabled(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cp.SetPortEnabled(enabled)
	k.scheduleCP()
	k.flushCP()
}

// Receive 处理一个入站以太网帧。被丢弃的帧返回原因，调用方通常只需记录
func (k *KaY) Receive(frame []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrDisabled
	}
	if len(k.participants) == 0 {
		return ErrUnknownParticipant
	}
	defer k.flushCP()
	return k.receive(frame)
}

// Stop 停止所有定时器，保留状态
func (k *KaY) Stop() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.started = false
	for _, pt := range k.participants {
		if pt.timer != nil {
			pt.timer.Stop()
		}
	}
}

// Close 删除所有参与者
func (k *KaY) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	var errs error
	for len(k.participants) > 0 {
		errs = multierr.Append(errs, k.deleteParticipant(k.participants[0]))
	}
	k.closed = true
	k.log.Info("KaY 已关闭")
	return errs
}

// scheduleCP 记录 CP 需要推进。CP 在当前事件处理完成后才运行，
// 这样它回调 EnableNewInfo 发出的 MKPDU 能反映本次事件的全部结果
func (k *KaY) scheduleCP() { k.cpPending = true }

func (k *KaY) flushCP() {
	for i := 0; k.cpPending && i < maxCPRounds; i++ {
		k.cpPending = false
		k.cp.Step()
	}
}

func (k *KaY) participantByCKN(ckn []byte) *Participant {
	for _, pt := range k.participants {
		if bytes.Equal(pt.ckn, ckn) {
			return pt
		}
	}
	return nil
}

func (k *KaY) principal() *Participant {
	for _, pt := range k.participants {
		if pt.principal {
			return pt
		}
	}
	return nil
}

func (k *KaY) cipherSuite() *CipherSuite { return &CipherSuites[k.csIndex] }

func (k *KaY) clearKeyBookkeeping() {
	k.ltxKN, k.ltxAN = 0, 0
	k.lrxKN, k.lrxAN = 0, 0
	k.otxKN, k.otxAN = 0, 0
	k.orxKN, k.orxAN = 0, 0
}
