package kay

import (
	"errors"
	"fmt"
	"time"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Counters 参与者收发统计
type Counters struct {
	TxMKPDU          uint64
	RxMKPDU          uint64
	RxMalformed      uint64
	RxICVMismatch    uint64
	RxReplay         uint64
	RxDropped        uint64
	SAKsGenerated    uint64
	SAKsReceived     uint64
	TxSendFailures   uint64
	PeersExpired     uint64
	MIResets         uint64
	KeyServerChanges uint64
}

// Participant 一个 CA (CKN) 中的本端 MKA 参与者。
// 所有字段由所属 KaY 的锁保护
type Participant struct {
	kay *KaY
	log *zap.Logger

	ckn  []byte
	cak  []byte
	kek  []byte
	ick  []byte
	mode Mode

	cakLife time.Time
	mkaLife time.Time

	mi mka.MI
	mn uint32

	active      bool
	participant bool
	retain      bool

	isObligedKeyServer bool
	canBeKeyServer     bool
	isKeyServer        bool
	principal          bool
	isElected          bool

	livePeers      peerList
	potentialPeers peerList

	currentPeerID  mka.PeerID
	currentPeerSCI mka.SCI

	txSC  *TransmitSC
	rxSCs []*ReceiveSC

	sakList []*DataKey
	newKey  *DataKey

	lki      mka.KeyIdentifier
	lan      uint8
	ltx, lrx bool
	oki      mka.KeyIdentifier
	oan      uint8
	otx, orx bool

	newSAK    bool
	toDistSAK bool
	toUseSAK  bool

	advisedDesired    bool
	advisedCapability mka.Capability

	retry int

	timer      *time.Timer
	firstDelay time.Duration
	deleted    bool

	stats Counters
}

// setupKeys 选择初始 MI 并由 CAK 派生 KEK/ICK，失败时清零已持有的密钥材料
func (pt *Participant) setupKeys() (err error) {
	defer func() {
		if err != nil {
			pt.zeroKeys()
		}
	}()
	if err = pt.resetMI(); err != nil {
		return err
	}
	if pt.kek, err = crypto.DeriveKEK(pt.cak, pt.ckn); err != nil {
		return fmt.Errorf("派生 KEK 失败: %w", err)
	}
	if pt.ick, err = crypto.DeriveICK(pt.cak, pt.ckn); err != nil {
		return fmt.Errorf("派生 ICK 失败: %w", err)
	}
	return nil
}

// resetMI 生成新的随机 MI，MN 从 0 重新开始
func (pt *Participant) resetMI() error {
	b, err := pt.kay.random(mka.MI_LEN)
	if err != nil {
		return fmt.Errorf("生成 MI 失败: %w", err)
	}
	copy(pt.mi[:], b)
	pt.mn = 0
	pt.stats.MIResets++
	return nil
}

func (pt *Participant) ki(kn uint32) mka.KeyIdentifier {
	return mka.KeyIdentifier{MI: pt.mi, KN: kn}
}

func (pt *Participant) sak(ki mka.KeyIdentifier) *DataKey {
	for _, k := range pt.sakList {
		if k.KI == ki {
			return k
		}
	}
	return nil
}

func (pt *Participant) removeSAK(key *DataKey) {
	for i, k := range pt.sakList {
		if k == key {
			pt.sakList = append(pt.sakList[:i], pt.sakList[i+1:]...)
			key.release()
			return
		}
	}
}

// hello 一个 hello 周期：参与者定时处理后推进 CP
func (k *KaY) hello(pt *Participant) {
	k.tick(pt)
	k.flushCP()
}

// tick hello 定时器处理，每 hello 周期调用一次
func (k *KaY) tick(pt *Participant) {
	now := k.now()
	// CP 的发送与退役延时按 hello 周期检查
	k.scheduleCP()

	if !pt.cakLife.IsZero() && now.After(pt.cakLife) {
		pt.log.Info("CAK 生存期到期，删除参与者")
		k.deleteFailed(pt)
		return
	}

	// 生存期内始终没有活跃对端则放弃该 CA
	if !pt.mkaLife.IsZero() {
		if len(pt.livePeers) == 0 {
			if now.After(pt.mkaLife) {
				pt.log.Info("MKA 生存期内没有活跃对端，删除参与者")
				k.deleteFailed(pt)
				return
			}
		} else {
			pt.mkaLife = time.Time{}
		}
	}

	changed, err := pt.sweepLivePeers(now)
	if err != nil {
		pt.log.Warn("拆除过期对端的接收通道失败", logErr(err))
	}
	if changed {
		pt.stats.PeersExpired++
		if len(pt.livePeers) == 0 {
			pt.resetSecurity()
		} else {
			pt.electKeyServer()
			pt.decideMACsecUse()
		}
	}

	pt.sweepPotentialPeers(now)

	if pt.newSAK && pt.isKeyServer {
		err := pt.generateNewSAK()
		switch {
		case err == nil:
			pt.toDistSAK = true
			pt.newSAK = false
		case errors.Is(err, ErrTooSoon):
			// 保留请求，等上一个 SAK 分发满 MKA 生存期后再生成
			pt.log.Debug("本周期不生成 SAK", logErr(err))
		default:
			pt.log.Debug("本周期不生成 SAK", logErr(err))
			pt.newSAK = false
		}
	}

	if pt.retry < k.cfg.MaxRetry || pt.mode == ModePSK {
		if err := pt.sendMKPDU(); err != nil {
			pt.log.Warn("发送 MKPDU 失败", logErr(err))
		}
		pt.retry++
	}
}

func (k *KaY) deleteFailed(pt *Participant) {
	k.authenticated = false
	k.secured = false
	k.failed = true
	if err := k.deleteParticipant(pt); err != nil {
		pt.log.Warn("删除参与者时出错", logErr(err))
	}
}

// resetSecurity 最后一个活跃对端离开：撤销 MACsec 决定并拆除发送 SA
func (pt *Participant) resetSecurity() {
	k := pt.kay
	pt.advisedDesired = false
	pt.advisedCapability = mka.CapNotImplemented
	pt.toUseSAK = false
	pt.ltx, pt.lrx = false, false
	pt.otx, pt.orx = false, false
	pt.isKeyServer = false
	pt.isElected = false

	k.authenticated = false
	k.secured = false
	k.failed = false
	k.clearKeyBookkeeping()

	var errs error
	for _, sa := range append([]*TransmitSA{}, pt.txSC.SAs...) {
		errs = multierr.Append(errs, pt.deleteTransmitSA(sa))
	}
	if errs != nil {
		pt.log.Warn("删除发送 SA 失败", logErr(errs))
	}

	pt.log.Info("活跃对端已全部离开")
	k.cp.ConnectPending()
	k.scheduleCP()
}

func (pt *Participant) deleteTransmitSA(sa *TransmitSA) error {
	secy := pt.kay.secy
	err := multierr.Combine(
		wrapSecY("DisableTransmitSA", secy.DisableTransmitSA(sa)),
		wrapSecY("DeleteTransmitSA", secy.DeleteTransmitSA(sa)),
	)
	sa.SC.remove(sa)
	sa.Key.release()
	return err
}

func (pt *Participant) deleteReceiveSA(sa *ReceiveSA) error {
	secy := pt.kay.secy
	err := multierr.Combine(
		wrapSecY("DisableReceiveSA", secy.DisableReceiveSA(sa)),
		wrapSecY("DeleteReceiveSA", secy.DeleteReceiveSA(sa)),
	)
	sa.SC.remove(sa)
	sa.Key.release()
	return err
}

// deleteReceiveSC 先拆除所有接收 SA 再删除通道
func (pt *Participant) deleteReceiveSC(sc *ReceiveSC) error {
	var errs error
	for _, sa := range append([]*ReceiveSA{}, sc.SAs...) {
		errs = multierr.Append(errs, pt.deleteReceiveSA(sa))
	}
	errs = multierr.Append(errs, wrapSecY("DeleteReceiveSC", pt.kay.secy.DeleteReceiveSC(sc)))
	for i, s := range pt.rxSCs {
		if s == sc {
			pt.rxSCs = append(pt.rxSCs[:i], pt.rxSCs[i+1:]...)
			break
		}
	}
	return errs
}

// destroy 释放参与者持有的全部资源
func (pt *Participant) destroy() error {
	var errs error
	pt.livePeers = nil
	pt.potentialPeers = nil

	for _, sc := range append([]*ReceiveSC{}, pt.rxSCs...) {
		errs = multierr.Append(errs, pt.deleteReceiveSC(sc))
	}
	if pt.txSC != nil {
		for _, sa := range append([]*TransmitSA{}, pt.txSC.SAs...) {
			errs = multierr.Append(errs, pt.deleteTransmitSA(sa))
		}
		errs = multierr.Append(errs, wrapSecY("DeleteTransmitSC", pt.kay.secy.DeleteTransmitSC(pt.txSC)))
	}

	for _, key := range pt.sakList {
		key.release()
	}
	pt.sakList = nil
	pt.newKey = nil
	pt.zeroKeys()
	return errs
}

func (pt *Participant) zeroKeys() {
	crypto.Zero(pt.cak)
	crypto.Zero(pt.kek)
	crypto.Zero(pt.ick)
}
