package kay

import (
	"encoding/binary"
	"fmt"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// generateNewSAK 密钥服务器派生新的 SAK 并通知 CP
//
//	context = 随机数(SAK 长度) || 活跃对端 MI... || 本端 MI || KN
func (pt *Participant) generateNewSAK() error {
	k := pt.kay
	if len(pt.livePeers) == 0 {
		return ErrNoLivePeers
	}
	now := k.now()
	if !k.distTime.IsZero() && now.Sub(k.distTime) < k.cfg.LifeTime {
		return ErrTooSoon
	}

	cs := k.cipherSuite()
	nonce, err := k.random(cs.SAKLen)
	if err != nil {
		return err
	}
	ctx := make([]byte, 0, cs.SAKLen+(len(pt.livePeers)+1)*mka.MI_LEN+4)
	ctx = append(ctx, nonce...)
	for _, p := range pt.livePeers {
		ctx = append(ctx, p.MI[:]...)
	}
	ctx = append(ctx, pt.mi[:]...)
	ctx = binary.BigEndian.AppendUint32(ctx, k.distKN)

	key, err := crypto.DeriveSAK(pt.cak, ctx, cs.SAKLen)
	if err != nil {
		return fmt.Errorf("派生 SAK 失败: %w", err)
	}

	sak := newDataKey(key, pt.ki(k.distKN), k.distAN, k.confOffset, cs.ID, now)
	pt.newKey = sak
	pt.sakList = append(pt.sakList, sak)
	pt.stats.SAKsGenerated++
	pt.log.Info("生成新 SAK",
		mkaKI("ki", sak.KI),
		logger.Uint8("an", sak.AN),
		logger.String("cipher_suite", cs.Name))

	k.cp.SetCipherSuite(cs.ID)
	k.scheduleCP()
	k.cp.SetOffset(k.confOffset)
	k.scheduleCP()
	k.cp.SetDistributedKI(sak.KI)
	k.cp.SetDistributedAN(sak.AN)
	k.cp.SignalNewSAK()
	k.scheduleCP()

	for _, p := range pt.livePeers {
		p.SAKUsed = false
	}
	k.distKN++
	k.distAN = (k.distAN + 1) % (mka.MAX_AN + 1)
	k.distTime = now
	return nil
}

// handleDistSAK 处理密钥服务器分发的 SAK
func (pt *Participant) handleDistSAK(d *mka.DistSAKParamSet) error {
	k := pt.kay
	if !pt.principal {
		return fmt.Errorf("%w: 非主参与者不接受分发的 SAK", ErrDistSAK)
	}
	if pt.isKeyServer {
		return fmt.Errorf("%w: 本端是密钥服务器", ErrDistSAK)
	}
	if !k.macsecDesired || k.macsecCapable == mka.CapNotImplemented {
		return fmt.Errorf("%w: 本端不需要或不支持 MACsec", ErrDistSAK)
	}
	peer := pt.livePeer(pt.currentPeerID.MI)
	if peer == nil {
		return fmt.Errorf("%w: 密钥服务器不在活跃对端列表中", ErrDistSAK)
	}
	if k.keyServerSCI != peer.SCI {
		return fmt.Errorf("%w: 发送方不是当选的密钥服务器", ErrDistSAK)
	}

	if d.Plain() {
		k.authenticated = true
		k.secured = false
		k.failed = false
		pt.advisedDesired = false
		k.cp.ConnectAuthenticated()
		k.scheduleCP()
		pt.log.Warn("密钥服务器建议不使用 MACsec")
		pt.toUseSAK = false
		return nil
	}

	pt.advisedDesired = true
	k.authenticated = false
	k.secured = true
	k.failed = false
	k.cp.ConnectSecure()
	k.scheduleCP()

	ki := mka.KeyIdentifier{MI: pt.currentPeerID.MI, KN: d.KN}
	if pt.sak(ki) != nil {
		pt.log.Debug("SAK 已安装，忽略", mkaKI("ki", ki))
		return nil
	}

	idx, cs, err := CipherSuiteByID(d.CipherSuite)
	if err != nil {
		return err
	}
	if len(d.WrappedSAK) < cs.SAKLen+8 {
		return fmt.Errorf("%w: 封装 SAK 长度 %d", ErrDistSAK, len(d.WrappedSAK))
	}
	k.csIndex = idx

	key, err := crypto.AESUnwrap(pt.kek, d.WrappedSAK[:cs.SAKLen+8])
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDistSAK, err)
	}

	sak := newDataKey(key, ki, d.DAN, d.ConfOffset, cs.ID, k.now())
	pt.sakList = append(pt.sakList, sak)

	k.cp.SetCipherSuite(cs.ID)
	k.scheduleCP()
	k.cp.SetOffset(d.ConfOffset)
	k.scheduleCP()
	k.cp.SetDistributedKI(sak.KI)
	k.cp.SetDistributedAN(sak.AN)
	k.cp.SignalNewSAK()
	k.scheduleCP()

	k.rcvdKeys++
	pt.stats.SAKsReceived++
	pt.toUseSAK = true
	pt.log.Info("收到新 SAK", mkaKI("ki", ki), logger.Uint8("an", sak.AN), logger.String("cipher_suite", cs.Name))
	return nil
}

// handleSAKUse 处理对端的 SAK 使用情况
func (pt *Participant) handleSAKUse(s *mka.SAKUseParamSet) error {
	k := pt.kay
	if !pt.principal {
		return fmt.Errorf("%w: 非主参与者", ErrSAKUse)
	}
	peer := pt.livePeer(pt.currentPeerID.MI)
	if peer == nil {
		return fmt.Errorf("%w: 发送方不是活跃对端", ErrSAKUse)
	}
	if s.Empty {
		pt.log.Debug("对端不支持 MACsec", mkaMI("mi", peer.MI))
		return nil
	}
	if s.PRx || s.PTx {
		pt.log.Debug("对端允许明文收发",
			logger.Bool("ptx", s.PTx), logger.Bool("prx", s.PRx))
	}

	var sak *DataKey
	if s.LTx || s.LRx {
		sak = pt.sak(s.LatestKI)
		if sak == nil {
			return fmt.Errorf("%w: 最新密钥 %s", ErrSAKNotFound, s.LatestKI)
		}
		if s.LatestKI == pt.lki && s.LAN == pt.lan {
			peer.SAKUsed = true
		}
		if s.LTx && peer.IsKeyServer {
			k.cp.SetServerTransmitting(true)
			k.scheduleCP()
		}
	}

	if pt.oki.KN != 0 && (s.OTx || s.ORx) {
		if s.OldKI != pt.oki || s.OAN != pt.oan {
			return fmt.Errorf("%w: 旧密钥不一致", ErrSAKUse)
		}
	}

	if s.DelayProtect && (s.LatestLPN == 0 || s.OldLPN == 0) {
		return fmt.Errorf("%w: 延迟保护要求 LPN 非零", ErrSAKUse)
	}

	allReceiving := true
	for _, p := range pt.livePeers {
		if !p.SAKUsed {
			allReceiving = false
			break
		}
	}
	if allReceiving {
		pt.toDistSAK = false
		k.cp.SetAllReceiving(true)
		k.scheduleCP()
	}

	lpn := s.LatestLPN
	if lpn > k.cfg.PNExhaustion && pt.isKeyServer {
		pt.log.Warn("对端 PN 即将耗尽，重新生成 SAK", logger.Uint32("lpn", lpn))
		pt.newSAK = true
	}

	if sak == nil {
		return fmt.Errorf("%w: 找不到接收 SA", ErrSAKUse)
	}
	sak.NextPN = lpn
	rxsa := pt.receiveSAByKey(sak)
	if rxsa == nil {
		return fmt.Errorf("%w: 找不到接收 SA", ErrSAKUse)
	}

	if s.DelayProtect {
		cur, err := k.secy.GetReceiveLowestPN(rxsa)
		if err != nil {
			return wrapSecY("GetReceiveLowestPN", err)
		}
		rxsa.LowestPN = cur
		if lpn > rxsa.LowestPN {
			rxsa.LowestPN = lpn
			if err := k.secy.SetReceiveLowestPN(rxsa, lpn); err != nil {
				return wrapSecY("SetReceiveLowestPN", err)
			}
			pt.log.Debug("更新接收最低 PN", logger.Uint32("lpn", lpn))
		}
	}
	return nil
}

func (pt *Participant) receiveSAByKey(key *DataKey) *ReceiveSA {
	for _, sc := range pt.rxSCs {
		for _, sa := range sc.SAs {
			if sa.Key == key {
				return sa
			}
		}
	}
	return nil
}

// lowestPN 对应发送 SA 的最低可接受 PN：上次读取的 next_pn - 1，最小为 1；
// 同时刷新 next_pn 供下个 hello 周期使用
func (pt *Participant) lowestPN(ki mka.KeyIdentifier) uint32 {
	var lpn uint32
	for _, sa := range pt.txSC.SAs {
		if sa.Key.KI != ki {
			continue
		}
		if sa.NextPN > 0 {
			lpn = sa.NextPN - 1
		}
		if pn, err := pt.kay.secy.GetTransmitNextPN(sa); err != nil {
			pt.log.Debug("读取发送 PN 失败", logErr(err))
		} else {
			sa.NextPN = pn
		}
		break
	}
	if lpn == 0 {
		lpn = 1
	}
	return lpn
}
