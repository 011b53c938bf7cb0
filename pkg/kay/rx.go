package kay

import (
	"errors"
	"fmt"

	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// receive 校验并处理一个 EAPOL-MKA 帧，调用方已持锁
func (k *KaY) receive(data []byte) error {
	f, err := mka.ParseFrame(data)
	if err != nil {
		if errors.Is(err, mka.ErrNotMKA) {
			return fmt.Errorf("%w: %v", ErrNotMKAFrame, err)
		}
		return err
	}
	if !f.ToGroup() {
		return fmt.Errorf("%w: 目的地址 %s", ErrNotMKAFrame, f.Dst)
	}

	m, err := mka.ParseMKPDU(f.Body)
	if err != nil {
		k.log.Debug("丢弃格式错误的 MKPDU", logErr(err))
		return err
	}
	pt := k.participantByCKN(m.Basic.CKN)
	if pt == nil {
		k.log.Debug("CKN 不属于本端任何 CA，忽略 MKPDU", logger.Hex("ckn", m.Basic.CKN))
		return ErrUnknownParticipant
	}
	pt.stats.RxMKPDU++

	if m.Basic.AlgAgility != k.alg.agility {
		pt.stats.RxDropped++
		return fmt.Errorf("%w: %#08x", ErrAlgorithmAgility, m.Basic.AlgAgility)
	}
	if m.ICVLen != k.alg.icvLen() || !k.alg.icv.Verify(pt.ick, f.ICVInput(m.ICVLen), m.ICV) {
		pt.stats.RxICVMismatch++
		pt.log.Warn("ICV 校验失败，丢弃 MKPDU", mkaSCI("sci", m.Basic.SCI))
		return ErrICVMismatch
	}

	if err := pt.decodeMKPDU(m); err != nil {
		pt.log.Debug("丢弃 MKPDU", mkaMI("peer_mi", m.Basic.MI), mkaMN(m.Basic.MN), logErr(err))
		return err
	}
	return nil
}

// decodeBasic 处理基本参数集：MI 冲突、重复 SCI、防重放与潜在对端登记
func (pt *Participant) decodeBasic(b *mka.BasicParamSet) error {
	k := pt.kay
	if b.Version > mka.MKA_VERSION_ID {
		pt.log.Debug("对端 MKA 版本高于本端", logger.Uint8("version", b.Version))
	}
	if pt.isObligedKeyServer && b.KeyServer {
		pt.stats.RxDropped++
		return ErrObligedKeyServer
	}

	if b.MI == pt.mi {
		if err := pt.resetMI(); err != nil {
			return err
		}
		pt.log.Info("对端使用了本端 MI，已选择新的 MI", mkaMI("mi", pt.mi))
	}

	pt.currentPeerID = mka.PeerID{MI: b.MI, MN: b.MN}
	pt.currentPeerSCI = b.SCI

	peer := pt.peer(b.MI)
	switch {
	case peer == nil:
		// 新 MI 但 SCI 已存在：对端换了 MI 或者是攻击者。缩短旧对端的
		// 过期时间，让它自行超时清理后再接受新 MI
		if dup := pt.peerBySCI(b.SCI); dup != nil {
			if deadline := k.now().Add(k.cfg.DuplicateSCIGrace); dup.Expire.After(deadline) {
				dup.Expire = deadline
			}
			pt.stats.RxDropped++
			pt.log.Warn("检测到重复的 SCI，忽略 MKPDU", mkaSCI("sci", b.SCI), mkaMI("mi", b.MI))
			return ErrDuplicateSCI
		}
		peer = pt.createPotentialPeer(b.MI, b.MN)
		peer.updateFromBasic(b)
	case peer.MN < b.MN:
		peer.MN = b.MN
		peer.updateFromBasic(b)
	default:
		pt.stats.RxReplay++
		return fmt.Errorf("%w: MI %s MN %d <= %d", ErrReplay, b.MI, b.MN, peer.MN)
	}
	return nil
}

// iInPeerList 对端的任一对端列表中是否含本端 MI 且 MN 等于最近发送的 MN
func (pt *Participant) iInPeerList(m *mka.MKPDU) bool {
	for _, raw := range m.Sets {
		t := raw.Type()
		if t != mka.ParamLivePeerList && t != mka.ParamPotentialPeerList {
			continue
		}
		list, err := mka.DecodePeerList(raw)
		if err != nil {
			pt.log.Debug("对端列表格式错误", logErr(err))
			continue
		}
		for _, id := range list.Peers {
			if id.MI == pt.mi && id.MN == pt.mn {
				return true
			}
		}
	}
	return false
}

// decodeMKPDU 已通过 ICV 校验的 MKPDU 的参数集处理
func (pt *Participant) decodeMKPDU(m *mka.MKPDU) error {
	k := pt.kay
	if err := pt.decodeBasic(m.Basic); err != nil {
		return err
	}

	if pt.iInPeerList(m) && pt.livePeer(pt.currentPeerID.MI) == nil {
		var err error
		if pt.potentialPeer(pt.currentPeerID.MI) != nil {
			_, err = pt.moveLivePeer(pt.currentPeerID.MI, pt.currentPeerID.MN)
		} else {
			_, err = pt.createLivePeer(pt.currentPeerID.MI, pt.currentPeerID.MN)
		}
		if err != nil {
			pt.stats.RxDropped++
			return err
		}
		pt.electKeyServer()
		pt.decideMACsecUse()
	}

	var handled [256]bool
	handled[mka.ParamBasic] = true
	badSAKUse := false
	for i := range m.Sets {
		raw := m.Sets[i]
		t := raw.Type()
		if handled[t] {
			pt.log.Debug("忽略重复的参数集", logger.Stringer("type", t))
			continue
		}
		handled[t] = true

		err := pt.handleParamSet(raw)
		if err == nil {
			continue
		}
		if t != mka.ParamSAKUse {
			pt.stats.RxDropped++
			return fmt.Errorf("处理参数集 %s 失败: %w", t, err)
		}
		// SAK-Use 必须编码在 Distributed-SAK 之前，同一 MKPDU 中的新 SAK
		// 此时还未安装，因此只有没有 Distributed-SAK 时才算失败
		pt.log.Debug("SAK-Use 处理失败", logErr(err))
		badSAKUse = true
	}

	if badSAKUse && !handled[mka.ParamDistSAK] {
		pt.stats.RxDropped++
		if err := pt.resetMI(); err != nil {
			pt.log.Debug("无法更新 MI", logErr(err))
		} else {
			pt.log.Debug("SAK-Use 无效，已选择新的 MI", mkaMI("mi", pt.mi))
		}
		return ErrSAKUse
	}

	if peer := pt.livePeer(pt.currentPeerID.MI); peer != nil {
		if !handled[mka.ParamSAKUse] {
			// 活跃对端一旦开始发送 SAK-Use 就必须每次都带
			if peer.SAKUsed {
				pt.stats.RxDropped++
				return fmt.Errorf("%w: 对端停止发送", ErrMissingSAKUse)
			}
			peer.MissingSAKUseCount++
			if peer.MissingSAKUseCount > k.cfg.MaxMissingSAKUse {
				pt.stats.RxDropped++
				return fmt.Errorf("%w: 连续 %d 次", ErrMissingSAKUse, peer.MissingSAKUseCount)
			}
		} else {
			peer.MissingSAKUseCount = 0
			// 只有全部参数集处理成功后才刷新活跃对端的生存期
			peer.Expire = k.now().Add(k.cfg.LifeTime)
		}
	} else if pt.peer(pt.currentPeerID.MI) == nil {
		return ErrUnknownPeer
	}

	k.active = true
	pt.retry = 0
	pt.active = true
	return nil
}

func (pt *Participant) handleParamSet(raw mka.RawParamSet) error {
	ps, err := mka.DecodeParamSet(raw)
	if err != nil {
		return err
	}
	switch s := ps.(type) {
	case *mka.PeerListParamSet:
		if s.Live {
			pt.handleLivePeerList(s)
		} else {
			pt.checkOwnMI(s)
		}
		return nil
	case *mka.SAKUseParamSet:
		return pt.handleSAKUse(s)
	case *mka.DistSAKParamSet:
		return pt.handleDistSAK(s)
	case *mka.DistCAKParamSet:
		pt.log.Debug("收到 Distributed-CAK，暂不支持分组 CA")
		return nil
	case *mka.KMDParamSet:
		pt.log.Debug("收到 KMD", logger.String("kmd", string(s.KMD)))
		return nil
	case *mka.AnnouncementParamSet:
		pt.log.Debug("收到通告参数集", logger.Int("len", len(s.TLVs)))
		return nil
	default:
		pt.log.Warn("不支持的参数集类型", logger.Stringer("type", raw.Type()))
		return nil
	}
}

// checkOwnMI 他人使用了本端 MI 且 MN 更大时更换 MI
func (pt *Participant) checkOwnMI(list *mka.PeerListParamSet) {
	for _, id := range list.Peers {
		if id.MI == pt.mi {
			pt.ownMIListed(id.MN)
		}
	}
}

func (pt *Participant) ownMIListed(mn uint32) {
	if mn <= pt.mn {
		return
	}
	if err := pt.resetMI(); err != nil {
		pt.log.Debug("无法更新 MI", logErr(err))
		return
	}
	pt.log.Info("本端 MI 被其他参与者使用，已更换", mkaMI("mi", pt.mi))
}

// handleLivePeerList 活跃发送方列出的其他成员：更新 MN 或登记为潜在对端
func (pt *Participant) handleLivePeerList(list *mka.PeerListParamSet) {
	included := pt.livePeer(pt.currentPeerID.MI) != nil
	for _, id := range list.Peers {
		if id.MI == pt.mi {
			pt.ownMIListed(id.MN)
			continue
		}
		if !included {
			continue
		}
		if p := pt.peer(id.MI); p != nil {
			p.MN = id.MN
		} else {
			pt.createPotentialPeer(id.MI, id.MN)
		}
	}
}
