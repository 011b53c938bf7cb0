package kay

import (
	"fmt"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// basicParamSet 构造基本参数集并递增 MN
func (pt *Participant) basicParamSet() *mka.BasicParamSet {
	k := pt.kay
	keyServer := pt.canBeKeyServer
	// 一旦认定其他参与者是（或将是）密钥服务器就不再声明
	if pt.isElected {
		keyServer = pt.isKeyServer
	}
	pt.mn++
	return &mka.BasicParamSet{
		Version:       mka.MKA_VERSION_ID,
		Priority:      k.actorPriority,
		KeyServer:     keyServer,
		MACsecDesired: k.macsecDesired,
		Capability:    k.macsecCapable,
		SCI:           k.actorSCI,
		MI:            pt.mi,
		MN:            pt.mn,
		AlgAgility:    k.alg.agility,
		CKN:           pt.ckn,
	}
}

// sakUseParamSet 仅在 toUseSAK 时携带
func (pt *Participant) sakUseParamSet() *mka.SAKUseParamSet {
	k := pt.kay
	if !k.macsecDesired || !pt.advisedDesired {
		return &mka.SAKUseParamSet{Empty: true, PTx: true, PRx: true}
	}

	s := &mka.SAKUseParamSet{
		DelayProtect: k.helloTime <= k.cfg.BoundedHelloTime,
		PTx:          !k.protect,
		PRx:          k.validate != mka.ValidateStrict,
		LAN:          pt.lan,
		LTx:          pt.ltx,
		LRx:          pt.lrx,
		LatestKI:     pt.lki,
		OAN:          pt.oan,
	}
	s.LatestLPN = pt.lowestPN(pt.lki)
	if s.LatestLPN > k.cfg.PNExhaustion {
		pt.log.Warn("本端 PN 即将耗尽")
		if pt.isKeyServer {
			pt.newSAK = true
		}
	}
	s.OldLPN = pt.lowestPN(pt.oki)

	if pt.oki.KN != pt.lki.KN && pt.oki.KN != 0 {
		s.OTx = true
		s.ORx = true
		s.OldKI = pt.oki
	}

	if s.LTx {
		k.txEnable = true
		k.portEnable = true
	}
	if s.LRx {
		k.rxEnable = true
	}
	return s
}

// distSAKParamSet 仅密钥服务器在有待分发的新 SAK 时携带
func (pt *Participant) distSAKParamSet() (*mka.DistSAKParamSet, error) {
	if !pt.advisedDesired {
		return &mka.DistSAKParamSet{}, nil
	}
	sak := pt.newKey
	wrapped, err := crypto.AESWrap(pt.kek, sak.Key)
	if err != nil {
		return nil, fmt.Errorf("封装 SAK 失败: %w", err)
	}
	return &mka.DistSAKParamSet{
		DAN:         sak.AN,
		ConfOffset:  sak.ConfOffset,
		KN:          sak.KI.KN,
		CipherSuite: sak.CipherSuite,
		WrappedSAK:  wrapped,
	}, nil
}

// encodeMKPDU 依次编码 Basic, Live, Potential, SAK-Use, Distributed-SAK，不含 ICV
func (pt *Participant) encodeMKPDU() ([]byte, error) {
	sets := []mka.ParamSet{pt.basicParamSet()}
	if len(pt.livePeers) > 0 {
		sets = append(sets, &mka.PeerListParamSet{Live: true, Peers: pt.livePeers.ids()})
	}
	if len(pt.potentialPeers) > 0 {
		sets = append(sets, &mka.PeerListParamSet{Peers: pt.potentialPeers.ids()})
	}
	if pt.toUseSAK {
		sets = append(sets, pt.sakUseParamSet())
	}
	if pt.isKeyServer && pt.toDistSAK && pt.newKey != nil {
		d, err := pt.distSAKParamSet()
		if err != nil {
			return nil, err
		}
		sets = append(sets, d)
	}
	return mka.EncodeBody(sets...)
}

// sendMKPDU 编码、计算 ICV 并发送
func (pt *Participant) sendMKPDU() error {
	k := pt.kay
	body, err := pt.encodeMKPDU()
	if err != nil {
		return err
	}
	icvLen := k.alg.icvLen()
	if icvLen != mka.DEFAULT_ICV_LEN {
		// ICV 指示参数集头部，主体由 ICV 本身充当
		body = append(body, mka.ParamSetHeader{Type: mka.ParamICVIndicator, BodyLen: icvLen}.Encode()...)
	}
	frame, err := mka.BuildFrame(k.actorSCI.HardwareAddr(), body, icvLen, func(msg []byte) ([]byte, error) {
		return k.alg.icv.Compute(pt.ick, msg)
	})
	if err != nil {
		return err
	}
	if k.transport == nil {
		return nil
	}
	if err := k.transport.Send(frame); err != nil {
		pt.stats.TxSendFailures++
		return fmt.Errorf("发送 MKPDU 失败: %w", err)
	}
	pt.stats.TxMKPDU++
	k.active = true
	pt.active = true
	pt.log.Debug("已发送 MKPDU", mkaMI("mi", pt.mi), mkaMN(pt.mn), logger.Int("len", len(frame)))
	return nil
}
