package kay

import (
	"time"

	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
)

// Peer 同一 CA 中的远端参与者，按 MI 区分
type Peer struct {
	MI                 mka.MI
	MN                 uint32
	SCI                mka.SCI
	Expire             time.Time
	IsKeyServer        bool
	KeyServerPriority  uint8
	MACsecDesired      bool
	MACsecCapability   mka.Capability
	SAKUsed            bool
	MissingSAKUseCount int
}

func (p *Peer) updateFromBasic(b *mka.BasicParamSet) {
	p.MACsecDesired = b.MACsecDesired
	p.MACsecCapability = b.Capability
	p.IsKeyServer = b.KeyServer
	p.KeyServerPriority = b.Priority
}

// peerList 保持插入顺序，SAK 派生上下文依赖该顺序
type peerList []*Peer

func (l peerList) get(mi mka.MI) *Peer {
	for _, p := range l {
		if p.MI == mi {
			return p
		}
	}
	return nil
}

func (l peerList) getSCI(sci mka.SCI) *Peer {
	for _, p := range l {
		if p.SCI == sci {
			return p
		}
	}
	return nil
}

func (l *peerList) remove(peer *Peer) {
	for i, p := range *l {
		if p == peer {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return
		}
	}
}

func (l peerList) ids() []mka.PeerID {
	out := make([]mka.PeerID, 0, len(l))
	for _, p := range l {
		out = append(out, mka.PeerID{MI: p.MI, MN: p.MN})
	}
	return out
}

func (pt *Participant) livePeer(mi mka.MI) *Peer      { return pt.livePeers.get(mi) }
func (pt *Participant) potentialPeer(mi mka.MI) *Peer { return pt.potentialPeers.get(mi) }

func (pt *Participant) peer(mi mka.MI) *Peer {
	if p := pt.livePeers.get(mi); p != nil {
		return p
	}
	return pt.potentialPeers.get(mi)
}

func (pt *Participant) peerBySCI(sci mka.SCI) *Peer {
	if p := pt.livePeers.getSCI(sci); p != nil {
		return p
	}
	return pt.potentialPeers.getSCI(sci)
}

func (pt *Participant) newPeer(mi mka.MI, mn uint32) *Peer {
	return &Peer{
		MI:     mi,
		MN:     mn,
		Expire: pt.kay.now().Add(pt.kay.cfg.LifeTime),
	}
}

func (pt *Participant) createPotentialPeer(mi mka.MI, mn uint32) *Peer {
	p := pt.newPeer(mi, mn)
	pt.potentialPeers = append(pt.potentialPeers, p)
	pt.log.Debug("创建潜在对端", mkaMI("mi", p.MI), mkaMN(p.MN))
	return p
}

// createLivePeer 直接创建活跃对端；SecY 创建接收通道失败时不留下任何状态
func (pt *Participant) createLivePeer(mi mka.MI, mn uint32) (*Peer, error) {
	p := pt.newPeer(mi, mn)
	p.SCI = pt.currentPeerSCI
	if err := pt.ensureReceiveSC(p.SCI); err != nil {
		return nil, err
	}
	pt.livePeers = append(pt.livePeers, p)
	pt.log.Debug("创建活跃对端", mkaMI("mi", p.MI), mkaMN(p.MN), mkaSCI("sci", p.SCI))
	return p, nil
}

// moveLivePeer 潜在对端升级为活跃对端；失败时对端保持潜在状态
func (pt *Participant) moveLivePeer(mi mka.MI, mn uint32) (*Peer, error) {
	p := pt.potentialPeer(mi)
	if p == nil {
		return nil, ErrUnknownPeer
	}
	if err := pt.ensureReceiveSC(pt.currentPeerSCI); err != nil {
		pt.log.Warn("无法创建接收通道，对端保持潜在状态", mkaMI("mi", mi), logErr(err))
		return nil, err
	}
	p.SCI = pt.currentPeerSCI
	p.MN = mn
	p.Expire = pt.kay.now().Add(pt.kay.cfg.LifeTime)
	pt.potentialPeers.remove(p)
	pt.livePeers = append(pt.livePeers, p)
	pt.log.Debug("潜在对端转为活跃对端", mkaMI("mi", p.MI), mkaMN(p.MN), mkaSCI("sci", p.SCI))
	return p, nil
}

// ensureReceiveSC 若尚无该 SCI 的接收通道则创建
func (pt *Participant) ensureReceiveSC(sci mka.SCI) error {
	if pt.receiveSC(sci) != nil {
		return nil
	}
	sc := &ReceiveSC{SCI: sci, Created: pt.kay.now()}
	if err := pt.kay.secy.CreateReceiveSC(sc); err != nil {
		return wrapSecY("CreateReceiveSC", err)
	}
	pt.rxSCs = append(pt.rxSCs, sc)
	return nil
}

func (pt *Participant) receiveSC(sci mka.SCI) *ReceiveSC {
	for _, sc := range pt.rxSCs {
		if sc.SCI == sci {
			return sc
		}
	}
	return nil
}

// sweepLivePeers 清理过期的活跃对端并拆除其接收通道，返回活跃对端集合是否变化
func (pt *Participant) sweepLivePeers(now time.Time) (bool, error) {
	var errs error
	changed := false
	for _, p := range append(peerList{}, pt.livePeers...) {
		if !now.After(p.Expire) {
			continue
		}
		pt.log.Debug("活跃对端过期", mkaMI("mi", p.MI), mkaMN(p.MN))
		for _, sc := range append([]*ReceiveSC{}, pt.rxSCs...) {
			if sc.SCI == p.SCI {
				errs = multierr.Append(errs, pt.deleteReceiveSC(sc))
			}
		}
		pt.livePeers.remove(p)
		changed = true
	}
	return changed, errs
}

func (pt *Participant) sweepPotentialPeers(now time.Time) {
	for _, p := range append(peerList{}, pt.potentialPeers...) {
		if now.After(p.Expire) {
			pt.log.Debug("潜在对端过期", mkaMI("mi", p.MI), mkaMN(p.MN))
			pt.potentialPeers.remove(p)
		}
	}
}
