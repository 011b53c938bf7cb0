package kay

import (
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// comparePriority 先比优先级（小者优先），相同再比 SCI 中的 MAC 地址
func comparePriority(prioA uint8, sciA mka.SCI, prioB uint8, sciB mka.SCI) int {
	switch {
	case prioA < prioB:
		return -1
	case prioA > prioB:
		return 1
	}
	return sciA.CompareAddr(sciB)
}

// electKeyServer 活跃对端集合变化时重新选举密钥服务器
func (pt *Participant) electKeyServer() {
	k := pt.kay

	if pt.isObligedKeyServer {
		pt.newSAK = true
		pt.toDistSAK = false
		k.cp.SetElectedSelf(true)
		return
	}

	var best *Peer
	for _, p := range pt.livePeers {
		if !p.IsKeyServer {
			continue
		}
		if best == nil || comparePriority(p.KeyServerPriority, p.SCI, best.KeyServerPriority, best.SCI) < 0 {
			best = p
		}
	}

	self := false
	if best != nil && pt.canBeKeyServer {
		switch c := comparePriority(k.actorPriority, k.actorSCI, best.KeyServerPriority, best.SCI); {
		case c < 0:
			self = true
		case c == 0:
			pt.log.Warn("无法在本端与对端之间选举密钥服务器，检测到重复 MAC",
				mkaSCI("peer_sci", best.SCI))
			best = nil
		}
	} else if pt.canBeKeyServer {
		self = true
	}

	switch {
	case self:
		k.cp.SetElectedSelf(true)
		if k.keyServerSCI != k.actorSCI {
			pt.stats.KeyServerChanges++
			k.cp.SignalChangedServer()
			k.scheduleCP()
		}
		pt.isKeyServer = true
		pt.principal = true
		pt.newSAK = true
		pt.toDistSAK = false
		pt.isElected = true
		k.keyServerSCI = k.actorSCI
		k.keyServerPriority = k.actorPriority
		pt.log.Info("本端当选密钥服务器")
	case best != nil:
		k.cp.SetElectedSelf(false)
		if k.keyServerSCI != best.SCI {
			pt.stats.KeyServerChanges++
			k.cp.SignalChangedServer()
			k.scheduleCP()
		}
		pt.isKeyServer = false
		pt.principal = true
		pt.isElected = true
		k.keyServerSCI = best.SCI
		k.keyServerPriority = best.KeyServerPriority
		pt.log.Info("对端当选密钥服务器", mkaMI("mi", best.MI), mkaSCI("sci", best.SCI))
	default:
		pt.principal = false
		pt.isKeyServer = false
		pt.isElected = false
	}
}

// decideMACsecUse 密钥服务器根据本端与活跃对端的能力决定是否使用 MACsec
func (pt *Participant) decideMACsecUse() {
	k := pt.kay
	if !pt.isKeyServer {
		return
	}
	if !k.macsecDesired || k.macsecCapable == mka.CapNotImplemented {
		pt.advisedDesired = false
		return
	}

	less := k.macsecCapable
	hasPeer := false
	for _, p := range pt.livePeers {
		if !p.MACsecDesired || p.MACsecCapability == mka.CapNotImplemented {
			continue
		}
		less = min(less, p.MACsecCapability)
		hasPeer = true
	}

	if hasPeer {
		pt.advisedDesired = true
		pt.advisedCapability = less
		k.authenticated = false
		k.secured = true
		k.failed = false
		pt.log.Debug("决定使用 MACsec", logger.Stringer("capability", less))
		k.cp.ConnectSecure()
		k.scheduleCP()
		return
	}

	pt.advisedDesired = false
	pt.advisedCapability = mka.CapNotImplemented
	pt.toUseSAK = false
	k.authenticated = true
	k.secured = false
	k.failed = false
	k.clearKeyBookkeeping()
	pt.log.Debug("没有需要 MACsec 的对端，仅认证")
	k.cp.ConnectAuthenticated()
	k.scheduleCP()
}
