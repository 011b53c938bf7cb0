package kay

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/iniwex5/mka-go/pkg/mka"
)

// Status KaY 运行状态快照
type Status struct {
	Active            bool
	Authenticated     bool
	Secured           bool
	Failed            bool
	ActorPriority     uint8
	KeyServerPriority uint8
	IsKeyServer       bool
	KeysDistributed   uint32
	KeysReceived      uint32
	HelloTime         time.Duration
	ActorSCI          mka.SCI
	KeyServerSCI      mka.SCI
	CipherSuite       string
	Capability        mka.Capability
	Participants      []ParticipantStatus
}

type ParticipantStatus struct {
	CKN            string
	MI             mka.MI
	MN             uint32
	Active         bool
	Participant    bool
	Retain         bool
	Principal      bool
	LivePeers      int
	PotentialPeers int
	IsKeyServer    bool
	IsElected      bool
	LatestKI       mka.KeyIdentifier
	LatestAN       uint8
	OldKI          mka.KeyIdentifier
	Counters       Counters
	Peers          []PeerStatus
}

// PeerStatus Type: 1 活跃，2 潜在
type PeerStatus struct {
	MI   mka.MI
	MN   uint32
	Type int
	SCI  mka.SCI
}

func (k *KaY) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()

	s := Status{
		Active:            k.active,
		Authenticated:     k.authenticated,
		Secured:           k.secured,
		Failed:            k.failed,
		ActorPriority:     k.actorPriority,
		KeyServerPriority: k.keyServerPriority,
		KeysDistributed:   k.distKN - 1,
		KeysReceived:      k.rcvdKeys,
		HelloTime:         k.helloTime,
		ActorSCI:          k.actorSCI,
		KeyServerSCI:      k.keyServerSCI,
		CipherSuite:       k.cipherSuite().Name,
		Capability:        k.macsecCapable,
	}
	if pt := k.principal(); pt != nil {
		s.IsKeyServer = pt.isKeyServer
	}
	for _, pt := range k.participants {
		ps := ParticipantStatus{
			CKN:            hex.EncodeToString(pt.ckn),
			MI:             pt.mi,
			MN:             pt.mn,
			Active:         pt.active,
			Participant:    pt.participant,
			Retain:         pt.retain,
			Principal:      pt.principal,
			LivePeers:      len(pt.livePeers),
			PotentialPeers: len(pt.potentialPeers),
			IsKeyServer:    pt.isKeyServer,
			IsElected:      pt.isElected,
			LatestKI:       pt.lki,
			LatestAN:       pt.lan,
			OldKI:          pt.oki,
			Counters:       pt.stats,
		}
		for _, p := range pt.livePeers {
			ps.Peers = append(ps.Peers, PeerStatus{MI: p.MI, MN: p.MN, Type: 1, SCI: p.SCI})
		}
		for _, p := range pt.potentialPeers {
			ps.Peers = append(ps.Peers, PeerStatus{MI: p.MI, MN: p.MN, Type: 2, SCI: p.SCI})
		}
		s.Participants = append(s.Participants, ps)
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// String key=value 文本，每行一项
func (s Status) String() string {
	var b strings.Builder
	state := "Not-Active"
	if s.Active {
		state = "Active"
	}
	fmt.Fprintf(&b, "PAE KaY status=%s\n", state)
	fmt.Fprintf(&b, "Authenticated=%s\n", yesNo(s.Authenticated))
	fmt.Fprintf(&b, "Secured=%s\n", yesNo(s.Secured))
	fmt.Fprintf(&b, "Failed=%s\n", yesNo(s.Failed))
	fmt.Fprintf(&b, "Actor Priority=%d\n", s.ActorPriority)
	fmt.Fprintf(&b, "Key Server Priority=%d\n", s.KeyServerPriority)
	fmt.Fprintf(&b, "Is Key Server=%s\n", yesNo(s.IsKeyServer))
	fmt.Fprintf(&b, "Number of Keys Distributed=%d\n", s.KeysDistributed)
	fmt.Fprintf(&b, "Number of Keys Received=%d\n", s.KeysReceived)
	fmt.Fprintf(&b, "MKA Hello Time=%d\n", s.HelloTime.Milliseconds())
	fmt.Fprintf(&b, "actor_sci=%s\n", s.ActorSCI)
	fmt.Fprintf(&b, "key_server_sci=%s\n", s.KeyServerSCI)
	for i, p := range s.Participants {
		fmt.Fprintf(&b, "participant_idx=%d\n", i)
		fmt.Fprintf(&b, "ckn=%s\n", p.CKN)
		fmt.Fprintf(&b, "mi=%s\n", p.MI)
		fmt.Fprintf(&b, "mn=%d\n", p.MN)
		fmt.Fprintf(&b, "active=%s\n", yesNo(p.Active))
		fmt.Fprintf(&b, "participant=%s\n", yesNo(p.Participant))
		fmt.Fprintf(&b, "retain=%s\n", yesNo(p.Retain))
		fmt.Fprintf(&b, "live_peers=%d\n", p.LivePeers)
		fmt.Fprintf(&b, "potential_peers=%d\n", p.PotentialPeers)
		fmt.Fprintf(&b, "is_key_server=%s\n", yesNo(p.IsKeyServer))
		fmt.Fprintf(&b, "is_elected=%s\n", yesNo(p.IsElected))
	}
	return b.String()
}

// MIB IEEE8021X-PAE-MIB 中 KaY 参与者与对端表的文本形式
func (k *KaY) MIB() string {
	s := k.Status()
	var b strings.Builder
	for _, p := range s.Participants {
		fmt.Fprintf(&b, "ieee8021XKayMkaPartCKN=%s\n", p.CKN)
		fmt.Fprintf(&b, "ieee8021XKayMkaPartCached=false\n")
		fmt.Fprintf(&b, "ieee8021XKayMkaPartActive=%t\n", p.Active)
		fmt.Fprintf(&b, "ieee8021XKayMkaPartRetain=%t\n", p.Retain)
		fmt.Fprintf(&b, "ieee8021XKayMkaPartActivateControl=default\n")
		fmt.Fprintf(&b, "ieee8021XKayMkaPartPrincipal=%t\n", p.Principal)
		for _, peer := range p.Peers {
			fmt.Fprintf(&b, "ieee8021XKayMkaPeerListMI=%s\n", peer.MI)
			fmt.Fprintf(&b, "ieee8021XKayMkaPeerListMN=%d\n", peer.MN)
			fmt.Fprintf(&b, "ieee8021XKayMkaPeerListType=%d\n", peer.Type)
			fmt.Fprintf(&b, "ieee8021XKayMkaPeerListSCI=%s\n", peer.SCI)
		}
	}
	return b.String()
}
