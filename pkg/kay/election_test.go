package kay

import (
	"net"
	"testing"

	"github.com/iniwex5/mka-go/pkg/mka"
)

func TestElectKeyServer(t *testing.T) {
	self := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x05}
	lower := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01}
	higher := net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x09}

	cases := []struct {
		name      string
		peerPrio  uint8
		peerAddr  net.HardwareAddr
		peerKS    bool
		wantSelf  bool
		wantPeer  bool
		principal bool
	}{
		{"对端优先级更高", 5, higher, true, false, true, true},
		{"本端优先级更高", 20, lower, true, true, false, true},
		{"优先级相同比较 MAC 本端小", 10, higher, true, true, false, true},
		{"优先级相同比较 MAC 对端小", 10, lower, true, false, true, true},
		{"对端不愿当密钥服务器", 0, lower, false, true, false, true},
		{"优先级与 SCI 完全相同", 10, self, true, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := newTestClock()
			n := newNode(t, clk, 5, 10)
			peerSCI := mka.NewSCI(tc.peerAddr, DEFAULT_SCI_PORT)

			n.k.mu.Lock()
			defer n.k.mu.Unlock()
			n.pt.livePeers = peerList{{
				MI:                mka.MI{0xaa},
				SCI:               peerSCI,
				IsKeyServer:       tc.peerKS,
				KeyServerPriority: tc.peerPrio,
				MACsecDesired:     true,
				MACsecCapability:  mka.CapIntegAndConf,
			}}
			n.pt.electKeyServer()

			if n.pt.isKeyServer != tc.wantSelf {
				t.Errorf("isKeyServer: got %v, want %v", n.pt.isKeyServer, tc.wantSelf)
			}
			if tc.wantSelf && (n.k.keyServerSCI != n.k.actorSCI || !n.pt.newSAK) {
				t.Errorf("本端当选后应记录自身 SCI 并请求新 SAK")
			}
			if tc.wantPeer && n.k.keyServerSCI != peerSCI {
				t.Errorf("keyServerSCI: got %s, want %s", n.k.keyServerSCI, peerSCI)
			}
			if n.pt.principal != tc.principal || n.pt.isElected != tc.principal {
				t.Errorf("principal=%v isElected=%v, want %v", n.pt.principal, n.pt.isElected, tc.principal)
			}
		})
	}
}

func TestElectWithoutKeyServerCandidate(t *testing.T) {
	clk := newTestClock()
	n := newBareNode(t, clk, 1, 10)
	pt, err := n.k.CreateMKA(testCKN, testCAK, 0, ModeEAP, false)
	if err != nil {
		t.Fatal(err)
	}

	n.k.mu.Lock()
	defer n.k.mu.Unlock()
	pt.livePeers = peerList{{MI: mka.MI{1}, SCI: mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 2}, 1)}}
	pt.electKeyServer()
	if pt.principal || pt.isKeyServer || pt.isElected {
		t.Errorf("无候选时不应有密钥服务器: principal=%v ks=%v", pt.principal, pt.isKeyServer)
	}
}

func TestDecideMACsecUse(t *testing.T) {
	cases := []struct {
		name     string
		desired  bool
		cap      mka.Capability
		wantUse  bool
		wantCap  mka.Capability
		wantAuth bool
	}{
		{"取双方较低能力", true, mka.CapIntegrity, true, mka.CapIntegrity, false},
		{"对端不期望 MACsec", false, mka.CapIntegAndConf, false, mka.CapNotImplemented, true},
		{"对端不支持 MACsec", true, mka.CapNotImplemented, false, mka.CapNotImplemented, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := newTestClock()
			n := newNode(t, clk, 1, 10)
			n.k.mu.Lock()
			defer n.k.mu.Unlock()

			n.pt.livePeers = peerList{{
				MI:               mka.MI{2},
				SCI:              mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 2}, 1),
				MACsecDesired:    tc.desired,
				MACsecCapability: tc.cap,
			}}
			n.pt.electKeyServer()
			n.pt.decideMACsecUse()

			if n.pt.advisedDesired != tc.wantUse || n.pt.advisedCapability != tc.wantCap {
				t.Errorf("决定错误: desired=%v cap=%s", n.pt.advisedDesired, n.pt.advisedCapability)
			}
			if n.k.authenticated != tc.wantAuth || n.k.secured == tc.wantAuth {
				t.Errorf("authenticated=%v secured=%v", n.k.authenticated, n.k.secured)
			}
		})
	}
}

func TestComparePriority(t *testing.T) {
	a := mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 1}, 1)
	b := mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 2}, 1)
	if comparePriority(1, b, 2, a) >= 0 {
		t.Error("优先级数值小者优先")
	}
	if comparePriority(7, a, 7, b) >= 0 || comparePriority(7, b, 7, a) <= 0 {
		t.Error("优先级相同时 MAC 小者优先")
	}
	if comparePriority(7, a, 7, a) != 0 {
		t.Error("完全相同应返回 0")
	}
}
