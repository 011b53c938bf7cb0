package kay

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/mka"
)

func TestGenerateNewSAK(t *testing.T) {
	clk := newTestClock()
	n := newNode(t, clk, 1, 10)
	n.k.mu.Lock()
	defer n.k.mu.Unlock()
	pt := n.pt

	if err := pt.generateNewSAK(); !errors.Is(err, ErrNoLivePeers) {
		t.Fatalf("got %v, want ErrNoLivePeers", err)
	}

	peer := &Peer{MI: mka.MI{9}, SAKUsed: true, Expire: clk.now().Add(MKA_LIFE_TIME)}
	pt.livePeers = peerList{peer}
	if err := pt.generateNewSAK(); err != nil {
		t.Fatalf("生成 SAK 失败: %v", err)
	}
	first := pt.newKey
	if first.KI != (mka.KeyIdentifier{MI: pt.mi, KN: 1}) || first.AN != 0 {
		t.Errorf("KI/AN 错误: %s/%d", first.KI, first.AN)
	}
	if len(first.Key) != 16 || first.Refs() != 1 || pt.sak(first.KI) != first {
		t.Errorf("新 SAK 未正确登记: len=%d refs=%d", len(first.Key), first.Refs())
	}
	if peer.SAKUsed {
		t.Error("新 SAK 生成后对端的使用标志应清除")
	}
	if n.k.distKN != 2 || n.k.distAN != 1 {
		t.Errorf("distKN=%d distAN=%d", n.k.distKN, n.k.distAN)
	}

	if err := pt.generateNewSAK(); !errors.Is(err, ErrTooSoon) {
		t.Fatalf("got %v, want ErrTooSoon", err)
	}
	clk.advance(n.k.cfg.LifeTime)
	if err := pt.generateNewSAK(); err != nil {
		t.Fatalf("生存期后生成失败: %v", err)
	}
	if pt.newKey.KI.KN != 2 || pt.newKey.AN != 1 || bytes.Equal(pt.newKey.Key, first.Key) {
		t.Errorf("第二个 SAK 错误: %s/%d", pt.newKey.KI, pt.newKey.AN)
	}
}

func TestTickKeepsRequestWhenTooSoon(t *testing.T) {
	clk := newTestClock()
	n := newNode(t, clk, 1, 10)
	n.k.mu.Lock()
	n.pt.livePeers = peerList{{MI: mka.MI{9}, Expire: clk.now().Add(MKA_LIFE_TIME * 10)}}
	n.k.distTime = clk.now()
	n.pt.newSAK = true
	n.k.mu.Unlock()

	n.hello()
	if !n.pt.newSAK || n.pt.newKey != nil {
		t.Fatal("上一个 SAK 未满生存期时应保留请求")
	}
	clk.advance(n.k.cfg.LifeTime)
	n.hello()
	if n.pt.newSAK || n.pt.newKey == nil || !n.pt.toDistSAK {
		t.Fatal("生存期满后应生成并分发 SAK")
	}
}

// keyServerPeer 让 pt 把 sci 视为当选的密钥服务器
func keyServerPeer(n *node, sci mka.SCI) *Peer {
	p := &Peer{MI: mka.MI{0x5a}, SCI: sci, IsKeyServer: true, Expire: n.k.now().Add(MKA_LIFE_TIME)}
	n.pt.livePeers = peerList{p}
	n.pt.isKeyServer = false
	n.pt.principal = true
	n.pt.currentPeerID = mka.PeerID{MI: p.MI, MN: 1}
	n.k.keyServerSCI = sci
	return p
}

func TestHandleDistSAK(t *testing.T) {
	serverSCI := mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 9}, 1)

	t.Run("短封装密钥", func(t *testing.T) {
		n := newNode(t, newTestClock(), 1, 10)
		n.k.mu.Lock()
		defer n.k.mu.Unlock()
		keyServerPeer(n, serverSCI)
		d := &mka.DistSAKParamSet{KN: 1, CipherSuite: mka.DEFAULT_CS_ID, WrappedSAK: make([]byte, 16)}
		if err := n.pt.handleDistSAK(d); !errors.Is(err, ErrDistSAK) {
			t.Fatalf("got %v, want ErrDistSAK", err)
		}
	})

	t.Run("发送方不是密钥服务器", func(t *testing.T) {
		n := newNode(t, newTestClock(), 1, 10)
		n.k.mu.Lock()
		defer n.k.mu.Unlock()
		keyServerPeer(n, serverSCI)
		n.k.keyServerSCI = mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 8}, 1)
		d := &mka.DistSAKParamSet{KN: 1, WrappedSAK: make([]byte, 24)}
		if err := n.pt.handleDistSAK(d); !errors.Is(err, ErrDistSAK) {
			t.Fatalf("got %v, want ErrDistSAK", err)
		}
	})

	t.Run("错误的 KEK", func(t *testing.T) {
		n := newNode(t, newTestClock(), 1, 10)
		n.k.mu.Lock()
		defer n.k.mu.Unlock()
		keyServerPeer(n, serverSCI)
		wrapped, err := crypto.AESWrap(make([]byte, 16), make([]byte, 16))
		if err != nil {
			t.Fatal(err)
		}
		d := &mka.DistSAKParamSet{KN: 1, CipherSuite: mka.DEFAULT_CS_ID, WrappedSAK: wrapped}
		if err := n.pt.handleDistSAK(d); !errors.Is(err, ErrDistSAK) {
			t.Fatalf("got %v, want ErrDistSAK", err)
		}
		if len(n.pt.sakList) != 0 {
			t.Error("解封装失败不应安装 SAK")
		}
	})

	t.Run("安装并去重", func(t *testing.T) {
		n := newNode(t, newTestClock(), 1, 10)
		n.k.mu.Lock()
		defer n.k.mu.Unlock()
		p := keyServerPeer(n, serverSCI)
		sak := bytes.Repeat([]byte{0x42}, 16)
		wrapped, err := crypto.AESWrap(n.pt.kek, sak)
		if err != nil {
			t.Fatal(err)
		}
		d := &mka.DistSAKParamSet{DAN: 2, KN: 7, CipherSuite: mka.DEFAULT_CS_ID, WrappedSAK: wrapped}
		for i := 0; i < 2; i++ {
			if err := n.pt.handleDistSAK(d); err != nil {
				t.Fatalf("第 %d 次处理失败: %v", i+1, err)
			}
		}
		key := n.pt.sak(mka.KeyIdentifier{MI: p.MI, KN: 7})
		if key == nil || !bytes.Equal(key.Key, sak) || key.AN != 2 {
			t.Fatal("SAK 未正确安装")
		}
		if len(n.pt.sakList) != 1 || n.k.rcvdKeys != 1 {
			t.Errorf("重复分发不应重复安装: list=%d rcvd=%d", len(n.pt.sakList), n.k.rcvdKeys)
		}
		if !n.pt.toUseSAK || !n.pt.advisedDesired || !n.k.secured {
			t.Error("安装后应开始通告 SAK 使用")
		}
	})

	t.Run("不使用 MACsec", func(t *testing.T) {
		n := newNode(t, newTestClock(), 1, 10)
		n.k.mu.Lock()
		defer n.k.mu.Unlock()
		keyServerPeer(n, serverSCI)
		if err := n.pt.handleDistSAK(&mka.DistSAKParamSet{}); err != nil {
			t.Fatal(err)
		}
		if n.pt.advisedDesired || !n.k.authenticated || n.k.secured {
			t.Error("空 Distributed-SAK 应转为仅认证")
		}
	})
}

func TestHandleSAKUseUnknownKey(t *testing.T) {
	n := newNode(t, newTestClock(), 1, 10)
	n.k.mu.Lock()
	defer n.k.mu.Unlock()
	p := keyServerPeer(n, mka.NewSCI(net.HardwareAddr{2, 0, 0, 0, 0, 9}, 1))

	s := &mka.SAKUseParamSet{LTx: true, LRx: true, LatestKI: mka.KeyIdentifier{MI: p.MI, KN: 3}}
	if err := n.pt.handleSAKUse(s); !errors.Is(err, ErrSAKNotFound) {
		t.Fatalf("got %v, want ErrSAKNotFound", err)
	}
	if err := n.pt.handleSAKUse(&mka.SAKUseParamSet{Empty: true}); err != nil {
		t.Fatalf("空 SAK-Use 应被接受: %v", err)
	}
}

func TestPeerPNExhaustionRequestsNewSAK(t *testing.T) {
	for _, keyServer := range []bool{true, false} {
		clk := newTestClock()
		n := newNode(t, clk, 1, 10)
		n.k.mu.Lock()
		pt := n.pt
		peer := &Peer{MI: mka.MI{9}, Expire: clk.now().Add(MKA_LIFE_TIME)}
		pt.livePeers = peerList{peer}
		pt.principal = true
		pt.currentPeerID = mka.PeerID{MI: peer.MI, MN: 1}
		if err := pt.generateNewSAK(); err != nil {
			n.k.mu.Unlock()
			t.Fatalf("生成 SAK 失败: %v", err)
		}
		key := pt.newKey
		pt.isKeyServer = keyServer
		pt.newSAK = false

		s := &mka.SAKUseParamSet{
			LTx:       true,
			LRx:       true,
			LAN:       key.AN,
			LatestKI:  key.KI,
			LatestLPN: n.k.cfg.PNExhaustion + 1,
		}
		// 尚未创建接收 SA，处理本身报错，但耗尽检测先于 SA 查找
		_ = pt.handleSAKUse(s)
		got := pt.newSAK
		n.k.mu.Unlock()
		if got != keyServer {
			t.Fatalf("keyServer=%v: newSAK=%v", keyServer, got)
		}
	}
}
