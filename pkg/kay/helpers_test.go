package kay

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/iniwex5/mka-go/pkg/cp"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/zap"
)

var (
	testCKN = []byte{
		0x96, 0x43, 0x7a, 0x93, 0xcc, 0xf1, 0x0d, 0x9d,
		0xfe, 0x34, 0x78, 0x46, 0xcc, 0xe5, 0x2d, 0x7e,
	}
	testCAK = []byte{
		0x01, 0x35, 0x89, 0x9d, 0x8e, 0x4f, 0x5b, 0x73,
		0x2a, 0xc5, 0x56, 0x79, 0xc4, 0x2d, 0x3c, 0x1e,
	}
)

type testClock struct{ t time.Time }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// queueTransport 缓存发出的帧，由 pump 投递
type queueTransport struct {
	frames [][]byte
	err    error
}

func (q *queueTransport) Send(frame []byte) error {
	if q.err != nil {
		return q.err
	}
	q.frames = append(q.frames, append([]byte(nil), frame...))
	return nil
}

func (q *queueTransport) drain() [][]byte {
	out := q.frames
	q.frames = nil
	return out
}

// fakeSecY 记录 SC/SA 的生命周期，同时充当 CP 的受控端口
type fakeSecY struct {
	capability mka.Capability
	calls      []string

	txSCs int
	rxSCs map[*ReceiveSC]bool
	txSAs map[*TransmitSA]bool
	rxSAs map[*ReceiveSA]bool

	portEnabled bool
	protect     bool
	validate    mka.ValidateFrames
	cipherSuite uint64
	offset      mka.ConfOffset

	createRxSCErr error
}

func newFakeSecY() *fakeSecY {
	return &fakeSecY{
		capability: mka.CapIntegAndConf0_30_50,
		rxSCs:      map[*ReceiveSC]bool{},
		txSAs:      map[*TransmitSA]bool{},
		rxSAs:      map[*ReceiveSA]bool{},
	}
}

func (f *fakeSecY) record(op string, an uint8) {
	f.calls = append(f.calls, fmt.Sprintf("%s/%d", op, an))
}

func (f *fakeSecY) GetCapability() (mka.Capability, error) { return f.capability, nil }

func (f *fakeSecY) CreateTransmitSC(*TransmitSC) error { f.txSCs++; return nil }
func (f *fakeSecY) DeleteTransmitSC(*TransmitSC) error { f.txSCs--; return nil }

func (f *fakeSecY) CreateReceiveSC(sc *ReceiveSC) error {
	if f.createRxSCErr != nil {
		return f.createRxSCErr
	}
	f.rxSCs[sc] = true
	return nil
}

func (f *fakeSecY) DeleteReceiveSC(sc *ReceiveSC) error {
	delete(f.rxSCs, sc)
	return nil
}

func (f *fakeSecY) CreateTransmitSA(sa *TransmitSA) error {
	f.record("CreateTransmitSA", sa.AN)
	f.txSAs[sa] = false
	return nil
}

func (f *fakeSecY) EnableTransmitSA(sa *TransmitSA) error {
	f.record("EnableTransmitSA", sa.AN)
	f.txSAs[sa] = true
	return nil
}

func (f *fakeSecY) DisableTransmitSA(sa *TransmitSA) error {
	f.record("DisableTransmitSA", sa.AN)
	f.txSAs[sa] = false
	return nil
}

func (f *fakeSecY) DeleteTransmitSA(sa *TransmitSA) error {
	f.record("DeleteTransmitSA", sa.AN)
	delete(f.txSAs, sa)
	return nil
}

func (f *fakeSecY) CreateReceiveSA(sa *ReceiveSA) error {
	f.record("CreateReceiveSA", sa.AN)
	f.rxSAs[sa] = false
	return nil
}

func (f *fakeSecY) EnableReceiveSA(sa *ReceiveSA) error {
	f.record("EnableReceiveSA", sa.AN)
	f.rxSAs[sa] = true
	return nil
}

func (f *fakeSecY) DisableReceiveSA(sa *ReceiveSA) error {
	f.record("DisableReceiveSA", sa.AN)
	f.rxSAs[sa] = false
	return nil
}

func (f *fakeSecY) DeleteReceiveSA(sa *ReceiveSA) error {
	f.record("DeleteReceiveSA", sa.AN)
	delete(f.rxSAs, sa)
	return nil
}

func (f *fakeSecY) GetReceiveLowestPN(sa *ReceiveSA) (uint32, error) { return sa.LowestPN, nil }

func (f *fakeSecY) SetReceiveLowestPN(sa *ReceiveSA, pn uint32) error {
	sa.LowestPN = pn
	return nil
}

func (f *fakeSecY) GetTransmitNextPN(sa *TransmitSA) (uint32, error) { return sa.NextPN, nil }

func (f *fakeSecY) EnableControlledPort(enabled bool) error { f.portEnabled = enabled; return nil }
func (f *fakeSecY) SetProtectFrames(protect bool) error     { f.protect = protect; return nil }
func (f *fakeSecY) SetReplayProtect(bool, uint32) error     { return nil }
func (f *fakeSecY) SetValidateFrames(v mka.ValidateFrames) error {
	f.validate = v
	return nil
}
func (f *fakeSecY) SetCipherSuite(id uint64) error { f.cipherSuite = id; return nil }
func (f *fakeSecY) SetConfidentialityOffset(o mka.ConfOffset) error {
	f.offset = o
	return nil
}

// enabledTxANs 已启用的发送 SA 的 AN
func (f *fakeSecY) enabledTxANs() []uint8 {
	var out []uint8
	for sa, on := range f.txSAs {
		if on {
			out = append(out, sa.AN)
		}
	}
	return out
}

func (f *fakeSecY) enabledRxANs() []uint8 {
	var out []uint8
	for sa, on := range f.rxSAs {
		if on {
			out = append(out, sa.AN)
		}
	}
	return out
}

// node 一个端口：KaY + CP + 假 SecY + 帧队列
type node struct {
	k    *KaY
	pt   *Participant
	tr   *queueTransport
	secy *fakeSecY
	cp   *cp.Machine
}

func newBareNode(t *testing.T, clk *testClock, mac byte, prio uint8) *node {
	t.Helper()
	cfg := DefaultConfig()
	cfg.IfName = fmt.Sprintf("mka%d", mac)
	cfg.Addr = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, mac}
	cfg.Priority = prio

	n := &node{tr: &queueTransport{}, secy: newFakeSecY()}
	k, err := New(cfg, Deps{
		Transport: n.tr,
		SecY:      n.secy,
		Logger:    zap.NewNop(),
		NewCP: func(sa SAControl, s Settings) CP {
			n.cp = cp.New(sa, n.secy, cp.Config{
				Protect:       s.Protect,
				ReplayProtect: s.ReplayProtect,
				ReplayWindow:  s.ReplayWindow,
				Validate:      s.Validate,
				TransmitDelay: cfg.LifeTime,
				RetireDelay:   cfg.SAKRetireTime,
				Logger:        zap.NewNop(),
				Now:           clk.now,
			})
			return n.cp
		},
	})
	if err != nil {
		t.Fatalf("创建 KaY 失败: %v", err)
	}
	k.now = clk.now
	n.k = k
	return n
}

func newNode(t *testing.T, clk *testClock, mac byte, prio uint8) *node {
	t.Helper()
	n := newBareNode(t, clk, mac, prio)
	pt, err := n.k.CreateMKA(testCKN, testCAK, 0, ModePSK, false)
	if err != nil {
		t.Fatalf("创建参与者失败: %v", err)
	}
	n.pt = pt
	return n
}

func (n *node) hello() {
	n.k.mu.Lock()
	defer n.k.mu.Unlock()
	n.k.hello(n.pt)
}

// pump 把每个节点发出的帧投递给其他节点，直到没有新帧
func pump(t *testing.T, nodes ...*node) {
	t.Helper()
	for i := 0; i < 100; i++ {
		moved := false
		for _, src := range nodes {
			for _, f := range src.tr.drain() {
				moved = true
				for _, dst := range nodes {
					if dst != src {
						_ = dst.k.Receive(f)
					}
				}
			}
		}
		if !moved {
			return
		}
	}
	t.Fatal("MKPDU 交换没有收敛")
}

func round(t *testing.T, nodes ...*node) {
	t.Helper()
	for _, n := range nodes {
		n.hello()
		pump(t, nodes...)
	}
}

func converge(t *testing.T, nodes ...*node) {
	t.Helper()
	for i := 0; i < 4; i++ {
		round(t, nodes...)
	}
}
