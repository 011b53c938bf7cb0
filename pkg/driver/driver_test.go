package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func TestNetToolError(t *testing.T) {
	err := wrapErr("link del", "tap0", fmt.Errorf("获取接口 tap0 失败: %w", syscall.ENODEV))
	if got := err.Error(); got != "link del tap0 失败: 获取接口 tap0 失败: no such device" {
		t.Errorf("错误信息: %q", got)
	}
	if !IsNotFound(err) {
		t.Error("ENODEV 应识别为接口不存在")
	}
	if IsNotFound(errors.New("其他错误")) || wrapErr("x", "", nil) != nil {
		t.Error("误判")
	}
}

func TestPortTxnRollbackOrder(t *testing.T) {
	tx := (&NetTools{}).Begin()
	var order []int
	boom := errors.New("撤销失败")
	tx.Defer(func() error { order = append(order, 1); return nil })
	tx.Defer(func() error { order = append(order, 2); return boom })
	tx.Defer(func() error { order = append(order, 3); return boom })

	err := tx.Rollback()
	if fmt.Sprint(order) != "[3 2 1]" {
		t.Errorf("回滚顺序: %v", order)
	}
	if n := len(multierr.Errors(err)); n != 2 {
		t.Errorf("应汇总两个错误: %v", err)
	}

	tx.Defer(func() error { return boom })
	tx.Commit()
	if err := tx.Rollback(); err != nil {
		t.Errorf("提交后回滚应为空操作: %v", err)
	}
}

func TestServeDeliversUntilCancelled(t *testing.T) {
	a, b := Pipe(4)
	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan []byte, 4)
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, b, func(f []byte) error {
			got <- f
			return errors.New("忽略")
		}, zap.NewNop())
	}()

	for i := byte(0); i < 2; i++ {
		if err := a.Send([]byte{i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(0); i < 2; i++ {
		select {
		case f := <-got:
			if len(f) != 1 || f[0] != i {
				t.Fatalf("第 %d 帧: %v", i, f)
			}
		case <-time.After(time.Second):
			t.Fatal("帧未送达")
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("取消后 Serve 应正常返回: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve 未退出")
	}
	if err := b.Send([]byte{9}); !errors.Is(err, net.ErrClosed) {
		t.Errorf("关闭后发送: got %v", err)
	}
}

func TestPipeDropsWhenFull(t *testing.T) {
	a, _ := Pipe(1)
	if err := a.Send([]byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := a.Send([]byte{2}); !errors.Is(err, errPipeFull) {
		t.Fatalf("got %v, want errPipeFull", err)
	}
}

type station struct {
	k    *kay.KaY
	secy *SoftSecY
	conn FrameConn
}

func newStation(t *testing.T, mac byte, conn FrameConn) *station {
	t.Helper()
	cfg := kay.DefaultConfig()
	cfg.IfName = fmt.Sprintf("eth%d", mac)
	cfg.Addr = net.HardwareAddr{0x02, 0, 0, 0, 0, mac}
	cfg.HelloTime = 50 * time.Millisecond
	cfg.LifeTime = time.Second
	cfg.SAKRetireTime = 100 * time.Millisecond
	cfg.DuplicateSCIGrace = 75 * time.Millisecond

	s := &station{conn: conn, secy: NewSoftSecY(mka.CapIntegAndConf, nil, "", zap.NewNop())}
	k, err := kay.New(cfg, kay.Deps{
		Transport: conn,
		SecY:      s.secy,
		NewCP:     NewCPFactory(s.secy, cfg, zap.NewNop()),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("创建 KaY 失败: %v", err)
	}
	ckn := []byte{0x96, 0x43, 0x7a, 0x93, 0xcc, 0xf1, 0x0d, 0x9d, 0xfe, 0x34, 0x78, 0x46, 0xcc, 0xe5, 0x2d, 0x7e}
	cak := []byte{0x01, 0x35, 0x89, 0x9d, 0x8e, 0x4f, 0x5b, 0x73, 0x2a, 0xc5, 0x56, 0x79, 0xc4, 0x2d, 0x3c, 0x1e}
	if _, err := k.CreateMKA(ckn, cak, 0, kay.ModePSK, false); err != nil {
		t.Fatalf("创建参与者失败: %v", err)
	}
	s.k = k
	return s
}

// secured 两端使用同一个 SAK 收发且受控端口已打开
func secured(a, b *station) bool {
	sa, sb := a.k.Status(), b.k.Status()
	if !sa.Secured || !sb.Secured || len(sa.Participants) != 1 || len(sb.Participants) != 1 {
		return false
	}
	ki := sa.Participants[0].LatestKI
	if ki.IsZero() || sb.Participants[0].LatestKI != ki {
		return false
	}
	for _, s := range []*station{a, b} {
		snap := s.secy.Snapshot()
		if !snap.PortEnabled || len(snap.TxSAs) != 1 || !snap.TxSAs[0].Enabled || snap.TxSAs[0].KI != ki {
			return false
		}
	}
	return true
}

func TestPipeSecuresTwoPorts(t *testing.T) {
	ca, cb := Pipe(64)
	a, b := newStation(t, 1, ca), newStation(t, 2, cb)

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range []*station{a, b} {
		g.Go(func() error { return Serve(gctx, s.conn, s.k.Receive, zap.NewNop()) })
		s.k.Start()
	}
	defer func() {
		cancel()
		_ = g.Wait()
	}()

	deadline := time.Now().Add(10 * time.Second)
	for !secured(a, b) {
		if time.Now().After(deadline) {
			t.Fatalf("安全通道未建立: a=%+v b=%+v", a.k.Status(), b.k.Status())
		}
		time.Sleep(20 * time.Millisecond)
	}
	if st := a.k.Status(); !st.IsKeyServer {
		t.Error("MAC 较小的一端应当选密钥服务器")
	}

	for _, s := range []*station{a, b} {
		if err := s.k.Close(); err != nil {
			t.Errorf("关闭 KaY: %v", err)
		}
		if err := s.secy.Close(); err != nil {
			t.Errorf("KaY 关闭后不应残留 SA: %v", err)
		}
	}
}
