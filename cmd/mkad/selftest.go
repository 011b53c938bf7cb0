package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/driver"
	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// selftestCmd 在内存链路上运行两个 KaY，确认能建立安全通道并完成一次换钥
type selftestCmd struct {
	hello    time.Duration
	timeout  time.Duration
	policy   string
	logLevel string
}

func (*selftestCmd) Name() string { return "selftest" }

func (*selftestCmd) Synopsis() string {
	return "在内存链路上运行两个 MKA 实体并验证密钥协商"
}

func (*selftestCmd) Usage() string {
	return "mkad selftest [-hello 100ms] [-timeout 10s] [-policy should-secure]\n"
}

func (s *selftestCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&s.hello, "hello", 100*time.Millisecond, "MKA hello 周期")
	f.DurationVar(&s.timeout, "timeout", 10*time.Second, "等待建立安全通道的时间")
	f.StringVar(&s.policy, "policy", "should-secure", "MACsec 策略")
	f.StringVar(&s.logLevel, "level", "warn", "日志级别")
}

func (s *selftestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := logger.Init(s.logLevel, "console"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	defer logger.Sync()
	if err := s.run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "自检失败:", err)
		return subcommands.ExitFailure
	}
	fmt.Println("自检通过")
	return subcommands.ExitSuccess
}

type station struct {
	name string
	k    *kay.KaY
	secy *driver.SoftSecY
	conn driver.FrameConn
}

func (s *selftestCmd) newStation(mac byte, conn driver.FrameConn, ckn, cak []byte) (*station, error) {
	policy, err := kay.ParsePolicy(s.policy)
	if err != nil {
		return nil, err
	}
	cfg := kay.DefaultConfig()
	cfg.IfName = fmt.Sprintf("self%d", mac)
	cfg.Addr = net.HardwareAddr{0x02, 0x00, 0x5e, 0x00, 0x00, mac}
	cfg.Policy = policy
	cfg.HelloTime = s.hello
	cfg.LifeTime = 3 * s.hello
	cfg.SAKRetireTime = s.hello
	cfg.DuplicateSCIGrace = time.Duration(float64(s.hello) * kay.DUPLICATE_SCI_GRACE_MUL)

	log := logger.Named(cfg.IfName)
	st := &station{
		name: cfg.IfName,
		conn: conn,
		secy: driver.NewSoftSecY(mka.CapIntegAndConf0_30_50, nil, "", log.Named("secy")),
	}
	st.k, err = kay.New(cfg, kay.Deps{
		Transport: conn,
		SecY:      st.secy,
		NewCP:     driver.NewCPFactory(st.secy, cfg, log.Named("cp")),
		Logger:    log.Named("kay"),
	})
	if err != nil {
		return nil, err
	}
	if _, err := st.k.CreateMKA(ckn, cak, 0, kay.ModePSK, false); err != nil {
		return nil, err
	}
	return st, nil
}

func (st *station) close() error {
	st.k.Stop()
	return multierr.Combine(st.k.Close(), st.secy.Close(), st.conn.Close())
}

// agreedKey 两端使用同一个 SAK 收发时返回该 SAK 的 KI
func agreedKey(a, b *station) (mka.KeyIdentifier, bool) {
	sa, sb := a.k.Status(), b.k.Status()
	if !sa.Secured || !sb.Secured || len(sa.Participants) == 0 || len(sb.Participants) == 0 {
		return mka.KeyIdentifier{}, false
	}
	ki := sa.Participants[0].LatestKI
	if ki.IsZero() || sb.Participants[0].LatestKI != ki {
		return mka.KeyIdentifier{}, false
	}
	for _, st := range []*station{a, b} {
		snap := st.secy.Snapshot()
		if len(snap.TxSAs) == 0 || !snap.PortEnabled {
			return mka.KeyIdentifier{}, false
		}
		var inUse bool
		for _, sa := range snap.TxSAs {
			inUse = inUse || (sa.Enabled && sa.KI == ki)
		}
		if !inUse {
			return mka.KeyIdentifier{}, false
		}
	}
	return ki, true
}

func waitFor(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (s *selftestCmd) run(ctx context.Context) (err error) {
	ckn, err := crypto.RandomBytes(16)
	if err != nil {
		return err
	}
	cak, err := crypto.RandomBytes(16)
	if err != nil {
		return err
	}
	defer crypto.Zero(cak)

	ca, cb := driver.Pipe(64)
	a, err := s.newStation(1, ca, ckn, cak)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.close()) }()
	b, err := s.newStation(2, cb, ckn, cak)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, b.close()) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	for _, st := range []*station{a, b} {
		g.Go(func() error {
			return driver.Serve(gctx, st.conn, st.k.Receive, logger.Named(st.name))
		})
		st.k.Start()
	}
	defer func() {
		cancel()
		err = multierr.Append(err, g.Wait())
	}()

	if policy, _ := kay.ParsePolicy(s.policy); policy == kay.DoNotSecure {
		return waitFor(gctx, func() bool {
			return a.k.Status().Authenticated && b.k.Status().Authenticated
		})
	}

	var first mka.KeyIdentifier
	if err := waitFor(gctx, func() (ok bool) {
		first, ok = agreedKey(a, b)
		return ok
	}); err != nil {
		return fmt.Errorf("未建立安全通道: %w", err)
	}
	logger.Info("安全通道已建立", logger.Stringer("ki", first))

	// 由密钥服务器一端强制换钥
	server := a
	if !a.k.Status().IsKeyServer {
		server = b
	}
	if err := server.k.NewSAK(); err != nil {
		return err
	}
	if err := waitFor(gctx, func() bool {
		ki, ok := agreedKey(a, b)
		return ok && ki != first
	}); err != nil {
		return fmt.Errorf("换钥未完成: %w", err)
	}
	fmt.Print(a.k.Status().String(), b.k.Status().String())
	return nil
}
