package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"
	"github.com/iniwex5/mka-go/pkg/config"
	"github.com/iniwex5/mka-go/pkg/driver"
	"github.com/iniwex5/mka-go/pkg/kay"
	"github.com/iniwex5/mka-go/pkg/logger"
	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runCmd 以 MKAD_* 环境变量为配置运行守护进程
type runCmd struct {
	capability string
}

func (*runCmd) Name() string { return "run" }

func (*runCmd) Synopsis() string {
	return "在端口上运行 MKA，配置取自 MKAD_* 环境变量"
}

func (*runCmd) Usage() string {
	return `mkad run [-capability integrity|conf|conf-offset]

SIGUSR1 输出 MIB，SIGUSR2 强制重新生成 SAK。
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.capability, "capability", "conf-offset", "SecY 的 MACsec 能力: integrity, conf, conf-offset")
}

func parseCapability(s string) (mka.Capability, error) {
	switch s {
	case "integrity":
		return mka.CapIntegrity, nil
	case "conf":
		return mka.CapIntegAndConf, nil
	case "conf-offset", "":
		return mka.CapIntegAndConf0_30_50, nil
	default:
		return 0, fmt.Errorf("未知 SecY 能力: %s", s)
	}
}

func (r *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	capability, err := parseCapability(r.capability)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	defer logger.Sync()

	if err := run(ctx, cfg, capability); err != nil {
		logger.Error("mkad 退出", logger.Err(err))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// port 一个已打开的 MKA 端口
type port struct {
	nt   *driver.NetTools
	ns   *driver.NetNS
	conn driver.FrameConn
	secy *driver.SoftSecY
	k    *kay.KaY
}

func (p *port) close() error {
	var err error
	if p.k != nil {
		p.k.Stop()
		err = multierr.Append(err, p.k.Close())
	}
	if p.secy != nil {
		err = multierr.Append(err, p.secy.Close())
	}
	if p.conn != nil {
		err = multierr.Append(err, p.conn.Close())
	}
	if p.nt != nil {
		p.nt.Close()
	}
	if p.ns != nil {
		p.ns.Close()
	}
	return err
}

// openPort 打开传输、配置受控端口并创建 KaY，失败时撤销已做的链路修改
func openPort(cfg *config.Config, capability mka.Capability, log *zap.Logger) (_ *port, err error) {
	p := &port{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, p.close())
		}
	}()

	if cfg.NetNS != "" {
		if p.ns, err = driver.OpenNetNS(cfg.NetNS); err != nil {
			return nil, err
		}
		if p.nt, err = driver.NewNetToolsIn(p.ns); err != nil {
			return nil, err
		}
	} else {
		p.nt = driver.NewNetTools()
	}
	inNS := func(fn func() error) error {
		if p.ns == nil {
			return fn()
		}
		return p.ns.RunInNS(fn)
	}

	txn := p.nt.Begin()
	defer func() {
		if err != nil {
			err = multierr.Append(err, txn.Rollback())
		}
	}()

	switch cfg.Transport {
	case config.TransportTAP:
		err = inNS(func() error {
			tap, err := driver.OpenTAP(p.nt, cfg.Iface)
			if err != nil {
				return err
			}
			p.conn = tap
			return nil
		})
	default:
		if err = txn.SetLinkUp(cfg.Iface); err != nil {
			return nil, err
		}
		var ifindex int
		if ifindex, err = p.nt.LinkIndex(cfg.Iface); err != nil {
			return nil, err
		}
		err = inNS(func() error {
			pc, err := driver.ListenPacket(ifindex)
			if err != nil {
				return err
			}
			p.conn = pc
			return nil
		})
	}
	if err != nil {
		return nil, err
	}

	addr, err := p.nt.LinkHardwareAddr(cfg.Iface)
	if err != nil {
		return nil, err
	}

	var gate driver.PortGate
	if cfg.MACsecIface != "" {
		mtu, err := p.nt.LinkMTU(cfg.Iface)
		if err != nil {
			return nil, err
		}
		if err := txn.SetMTU(cfg.MACsecIface, mtu-driver.MACsecOverhead); err != nil {
			return nil, err
		}
		// 受控端口在 SAK 生效前保持关闭
		if err := txn.SetLinkDown(cfg.MACsecIface); err != nil {
			return nil, err
		}
		gate = p.nt
	}
	p.secy = driver.NewSoftSecY(capability, gate, cfg.MACsecIface, log.Named("secy"))

	kc := cfg.KaYConfig(addr)
	p.k, err = kay.New(kc, kay.Deps{
		Transport: p.conn,
		SecY:      p.secy,
		NewCP:     driver.NewCPFactory(p.secy, kc, log.Named("cp")),
		Logger:    log.Named("kay"),
	})
	if err != nil {
		return nil, err
	}

	ckn, _ := cfg.CKNBytes()
	cak, _ := cfg.CAKBytes()
	if _, err = p.k.CreateMKA(ckn, cak, 0, kay.ModePSK, false); err != nil {
		return nil, err
	}
	txn.Commit()
	return p, nil
}

func run(ctx context.Context, cfg *config.Config, capability mka.Capability) (err error) {
	log := logger.Named("mkad")
	p, err := openPort(cfg, capability, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, p.close()) }()

	p.k.Start()
	log.Info("mkad 已启动",
		logger.String("iface", cfg.Iface),
		logger.String("macsec", cfg.MACsecIface),
		logger.String("transport", cfg.Transport),
		logger.Stringer("sci", p.k.ActorSCI()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return driver.Serve(gctx, p.conn, p.k.Receive, log)
	})
	g.Go(func() error {
		return statusLoop(gctx, p.k, cfg.StatusInterval, log)
	})
	g.Go(func() error {
		return signalLoop(gctx, p.k, log)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("mkad 正在退出")
	return nil
}

// statusLoop 周期性记录 KaY 状态，interval 为 0 时不输出
func statusLoop(ctx context.Context, k *kay.KaY, interval time.Duration, log *zap.Logger) error {
	if interval == 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s := k.Status()
			fields := []zap.Field{
				logger.Bool("secured", s.Secured),
				logger.Bool("key_server", s.IsKeyServer),
				logger.Stringer("key_server_sci", s.KeyServerSCI),
				logger.String("cipher_suite", s.CipherSuite),
			}
			for _, p := range s.Participants {
				fields = append(fields,
					logger.Int("live_peers", p.LivePeers),
					logger.Stringer("latest_ki", p.LatestKI))
			}
			log.Info("MKA 状态", fields...)
		}
	}
}

// signalLoop SIGUSR1 输出 MIB，SIGUSR2 请求新 SAK
func signalLoop(ctx context.Context, k *kay.KaY, log *zap.Logger) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				fmt.Fprint(os.Stdout, k.Status().String(), k.MIB())
			case syscall.SIGUSR2:
				if err := k.NewSAK(); err != nil {
					log.Warn("请求新 SAK 失败", logger.Err(err))
				}
			}
		}
	}
}
