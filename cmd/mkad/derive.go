package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/google/subcommands"
	"github.com/iniwex5/mka-go/pkg/crypto"
)

// deriveCmd 离线计算 MKA 密钥层次，用于与对端配置核对
type deriveCmd struct {
	msk, sid   string
	mac1, mac2 string
	cak, ckn   string
	keyLen     int
}

func (*deriveCmd) Name() string { return "derive" }

func (*deriveCmd) Synopsis() string {
	return "由 EAP MSK 派生 CAK/CKN，或由 CAK/CKN 派生 KEK/ICK"
}

func (*deriveCmd) Usage() string {
	return `mkad derive -msk <hex> -sid <hex> -mac1 <mac> -mac2 <mac> [-len 16|32]
mkad derive -cak <hex> -ckn <hex>
`
}

func (d *deriveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&d.msk, "msk", "", "EAP MSK (十六进制)")
	f.StringVar(&d.sid, "sid", "", "EAP Session-Id (十六进制)")
	f.StringVar(&d.mac1, "mac1", "", "一端的 MAC 地址")
	f.StringVar(&d.mac2, "mac2", "", "另一端的 MAC 地址")
	f.StringVar(&d.cak, "cak", "", "CAK (十六进制)")
	f.StringVar(&d.ckn, "ckn", "", "CKN (十六进制)")
	f.IntVar(&d.keyLen, "len", 16, "CAK 长度 (16 或 32)")
}

func (d *deriveCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := d.derive(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (d *deriveCmd) derive(w io.Writer) error {
	var cak, ckn []byte
	var err error
	switch {
	case d.msk != "":
		if cak, ckn, err = d.fromMSK(); err != nil {
			return err
		}
		fmt.Fprintf(w, "CAK=%x\nCKN=%x\n", cak, ckn)
	case d.cak != "" && d.ckn != "":
		if cak, err = hex.DecodeString(d.cak); err != nil {
			return fmt.Errorf("-cak: %w", err)
		}
		if ckn, err = hex.DecodeString(d.ckn); err != nil {
			return fmt.Errorf("-ckn: %w", err)
		}
	default:
		return errors.New("需要 -msk 或 -cak/-ckn")
	}
	defer crypto.Zero(cak)

	kek, err := crypto.DeriveKEK(cak, ckn)
	if err != nil {
		return err
	}
	defer crypto.Zero(kek)
	ick, err := crypto.DeriveICK(cak, ckn)
	if err != nil {
		return err
	}
	defer crypto.Zero(ick)
	fmt.Fprintf(w, "KEK=%x\nICK=%x\n", kek, ick)
	return nil
}

func (d *deriveCmd) fromMSK() (cak, ckn []byte, err error) {
	if d.keyLen != 16 && d.keyLen != 32 {
		return nil, nil, fmt.Errorf("-len 必须为 16 或 32: %d", d.keyLen)
	}
	msk, err := hex.DecodeString(d.msk)
	if err != nil {
		return nil, nil, fmt.Errorf("-msk: %w", err)
	}
	defer crypto.Zero(msk)
	sid, err := hex.DecodeString(d.sid)
	if err != nil {
		return nil, nil, fmt.Errorf("-sid: %w", err)
	}
	mac1, err := net.ParseMAC(d.mac1)
	if err != nil {
		return nil, nil, fmt.Errorf("-mac1: %w", err)
	}
	mac2, err := net.ParseMAC(d.mac2)
	if err != nil {
		return nil, nil, fmt.Errorf("-mac2: %w", err)
	}
	if cak, err = crypto.DeriveCAK(msk, mac1, mac2, d.keyLen); err != nil {
		return nil, nil, err
	}
	if ckn, err = crypto.DeriveCKN(msk, mac1, mac2, sid, d.keyLen); err != nil {
		crypto.Zero(cak)
		return nil, nil, err
	}
	return cak, ckn, nil
}
