package driver

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/songgao/water"
)

// TAPConn 基于 water TAP 设备的二层连接，用于实验环境（两个 mkad 通过网桥互联）
type TAPConn struct {
	iface  *water.Interface
	Name   string
	closed atomic.Bool
}

// OpenTAP 创建 TAP 设备并拉起
// 如果同名设备已存在，先尝试删除旧设备
func OpenTAP(nt *NetTools, name string) (*TAPConn, error) {
	if name != "" {
		// 上一次异常退出可能残留同名设备
		if err := nt.DeleteLink(name); err != nil && !IsNotFound(err) {
			return nil, err
		}
	}

	config := water.Config{
		DeviceType: water.TAP,
	}
	config.Name = name

	iface, err := water.New(config)
	if err != nil {
		return nil, fmt.Errorf("创建 TAP 设备失败: %w", err)
	}
	t := &TAPConn{iface: iface, Name: iface.Name()}
	if err := nt.SetLinkUp(t.Name); err != nil {
		iface.Close()
		return nil, err
	}
	return t, nil
}

// Send 写入完整以太网帧
func (t *TAPConn) Send(frame []byte) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	if _, err := t.iface.Write(frame); err != nil {
		return wrapErr("tap write", t.Name, err)
	}
	return nil
}

// ReadFrame 读取下一帧 EAPOL，其他以太类型直接丢弃。
// water 的读操作不可中断，ctx 取消后需 Close 才能返回
func (t *TAPConn) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	for {
		n, err := t.iface.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if t.closed.Load() {
				return 0, net.ErrClosed
			}
			return 0, wrapErr("tap read", t.Name, err)
		}
		if n >= 14 && binary.BigEndian.Uint16(buf[12:14]) == EtherTypePAE {
			return n, nil
		}
	}
}

func (t *TAPConn) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.iface.Close()
}
