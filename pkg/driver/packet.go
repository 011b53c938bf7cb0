package driver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/iniwex5/mka-go/pkg/mka"
	"golang.org/x/sys/unix"
)

// EtherTypePAE 802.1X PAE 以太类型
const EtherTypePAE = 0x888e

// 读超时，用于周期性检查 ctx
const packetPollInterval = 500 * time.Millisecond

// FrameConn 收发完整以太网帧的二层连接
type FrameConn interface {
	Send(frame []byte) error
	ReadFrame(ctx context.Context, buf []byte) (int, error)
	Close() error
}

// PacketConn AF_PACKET 原始套接字，只收发 EAPOL 帧
type PacketConn struct {
	fd      int
	ifindex int
	closed  atomic.Bool
}

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// ListenPacket 在 ifindex 上打开 EAPOL 套接字并加入 PAE 组播
func ListenPacket(ifindex int) (*PacketConn, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(EtherTypePAE)))
	if err != nil {
		return nil, wrapErr("socket AF_PACKET", "", err)
	}
	c := &PacketConn{fd: fd, ifindex: ifindex}
	if err := c.setup(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return c, nil
}

func (c *PacketConn) setup() error {
	args := fmt.Sprintf("ifindex %d", c.ifindex)
	sll := &unix.SockaddrLinklayer{Protocol: htons(EtherTypePAE), Ifindex: c.ifindex}
	if err := unix.Bind(c.fd, sll); err != nil {
		return wrapErr("bind", args, err)
	}
	mreq := &unix.PacketMreq{
		Ifindex: int32(c.ifindex),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    uint16(len(mka.PAEGroupAddr)),
	}
	copy(mreq.Address[:], mka.PAEGroupAddr)
	if err := unix.SetsockoptPacketMreq(c.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, mreq); err != nil {
		return wrapErr("packet add membership", args, err)
	}
	tv := unix.NsecToTimeval(packetPollInterval.Nanoseconds())
	if err := unix.SetsockoptTimeval(c.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return wrapErr("setsockopt SO_RCVTIMEO", args, err)
	}
	return nil
}

// Send 发送完整以太网帧（目的地址取帧头）
func (c *PacketConn) Send(frame []byte) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	if len(frame) < 14 {
		return fmt.Errorf("以太网帧过短: %d 字节", len(frame))
	}
	sll := &unix.SockaddrLinklayer{
		Protocol: htons(EtherTypePAE),
		Ifindex:  c.ifindex,
		Halen:    6,
	}
	copy(sll.Addr[:], frame[:6])
	return wrapErr("sendto", fmt.Sprintf("ifindex %d", c.ifindex), unix.Sendto(c.fd, frame, 0, sll))
}

// ReadFrame 阻塞读取一帧，ctx 取消或连接关闭时返回
func (c *PacketConn) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if c.closed.Load() {
			return 0, net.ErrClosed
		}
		n, _, err := unix.Recvfrom(c.fd, buf, 0)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		default:
			return 0, wrapErr("recvfrom", fmt.Sprintf("ifindex %d", c.ifindex), err)
		}
	}
}

func (c *PacketConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return unix.Close(c.fd)
}
