package driver

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/iniwex5/netlink"
)

// MACsecOverhead SecTAG(含 SCI) 16 字节 + ICV 16 字节
const MACsecOverhead = 32

// NetTools 封装 MKA 端口相关的链路操作（使用 netlink）
type NetTools struct {
	h *netlink.Handle
}

// NewNetTools 在当前网络命名空间中操作
func NewNetTools() *NetTools {
	return &NetTools{h: &netlink.Handle{}}
}

// NewNetToolsIn 在指定网络命名空间中操作，与调用线程所在命名空间无关
func NewNetToolsIn(ns *NetNS) (*NetTools, error) {
	h, err := netlink.NewHandleAt(ns.Handle())
	if err != nil {
		return nil, wrapErr("netlink handle", ns.Name(), err)
	}
	return &NetTools{h: h}, nil
}

// Close 释放 netlink 句柄
func (n *NetTools) Close() {
	n.h.Close()
}

// NetToolError 封装网络操作错误
type NetToolError struct {
	Op   string // 操作描述
	Args string // 参数信息
	Err  error  // 底层错误
}

func (e *NetToolError) Error() string {
	if e.Args == "" {
		return fmt.Sprintf("%s 失败: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s 失败: %v", e.Op, e.Args, e.Err)
}

func (e *NetToolError) Unwrap() error { return e.Err }

// wrapErr 封装错误
func wrapErr(op, args string, err error) error {
	if err == nil {
		return nil
	}
	return &NetToolError{Op: op, Args: args, Err: err}
}

func (n *NetTools) getLink(iface string) (netlink.Link, error) {
	link, err := n.h.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("获取接口 %s 失败: %w", iface, err)
	}
	return link, nil
}

// LinkHardwareAddr 返回接口 MAC，用作 SCI 的系统标识
func (n *NetTools) LinkHardwareAddr(iface string) (net.HardwareAddr, error) {
	link, err := n.getLink(iface)
	if err != nil {
		return nil, wrapErr("link show", iface, err)
	}
	addr := link.Attrs().HardwareAddr
	if len(addr) != 6 {
		return nil, wrapErr("link show", iface, fmt.Errorf("不是以太网接口 (MAC 长度 %d)", len(addr)))
	}
	return addr, nil
}

// LinkIndex 返回接口 ifindex
func (n *NetTools) LinkIndex(iface string) (int, error) {
	link, err := n.getLink(iface)
	if err != nil {
		return 0, wrapErr("link show", iface, err)
	}
	return link.Attrs().Index, nil
}

// LinkMTU 返回接口当前 MTU
func (n *NetTools) LinkMTU(iface string) (int, error) {
	link, err := n.getLink(iface)
	if err != nil {
		return 0, wrapErr("link show", iface, err)
	}
	return link.Attrs().MTU, nil
}

// LinkIsUp 接口是否处于管理 up 状态
func (n *NetTools) LinkIsUp(iface string) (bool, error) {
	link, err := n.getLink(iface)
	if err != nil {
		return false, wrapErr("link show", iface, err)
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

// SetLinkUp 启用网络接口
func (n *NetTools) SetLinkUp(iface string) error {
	link, err := n.getLink(iface)
	if err != nil {
		return wrapErr("link set up", iface, err)
	}
	return wrapErr("link set up", iface, n.h.LinkSetUp(link))
}

// SetLinkDown 禁用网络接口
func (n *NetTools) SetLinkDown(iface string) error {
	link, err := n.getLink(iface)
	if err != nil {
		return wrapErr("link set down", iface, err)
	}
	return wrapErr("link set down", iface, n.h.LinkSetDown(link))
}

// SetMTU 设置接口 MTU
func (n *NetTools) SetMTU(iface string, mtu int) error {
	args := fmt.Sprintf("%s %d", iface, mtu)
	link, err := n.getLink(iface)
	if err != nil {
		return wrapErr("link set mtu", args, err)
	}
	return wrapErr("link set mtu", args, n.h.LinkSetMTU(link, mtu))
}

// DeleteLink 删除网络设备（如残留的 TAP）
func (n *NetTools) DeleteLink(iface string) error {
	link, err := n.getLink(iface)
	if err != nil {
		return wrapErr("link del", iface, err)
	}
	return wrapErr("link del", iface, n.h.LinkDel(link))
}

// IsNotFound 判断是否为接口不存在错误 (ENODEV / 链路未找到)
func IsNotFound(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ENODEV
	}
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound)
}
