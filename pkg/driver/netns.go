package driver

import (
	"fmt"
	"runtime"

	"github.com/vishvananda/netns"
)

// NetNS 表示一个网络命名空间
type NetNS struct {
	name   string
	handle netns.NsHandle // 目标命名空间句柄
	origin netns.NsHandle // 原始命名空间句柄，用于恢复
}

// OpenNetNS 打开已存在的具名命名空间（/var/run/netns/<name>）
func OpenNetNS(name string) (*NetNS, error) {
	origin, err := netns.Get()
	if err != nil {
		return nil, fmt.Errorf("获取原始 netns 失败: %w", err)
	}
	handle, err := netns.GetFromName(name)
	if err != nil {
		origin.Close()
		return nil, fmt.Errorf("打开 netns %s 失败: %w", name, err)
	}
	return &NetNS{name: name, handle: handle, origin: origin}, nil
}

// Enter 进入网络命名空间
// 注意: 需要 CAP_SYS_ADMIN 权限
func (ns *NetNS) Enter() error {
	// 锁定当前 goroutine 到 OS 线程
	runtime.LockOSThread()

	if !ns.handle.IsOpen() {
		runtime.UnlockOSThread()
		return fmt.Errorf("netns 句柄不可用")
	}
	if !ns.origin.IsOpen() {
		runtime.UnlockOSThread()
		return fmt.Errorf("原始 netns 句柄不可用")
	}

	if err := netns.Set(ns.handle); err != nil {
		runtime.UnlockOSThread()
		return fmt.Errorf("切换 netns 失败: %w", err)
	}
	return nil
}

// Exit 退出网络命名空间，恢复到原始命名空间
func (ns *NetNS) Exit() error {
	if ns.origin.IsOpen() {
		if err := netns.Set(ns.origin); err != nil {
			// 线程停留在目标命名空间，保持锁定让运行时丢弃该线程
			return fmt.Errorf("恢复原始 netns 失败: %w", err)
		}
	}
	runtime.UnlockOSThread()
	return nil
}

// RunInNS 在命名空间内执行 fn。套接字在创建时绑定命名空间，
// 之后可在任意线程上使用
func (ns *NetNS) RunInNS(fn func() error) error {
	if err := ns.Enter(); err != nil {
		return err
	}
	defer ns.Exit()
	return fn()
}

// Close 关闭句柄，不删除命名空间
func (ns *NetNS) Close() {
	if ns.handle.IsOpen() {
		ns.handle.Close()
	}
	if ns.origin.IsOpen() {
		ns.origin.Close()
	}
}

// Handle 返回命名空间句柄
func (ns *NetNS) Handle() netns.NsHandle {
	return ns.handle
}

func (ns *NetNS) Name() string {
	return ns.name
}
