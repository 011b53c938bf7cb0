package driver

import "go.uber.org/multierr"

// PortTxn 端口配置事务：失败时按相反顺序撤销已完成的步骤
type PortTxn struct {
	net   *NetTools
	undos []func() error
}

func (n *NetTools) Begin() *PortTxn {
	return &PortTxn{net: n}
}

func (tx *PortTxn) Commit() {
	tx.undos = nil
}

func (tx *PortTxn) Rollback() error {
	var err error
	for i := len(tx.undos) - 1; i >= 0; i-- {
		err = multierr.Append(err, tx.undos[i]())
	}
	tx.undos = nil
	return err
}

func (tx *PortTxn) SetLinkUp(iface string) error {
	up, err := tx.net.LinkIsUp(iface)
	if err != nil {
		return err
	}
	if up {
		return nil
	}
	if err := tx.net.SetLinkUp(iface); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.SetLinkDown(iface)
	})
	return nil
}

func (tx *PortTxn) SetLinkDown(iface string) error {
	up, err := tx.net.LinkIsUp(iface)
	if err != nil {
		return err
	}
	if !up {
		return nil
	}
	if err := tx.net.SetLinkDown(iface); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.SetLinkUp(iface)
	})
	return nil
}

// SetMTU 修改 MTU，回滚时恢复原值
func (tx *PortTxn) SetMTU(iface string, mtu int) error {
	old, err := tx.net.LinkMTU(iface)
	if err != nil {
		return err
	}
	if old == mtu {
		return nil
	}
	if err := tx.net.SetMTU(iface, mtu); err != nil {
		return err
	}
	tx.undos = append(tx.undos, func() error {
		return tx.net.SetMTU(iface, old)
	})
	return nil
}

// Defer 登记一个只在回滚时执行的清理步骤
func (tx *PortTxn) Defer(undo func() error) {
	tx.undos = append(tx.undos, undo)
}
