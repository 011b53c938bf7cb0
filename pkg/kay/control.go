package kay

import (
	"fmt"

	"github.com/iniwex5/mka-go/pkg/mka"
	"go.uber.org/multierr"
)

// saControl 供 CP 回调的 SA 管理接口，作用于主参与者。
// CP 只在 KaY 持锁时被驱动，因此这里不再加锁
type saControl struct {
	k *KaY
}

var _ SAControl = saControl{}

func (c saControl) principal() (*Participant, error) {
	pt := c.k.principal()
	if pt == nil {
		return nil, ErrNoPrincipal
	}
	return pt, nil
}

// CreateSAs 为最新密钥在每个接收通道与发送通道上创建 SA
func (c saControl) CreateSAs(lki mka.KeyIdentifier) error {
	pt, err := c.principal()
	if err != nil {
		return err
	}
	var latest *DataKey
	for _, key := range pt.sakList {
		if key.KI == lki {
			key.RxLatest = true
			key.TxLatest = true
			latest = key
			pt.toUseSAK = true
		} else {
			key.RxLatest = false
			key.TxLatest = false
		}
	}
	if latest == nil {
		return fmt.Errorf("%w: %s", ErrSAKNotFound, lki)
	}

	k := c.k
	now := k.now()
	// 本次创建的接收 SA，后续失败时撤销，不留下 SecY 不知道的 SA
	var created []*ReceiveSA
	rollback := func(err error) error {
		for _, sa := range created {
			err = multierr.Append(err, pt.deleteReceiveSA(sa))
		}
		return err
	}
	for _, sc := range pt.rxSCs {
		for sa := sc.lookupAN(latest.AN); sa != nil; sa = sc.lookupAN(latest.AN) {
			if err := pt.deleteReceiveSA(sa); err != nil {
				pt.log.Warn("删除同 AN 的接收 SA 失败", logErr(err))
			}
		}
		sa := newReceiveSA(sc, latest.AN, 1, latest, now)
		if err := k.secy.CreateReceiveSA(sa); err != nil {
			return rollback(wrapSecY("CreateReceiveSA", err))
		}
		sc.add(sa)
		created = append(created, sa)
	}

	for sa := pt.txSC.lookupAN(latest.AN); sa != nil; sa = pt.txSC.lookupAN(latest.AN) {
		if err := pt.deleteTransmitSA(sa); err != nil {
			pt.log.Warn("删除同 AN 的发送 SA 失败", logErr(err))
		}
	}
	nextPN := latest.NextPN
	if nextPN == 0 {
		nextPN = 1
	}
	sa := newTransmitSA(pt.txSC, latest.AN, nextPN, latest, now)
	if err := k.secy.CreateTransmitSA(sa); err != nil {
		return rollback(wrapSecY("CreateTransmitSA", err))
	}
	pt.txSC.add(sa)
	pt.log.Debug("已创建 SA", mkaKI("ki", lki), mkaSCI("tx_sci", pt.txSC.SCI))
	return nil
}

// DeleteSAs 删除使用该密钥的所有 SA 并从 SAK 列表移除
func (c saControl) DeleteSAs(ki mka.KeyIdentifier) error {
	pt, err := c.principal()
	if err != nil {
		return err
	}
	var errs error
	for _, sa := range append([]*TransmitSA{}, pt.txSC.SAs...) {
		if sa.Key.KI == ki {
			errs = multierr.Append(errs, pt.deleteTransmitSA(sa))
		}
	}
	for _, sc := range pt.rxSCs {
		for _, sa := range append([]*ReceiveSA{}, sc.SAs...) {
			if sa.Key.KI == ki {
				errs = multierr.Append(errs, pt.deleteReceiveSA(sa))
			}
		}
	}
	if key := pt.sak(ki); key != nil {
		if pt.newKey == key {
			pt.newKey = nil
		}
		pt.removeSAK(key)
	}
	pt.log.Debug("已删除 SA", mkaKI("ki", ki))
	return errs
}

func (c saControl) EnableTxSAs(lki mka.KeyIdentifier) error {
	pt, err := c.principal()
	if err != nil {
		return err
	}
	var errs error
	for _, sa := range pt.txSC.SAs {
		if sa.Key.KI != lki {
			continue
		}
		sa.InUse = true
		errs = multierr.Append(errs, wrapSecY("EnableTransmitSA", c.k.secy.EnableTransmitSA(sa)))
		c.k.cp.SetUsingTransmitSAs(true)
		c.k.scheduleCP()
	}
	return errs
}

func (c saControl) EnableRxSAs(lki mka.KeyIdentifier) error {
	pt, err := c.principal()
	if err != nil {
		return err
	}
	var errs error
	for _, sc := range pt.rxSCs {
		for _, sa := range sc.SAs {
			if sa.Key.KI != lki {
				continue
			}
			sa.InUse = true
			errs = multierr.Append(errs, wrapSecY("EnableReceiveSA", c.k.secy.EnableReceiveSA(sa)))
			c.k.cp.SetUsingReceiveSAs(true)
			c.k.scheduleCP()
		}
	}
	return errs
}

// SetLatestSAAttr 没有主参与者时只更新 KaY 的记录
func (c saControl) SetLatestSAAttr(lki mka.KeyIdentifier, lan uint8, ltx, lrx bool) error {
	c.k.ltxKN, c.k.lrxKN = lki.KN, lki.KN
	c.k.ltxAN, c.k.lrxAN = lan, lan
	if pt := c.k.principal(); pt != nil {
		pt.lki, pt.lan, pt.ltx, pt.lrx = lki, lan, ltx, lrx
	}
	return nil
}

func (c saControl) SetOldSAAttr(oki mka.KeyIdentifier, oan uint8, otx, orx bool) error {
	c.k.otxKN, c.k.orxKN = oki.KN, oki.KN
	c.k.otxAN, c.k.orxAN = oan, oan
	if pt := c.k.principal(); pt != nil {
		pt.oki, pt.oan, pt.otx, pt.orx = oki, oan, otx, orx
	}
	return nil
}

// EnableNewInfo 立即发送一个 MKPDU 通告新的 SA 状态
func (c saControl) EnableNewInfo() error {
	pt, err := c.principal()
	if err != nil {
		return err
	}
	if pt.retry < c.k.cfg.MaxRetry || pt.mode == ModePSK {
		err = pt.sendMKPDU()
		pt.retry++
	}
	return err
}
