package kay

import (
	"sync/atomic"
	"time"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// DataKey SAK 及其属性。一个 SAK 同时被参与者的 SAK 列表、发送 SA
// 和每个接收 SA 引用，最后一个引用释放时清零密钥
type DataKey struct {
	Key         []byte
	KI          mka.KeyIdentifier
	AN          uint8
	ConfOffset  mka.ConfOffset
	CipherSuite uint64
	Transmits   bool
	Receives    bool
	TxLatest    bool
	RxLatest    bool
	NextPN      uint32
	Created     time.Time

	refs atomic.Int32
}

func newDataKey(key []byte, ki mka.KeyIdentifier, an uint8, offset mka.ConfOffset, cs uint64, now time.Time) *DataKey {
	k := &DataKey{
		Key:         key,
		KI:          ki,
		AN:          an,
		ConfOffset:  offset,
		CipherSuite: cs,
		Transmits:   true,
		Receives:    true,
		NextPN:      1,
		Created:     now,
	}
	k.refs.Store(1)
	return k
}

func (k *DataKey) acquire() *DataKey {
	k.refs.Add(1)
	return k
}

// release 释放一个引用，返回是否已销毁
func (k *DataKey) release() bool {
	if k.refs.Add(-1) > 0 {
		return false
	}
	crypto.Zero(k.Key)
	return true
}

// Refs 当前引用计数
func (k *DataKey) Refs() int32 { return k.refs.Load() }

type TransmitSC struct {
	SCI          mka.SCI
	Transmitting bool
	Created      time.Time
	SAs          []*TransmitSA
}

type TransmitSA struct {
	SC              *TransmitSC
	AN              uint8
	Key             *DataKey
	NextPN          uint32
	InUse           bool
	Confidentiality bool
	Created         time.Time
}

type ReceiveSC struct {
	SCI       mka.SCI
	Receiving bool
	Created   time.Time
	SAs       []*ReceiveSA
}

type ReceiveSA struct {
	SC       *ReceiveSC
	AN       uint8
	Key      *DataKey
	LowestPN uint32
	NextPN   uint32
	InUse    bool
	Created  time.Time
}

func (sc *TransmitSC) lookupAN(an uint8) *TransmitSA {
	for _, sa := range sc.SAs {
		if sa.AN == an {
			return sa
		}
	}
	return nil
}

func (sc *TransmitSC) remove(sa *TransmitSA) {
	for i, s := range sc.SAs {
		if s == sa {
			sc.SAs = append(sc.SAs[:i], sc.SAs[i+1:]...)
			return
		}
	}
}

func (sc *ReceiveSC) lookupAN(an uint8) *ReceiveSA {
	for _, sa := range sc.SAs {
		if sa.AN == an {
			return sa
		}
	}
	return nil
}

func (sc *ReceiveSC) remove(sa *ReceiveSA) {
	for i, s := range sc.SAs {
		if s == sa {
			sc.SAs = append(sc.SAs[:i], sc.SAs[i+1:]...)
			return
		}
	}
}

// newTransmitSA 只构造 SA，SecY 创建成功后再由 add 挂到通道上
func newTransmitSA(sc *TransmitSC, an uint8, nextPN uint32, key *DataKey, now time.Time) *TransmitSA {
	return &TransmitSA{
		SC:              sc,
		AN:              an,
		Key:             key,
		NextPN:          nextPN,
		Confidentiality: key.ConfOffset >= mka.ConfOffset0 && key.ConfOffset <= mka.ConfOffset50,
		Created:         now,
	}
}

// add 挂接 SA 并持有其密钥的一个引用
func (sc *TransmitSC) add(sa *TransmitSA) {
	sa.Key.acquire()
	sc.SAs = append(sc.SAs, sa)
}

func newReceiveSA(sc *ReceiveSC, an uint8, lowestPN uint32, key *DataKey, now time.Time) *ReceiveSA {
	return &ReceiveSA{
		SC:       sc,
		AN:       an,
		Key:      key,
		LowestPN: lowestPN,
		NextPN:   lowestPN,
		Created:  now,
	}
}

func (sc *ReceiveSC) add(sa *ReceiveSA) {
	sa.Key.acquire()
	sc.SAs = append(sc.SAs, sa)
}
