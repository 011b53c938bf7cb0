package mka

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
)

// MI 成员标识 (Member Identifier)
type MI [MI_LEN]byte

func (m MI) String() string { return hex.EncodeToString(m[:]) }

func (m MI) IsZero() bool { return m == MI{} }

// SCI 安全通道标识: MAC 地址 + 端口号
type SCI struct {
	Addr [6]byte
	Port uint16
}

func NewSCI(addr net.HardwareAddr, port uint16) SCI {
	var s SCI
	copy(s.Addr[:], addr)
	s.Port = port
	return s
}

func DecodeSCI(b []byte) SCI {
	var s SCI
	copy(s.Addr[:], b[:6])
	s.Port = binary.BigEndian.Uint16(b[6:8])
	return s
}

func (s SCI) Bytes() []byte {
	b := make([]byte, SCI_LEN)
	copy(b, s.Addr[:])
	binary.BigEndian.PutUint16(b[6:], s.Port)
	return b
}

func (s SCI) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(append([]byte{}, s.Addr[:]...))
}

// CompareAddr 只比较 MAC 地址部分（选举使用）
func (s SCI) CompareAddr(o SCI) int {
	return bytes.Compare(s.Addr[:], o.Addr[:])
}

func (s SCI) String() string {
	return fmt.Sprintf("%s@%d", s.HardwareAddr(), s.Port)
}

// PeerID 对端列表中的 {MI, MN}
type PeerID struct {
	MI MI
	MN uint32
}

// KeyIdentifier SAK 标识: 密钥服务器 MI + 密钥编号
type KeyIdentifier struct {
	MI MI
	KN uint32
}

func (k KeyIdentifier) IsZero() bool { return k.KN == 0 && k.MI.IsZero() }

func (k KeyIdentifier) String() string {
	return fmt.Sprintf("%s/%d", k.MI, k.KN)
}
