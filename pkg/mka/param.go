package mka

import (
	"encoding/binary"
	"fmt"
)

// ParamSet 可编码的参数集
type ParamSet interface {
	Type() ParamSetType
	// Encode 返回头部 + 主体 + 对齐填充
	Encode() ([]byte, error)
}

// RawParamSet 尚未按类型解析的参数集（主体不含填充）
type RawParamSet struct {
	Header ParamSetHeader
	Body   []byte
}

func (r *RawParamSet) Type() ParamSetType { return r.Header.Type }

func (r *RawParamSet) Encode() ([]byte, error) {
	return encodeParamSet(r.Header, r.Body)
}

// BasicParamSet 基本参数集，MKPDU 中总是第一个
type BasicParamSet struct {
	Version       uint8
	Priority      uint8
	KeyServer     bool
	MACsecDesired bool
	Capability    Capability
	SCI           SCI
	MI            MI
	MN            uint32
	AlgAgility    uint32
	CKN           []byte
}

func (b *BasicParamSet) Type() ParamSetType { return ParamBasic }

func (b *BasicParamSet) Encode() ([]byte, error) {
	if len(b.CKN) == 0 || len(b.CKN) > MAX_CKN_LEN {
		return nil, fmt.Errorf("CKN 长度非法: %d", len(b.CKN))
	}
	body := make([]byte, BASIC_BODY_LEN+len(b.CKN))
	copy(body[0:8], b.SCI.Bytes())
	copy(body[8:20], b.MI[:])
	binary.BigEndian.PutUint32(body[20:24], b.MN)
	binary.BigEndian.PutUint32(body[24:28], b.AlgAgility)
	copy(body[28:], b.CKN)

	h := ParamSetHeader{
		Type:  ParamSetType(b.Version),
		Byte1: b.Priority,
		Flags: boolBit(b.KeyServer, 3) | boolBit(b.MACsecDesired, 2) | byte(b.Capability)&0x03,
	}
	return encodeParamSet(h, body)
}

// DecodeBasic 解码基本参数集
func DecodeBasic(r RawParamSet) (*BasicParamSet, error) {
	if r.Header.BodyLen < BASIC_BODY_LEN || len(r.Body) < r.Header.BodyLen {
		return nil, fmt.Errorf("%w: 基本参数集主体太短 %d", ErrMalformed, r.Header.BodyLen)
	}
	cknLen := r.Header.BodyLen - BASIC_BODY_LEN
	if cknLen < 1 || cknLen > MAX_CKN_LEN {
		return nil, fmt.Errorf("%w: CKN 长度非法 %d", ErrMalformed, cknLen)
	}
	body := r.Body
	b := &BasicParamSet{
		Version:       uint8(r.Header.Type),
		Priority:      r.Header.Byte1,
		KeyServer:     bit(r.Header.Flags, 3),
		MACsecDesired: bit(r.Header.Flags, 2),
		Capability:    Capability(r.Header.Flags & 0x03),
		SCI:           DecodeSCI(body[0:8]),
		MN:            binary.BigEndian.Uint32(body[20:24]),
		AlgAgility:    binary.BigEndian.Uint32(body[24:28]),
		CKN:           append([]byte{}, body[28:28+cknLen]...),
	}
	copy(b.MI[:], body[8:20])
	return b, nil
}

// PeerListParamSet 活跃/潜在对端列表
type PeerListParamSet struct {
	Live  bool
	Peers []PeerID
}

func (p *PeerListParamSet) Type() ParamSetType {
	if p.Live {
		return ParamLivePeerList
	}
	return ParamPotentialPeerList
}

func (p *PeerListParamSet) Encode() ([]byte, error) {
	body := make([]byte, 0, len(p.Peers)*PEER_ID_LEN)
	for _, id := range p.Peers {
		body = append(body, id.MI[:]...)
		body = binary.BigEndian.AppendUint32(body, id.MN)
	}
	return encodeParamSet(ParamSetHeader{Type: p.Type()}, body)
}

func DecodePeerList(r RawParamSet) (*PeerListParamSet, error) {
	if r.Header.BodyLen%PEER_ID_LEN != 0 {
		return nil, fmt.Errorf("%w: 对端列表长度 %d 不是 16 的倍数", ErrMalformed, r.Header.BodyLen)
	}
	p := &PeerListParamSet{Live: r.Header.Type == ParamLivePeerList}
	for off := 0; off+PEER_ID_LEN <= r.Header.BodyLen; off += PEER_ID_LEN {
		var id PeerID
		copy(id.MI[:], r.Body[off:off+MI_LEN])
		id.MN = binary.BigEndian.Uint32(r.Body[off+MI_LEN : off+PEER_ID_LEN])
		p.Peers = append(p.Peers, id)
	}
	return p, nil
}

// SAKUseParamSet SAK 使用参数集
type SAKUseParamSet struct {
	LAN          uint8
	LTx          bool
	LRx          bool
	OAN          uint8
	OTx          bool
	ORx          bool
	PTx          bool
	PRx          bool
	DelayProtect bool
	// Empty 表示主体长度为 0（对端尚未使用 MACsec）
	Empty bool

	LatestKI  KeyIdentifier
	LatestLPN uint32
	OldKI     KeyIdentifier
	OldLPN    uint32
}

func (s *SAKUseParamSet) Type() ParamSetType { return ParamSAKUse }

func (s *SAKUseParamSet) Encode() ([]byte, error) {
	h := ParamSetHeader{
		Type: ParamSAKUse,
		Byte1: (s.LAN&0x03)<<6 | boolBit(s.LTx, 5) | boolBit(s.LRx, 4) |
			(s.OAN&0x03)<<2 | boolBit(s.OTx, 1) | boolBit(s.ORx, 0),
		Flags: boolBit(s.PTx, 3) | boolBit(s.PRx, 2) | boolBit(s.DelayProtect, 0),
	}
	if s.Empty {
		return encodeParamSet(h, nil)
	}
	body := make([]byte, SAK_USE_BODY_LEN)
	copy(body[0:12], s.LatestKI.MI[:])
	binary.BigEndian.PutUint32(body[12:16], s.LatestKI.KN)
	binary.BigEndian.PutUint32(body[16:20], s.LatestLPN)
	copy(body[20:32], s.OldKI.MI[:])
	binary.BigEndian.PutUint32(body[32:36], s.OldKI.KN)
	binary.BigEndian.PutUint32(body[36:40], s.OldLPN)
	return encodeParamSet(h, body)
}

func DecodeSAKUse(r RawParamSet) (*SAKUseParamSet, error) {
	n := r.Header.BodyLen
	if n != 0 && n < SAK_USE_BODY_LEN {
		return nil, fmt.Errorf("%w: SAK-Use 主体长度 %d", ErrMalformed, n)
	}
	b1, fl := r.Header.Byte1, r.Header.Flags
	s := &SAKUseParamSet{
		LAN:          b1 >> 6,
		LTx:          bit(b1, 5),
		LRx:          bit(b1, 4),
		OAN:          (b1 >> 2) & 0x03,
		OTx:          bit(b1, 1),
		ORx:          bit(b1, 0),
		PTx:          bit(fl, 3),
		PRx:          bit(fl, 2),
		DelayProtect: bit(fl, 0),
		Empty:        n == 0,
	}
	if s.Empty {
		return s, nil
	}
	body := r.Body
	copy(s.LatestKI.MI[:], body[0:12])
	s.LatestKI.KN = binary.BigEndian.Uint32(body[12:16])
	s.LatestLPN = binary.BigEndian.Uint32(body[16:20])
	copy(s.OldKI.MI[:], body[20:32])
	s.OldKI.KN = binary.BigEndian.Uint32(body[32:36])
	s.OldLPN = binary.BigEndian.Uint32(body[36:40])
	return s, nil
}

// DistSAKParamSet 分发 SAK 参数集；WrappedSAK 为空表示"不使用 MACsec"
type DistSAKParamSet struct {
	DAN         uint8
	ConfOffset  ConfOffset
	KN          uint32
	CipherSuite uint64 // 默认套件时线上省略
	WrappedSAK  []byte
}

func (d *DistSAKParamSet) Type() ParamSetType { return ParamDistSAK }

// Plain 主体为空
func (d *DistSAKParamSet) Plain() bool { return len(d.WrappedSAK) == 0 }

func (d *DistSAKParamSet) Encode() ([]byte, error) {
	h := ParamSetHeader{
		Type:  ParamDistSAK,
		Byte1: (d.DAN&0x03)<<6 | byte(d.ConfOffset&0x03)<<4,
	}
	if d.Plain() {
		return encodeParamSet(h, nil)
	}
	body := binary.BigEndian.AppendUint32(nil, d.KN)
	if d.CipherSuite != 0 && d.CipherSuite != DEFAULT_CS_ID {
		body = binary.BigEndian.AppendUint64(body, d.CipherSuite)
	} else if len(d.WrappedSAK) != DIST_SAK_BODY_LEN-4 {
		return nil, fmt.Errorf("默认密码套件的封装 SAK 长度必须为 24: %d", len(d.WrappedSAK))
	}
	body = append(body, d.WrappedSAK...)
	return encodeParamSet(h, body)
}

func DecodeDistSAK(r RawParamSet) (*DistSAKParamSet, error) {
	n := r.Header.BodyLen
	if n != 0 && n != DIST_SAK_BODY_LEN && n < 36 {
		return nil, fmt.Errorf("%w: Distributed-SAK 主体长度 %d", ErrMalformed, n)
	}
	d := &DistSAKParamSet{
		DAN:        r.Header.Byte1 >> 6,
		ConfOffset: ConfOffset((r.Header.Byte1 >> 4) & 0x03),
	}
	if n == 0 {
		return d, nil
	}
	body := r.Body[:n]
	d.KN = binary.BigEndian.Uint32(body[0:4])
	if n == DIST_SAK_BODY_LEN {
		d.CipherSuite = DEFAULT_CS_ID
		d.WrappedSAK = append([]byte{}, body[4:]...)
		return d, nil
	}
	d.CipherSuite = binary.BigEndian.Uint64(body[4:12])
	d.WrappedSAK = append([]byte{}, body[12:]...)
	return d, nil
}
