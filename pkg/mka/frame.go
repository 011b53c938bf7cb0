package mka

import (
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// PAEGroupAddr 802.1X PAE 组播地址
var PAEGroupAddr = net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x03}

// EAPOLTypeMKA EAPOL 包类型 5
const EAPOLTypeMKA layers.EAPOLType = 5

var ErrNotMKA = errors.New("不是 EAPOL-MKA 帧")

// Frame 解码后的 EAPOL-MKA 帧
type Frame struct {
	Src     net.HardwareAddr
	Dst     net.HardwareAddr
	Version uint8
	// Body EAPOL 主体（MKPDU，含 ICV），已按 EAPOL 长度截断
	Body []byte
	// Raw 以太网头 + EAPOL 头 + Body，ICV 计算的输入来源
	Raw []byte
}

// ICVInput 返回 ICV 覆盖的字节（Raw 去掉末尾 icvLen 字节）
func (f *Frame) ICVInput(icvLen int) []byte {
	return f.Raw[:len(f.Raw)-icvLen]
}

// ToGroup 目的地址是否为 PAE 组播地址
func (f *Frame) ToGroup() bool {
	return bytes.Equal(f.Dst, PAEGroupAddr)
}

// ParseFrame 解码以太网 + EAPOL 头，丢弃以太网填充
func ParseFrame(data []byte) (*Frame, error) {
	var eth layers.Ethernet
	if err := eth.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if eth.EthernetType != layers.EthernetTypeEAPOL {
		return nil, ErrNotMKA
	}
	if len(eth.Payload) < EAPOL_HDR_LEN {
		return nil, fmt.Errorf("%w: EAPOL 头部太短", ErrMalformed)
	}
	var eapol layers.EAPOL
	if err := eapol.DecodeFromBytes(eth.Payload, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if eapol.Type != EAPOLTypeMKA {
		return nil, ErrNotMKA
	}
	if eapol.Version < MIN_EAPOL_VERSION {
		return nil, fmt.Errorf("EAPOL 版本 %d 不支持 MKA", eapol.Version)
	}
	n := int(eapol.Length)
	if n > len(eapol.Payload) {
		return nil, fmt.Errorf("%w: EAPOL 长度 %d 超出帧剩余 %d", ErrMalformed, n, len(eapol.Payload))
	}
	hdrLen := len(data) - len(eapol.Payload)
	return &Frame{
		Src:     eth.SrcMAC,
		Dst:     eth.DstMAC,
		Version: eapol.Version,
		Body:    eapol.Payload[:n],
		Raw:     data[:hdrLen+n],
	}, nil
}

// BuildFrame 封装 MKPDU 主体到发往 PAE 组地址的以太网帧，并追加 ICV
func BuildFrame(src net.HardwareAddr, body []byte, icvLen int, icv func(msg []byte) ([]byte, error)) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       PAEGroupAddr,
		EthernetType: layers.EthernetTypeEAPOL,
	}
	eapol := &layers.EAPOL{
		Version: EAPOL_VERSION,
		Type:    EAPOLTypeMKA,
		Length:  uint16(len(body) + icvLen),
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, eapol, gopacket.Payload(body)); err != nil {
		return nil, fmt.Errorf("序列化 EAPOL 帧失败: %w", err)
	}
	// 去掉以太网最小帧填充
	msg := buf.Bytes()[:ETH_HDR_LEN+EAPOL_HDR_LEN+len(body)]
	tag, err := icv(msg)
	if err != nil {
		return nil, err
	}
	if len(tag) != icvLen {
		return nil, fmt.Errorf("ICV 长度 %d 与预期 %d 不符", len(tag), icvLen)
	}
	frame := make([]byte, 0, len(msg)+icvLen)
	frame = append(frame, msg...)
	return append(frame, tag...), nil
}
