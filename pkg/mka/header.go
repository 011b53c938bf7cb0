package mka

import (
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("MKPDU 格式错误")

// ParamSetHeader 参数集通用头部
//
//	0: 类型（Basic 为版本号）
//	1: 类型相关
//	2: 高 4 位类型相关 | 长度高 4 位
//	3: 长度低 8 位
type ParamSetHeader struct {
	Type    ParamSetType
	Byte1   uint8
	Flags   uint8 // byte2 高 4 位
	BodyLen int
}

func (h ParamSetHeader) Encode() []byte {
	return []byte{
		byte(h.Type),
		h.Byte1,
		h.Flags<<4 | byte(h.BodyLen>>8)&0x0f,
		byte(h.BodyLen),
	}
}

func DecodeParamSetHeader(b []byte) (ParamSetHeader, error) {
	if len(b) < MKA_HDR_LEN {
		return ParamSetHeader{}, fmt.Errorf("%w: 参数集头部太短", ErrMalformed)
	}
	return ParamSetHeader{
		Type:    ParamSetType(b[0]),
		Byte1:   b[1],
		Flags:   b[2] >> 4,
		BodyLen: int(b[2]&0x0f)<<8 | int(b[3]),
	}, nil
}

// encodeParamSet 拼接头部与主体并补零到 4 字节边界
func encodeParamSet(h ParamSetHeader, body []byte) ([]byte, error) {
	if len(body) > 0x0fff {
		return nil, fmt.Errorf("参数集 %s 主体过长: %d", h.Type, len(body))
	}
	h.BodyLen = len(body)
	out := make([]byte, Align4(MKA_HDR_LEN+len(body)))
	copy(out, h.Encode())
	copy(out[MKA_HDR_LEN:], body)
	return out, nil
}

func boolBit(v bool, shift uint) byte {
	if v {
		return 1 << shift
	}
	return 0
}

func bit(b byte, shift uint) bool {
	return b&(1<<shift) != 0
}
