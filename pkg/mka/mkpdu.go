package mka

import "fmt"

// MKPDU 解析后的协议数据单元
type MKPDU struct {
	Basic *BasicParamSet
	// Sets 按出现顺序排列，不含 Basic 与 ICV Indicator
	Sets []RawParamSet
	// ICVLen ICV 长度；ICV 总是主体最后 ICVLen 字节
	ICVLen int
	ICV    []byte
}

// ParseMKPDU 解析 EAPOL-MKA 主体（含末尾 ICV），不做 ICV 校验
func ParseMKPDU(body []byte) (*MKPDU, error) {
	if len(body) < MIN_MKPDU_LEN || len(body)%4 != 0 {
		return nil, fmt.Errorf("%w: MKPDU 长度 %d", ErrMalformed, len(body))
	}

	hdr, err := DecodeParamSetHeader(body)
	if err != nil {
		return nil, err
	}
	basicTotal := MKA_HDR_LEN + Align4(hdr.BodyLen)
	if hdr.BodyLen < BASIC_BODY_LEN || basicTotal+DEFAULT_ICV_LEN > len(body) {
		return nil, fmt.Errorf("%w: 基本参数集长度 %d", ErrMalformed, hdr.BodyLen)
	}
	basic, err := DecodeBasic(RawParamSet{Header: hdr, Body: body[MKA_HDR_LEN : MKA_HDR_LEN+hdr.BodyLen]})
	if err != nil {
		return nil, err
	}

	m := &MKPDU{Basic: basic, ICVLen: DEFAULT_ICV_LEN}
	pos := basicTotal
	for len(body)-pos > MKA_HDR_LEN+DEFAULT_ICV_LEN {
		h, err := DecodeParamSetHeader(body[pos:])
		if err != nil {
			return nil, err
		}
		if h.Type == ParamICVIndicator {
			// 指示参数集必须是最后一个，其主体即 ICV
			if h.BodyLen == 0 || h.BodyLen > MAX_ICV_LEN || pos+MKA_HDR_LEN+h.BodyLen != len(body) {
				return nil, fmt.Errorf("%w: ICV 指示长度 %d", ErrMalformed, h.BodyLen)
			}
			m.ICVLen = h.BodyLen
			break
		}
		total := MKA_HDR_LEN + Align4(h.BodyLen)
		if pos+total+DEFAULT_ICV_LEN > len(body) {
			return nil, fmt.Errorf("%w: 参数集 %s 长度 %d 超出剩余 %d", ErrMalformed, h.Type, h.BodyLen, len(body)-pos)
		}
		m.Sets = append(m.Sets, RawParamSet{
			Header: h,
			Body:   body[pos+MKA_HDR_LEN : pos+MKA_HDR_LEN+h.BodyLen],
		})
		pos += total
	}
	m.ICV = body[len(body)-m.ICVLen:]
	return m, nil
}

// EncodeBody 依次编码参数集，Basic 必须在首位；结果不含 ICV
func EncodeBody(sets ...ParamSet) ([]byte, error) {
	if len(sets) == 0 || sets[0].Type() != ParamBasic {
		return nil, fmt.Errorf("MKPDU 必须以基本参数集开头")
	}
	var out []byte
	for _, s := range sets {
		b, err := s.Encode()
		if err != nil {
			return nil, fmt.Errorf("编码参数集 %s 失败: %w", s.Type(), err)
		}
		out = append(out, b...)
	}
	return out, nil
}
