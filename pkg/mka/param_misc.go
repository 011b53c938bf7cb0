package mka

import "fmt"

// DistCAKParamSet 分发 CAK 参数集 (封装的 CAK + CKN)
type DistCAKParamSet struct {
	WrappedCAK []byte
	CKN        []byte
}

func (d *DistCAKParamSet) Type() ParamSetType { return ParamDistCAK }

func (d *DistCAKParamSet) Encode() ([]byte, error) {
	if len(d.WrappedCAK) != 24 {
		return nil, fmt.Errorf("封装 CAK 长度必须为 24: %d", len(d.WrappedCAK))
	}
	body := append(append([]byte{}, d.WrappedCAK...), d.CKN...)
	return encodeParamSet(ParamSetHeader{Type: ParamDistCAK}, body)
}

func DecodeDistCAK(r RawParamSet) (*DistCAKParamSet, error) {
	if r.Header.BodyLen < DIST_CAK_BODY_LEN {
		return nil, fmt.Errorf("%w: Distributed-CAK 主体长度 %d", ErrMalformed, r.Header.BodyLen)
	}
	return &DistCAKParamSet{
		WrappedCAK: append([]byte{}, r.Body[:24]...),
		CKN:        append([]byte{}, r.Body[24:r.Header.BodyLen]...),
	}, nil
}

// KMDParamSet 密钥管理域
type KMDParamSet struct {
	KMD []byte
}

func (k *KMDParamSet) Type() ParamSetType { return ParamKMD }

func (k *KMDParamSet) Encode() ([]byte, error) {
	return encodeParamSet(ParamSetHeader{Type: ParamKMD}, k.KMD)
}

func DecodeKMD(r RawParamSet) (*KMDParamSet, error) {
	if r.Header.BodyLen < KMD_MIN_BODY_LEN {
		return nil, fmt.Errorf("%w: KMD 主体长度 %d", ErrMalformed, r.Header.BodyLen)
	}
	return &KMDParamSet{KMD: append([]byte{}, r.Body[:r.Header.BodyLen]...)}, nil
}

// AnnouncementParamSet 通告参数集，TLV 内容不解析
type AnnouncementParamSet struct {
	TLVs []byte
}

func (a *AnnouncementParamSet) Type() ParamSetType { return ParamAnnouncement }

func (a *AnnouncementParamSet) Encode() ([]byte, error) {
	return encodeParamSet(ParamSetHeader{Type: ParamAnnouncement}, a.TLVs)
}

func DecodeAnnouncement(r RawParamSet) (*AnnouncementParamSet, error) {
	return &AnnouncementParamSet{TLVs: append([]byte{}, r.Body[:r.Header.BodyLen]...)}, nil
}

// ICVIndicatorParamSet 非默认长度 ICV 的指示参数集，主体即 ICV
type ICVIndicatorParamSet struct {
	ICV []byte
}

func (i *ICVIndicatorParamSet) Type() ParamSetType { return ParamICVIndicator }

func (i *ICVIndicatorParamSet) Encode() ([]byte, error) {
	return encodeParamSet(ParamSetHeader{Type: ParamICVIndicator}, i.ICV)
}

// DecodeParamSet 按类型解码任意非 Basic 参数集，未知类型原样返回
func DecodeParamSet(r RawParamSet) (ParamSet, error) {
	switch r.Header.Type {
	case ParamLivePeerList, ParamPotentialPeerList:
		return DecodePeerList(r)
	case ParamSAKUse:
		return DecodeSAKUse(r)
	case ParamDistSAK:
		return DecodeDistSAK(r)
	case ParamDistCAK:
		return DecodeDistCAK(r)
	case ParamKMD:
		return DecodeKMD(r)
	case ParamAnnouncement:
		return DecodeAnnouncement(r)
	case ParamICVIndicator:
		return &ICVIndicatorParamSet{ICV: append([]byte{}, r.Body[:r.Header.BodyLen]...)}, nil
	default:
		raw := r
		return &raw, nil
	}
}
