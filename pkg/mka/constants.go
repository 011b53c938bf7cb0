package mka

import "fmt"

// IEEE 802.1X-2010 MKA 常量

const (
	MKA_HDR_LEN       = 4
	MKA_VERSION_ID    = 1
	DEFAULT_ICV_LEN   = 16
	MAX_ICV_LEN       = 32
	MAX_CKN_LEN       = 32
	MI_LEN            = 12
	SCI_LEN           = 8
	PEER_ID_LEN       = 16
	BASIC_BODY_LEN    = 28 // 不含 CKN
	SAK_USE_BODY_LEN  = 40
	DIST_SAK_BODY_LEN = 28 // 默认密码套件 (GCM-AES-128)，不含 CS ID
	DIST_CAK_BODY_LEN = 28
	KMD_MIN_BODY_LEN  = 5
	MIN_MKPDU_LEN     = 32

	ETH_HDR_LEN       = 14
	EAPOL_HDR_LEN     = 4
	EAPOL_VERSION     = 3
	MIN_EAPOL_VERSION = 2

	DEFAULT_PRIO_NOT_KEY_SERVER = 255

	// AN 取值 0..3
	MAX_AN = 3
)

// 密码套件 ID (IEEE 802.1AE)
const (
	CS_ID_GCM_AES_128 uint64 = 0x0080C20001000001
	CS_ID_GCM_AES_256 uint64 = 0x0080C20001000002

	DEFAULT_CS_ID = CS_ID_GCM_AES_128
)

// 参数集类型
type ParamSetType uint8

const (
	ParamBasic             ParamSetType = 0 // 首个参数集，线上为版本号
	ParamLivePeerList      ParamSetType = 1
	ParamPotentialPeerList ParamSetType = 2
	ParamSAKUse            ParamSetType = 3
	ParamDistSAK           ParamSetType = 4
	ParamDistCAK           ParamSetType = 5
	ParamKMD               ParamSetType = 6
	ParamAnnouncement      ParamSetType = 7
	ParamICVIndicator      ParamSetType = 255
)

func (t ParamSetType) String() string {
	switch t {
	case ParamBasic:
		return "Basic"
	case ParamLivePeerList:
		return "Live-Peer-List"
	case ParamPotentialPeerList:
		return "Potential-Peer-List"
	case ParamSAKUse:
		return "SAK-Use"
	case ParamDistSAK:
		return "Distributed-SAK"
	case ParamDistCAK:
		return "Distributed-CAK"
	case ParamKMD:
		return "KMD"
	case ParamAnnouncement:
		return "Announcement"
	case ParamICVIndicator:
		return "ICV-Indicator"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// MACsec 能力
type Capability uint8

const (
	CapNotImplemented      Capability = 0
	CapIntegrity           Capability = 1
	CapIntegAndConf        Capability = 2
	CapIntegAndConf0_30_50 Capability = 3
)

func (c Capability) String() string {
	switch c {
	case CapNotImplemented:
		return "not-implemented"
	case CapIntegrity:
		return "integrity"
	case CapIntegAndConf:
		return "integrity+confidentiality"
	case CapIntegAndConf0_30_50:
		return "integrity+confidentiality(0/30/50)"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// 机密性偏移
type ConfOffset uint8

const (
	ConfNone     ConfOffset = 0
	ConfOffset0  ConfOffset = 1
	ConfOffset30 ConfOffset = 2
	ConfOffset50 ConfOffset = 3
)

func (o ConfOffset) String() string {
	switch o {
	case ConfNone:
		return "none"
	case ConfOffset0:
		return "0"
	case ConfOffset30:
		return "30"
	case ConfOffset50:
		return "50"
	default:
		return fmt.Sprintf("offset(%d)", uint8(o))
	}
}

// Align4 参数集总长按 4 字节对齐
func Align4(n int) int {
	return (n + 3) &^ 3
}

// ValidateFrames SecY 接收帧校验模式 (IEEE 802.1AE 10.7.8)
type ValidateFrames uint8

const (
	ValidateDisabled ValidateFrames = iota
	ValidateChecked
	ValidateStrict
)

func (v ValidateFrames) String() string {
	switch v {
	case ValidateDisabled:
		return "Disabled"
	case ValidateChecked:
		return "Checked"
	case ValidateStrict:
		return "Strict"
	default:
		return fmt.Sprintf("validate(%d)", uint8(v))
	}
}
