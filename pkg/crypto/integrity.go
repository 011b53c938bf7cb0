package crypto

import (
	"crypto/hmac"
	"errors"
)

// MKA 算法敏捷性标识: IEEE 802.1X-2010 (AES-CMAC-128)
const MKA_ALGO_AGILITY_2009 uint32 = 0x0080C201

// ICVAlgorithm MKPDU 完整性校验算法接口
type ICVAlgorithm interface {
	// Compute 以 ICK 计算 ICV
	Compute(ick, msg []byte) ([]byte, error)
	// Verify 常量时间比较
	Verify(ick, msg, icv []byte) bool
	OutputSize() int
}

type aesCMACICV struct{}

func (aesCMACICV) Compute(ick, msg []byte) ([]byte, error) {
	return AESCMAC(ick, msg)
}

func (a aesCMACICV) Verify(ick, msg, icv []byte) bool {
	computed, err := a.Compute(ick, msg)
	if err != nil {
		return false
	}
	return hmac.Equal(computed, icv)
}

func (aesCMACICV) OutputSize() int { return 16 }

// GetICVAlgorithm 根据算法敏捷性标识获取 ICV 算法
func GetICVAlgorithm(agility uint32) (ICVAlgorithm, error) {
	switch agility {
	case MKA_ALGO_AGILITY_2009:
		return aesCMACICV{}, nil
	default:
		return nil, errors.New("不支持的 MKA 算法敏捷性")
	}
}
