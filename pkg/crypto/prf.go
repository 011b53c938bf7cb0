package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrKeyLength    = errors.New("密钥长度必须为 16 或 32 字节")
	ErrOutputLength = errors.New("KDF 输出长度不受支持")
)

// PRF (伪随机函数) 接口
type PRF interface {
	Sum(key, msg []byte) ([]byte, error)
	Size() int
}

type cmacPRF struct{}

func (cmacPRF) Sum(key, msg []byte) ([]byte, error) { return AESCMAC(key, msg) }
func (cmacPRF) Size() int                           { return 16 }

// PRF_AES_CMAC 是 MKA 算法套件 (00-80-C2-01) 使用的 PRF
var PRF_AES_CMAC PRF = cmacPRF{}

// KDF 实现 IEEE 802.1X-2010 6.2.1 的计数器模式 KDF (NIST SP800-108, r=8)
// K(i) = PRF(Key, [i]_8 || Label || 0x00 || Context || [L]_16)
func KDF(prf PRF, key []byte, label string, context []byte, outBits int) ([]byte, error) {
	if len(key) != 16 && len(key) != 32 {
		return nil, ErrKeyLength
	}
	blockBits := prf.Size() * 8
	if outBits <= 0 || outBits%blockBits != 0 {
		return nil, fmt.Errorf("%w: %d 位", ErrOutputLength, outBits)
	}
	n := outBits / blockBits
	if n > 255 {
		return nil, errors.New("KDF 溢出: 块太多")
	}

	buf := make([]byte, 1+len(label)+1+len(context)+2)
	copy(buf[1:], label)
	copy(buf[2+len(label):], context)
	binary.BigEndian.PutUint16(buf[len(buf)-2:], uint16(outBits))

	out := make([]byte, 0, n*prf.Size())
	for i := 1; i <= n; i++ {
		buf[0] = byte(i)
		block, err := prf.Sum(key, buf)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}
