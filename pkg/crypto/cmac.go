package crypto

import (
	"fmt"

	"github.com/jacobsa/crypto/cmac"
)

// AESCMAC 计算 AES-CMAC (RFC 4493)，密钥长度 16/24/32 字节
func AESCMAC(key, msg []byte) ([]byte, error) {
	h, err := cmac.New(key)
	if err != nil {
		return nil, fmt.Errorf("创建 AES-CMAC 失败: %w", err)
	}
	h.Write(msg)
	return h.Sum(nil), nil
}
