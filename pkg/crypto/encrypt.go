package crypto

import (
	"crypto/aes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	keywrap "github.com/NickBall/go-aes-key-wrap"
)

var ErrUnwrap = errors.New("AES 密钥解包失败")

// AESWrap RFC 3394 AES 密钥封装，明文须为 8 字节倍数且至少 16 字节
func AESWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext) < 16 || len(plaintext)%8 != 0 {
		return nil, fmt.Errorf("待封装密钥长度非法: %d", len(plaintext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	return keywrap.Wrap(block, plaintext)
}

// AESUnwrap RFC 3394 AES 密钥解包，完整性校验失败返回 ErrUnwrap
func AESUnwrap(kek, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < 24 || len(ciphertext)%8 != 0 {
		return nil, fmt.Errorf("%w: 密文长度 %d", ErrUnwrap, len(ciphertext))
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	pt, err := keywrap.Unwrap(block, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnwrap, err)
	}
	return pt, nil
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, b)
	return b, err
}

// Zero 清零密钥材料
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
