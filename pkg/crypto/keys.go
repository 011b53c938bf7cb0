package crypto

import (
	"bytes"
	"fmt"
	"net"
)

const (
	labelKEK = "IEEE8021 KEK"
	labelICK = "IEEE8021 ICK"
	labelSAK = "IEEE8021 SAK"
	labelCAK = "IEEE8021 EAP CAK"
	labelCKN = "IEEE8021 EAP CKN"
)

// KEK/ICK 派生上下文: CKN 前 16 字节，不足补零
func cknContext(ckn []byte) []byte {
	ctx := make([]byte, 16)
	copy(ctx, ckn)
	return ctx
}

// DeriveKEK KEK = KDF(CAK, "IEEE8021 KEK", CKN[0..15], len(CAK))
func DeriveKEK(cak, ckn []byte) ([]byte, error) {
	return KDF(PRF_AES_CMAC, cak, labelKEK, cknContext(ckn), len(cak)*8)
}

// DeriveICK ICK = KDF(CAK, "IEEE8021 ICK", CKN[0..15], len(CAK))
func DeriveICK(cak, ckn []byte) ([]byte, error) {
	return KDF(PRF_AES_CMAC, cak, labelICK, cknContext(ckn), len(cak)*8)
}

// DeriveSAK SAK = KDF(CAK, "IEEE8021 SAK", KS-nonce | MI-value list | KN, sakLen)
func DeriveSAK(cak, context []byte, sakLen int) ([]byte, error) {
	if sakLen != 16 && sakLen != 32 {
		return nil, fmt.Errorf("%w: SAK %d 字节", ErrOutputLength, sakLen)
	}
	return KDF(PRF_AES_CMAC, cak, labelSAK, context, sakLen*8)
}

// 两个 MAC 地址按字节序拼接，小者在前
func joinMACs(mac1, mac2 net.HardwareAddr) []byte {
	if bytes.Compare(mac1, mac2) < 0 {
		return append(append([]byte{}, mac1...), mac2...)
	}
	return append(append([]byte{}, mac2...), mac1...)
}

// DeriveCAK 由 EAP MSK 派生 CAK (IEEE 802.1X-2010 6.2.2)
func DeriveCAK(msk []byte, mac1, mac2 net.HardwareAddr, cakLen int) ([]byte, error) {
	if len(msk) < cakLen {
		return nil, fmt.Errorf("MSK 太短: %d < %d", len(msk), cakLen)
	}
	return KDF(PRF_AES_CMAC, msk[:cakLen], labelCAK, joinMACs(mac1, mac2), cakLen*8)
}

// DeriveCKN 由 EAP MSK 与 Session-Id 派生 CKN
func DeriveCKN(msk []byte, mac1, mac2 net.HardwareAddr, sid []byte, cknLen int) ([]byte, error) {
	if len(msk) < cknLen {
		return nil, fmt.Errorf("MSK 太短: %d < %d", len(msk), cknLen)
	}
	ctx := append(append([]byte{}, sid...), joinMACs(mac1, mac2)...)
	return KDF(PRF_AES_CMAC, msk[:cknLen], labelCKN, ctx, cknLen*8)
}
