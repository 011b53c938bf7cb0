package kay

import (
	"fmt"

	"github.com/iniwex5/mka-go/pkg/crypto"
	"github.com/iniwex5/mka-go/pkg/mka"
)

// CipherSuite IEEE 802.1AE 表 14-1 中支持的 MACsec 密码套件
type CipherSuite struct {
	ID      uint64
	Name    string
	Capable mka.Capability
	SAKLen  int
}

// CipherSuites 按索引排列，0 为默认套件
var CipherSuites = []CipherSuite{
	{ID: mka.CS_ID_GCM_AES_128, Name: "GCM-AES-128", Capable: mka.CapIntegAndConf0_30_50, SAKLen: 16},
	{ID: mka.CS_ID_GCM_AES_256, Name: "GCM-AES-256", Capable: mka.CapIntegAndConf0_30_50, SAKLen: 32},
}

const DefaultCipherSuiteIndex = 0

// CipherSuiteByID 按线上 ID 查找，返回索引
func CipherSuiteByID(id uint64) (int, *CipherSuite, error) {
	for i := range CipherSuites {
		if CipherSuites[i].ID == id {
			return i, &CipherSuites[i], nil
		}
	}
	return -1, nil, fmt.Errorf("%w: %#016x", ErrUnsupportedCipherSuite, id)
}

// CipherSuiteByName 按名称查找（配置使用）
func CipherSuiteByName(name string) (int, error) {
	for i := range CipherSuites {
		if CipherSuites[i].Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnsupportedCipherSuite, name)
}

// mkaAlgorithm MKA 算法表项（IEEE 802.1X-2010 表 9-1）
type mkaAlgorithm struct {
	agility uint32
	icv     crypto.ICVAlgorithm
}

func (a *mkaAlgorithm) icvLen() int { return a.icv.OutputSize() }

func defaultAlgorithm() (*mkaAlgorithm, error) {
	icv, err := crypto.GetICVAlgorithm(crypto.MKA_ALGO_AGILITY_2009)
	if err != nil {
		return nil, err
	}
	return &mkaAlgorithm{agility: crypto.MKA_ALGO_AGILITY_2009, icv: icv}, nil
}
