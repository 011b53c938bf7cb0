package kay

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownParticipant     = errors.New("CKN 不属于任何参与者")
	ErrUnknownPeer            = errors.New("对端不存在")
	ErrNoPrincipal            = errors.New("没有主参与者")
	ErrDuplicateParticipant   = errors.New("CKN 对应的参与者已存在")
	ErrInvalidCAK             = errors.New("CAK 长度必须为 16 或 32 字节")
	ErrInvalidCKN             = errors.New("CKN 长度必须为 1..32 字节")
	ErrDisabled               = errors.New("KaY 已禁用")
	ErrNotMKAFrame            = errors.New("不是发往 PAE 组地址的 MKPDU")
	ErrAlgorithmAgility       = errors.New("不支持的算法敏捷性")
	ErrICVMismatch            = errors.New("ICV 校验失败")
	ErrReplay                 = errors.New("对端 MN 未递增")
	ErrDuplicateSCI           = errors.New("重复的 SCI")
	ErrObligedKeyServer       = errors.New("本端必须是密钥服务器，忽略声称密钥服务器的 MKPDU")
	ErrNoLivePeers            = errors.New("活跃对端列表为空")
	ErrTooSoon                = errors.New("距上次分发 SAK 未满 MKA 生存期")
	ErrUnsupportedCipherSuite = errors.New("不支持的密码套件")
	ErrSameCipherSuite        = errors.New("密码套件未改变")
	ErrSAKNotFound            = errors.New("找不到对应的 SAK")
	ErrSAKUse                 = errors.New("SAK-Use 参数集无效")
	ErrDistSAK                = errors.New("Distributed-SAK 参数集无效")
	ErrMissingSAKUse          = errors.New("活跃对端未发送 SAK-Use")
)

// SecYError SecY 操作失败
type SecYError struct {
	Op  string
	Err error
}

func (e *SecYError) Error() string {
	return fmt.Sprintf("SecY %s 失败: %v", e.Op, e.Err)
}

func (e *SecYError) Unwrap() error { return e.Err }

func wrapSecY(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SecYError{Op: op, Err: err}
}
