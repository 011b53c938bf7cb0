package driver

import (
	"context"

	"github.com/iniwex5/mka-go/pkg/logger"
	"go.uber.org/zap"
)

// maxFrameLen 以太网帧上限（不含 FCS），EAPOL-MKA 远小于此
const maxFrameLen = 1518

// FrameHandler 处理一帧入站数据，通常为 kay.KaY.Receive
type FrameHandler func(frame []byte) error

// Serve 从 conn 读取帧交给 handle，直到 ctx 取消或连接出错。
// ctx 取消时关闭 conn 以唤醒阻塞的读
func Serve(ctx context.Context, conn FrameConn, handle FrameHandler, log *zap.Logger) error {
	if log == nil {
		log = logger.Named("driver")
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	buf := make([]byte, maxFrameLen)
	for {
		n, err := conn.ReadFrame(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		frame := append([]byte(nil), buf[:n]...)
		if err := handle(frame); err != nil {
			log.Debug("丢弃入站帧", logger.Int("len", n), logger.Err(err))
		}
	}
}
