package driver

import (
	"context"
	"errors"
	"net"
	"sync"
)

var errPipeFull = errors.New("链路队列已满")

// pipeEnd 内存链路的一端
type pipeEnd struct {
	in     <-chan []byte
	out    chan<- []byte
	closed chan struct{}
	once   sync.Once
}

// Pipe 内存中的点对点二层链路，用于自检与测试。
// 发送不阻塞，队列满时丢帧并返回错误
func Pipe(depth int) (FrameConn, FrameConn) {
	ab := make(chan []byte, depth)
	ba := make(chan []byte, depth)
	a := &pipeEnd{in: ba, out: ab, closed: make(chan struct{})}
	b := &pipeEnd{in: ab, out: ba, closed: make(chan struct{})}
	return a, b
}

func (p *pipeEnd) Send(frame []byte) error {
	select {
	case <-p.closed:
		return net.ErrClosed
	default:
	}
	select {
	case p.out <- append([]byte(nil), frame...):
		return nil
	default:
		return errPipeFull
	}
}

func (p *pipeEnd) ReadFrame(ctx context.Context, buf []byte) (int, error) {
	select {
	case f := <-p.in:
		return copy(buf, f), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-p.closed:
		return 0, net.ErrClosed
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}
