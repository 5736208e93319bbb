package serialport

import (
	"context"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// Port 读循环需要的串口能力，serial.Port 满足
type Port interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
}

// Opener 打开串口，测试中替换
type Opener func(path string, mode *serial.Mode) (Port, error)

// OpenSerial 用 go.bug.st/serial 打开真实串口
func OpenSerial(path string, mode *serial.Mode) (Port, error) {
	p, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Reader 持续从 dongle 读取字节写入 w；串口断开后按 retry 间隔重连
type Reader struct {
	path        string
	opts        PortOptions
	readTimeout time.Duration
	retry       time.Duration
	open        Opener
	log         *zap.Logger
	onBytes     func(n int)
	onReopen    func()
	opened      int
}

// NewReader open 为 nil 时使用 OpenSerial
func NewReader(path string, opts PortOptions, readTimeout time.Duration, open Opener, log *zap.Logger) *Reader {
	if open == nil {
		open = OpenSerial
	}
	if log == nil {
		log = zap.NewNop()
	}
	if readTimeout <= 0 {
		readTimeout = 500 * time.Millisecond
	}
	return &Reader{path: path, opts: opts, readTimeout: readTimeout, retry: 2 * time.Second, open: open, log: log}
}

// OnBytes 每次读到数据后回调（指标）
func (r *Reader) OnBytes(fn func(n int)) { r.onBytes = fn }

// OnReopen 断线重连成功、读取新数据之前回调；解码流在此丢弃旧会话的残留状态
func (r *Reader) OnReopen(fn func()) { r.onReopen = fn }

// Run 阻塞直至 ctx 结束；参数错误立即返回
func (r *Reader) Run(ctx context.Context, w io.Writer) error {
	mode, err := r.opts.Mode()
	if err != nil {
		return err
	}
	for {
		err := r.session(ctx, mode, w)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warn("serial port lost, retrying", zap.String("port", r.path), zap.Error(err), zap.Duration("retry", r.retry))
		t := time.NewTimer(r.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session 打开一次串口并读到出错为止
func (r *Reader) session(ctx context.Context, mode *serial.Mode, w io.Writer) error {
	port, err := r.open(r.path, mode)
	if err != nil {
		return err
	}
	defer port.Close()
	// 读超时让循环能感知 ctx 结束
	if err := port.SetReadTimeout(r.readTimeout); err != nil {
		return err
	}
	r.log.Info("serial port opened", zap.String("port", r.path), zap.Int("baud", mode.BaudRate), zap.Int("session", r.opened+1))
	if r.opened > 0 && r.onReopen != nil {
		r.onReopen()
	}
	r.opened++

	buf := make([]byte, 1024)
	for ctx.Err() == nil {
		n, err := port.Read(buf)
		if n > 0 {
			if r.onBytes != nil {
				r.onBytes(n)
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		// go.bug.st/serial 读超时返回 0, nil
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}
