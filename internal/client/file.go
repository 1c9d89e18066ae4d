package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"
)

// FileClient открывает сессии через файл устройства, обычно из FUSE kfetchd
type FileClient struct {
	path string
}

// NewFileClient создает клиента для файла устройства
func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

// Open открывает файл устройства; EBUSY превращается в ErrBusy
func (c *FileClient) Open(_ context.Context) (Conn, error) {
	file, err := os.OpenFile(c.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fromErrno(err)
	}
	return &fileConn{file: file}, nil
}

type fileConn struct {
	file *os.File

	closeOnce sync.Once
	closeErr  error
}

func (c *fileConn) SetMask(_ context.Context, raw uint32) error {
	if _, err := c.file.Write(kfetch.EncodeMask(raw)); err != nil {
		return fromErrno(err)
	}
	return nil
}

func (c *fileConn) Read(_ context.Context, length int) ([]byte, error) {
	if length < 0 {
		return nil, kerrors.New(kerrors.CodeInvalidArgument, fmt.Sprintf("negative read length %d", length))
	}
	buf := make([]byte, length)
	n, err := c.file.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fromErrno(err)
	}
	return buf[:n], nil
}

func (c *fileConn) Close(_ context.Context) error {
	c.closeOnce.Do(func() {
		c.closeErr = c.file.Close()
	})
	return c.closeErr
}

// fromErrno переводит errno файла устройства обратно в ошибки устройства,
// сохраняя errno как причину
func fromErrno(err error) error {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case syscall.EBUSY:
		return kerrors.Wrap(err, kerrors.CodeBusy, "device is busy")
	case syscall.EBADF:
		return kerrors.Wrap(err, kerrors.CodeNotOpen, "device is not open")
	case syscall.EINVAL:
		return kerrors.Wrap(err, kerrors.CodeInvalidArgument, "invalid argument")
	case syscall.EOVERFLOW:
		return kerrors.Wrap(err, kerrors.CodeBufferTooSmall, "buffer too small")
	default:
		return err
	}
}
