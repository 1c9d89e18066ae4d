// Package fusedev предоставляет устройство kfetch файлом в FUSE.
// Открытие файла открывает сессию, чтение возвращает отчет, запись ровно
// kfetch.MaskWidth байт задает маску, закрытие завершает сессию.
package fusedev

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	kerrors "kfetch/internal/errors"
	"kfetch/internal/kfetch"
	"kfetch/internal/logger"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// DeviceName имя файла устройства в корне монтирования
const DeviceName = "kfetch"

// Options параметры монтирования
type Options struct {
	// Mountpoint каталог монтирования, создается при отсутствии
	Mountpoint string

	// Device устройство, которое обслуживает файл
	Device *kfetch.Device

	// AllowOther разрешает доступ другим пользователям.
	// Требует user_allow_other в /etc/fuse.conf.
	AllowOther bool
}

// Mount монтирует файловую систему; вызывающий обязан вызвать Unmount
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Device == nil {
		return nil, fmt.Errorf("device is required")
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{device: options.Device}

	// Отчет всегда актуален, ядро не должно кэшировать атрибуты и записи
	var zero time.Duration
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &zero,
		AttrTimeout:  &zero,
		MountOptions: fuse.MountOptions{
			FsName:     "kfetch",
			Name:       "kfetch",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	logger.FUSE.Info().
		Str("mountpoint", options.Mountpoint).
		Str("device", DeviceName).
		Msg("Device filesystem mounted")
	return server, nil
}

type rootNode struct {
	gofuse.Inode
	device *kfetch.Device
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	file := r.NewPersistentInode(ctx, &deviceNode{device: r.device}, gofuse.StableAttr{Mode: syscall.S_IFREG})
	r.AddChild(DeviceName, file, true)
}

// deviceNode - файл устройства. Размер нулевой, как у файлов в /proc,
// весь ввод-вывод идет через дескриптор открытия.
type deviceNode struct {
	gofuse.Inode
	device *kfetch.Device
}

var _ gofuse.InodeEmbedder = (*deviceNode)(nil)
var _ gofuse.NodeOpener = (*deviceNode)(nil)
var _ gofuse.NodeGetattrer = (*deviceNode)(nil)
var _ gofuse.NodeSetattrer = (*deviceNode)(nil)

func (d *deviceNode) Getattr(_ context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFREG | 0o666
	out.Size = 0
	return 0
}

// Setattr принимает и игнорирует усечение, чтобы работало перенаправление shell
func (d *deviceNode) Setattr(ctx context.Context, f gofuse.FileHandle, _ *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return d.Getattr(ctx, f, out)
}

func (d *deviceNode) Open(_ context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	session, err := d.device.Open()
	if err != nil {
		logger.FUSE.Debug().Err(err).Msg("Device open rejected")
		return nil, 0, errnoFor(err)
	}

	logger.FUSE.Debug().
		Str("session_id", session.ID).
		Uint32("flags", flags).
		Msg("Device opened")

	// При direct I/O размер буфера read(2) доходит без изменений,
	// с ним устройство и сравнивает размер отчета.
	return &deviceHandle{device: d.device, sessionID: session.ID}, fuse.FOPEN_DIRECT_IO, 0
}

// deviceHandle - одно открытие файла, владеет своей сессией
type deviceHandle struct {
	device    *kfetch.Device
	sessionID string

	mu sync.Mutex
	// report - последний отчет, прочитанный со смещения 0. Чтения с большим
	// смещением продолжают его, последовательные читатели доходят до EOF.
	report []byte
}

var _ gofuse.FileReader = (*deviceHandle)(nil)
var _ gofuse.FileWriter = (*deviceHandle)(nil)
var _ gofuse.FileReleaser = (*deviceHandle)(nil)

func (h *deviceHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if off == 0 {
		report, err := h.device.Read(ctx, h.sessionID, len(dest))
		if err != nil {
			return nil, errnoFor(err)
		}
		h.report = report
		return fuse.ReadResultData(report), 0
	}

	if off >= int64(len(h.report)) {
		return fuse.ReadResultData(nil), 0
	}
	rest := h.report[off:]
	if len(rest) > len(dest) {
		rest = rest[:len(dest)]
	}
	return fuse.ReadResultData(rest), 0
}

func (h *deviceHandle) Write(_ context.Context, data []byte, _ int64) (uint32, syscall.Errno) {
	if err := h.device.Write(h.sessionID, data); err != nil {
		return 0, errnoFor(err)
	}
	return uint32(len(data)), 0
}

func (h *deviceHandle) Release(_ context.Context) syscall.Errno {
	h.device.Close(h.sessionID)
	logger.FUSE.Debug().Str("session_id", h.sessionID).Msg("Device released")
	return 0
}

// errnoFor сопоставляет ошибки устройства с errno символьного устройства
func errnoFor(err error) syscall.Errno {
	switch kerrors.CodeOf(err) {
	case kerrors.CodeBusy:
		return syscall.EBUSY
	case kerrors.CodeNotOpen:
		return syscall.EBADF
	case kerrors.CodeInvalidArgument:
		return syscall.EINVAL
	case kerrors.CodeBufferTooSmall:
		return syscall.EOVERFLOW
	default:
		return syscall.EIO
	}
}
