package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"loc-api/internal/logger"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// 文档注释：文件缓存层（跨进程持久）
// 背景：对应浏览器 localStorage 的持久语义；每个键一个 zstd 压缩文件，重启后仍可命中。
// 约束：写入先落临时文件再 rename，读者不会看到半写状态；键中非 [A-Za-z0-9._-] 字符替换为下划线。
type File struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &File{dir: dir, enc: enc, dec: dec}, nil
}

func (f *File) path(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return filepath.Join(f.dir, b.String()+".json.zst")
}

func (f *File) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	b, err := f.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, fmt.Errorf("filecache %s decode: %w", key, err)
	}
	return b, true, nil
}

func (f *File) Set(ctx context.Context, key string, val []byte) error {
	fp := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(f.enc.EncodeAll(val, nil)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), fp); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	logger.L().Debug("filecache_written", "key", key, "bytes", len(val))
	return nil
}

func (f *File) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
