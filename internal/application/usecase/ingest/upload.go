package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"tradeocr/internal/domain/model"
)

var supportedFormats = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// SupportedFormats 支持的图片扩展名
func SupportedFormats() []string {
	out := make([]string, len(supportedFormats))
	copy(out, supportedFormats)
	return out
}

// IsSupported 扩展名大小写不敏感
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, f := range supportedFormats {
		if ext == f {
			return true
		}
	}
	return false
}

// SanitizeFilename 去掉路径和不安全字符
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	return name
}

// StoreUpload 把上传内容写入上传目录，文件名为 <YYYYmmdd_HHMMSS>_<name>
func (s *Service) StoreUpload(r io.Reader, filename string) (*UploadResult, error) {
	if !IsSupported(filename) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedFormat, filepath.Ext(filename))
	}
	clean := SanitizeFilename(filename)
	if clean == "" || !IsSupported(clean) {
		return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, filename)
	}
	if s.deps.UploadDir == "" {
		return nil, fmt.Errorf("upload dir not configured")
	}
	if err := os.MkdirAll(s.deps.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir upload dir: %w", err)
	}

	stored := s.deps.Now().Format("20060102_150405") + "_" + clean
	path := filepath.Join(s.deps.UploadDir, stored)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", path, copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close %s: %w", path, closeErr)
	}

	log.Info().Str("path", path).Int64("bytes", n).Msg("文件已保存")
	return &UploadResult{Filename: stored, FilePath: path, Size: n}, nil
}
