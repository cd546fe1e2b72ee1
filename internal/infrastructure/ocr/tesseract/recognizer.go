package tesseract

import (
	"context"
	"fmt"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// Options Tesseract 参数
type Options struct {
	Languages string
	PSM       int
	Whitelist string
}

// Recognizer gosseract 客户端，非并发安全，调用串行化
type Recognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func NewRecognizer(opts Options) (*Recognizer, error) {
	c := gosseract.NewClient()
	if err := c.SetLanguage(opts.Languages); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set language %q: %w", opts.Languages, err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(opts.PSM)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("set psm %d: %w", opts.PSM, err)
	}
	if opts.Whitelist != "" {
		if err := c.SetVariable("tessedit_char_whitelist", opts.Whitelist); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return &Recognizer{client: c}, nil
}

type result struct {
	text string
	err  error
}

// ExtractText 超时后立即返回；后台识别结束前后续调用会在锁上等待
func (r *Recognizer) ExtractText(ctx context.Context, bitmap []byte) (string, error) {
	done := make(chan result, 1)
	go func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if err := r.client.SetImageFromBytes(bitmap); err != nil {
			done <- result{err: err}
			return
		}
		text, err := r.client.Text()
		done <- result{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", model.ErrRecognitionFailure, ctx.Err())
	case res := <-done:
		if res.err != nil {
			log.Error().Err(res.err).Msg("OCR识别失败")
			return "", fmt.Errorf("%w: %v", model.ErrRecognitionFailure, res.err)
		}
		log.Info().Int("length", len(res.text)).Msg("OCR识别完成")
		return res.text, nil
	}
}

func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client.Close()
}

var _ port.TextRecognizer = (*Recognizer)(nil)
