package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// HTTPRecognizer 把位图上传到外部识别服务
// 请求：multipart 字段 image；响应：{"text": "..."} 或 {"lines": ["..."]}
type HTTPRecognizer struct {
	client *resty.Client
	url    string
	lang   string
}

type recognizeResponse struct {
	Text  string   `json:"text"`
	Lines []string `json:"lines"`
	Error string   `json:"error"`
}

func NewHTTPRecognizer(url, lang string, timeout time.Duration) *HTTPRecognizer {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	return &HTTPRecognizer{client: client, url: url, lang: lang}
}

func (r *HTTPRecognizer) ExtractText(ctx context.Context, bitmap []byte) (string, error) {
	if len(bitmap) == 0 {
		return "", fmt.Errorf("%w: empty bitmap", model.ErrRecognitionFailure)
	}

	var out recognizeResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetFileReader("image", "image.png", bytes.NewReader(bitmap)).
		SetFormData(map[string]string{"lang": r.lang}).
		SetResult(&out).
		SetError(&out).
		Post(r.url)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrRecognitionFailure, err)
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", fmt.Errorf("%w: %s", model.ErrRecognitionFailure, msg)
	}

	text := out.Text
	if text == "" && len(out.Lines) > 0 {
		text = strings.Join(out.Lines, "\n")
	}
	log.Info().Int("length", len(text)).Dur("elapsed", resp.Time()).Msg("OCR识别完成")
	return text, nil
}

var _ port.TextRecognizer = (*HTTPRecognizer)(nil)
