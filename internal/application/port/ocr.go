package port

import "context"

// Preprocessor 读取图片并输出便于识别的位图（PNG 编码）
type Preprocessor interface {
	Preprocess(ctx context.Context, imagePath string) ([]byte, error)
}

// TextRecognizer 外部文字识别，可能返回空文本或乱码
type TextRecognizer interface {
	ExtractText(ctx context.Context, bitmap []byte) (string, error)
}
