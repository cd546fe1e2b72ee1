package tesseract

import (
	"context"
	"fmt"
	"image"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"tradeocr/internal/application/port"
	"tradeocr/internal/domain/model"
)

// PreprocessOptions 预处理参数
type PreprocessOptions struct {
	MedianKsize int  // 中值滤波核，奇数
	MorphKernel int  // 闭运算核边长
	Otsu        bool // 是否使用 Otsu 自动阈值
}

// Preprocessor 灰度 -> 中值去噪 -> 二值化 -> 闭运算，输出 PNG
type Preprocessor struct {
	opts PreprocessOptions
}

func NewPreprocessor(opts PreprocessOptions) *Preprocessor {
	if opts.MedianKsize <= 0 || opts.MedianKsize%2 == 0 {
		opts.MedianKsize = 3
	}
	if opts.MorphKernel <= 0 {
		opts.MorphKernel = 2
	}
	return &Preprocessor{opts: opts}
}

func (p *Preprocessor) Preprocess(ctx context.Context, imagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("%w: 无法读取图片 %s", model.ErrImageUnreadable, imagePath)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.MedianBlur(gray, &denoised, p.opts.MedianKsize)

	binary := gocv.NewMat()
	defer binary.Close()
	typ := gocv.ThresholdBinary
	if p.opts.Otsu {
		typ |= gocv.ThresholdOtsu
	}
	gocv.Threshold(denoised, &binary, 127, 255, typ)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.opts.MorphKernel, p.opts.MorphKernel))
	defer kernel.Close()
	cleaned := gocv.NewMat()
	defer cleaned.Close()
	gocv.MorphologyEx(binary, &cleaned, gocv.MorphClose, kernel)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: encode png: %v", model.ErrImageUnreadable, err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	log.Debug().Str("image", imagePath).Int("rows", img.Rows()).Int("cols", img.Cols()).Int("bytes", len(out)).Msg("image preprocessed")
	return out, nil
}

var _ port.Preprocessor = (*Preprocessor)(nil)
