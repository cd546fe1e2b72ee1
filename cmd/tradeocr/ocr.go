package main

import (
	"tradeocr/internal/infrastructure/config"
	"tradeocr/internal/infrastructure/ocr"
	"tradeocr/internal/infrastructure/ocr/tesseract"
	"tradeocr/internal/infrastructure/svc"
)

// newOCREngine OpenCV 预处理 + tesseract 或 HTTP 识别
func newOCREngine(cfg *config.Config) (*svc.OCREngine, error) {
	engine := &svc.OCREngine{
		Preprocessor: tesseract.NewPreprocessor(tesseract.PreprocessOptions{
			MedianKsize: cfg.Preprocess.MedianKsize,
			MorphKernel: cfg.Preprocess.MorphKernel,
			Otsu:        cfg.UseOtsu(),
		}),
	}

	if cfg.OCR.Backend == "http" {
		engine.Recognizer = ocr.NewHTTPRecognizer(cfg.OCR.HTTPURL, cfg.OCR.Languages, cfg.RecognizeTimeout())
		return engine, nil
	}

	rec, err := tesseract.NewRecognizer(tesseract.Options{
		Languages: cfg.OCR.Languages,
		PSM:       cfg.OCR.PSM,
		Whitelist: cfg.OCR.Whitelist,
	})
	if err != nil {
		return nil, err
	}
	engine.Recognizer = rec
	engine.Close = rec.Close
	return engine, nil
}
