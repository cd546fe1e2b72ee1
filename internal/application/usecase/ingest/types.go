package ingest

import (
	"time"

	"tradeocr/internal/domain/model"
)

// ImageResult 单张图片的处理结果
type ImageResult struct {
	Filename        string               `json:"filename"`
	ImagePath       string               `json:"image_path"`
	Success         bool                 `json:"success"`
	TotalRecognized int                  `json:"total_recognized"`
	TotalSaved      int                  `json:"total_saved"`
	SavedRecords    []*model.TradeRecord `json:"saved_records"`
	Warnings        []string             `json:"warnings,omitempty"`
	Error           string               `json:"error,omitempty"`
}

// BatchResult 目录批处理结果
type BatchResult struct {
	RunID           string         `json:"run_id"`
	TotalImages     int            `json:"total_images"`
	SuccessCount    int            `json:"success_count"`
	TotalRecognized int            `json:"total_recognized"`
	TotalSaved      int            `json:"total_saved"`
	Results         []*ImageResult `json:"results"`
}

// PreviewResult 识别并转换，但不入库
type PreviewResult struct {
	ImagePath       string               `json:"image_path"`
	TotalRecognized int                  `json:"total_recognized"`
	Records         []*model.TradeRecord `json:"records"`
	Warnings        []string             `json:"warnings,omitempty"`
}

// ExtractResult 原始识别文本和解析出的候选交易
type ExtractResult struct {
	ImagePath    string                  `json:"image_path"`
	Text         string                  `json:"text"`
	Transactions []*model.RawTransaction `json:"transactions"`
	Elapsed      time.Duration           `json:"elapsed"`
}

// UploadResult 上传文件落盘位置
type UploadResult struct {
	Filename string `json:"filename"`
	FilePath string `json:"file_path"`
	Size     int64  `json:"size"`
}
