package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tradeocr/internal/application/port"
	appsvc "tradeocr/internal/application/service"
	"tradeocr/internal/domain/model"
)

// Parser 识别文本 -> 候选交易
type Parser interface {
	Parse(text string) []*model.RawTransaction
}

// Ledger 候选交易 -> 流水入库
type Ledger interface {
	Convert(ctx context.Context, tx *model.RawTransaction, userID int64, tradeDate time.Time) (*model.TradeRecord, error)
	Persist(ctx context.Context, rec *model.TradeRecord) (appsvc.Outcome, error)
}

type ServiceDeps struct {
	Preprocessor     port.Preprocessor
	Recognizer       port.TextRecognizer
	Parser           Parser
	Ledger           Ledger
	UploadDir        string
	RecognizeTimeout time.Duration
	Now              func() time.Time
}

// Service 截图入库流水线：预处理 -> 识别 -> 解析 -> 入库
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	if deps.RecognizeTimeout <= 0 {
		deps.RecognizeTimeout = 30 * time.Second
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// ProcessOne 处理单张图片；失败信息写入结果，不返回 error
func (s *Service) ProcessOne(ctx context.Context, imagePath string, userID int64, tradeDate time.Time) *ImageResult {
	res := &ImageResult{
		Filename:     filepath.Base(imagePath),
		ImagePath:    imagePath,
		SavedRecords: []*model.TradeRecord{},
	}

	txs, _, err := s.recognize(ctx, imagePath)
	if err != nil {
		log.Error().Err(err).Str("image", imagePath).Msg("处理交易图片失败")
		res.Error = err.Error()
		return res
	}
	res.TotalRecognized = len(txs)

	for _, tx := range txs {
		rec, err := s.deps.Ledger.Convert(ctx, tx, userID, tradeDate)
		if err != nil {
			log.Warn().Err(err).Str("stock", tx.StockName).Str("image", res.Filename).Msg("skip transaction")
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}

		outcome, err := s.deps.Ledger.Persist(ctx, rec)
		var rerr *appsvc.ReconcileError
		switch {
		case errors.As(err, &rerr):
			// 流水已提交，持仓未更新
			res.Warnings = append(res.Warnings, err.Error())
			res.SavedRecords = append(res.SavedRecords, rec)
		case err != nil:
			log.Error().Err(err).Str("ts_code", rec.TsCode).Msg("保存交易记录失败")
			res.Warnings = append(res.Warnings, err.Error())
		case outcome == appsvc.OutcomeDuplicate:
			// 已存在，不计入本次保存
		default:
			res.SavedRecords = append(res.SavedRecords, rec)
		}
	}

	res.TotalSaved = len(res.SavedRecords)
	res.Success = true
	log.Info().
		Str("image", res.Filename).
		Int("recognized", res.TotalRecognized).
		Int("saved", res.TotalSaved).
		Msg("image processed")
	return res
}

// ProcessFolder 按文件名顺序处理目录下所有支持格式的图片，单张失败不影响其余
func (s *Service) ProcessFolder(ctx context.Context, dir string, userID int64, tradeDate time.Time) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsSupported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	batch := &BatchResult{
		RunID:   uuid.NewString(),
		Results: make([]*ImageResult, 0, len(names)),
	}
	logger := log.With().Str("run_id", batch.RunID).Logger()
	logger.Info().Str("dir", dir).Int("images", len(names)).Msg("batch started")

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		logger.Info().Str("image", name).Msg("处理图片")
		res := s.ProcessOne(ctx, filepath.Join(dir, name), userID, tradeDate)
		res.Filename = name

		batch.Results = append(batch.Results, res)
		batch.TotalImages++
		if res.Success {
			batch.SuccessCount++
		}
		batch.TotalRecognized += res.TotalRecognized
		batch.TotalSaved += res.TotalSaved
	}

	logger.Info().
		Int("images", batch.TotalImages).
		Int("success", batch.SuccessCount).
		Int("recognized", batch.TotalRecognized).
		Int("saved", batch.TotalSaved).
		Msg("batch finished")
	return batch, nil
}

// Preview 识别并转换为待入库流水，不写库
func (s *Service) Preview(ctx context.Context, imagePath string, userID int64, tradeDate time.Time) (*PreviewResult, error) {
	txs, _, err := s.recognize(ctx, imagePath)
	if err != nil {
		return nil, err
	}

	res := &PreviewResult{
		ImagePath:       imagePath,
		TotalRecognized: len(txs),
		Records:         []*model.TradeRecord{},
	}
	for _, tx := range txs {
		rec, err := s.deps.Ledger.Convert(ctx, tx, userID, tradeDate)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// Extract 只做识别和解析，用于检查识别效果
func (s *Service) Extract(ctx context.Context, imagePath string) (*ExtractResult, error) {
	start := s.deps.Now()
	txs, text, err := s.recognize(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*model.RawTransaction{}
	}
	return &ExtractResult{
		ImagePath:    imagePath,
		Text:         text,
		Transactions: txs,
		Elapsed:      s.deps.Now().Sub(start),
	}, nil
}

func (s *Service) recognize(ctx context.Context, imagePath string) ([]*model.RawTransaction, string, error) {
	bitmap, err := s.deps.Preprocessor.Preprocess(ctx, imagePath)
	if err != nil {
		if !errors.Is(err, model.ErrImageUnreadable) {
			err = fmt.Errorf("%w: %v", model.ErrImageUnreadable, err)
		}
		return nil, "", err
	}

	rctx, cancel := context.WithTimeout(ctx, s.deps.RecognizeTimeout)
	defer cancel()

	text, err := s.deps.Recognizer.ExtractText(rctx, bitmap)
	if err != nil {
		if !errors.Is(err, model.ErrRecognitionFailure) {
			err = fmt.Errorf("%w: %v", model.ErrRecognitionFailure, err)
		}
		return nil, "", err
	}
	log.Debug().Str("image", imagePath).Int("chars", len(text)).Msg("text recognized")

	return s.deps.Parser.Parse(strings.TrimSpace(text)), text, nil
}
