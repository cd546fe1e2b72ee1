package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	appsvc "tradeocr/internal/application/service"
	"tradeocr/internal/domain/model"
	domainservice "tradeocr/internal/domain/service"
	"tradeocr/internal/infrastructure/storage/sqlite"
)

// filePreprocessor 直接把文件内容当作位图；内容以 CORRUPT 开头视为损坏
type filePreprocessor struct{}

func (filePreprocessor) Preprocess(ctx context.Context, path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrImageUnreadable, err)
	}
	if bytes.HasPrefix(b, []byte("CORRUPT")) {
		return nil, fmt.Errorf("%w: %s", model.ErrImageUnreadable, path)
	}
	return b, nil
}

// echoRecognizer 位图即文本
type echoRecognizer struct{ calls int }

func (r *echoRecognizer) ExtractText(ctx context.Context, bitmap []byte) (string, error) {
	r.calls++
	return string(bitmap), nil
}

type slowRecognizer struct{}

func (slowRecognizer) ExtractText(ctx context.Context, bitmap []byte) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

const bedaScreenshot = `委托记录
贝达药业 14:11:28
68.6800 5600 担保品买入
68.7500 5600 已成
`

type fixture struct {
	svc   *Service
	store *sqlite.Repo
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.New(filepath.Join(dir, "db", "ledger.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ledger := appsvc.NewLedgerWriter(appsvc.LedgerWriterDeps{
		Trades:    store,
		Resolver:  appsvc.NewStockResolver(store, nil),
		Positions: appsvc.NewPositionService(store, nil),
	})
	svc := NewService(ServiceDeps{
		Preprocessor: filePreprocessor{},
		Recognizer:   &echoRecognizer{},
		Parser:       domainservice.NewTransactionParser(),
		Ledger:       ledger,
		UploadDir:    filepath.Join(dir, "uploads"),
		Now:          func() time.Time { return time.Date(2025, 3, 14, 15, 4, 5, 0, time.UTC) },
	})
	return &fixture{svc: svc, store: store, dir: dir}
}

func writeImage(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

var tradeDay = time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

func TestProcessOneEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeImage(t, f.dir, "beda.png", bedaScreenshot)

	res := f.svc.ProcessOne(ctx, path, 1, tradeDay)
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.TotalRecognized != 1 || res.TotalSaved != 1 {
		t.Fatalf("expected 1/1, got %d/%d", res.TotalRecognized, res.TotalSaved)
	}

	rec := res.SavedRecords[0]
	if rec.TsCode != "300558.SZ" || rec.TradeType != model.TradeBuy || rec.Quantity != 5600 ||
		!rec.Price.Equal(decimal.RequireFromString("68.75")) {
		t.Errorf("unexpected record: %+v", rec)
	}

	pos, err := f.store.GetPosition(ctx, 1, "300558.SZ")
	if err != nil {
		t.Fatalf("GetPosition: %v", err)
	}
	if pos.Quantity != 5600 || !pos.AvgPrice.Equal(decimal.RequireFromString("68.75")) {
		t.Errorf("unexpected position: %+v", pos)
	}

	// 再次处理同一张图：不新增流水，持仓不变
	again := f.svc.ProcessOne(ctx, path, 1, tradeDay)
	if !again.Success || again.TotalRecognized != 1 || again.TotalSaved != 0 {
		t.Errorf("second run: %+v", again)
	}
	trades, _ := f.store.ListTrades(ctx, 1, "300558.SZ")
	if len(trades) != 1 {
		t.Errorf("expected 1 trade after rerun, got %d", len(trades))
	}
	pos, _ = f.store.GetPosition(ctx, 1, "300558.SZ")
	if pos.Quantity != 5600 {
		t.Errorf("position changed after rerun: %d", pos.Quantity)
	}
}

func TestProcessOneDropsBadTransactions(t *testing.T) {
	f := newFixture(t)
	path := writeImage(t, f.dir, "mixed.png", `贝达药业 14:11:28
68.6800 5600 担保品买入
未知股票 10:00:00
10.0000 100 普通买入
汉威科技 10:20:00
21.3000 100 条件单
深信服 10:30:00
`)

	res := f.svc.ProcessOne(context.Background(), path, 1, tradeDay)
	if !res.Success {
		t.Fatalf("expected success, got %q", res.Error)
	}
	if res.TotalRecognized != 4 || res.TotalSaved != 1 {
		t.Errorf("expected 4 recognized 1 saved, got %d/%d", res.TotalRecognized, res.TotalSaved)
	}
	if len(res.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", res.Warnings)
	}
}

func TestProcessOneUnreadableImage(t *testing.T) {
	f := newFixture(t)
	res := f.svc.ProcessOne(context.Background(), filepath.Join(f.dir, "missing.png"), 1, tradeDay)
	if res.Success || res.Error == "" {
		t.Errorf("expected failure, got %+v", res)
	}
}

func TestProcessOneRecognizeTimeout(t *testing.T) {
	f := newFixture(t)
	f.svc.deps.Recognizer = slowRecognizer{}
	f.svc.deps.RecognizeTimeout = 20 * time.Millisecond
	path := writeImage(t, f.dir, "slow.png", bedaScreenshot)

	res := f.svc.ProcessOne(context.Background(), path, 1, tradeDay)
	if res.Success {
		t.Fatalf("expected failure on timeout")
	}
	if !strings.Contains(res.Error, model.ErrRecognitionFailure.Error()) {
		t.Errorf("expected recognition failure, got %q", res.Error)
	}
}

// TestProcessFolderResilience 单张损坏不影响其余图片
func TestProcessFolderResilience(t *testing.T) {
	f := newFixture(t)
	imgDir := filepath.Join(f.dir, "images")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeImage(t, imgDir, "a.png", bedaScreenshot)
	writeImage(t, imgDir, "b.JPG", "CORRUPT")
	writeImage(t, imgDir, "c.jpeg", "汉威科技 09:31:00\n21.3000 200 融资买入\n")
	writeImage(t, imgDir, "notes.txt", "贝达药业 14:11:28\n")

	batch, err := f.svc.ProcessFolder(context.Background(), imgDir, 1, tradeDay)
	if err != nil {
		t.Fatalf("ProcessFolder: %v", err)
	}
	if batch.RunID == "" {
		t.Errorf("expected run id")
	}
	if batch.TotalImages != 3 || len(batch.Results) != 3 {
		t.Fatalf("expected 3 images, got %d", batch.TotalImages)
	}

	wantNames := []string{"a.png", "b.JPG", "c.jpeg"}
	for i, r := range batch.Results {
		if r.Filename != wantNames[i] {
			t.Errorf("result %d: expected %s, got %s", i, wantNames[i], r.Filename)
		}
	}
	if batch.Results[1].Success {
		t.Errorf("corrupt image should fail")
	}
	if !batch.Results[0].Success || !batch.Results[2].Success {
		t.Errorf("other images should succeed")
	}
	if batch.SuccessCount != 2 || batch.TotalRecognized != 2 || batch.TotalSaved != 2 {
		t.Errorf("unexpected aggregate: %+v", batch)
	}

	// 第二次批处理不新增任何流水
	again, err := f.svc.ProcessFolder(context.Background(), imgDir, 1, tradeDay)
	if err != nil {
		t.Fatalf("ProcessFolder rerun: %v", err)
	}
	if again.TotalSaved != 0 || again.RunID == batch.RunID {
		t.Errorf("unexpected rerun result: saved=%d run=%s", again.TotalSaved, again.RunID)
	}
}

func TestProcessFolderMissingDir(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ProcessFolder(context.Background(), filepath.Join(f.dir, "nope"), 1, tradeDay); err == nil {
		t.Errorf("expected error for missing dir")
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeImage(t, f.dir, "beda.png", bedaScreenshot)

	res, err := f.svc.Preview(ctx, path, 1, tradeDay)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(res.Records) != 1 || res.Records[0].TsCode != "300558.SZ" {
		t.Errorf("unexpected preview: %+v", res)
	}
	if trades, _ := f.store.ListTrades(ctx, 1, ""); len(trades) != 0 {
		t.Errorf("preview should not persist, got %d trades", len(trades))
	}
}

func TestExtract(t *testing.T) {
	f := newFixture(t)
	path := writeImage(t, f.dir, "beda.png", bedaScreenshot)

	res, err := f.svc.Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Text != bedaScreenshot {
		t.Errorf("unexpected text %q", res.Text)
	}
	if len(res.Transactions) != 1 || res.Transactions[0].Execution == nil {
		t.Fatalf("unexpected transactions: %+v", res.Transactions)
	}

	if _, err := f.svc.Extract(context.Background(), filepath.Join(f.dir, "missing.png")); !errors.Is(err, model.ErrImageUnreadable) {
		t.Errorf("expected ErrImageUnreadable, got %v", err)
	}
}
