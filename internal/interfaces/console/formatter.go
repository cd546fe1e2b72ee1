package console

import (
	"fmt"
	"strings"

	"tradeocr/internal/application/usecase/ingest"
	"tradeocr/internal/domain/model"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiDim    = "\033[2m"
)

type Formatter struct {
	Color bool
}

func NewFormatter(color bool) *Formatter {
	return &Formatter{Color: color}
}

func (f *Formatter) colorize(s, c string) string {
	if !f.Color {
		return s
	}
	return c + s + ansiReset
}

// Render 按结果类型输出人类可读文本
func (f *Formatter) Render(v any) string {
	var sb strings.Builder
	switch r := v.(type) {
	case *ingest.ImageResult:
		f.writeImage(&sb, r)
	case *ingest.BatchResult:
		for _, res := range r.Results {
			f.writeImage(&sb, res)
		}
		fmt.Fprintf(&sb, "%s images=%d success=%d recognized=%d saved=%d\n",
			f.colorize("[BATCH "+r.RunID+"]", ansiDim), r.TotalImages, r.SuccessCount, r.TotalRecognized, r.TotalSaved)
	case *ingest.PreviewResult:
		fmt.Fprintf(&sb, "%s recognized=%d convertible=%d\n", f.colorize("[PREVIEW]", ansiDim), r.TotalRecognized, len(r.Records))
		for _, rec := range r.Records {
			f.writeTrade(&sb, rec)
		}
		f.writeWarnings(&sb, r.Warnings)
	case *ingest.ExtractResult:
		fmt.Fprintf(&sb, "%s %s (%s)\n", f.colorize("[TEXT]", ansiDim), r.ImagePath, r.Elapsed)
		sb.WriteString(r.Text)
		if !strings.HasSuffix(r.Text, "\n") {
			sb.WriteString("\n")
		}
		for _, tx := range r.Transactions {
			f.writeRaw(&sb, tx)
		}
	case *ingest.UploadResult:
		fmt.Fprintf(&sb, "%s %s (%d bytes)\n", f.colorize("[UPLOAD]", ansiGreen), r.FilePath, r.Size)
	case []*model.Position:
		if len(r) == 0 {
			sb.WriteString(f.colorize("no positions\n", ansiDim))
		}
		for _, p := range r {
			fmt.Fprintf(&sb, "%-10s qty=%-8d avg=%s\n", p.TsCode, p.Quantity, p.AvgPrice.StringFixed(4))
		}
	case []*model.TradeRecord:
		if len(r) == 0 {
			sb.WriteString(f.colorize("no trades\n", ansiDim))
		}
		for _, rec := range r {
			f.writeTrade(&sb, rec)
		}
	case []string:
		sb.WriteString(strings.Join(r, " "))
		sb.WriteString("\n")
	default:
		fmt.Fprintf(&sb, "%+v\n", v)
	}
	return sb.String()
}

func (f *Formatter) writeImage(sb *strings.Builder, r *ingest.ImageResult) {
	if !r.Success {
		fmt.Fprintf(sb, "%s %s: %s\n", f.colorize("[FAIL]", ansiRed), r.Filename, r.Error)
		return
	}
	fmt.Fprintf(sb, "%s %s recognized=%d saved=%d\n", f.colorize("[OK]", ansiGreen), r.Filename, r.TotalRecognized, r.TotalSaved)
	for _, rec := range r.SavedRecords {
		f.writeTrade(sb, rec)
	}
	f.writeWarnings(sb, r.Warnings)
}

func (f *Formatter) writeTrade(sb *strings.Builder, rec *model.TradeRecord) {
	side := f.colorize(string(rec.TradeType), ansiRed)
	if rec.TradeType == model.TradeSell {
		side = f.colorize(string(rec.TradeType), ansiGreen)
	}
	fmt.Fprintf(sb, "  %s %-10s %-4s %6d @ %s", rec.TradeDate.Format(model.DateLayout), rec.TsCode, side, rec.Quantity, rec.Price.String())
	if rec.ProfitLoss.Valid {
		pl := rec.ProfitLoss.Decimal
		c := ansiRed
		if pl.IsNegative() {
			c = ansiGreen
		}
		fmt.Fprintf(sb, "  pl=%s", f.colorize(pl.StringFixed(2), c))
	}
	sb.WriteString("\n")
}

func (f *Formatter) writeRaw(sb *strings.Builder, tx *model.RawTransaction) {
	fmt.Fprintf(sb, "  %s %s %s", tx.StockName, tx.OrderTime, tx.OrderType)
	if tx.Order != nil {
		fmt.Fprintf(sb, " order=%s x %d", tx.Order.Price.String(), tx.Order.Quantity)
	}
	if tx.Execution != nil {
		fmt.Fprintf(sb, " exec=%s x %d %s", tx.Execution.Price.String(), tx.Execution.Quantity, tx.Execution.Text)
	}
	sb.WriteString("\n")
}

func (f *Formatter) writeWarnings(sb *strings.Builder, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(sb, "  %s %s\n", f.colorize("warn:", ansiYellow), w)
	}
}
