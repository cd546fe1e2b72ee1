package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradeocr/internal/domain/model"
)

var (
	// 例如：贝达药业 14:11:28
	headerPattern = regexp.MustCompile(`^([^\d]+)\s+(\d{1,2}:\d{2}:\d{2})$`)
	// 例如：68.6800 5600 担保品买入
	bodyPattern = regexp.MustCompile(`(\d+\.\d+)\s+(\d+)\s+(.+)$`)
)

// orderKeywords 委托类型关键字，按顺序做子串匹配
var orderKeywords = []struct {
	phrase string
	tag    model.OrderType
}{
	{"担保品买入", model.OrderCollateralBuy},
	{"担保品卖出", model.OrderCollateralSell},
	{"融资买入", model.OrderMarginBuy},
	{"融资卖出", model.OrderMarginSell},
	{"普通买入", model.OrderNormalBuy},
	{"普通卖出", model.OrderNormalSell},
}

type parserState int

const (
	stateHeader parserState = iota
	stateCollecting
)

// TransactionParser 两状态行扫描器，把识别文本切分为候选交易
type TransactionParser struct{}

func NewTransactionParser() *TransactionParser {
	return &TransactionParser{}
}

// Parse 扫描文本并按出现顺序返回候选交易
func (p *TransactionParser) Parse(text string) []*model.RawTransaction {
	var (
		out     []*model.RawTransaction
		current *model.RawTransaction
		state   = stateHeader
	)

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if name, ts, ok := matchHeader(line); ok {
			if current != nil {
				out = append(out, current)
			}
			current = &model.RawTransaction{
				StockName: name,
				OrderTime: ts,
				OrderType: model.OrderUnknown,
			}
			state = stateCollecting
			continue
		}

		if state != stateCollecting {
			continue
		}

		fill, ok := matchBody(line)
		if !ok {
			continue
		}
		if current.Order == nil {
			// 第一行：委托信息
			current.Order = fill
			current.OrderType = ExtractOrderType(line)
		} else {
			// 之后的行：成交信息
			current.Execution = fill
		}
	}

	if current != nil {
		out = append(out, current)
	}

	log.Debug().Int("transactions", len(out)).Msg("parse finished")
	return out
}

// ExtractOrderType 根据关键字表推导委托类型
func ExtractOrderType(s string) model.OrderType {
	for _, kw := range orderKeywords {
		if strings.Contains(s, kw.phrase) {
			return kw.tag
		}
	}
	return model.OrderUnknown
}

func matchHeader(line string) (name, ts string, ok bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	name = strings.TrimSpace(m[1])
	if name == "" {
		return "", "", false
	}
	return name, m[2], true
}

func matchBody(line string) (*model.Fill, bool) {
	m := bodyPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	price, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil, false
	}
	qty, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, false
	}
	return &model.Fill{
		Price:    price,
		Quantity: qty,
		Text:     strings.TrimSpace(m[3]),
	}, true
}
