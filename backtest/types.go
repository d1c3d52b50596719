package backtest

import (
	"sort"
	"time"
)

// PricePoint 单个交易日收盘价
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries 日线收盘价序列（列式存储，按日期严格递增）
type PriceSeries struct {
	Symbol string      `json:"symbol"`
	Dates  []time.Time `json:"dates"`
	Closes []float64   `json:"closes"`
}

// NewPriceSeries 由数据点构建价格序列，按日期排序后校验
func NewPriceSeries(symbol string, points []PricePoint) (*PriceSeries, error) {
	sorted := make([]PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	ps := &PriceSeries{
		Symbol: symbol,
		Dates:  make([]time.Time, len(sorted)),
		Closes: make([]float64, len(sorted)),
	}
	for i, p := range sorted {
		ps.Dates[i] = p.Date
		ps.Closes[i] = p.Close
	}

	if err := ps.Validate(); err != nil {
		return nil, err
	}
	return ps, nil
}

// Len 数据点数量
func (p *PriceSeries) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Closes)
}

// Validate 校验时间轴：收盘价存在、长度一致、日期严格递增
func (p *PriceSeries) Validate() error {
	if p == nil || len(p.Closes) == 0 {
		return missingColumn("close", "price series is empty")
	}
	if len(p.Dates) != len(p.Closes) {
		return missingColumn("date", "dates and closes differ in length")
	}
	for i := 1; i < len(p.Dates); i++ {
		if !p.Dates[i].After(p.Dates[i-1]) {
			return invalidParam("date", p.Dates[i].Format("2006-01-02"), "dates must be strictly increasing")
		}
	}
	return nil
}

// Start 第一个交易日
func (p *PriceSeries) Start() time.Time {
	if p.Len() == 0 || len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[0]
}

// End 最后一个交易日
func (p *PriceSeries) End() time.Time {
	if p.Len() == 0 || len(p.Dates) == 0 {
		return time.Time{}
	}
	return p.Dates[len(p.Dates)-1]
}

// MovingAverage 与价格序列等长的均线
type MovingAverage []float64

// Signal 交叉事件序列：+1 金叉，-1 死叉，0 无变化
type Signal []int

// Position 实际持仓方向序列
type Position []int

// LedgerRow 账本中的一行（每个交易日一行）
type LedgerRow struct {
	Date           time.Time `json:"date"`
	Close          float64   `json:"close"`
	Position       int       `json:"position"`
	Trade          int       `json:"trade"`
	Cost           float64   `json:"cost"`
	Cash           float64   `json:"cash"`
	PortfolioValue float64   `json:"portfolio_value"`
}

// Ledger 资金/持仓/组合价值账本
type Ledger struct {
	Rows []LedgerRow `json:"rows"`
}

// Len 行数
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Rows)
}

// PortfolioValues 组合价值序列
func (l *Ledger) PortfolioValues() []float64 {
	values := make([]float64, l.Len())
	for i, row := range l.Rows {
		values[i] = row.PortfolioValue
	}
	return values
}

// Positions 持仓序列
func (l *Ledger) Positions() Position {
	positions := make(Position, l.Len())
	for i, row := range l.Rows {
		positions[i] = row.Position
	}
	return positions
}

// FinalValue 最后一日组合价值
func (l *Ledger) FinalValue() float64 {
	if l.Len() == 0 {
		return 0
	}
	return l.Rows[len(l.Rows)-1].PortfolioValue
}
