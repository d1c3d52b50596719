package backtest

import (
	"errors"
	"fmt"
)

// 错误分类（可用 errors.Is 判断）
var (
	ErrMissingColumn    = errors.New("missing column")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInsufficientData = errors.New("insufficient data")
)

// MissingColumnError 输入序列缺失或长度不一致
type MissingColumnError struct {
	Column string
	Reason string
}

func (e *MissingColumnError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing column %q", e.Column)
	}
	return fmt.Sprintf("missing column %q: %s", e.Column, e.Reason)
}

func (e *MissingColumnError) Unwrap() error { return ErrMissingColumn }

// InvalidParameterError 参数不合法（窗口、费率、资金等）
type InvalidParameterError struct {
	Name   string
	Value  interface{}
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error { return ErrInvalidParameter }

// InsufficientDataError 数据点不足以计算指标
type InsufficientDataError struct {
	Metric string
	Need   int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need at least %d points, got %d", e.Metric, e.Need, e.Got)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

func missingColumn(column, reason string) error {
	return &MissingColumnError{Column: column, Reason: reason}
}

func invalidParam(name string, value interface{}, reason string) error {
	return &InvalidParameterError{Name: name, Value: value, Reason: reason}
}

func insufficientData(metric string, need, got int) error {
	return &InsufficientDataError{Metric: metric, Need: need, Got: got}
}
