package models

import (
	"fmt"
	"strings"
)

// VerifyKind tags how a market's outcome can be verified.
type VerifyKind string

const (
	VerifyKindPrice    VerifyKind = "price"
	VerifyKindEconomy  VerifyKind = "economy"
	VerifyKindCompany  VerifyKind = "company"
	VerifyKindTech     VerifyKind = "tech"
	VerifyKindPolitics VerifyKind = "politics"
)

// Operator is the comparison applied between an observed value and a threshold.
type Operator string

const (
	OperatorGreater Operator = ">"
	OperatorLess    Operator = "<"
	OperatorEqual   Operator = "="
)

// ParseOperator rejects anything other than >, < and =.
func ParseOperator(s string) (Operator, error) {
	switch op := Operator(strings.TrimSpace(s)); op {
	case OperatorGreater, OperatorLess, OperatorEqual:
		return op, nil
	}
	return "", fmt.Errorf("%w: unsupported operator %q", ErrMalformedSpec, s)
}

// VerifySpec is a closed set of verification conditions: PriceSpec or ManualSpec.
type VerifySpec interface {
	Kind() VerifyKind
	isVerifySpec()
}

// PriceSpec markets are resolved automatically against the price oracle.
type PriceSpec struct {
	Asset     string
	Operator  Operator
	Threshold float64
}

func (PriceSpec) Kind() VerifyKind { return VerifyKindPrice }
func (PriceSpec) isVerifySpec()    {}

// ManualSpec markets are left for operators. The raw condition is kept for
// display only.
type ManualSpec struct {
	Subtype  VerifyKind
	Asset    string
	Operator string
	Value    float64
}

func (s ManualSpec) Kind() VerifyKind { return s.Subtype }
func (ManualSpec) isVerifySpec()      {}

// ParseVerifySpec builds a VerifySpec from its loose persisted/wire form.
// Unknown kinds return ErrUnknownVerifyKind; a price condition without an
// asset or with a bad operator returns ErrMalformedSpec.
func ParseVerifySpec(kind, asset, operator string, value float64) (VerifySpec, error) {
	switch k := VerifyKind(strings.ToLower(strings.TrimSpace(kind))); k {
	case VerifyKindPrice:
		asset = strings.TrimSpace(asset)
		if asset == "" {
			return nil, fmt.Errorf("%w: price condition has no asset", ErrMalformedSpec)
		}
		op, err := ParseOperator(operator)
		if err != nil {
			return nil, err
		}
		return PriceSpec{Asset: asset, Operator: op, Threshold: value}, nil
	case VerifyKindEconomy, VerifyKindCompany, VerifyKindTech, VerifyKindPolitics:
		return ManualSpec{Subtype: k, Asset: asset, Operator: operator, Value: value}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVerifyKind, kind)
	}
}
