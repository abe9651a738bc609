// Package oracle decides price conditions against an external numeric source.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wendao-market/internal/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var log = logrus.WithField("component", "oracle")

// ErrUnavailable means no usable observation could be obtained. Callers must
// treat it as "try again later", never as a resolution signal.
var ErrUnavailable = errors.New("oracle unavailable")

// ErrAssetNotFound is returned by a Source that has no quote for the asset.
var ErrAssetNotFound = errors.New("asset not found")

// Epsilon is the tolerance applied to "=" comparisons to absorb float noise
// in externally reported prices.
var Epsilon = decimal.RequireFromString("0.01")

// DefaultTimeout bounds a single observation fetch.
const DefaultTimeout = 10 * time.Second

// Source fetches one current observation for an asset.
type Source interface {
	Price(ctx context.Context, asset string) (float64, error)
}

// Result is a decided comparison.
type Result struct {
	Matched    bool      `json:"matched"`
	Observed   float64   `json:"observed"`
	ObservedAt time.Time `json:"observed_at"`
}

// Verifier evaluates price conditions. It does not retry; a failed fetch is
// reported as ErrUnavailable and retried by the next sweep.
type Verifier struct {
	source  Source
	timeout time.Duration
	group   singleflight.Group
	now     func() time.Time
}

func NewVerifier(source Source, timeout time.Duration) *Verifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Verifier{
		source:  source,
		timeout: timeout,
		now:     time.Now,
	}
}

type observation struct {
	price float64
	at    time.Time
}

// Verify fetches the current price of asset and compares it with threshold.
// Concurrent calls for the same asset share one fetch.
func (v *Verifier) Verify(ctx context.Context, asset string, op models.Operator, threshold float64) (*Result, error) {
	if _, err := models.ParseOperator(string(op)); err != nil {
		return nil, err
	}

	ch := v.group.DoChan(asset, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, v.timeout)
		defer cancel()

		price, err := v.source.Price(fetchCtx, asset)
		if err != nil {
			return nil, err
		}
		return observation{price: price, at: v.now().UTC()}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, asset, ctx.Err())
	}
	if res.Err != nil {
		log.Printf("[Oracle] %s unavailable: %v", asset, res.Err)
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, asset, res.Err)
	}

	obs := res.Val.(observation)
	matched, err := Evaluate(op, obs.price, threshold)
	if err != nil {
		return nil, err
	}

	return &Result{Matched: matched, Observed: obs.price, ObservedAt: obs.at}, nil
}

// Evaluate applies op to (observed, threshold). "=" holds when the values
// differ by less than Epsilon.
func Evaluate(op models.Operator, observed, threshold float64) (bool, error) {
	o := decimal.NewFromFloat(observed)
	t := decimal.NewFromFloat(threshold)

	switch op {
	case models.OperatorGreater:
		return o.GreaterThan(t), nil
	case models.OperatorLess:
		return o.LessThan(t), nil
	case models.OperatorEqual:
		return o.Sub(t).Abs().LessThan(Epsilon), nil
	}
	return false, fmt.Errorf("%w: unsupported operator %q", models.ErrMalformedSpec, op)
}
