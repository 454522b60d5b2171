//go:build !cgo

package external

import (
	"context"

	"github.com/jp-address-parser/internal/gazetteer"
	"go.uber.org/zap"
)

// LibpostalSplitter is unavailable in builds without cgo.
type LibpostalSplitter struct{}

// NewLibpostalSplitter always fails without cgo.
func NewLibpostalSplitter(bool, *zap.Logger) (*LibpostalSplitter, error) {
	return nil, ErrLibpostalUnavailable
}

func (ls *LibpostalSplitter) Split(context.Context, string) (*gazetteer.Result, error) {
	return nil, ErrLibpostalUnavailable
}
