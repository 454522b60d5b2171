//go:build cgo

package external

import (
	"context"

	"github.com/jp-address-parser/internal/gazetteer"
	"github.com/openvenues/gopostal/expand"
	"github.com/openvenues/gopostal/parser"
	"go.uber.org/zap"
)

// LibpostalSplitter delegates segmentation to libpostal. It is a fallback for
// deployments without a gazetteer; libpostal does not know Japanese chome
// conventions, so towns come back as libpostal labels them.
type LibpostalSplitter struct {
	expand bool
	logger *zap.Logger
}

// NewLibpostalSplitter creates the splitter. With expand set the first
// libpostal expansion is parsed instead of the raw text.
func NewLibpostalSplitter(expandFirst bool, logger *zap.Logger) (*LibpostalSplitter, error) {
	return &LibpostalSplitter{expand: expandFirst, logger: logger}, nil
}

func (ls *LibpostalSplitter) Split(ctx context.Context, text string) (*gazetteer.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	best := text
	if ls.expand {
		opts := expand.DefaultOptions()
		opts.Languages = []string{"ja"}
		if exps := expand.ExpandAddress(text, opts); len(exps) > 0 {
			best = exps[0]
		}
	}

	parsed := parser.ParseAddress(best)
	comps := make([]Component, 0, len(parsed))
	for _, c := range parsed {
		comps = append(comps, Component{Label: c.Label, Value: c.Value})
	}
	ls.logger.Debug("libpostal parse", zap.String("input", best), zap.Int("components", len(comps)))
	return ResultFromComponents(text, comps)
}
