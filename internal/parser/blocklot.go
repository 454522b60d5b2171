package parser

import (
	"strings"

	"github.com/jp-address-parser/app/models"
)

// SplitBlockLot splits the gazetteer remainder on "-": the first segment is
// the banch and the rest, joined by spaces, the go. Segments are not
// validated, so "渡辺3号" passes through as a banch.
func SplitBlockLot(addr string) (banch, goNumber *string) {
	if addr == "" {
		return nil, nil
	}
	parts := strings.Split(addr, "-")
	banch = models.Optional(parts[0])
	if len(parts) > 1 {
		goNumber = models.Optional(strings.Join(parts[1:], " "))
	}
	return banch, goNumber
}
