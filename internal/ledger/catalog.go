package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
)

// Catalog resolves the assets the exchange knows about.
type Catalog interface {
	Asset(ctx context.Context, symbol string) (model.Asset, error)
	Assets(ctx context.Context) ([]model.Asset, error)
}

// StaticCatalog is a fixed set of assets, usually read from configuration.
type StaticCatalog map[string]model.Asset

func NewStaticCatalog(assets ...model.Asset) StaticCatalog {
	c := make(StaticCatalog, len(assets))
	for _, a := range assets {
		c[a.Symbol] = a
	}
	return c
}

func (c StaticCatalog) Asset(_ context.Context, symbol string) (model.Asset, error) {
	a, ok := c[symbol]
	if !ok {
		return model.Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

func (c StaticCatalog) Assets(context.Context) ([]model.Asset, error) {
	out := make([]model.Asset, 0, len(c))
	for _, a := range c {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}
