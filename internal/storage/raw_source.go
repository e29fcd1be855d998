package storage

import (
	"context"
)

// BronzePrefix names staged raw tables: the extract for source "orders" is
// staged as "brz_orders".
const BronzePrefix = "brz_"

// TableSource serves raw extracts from staged bronze tables through the
// transform engine's RawSource seam.
type TableSource struct {
	Repo Repository
}

// ReadEntity selects the full staged extract for one source. Columns the
// staged table lacks surface as a query error; staging owns schema drift.
func (s *TableSource) ReadEntity(ctx context.Context, source string, columns []string) ([][]any, error) {
	return s.Repo.SelectRows(ctx, BronzePrefix+source, columns)
}
