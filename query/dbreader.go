package query

import (
	"github.com/Polqt/bolodb/internal/catalog"
	"github.com/Polqt/bolodb/tsdb"
)

// DBReader adapts a mounted *tsdb.DB to BlockReader, translating its
// concrete return types into this package's narrow Btree/Block interfaces
// so the executor can be tested against fakes independent of tsdb.
type DBReader struct {
	DB *tsdb.DB
}

func (r DBReader) Tree(id catalog.IndexID) (Btree, bool) {
	t, ok := r.DB.Tree(id)
	if !ok {
		return nil, false
	}
	return t, true
}

func (r DBReader) Block(id uint64) (Block, error) {
	return r.DB.Block(id)
}
