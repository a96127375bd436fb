package pool

import (
	"github.com/programme-lv/grader/api"
	"github.com/puzpuzpuz/xsync/v3"
)

// Store maps submission ids to report snapshots. Each submission's report
// is written only by the worker owning it, and every write replaces the
// whole value, so concurrent readers always observe a consistent snapshot.
type Store struct {
	reports *xsync.MapOf[string, api.Report]
}

func NewStore() *Store {
	return &Store{reports: xsync.NewMapOf[string, api.Report]()}
}

func (s *Store) Put(rep api.Report) {
	s.reports.Store(rep.SubmID, rep)
}

func (s *Store) Get(submID string) (api.Report, bool) {
	return s.reports.Load(submID)
}
