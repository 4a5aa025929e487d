package disk

import (
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

// The filter tracks the digests of keys present on disk so definite misses
// skip file I/O entirely. Filenames are the digests, so the filter rebuilds
// from a directory listing without opening a single record. Deletions are
// not removed from the filter; a stale positive only costs one failed read.

func (s *Store) initFilter() {
	if !s.filterEnabled {
		return
	}

	filter := bloom.NewWithEstimates(s.filterItems, s.filterFP)

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		// Without a full listing the filter could report false negatives,
		// so leave it off.
		s.logger.Warn("failed to build disk filter, negative lookups disabled", zap.Error(err))
		return
	}

	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), s.suffix) {
			continue
		}
		filter.Add([]byte(strings.TrimSuffix(de.Name(), s.suffix)))
	}

	s.filterMu.Lock()
	s.filter = filter
	s.filterMu.Unlock()
}

func (s *Store) filterAdd(digest string) {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	if s.filter != nil {
		s.filter.Add([]byte(digest))
	}
}

func (s *Store) filterTest(digest string) bool {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	if s.filter == nil {
		return true
	}
	return s.filter.Test([]byte(digest))
}

func (s *Store) resetFilter() {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	if s.filter != nil {
		s.filter = bloom.NewWithEstimates(s.filterItems, s.filterFP)
	}
}
