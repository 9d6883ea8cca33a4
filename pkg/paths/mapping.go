package paths

import (
	"path/filepath"
	"sort"
	"strings"
)

// MappingPair maps one remote path prefix to the local prefix it is mounted at.
type MappingPair struct {
	Remote string
	Local  string
}

// Mapper translates paths between the remote client's view of the
// filesystem and this host's view. Pairs are scanned in order and the first
// matching prefix is substituted; paths matching no pair pass through.
type Mapper struct {
	pairs []MappingPair
}

// NewMapper returns a Mapper over pairs, kept in the given order.
func NewMapper(pairs []MappingPair) *Mapper {
	cleaned := make([]MappingPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Remote == "" || p.Local == "" {
			continue
		}
		cleaned = append(cleaned, MappingPair{
			Remote: filepath.Clean(p.Remote),
			Local:  filepath.Clean(p.Local),
		})
	}
	return &Mapper{pairs: cleaned}
}

// PairsFromMap orders a remote->local map deterministically: longest remote
// prefix first, ties broken lexically. Config maps carry no key order, and
// the most specific mapping has to win.
func PairsFromMap(m map[string]string) []MappingPair {
	pairs := make([]MappingPair, 0, len(m))
	for remote, local := range m {
		pairs = append(pairs, MappingPair{Remote: remote, Local: local})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		li, lj := len(filepath.Clean(pairs[i].Remote)), len(filepath.Clean(pairs[j].Remote))
		if li != lj {
			return li > lj
		}
		return pairs[i].Remote < pairs[j].Remote
	})
	return pairs
}

// Pairs returns a copy of the mapping pairs in scan order.
func (m *Mapper) Pairs() []MappingPair {
	out := make([]MappingPair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// ToLocal maps a path reported by the remote client to this host.
func (m *Mapper) ToLocal(remotePath string) string {
	for _, p := range m.pairs {
		if mapped, ok := replacePrefix(remotePath, p.Remote, p.Local); ok {
			return mapped
		}
	}
	return remotePath
}

// ToRemote maps a local path back to the remote client's view. It scans the
// same pairs in the same order with the roles swapped.
func (m *Mapper) ToRemote(localPath string) string {
	for _, p := range m.pairs {
		if mapped, ok := replacePrefix(localPath, p.Local, p.Remote); ok {
			return mapped
		}
	}
	return localPath
}

func replacePrefix(path, from, to string) (string, bool) {
	if !HasPathPrefix(path, from) {
		return path, false
	}
	rest := strings.TrimPrefix(filepath.Clean(path), from)
	if rest == "" {
		return to, true
	}
	return filepath.Join(to, rest), true
}
