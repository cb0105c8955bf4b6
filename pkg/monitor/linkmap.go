package monitor

import (
	"github.com/pathwatch-io/pathwatch/pkg/filesystem"
)

// linkMap maps canonicalized link targets to the set of symbolic-link paths
// that alias them. It is used to materialize filesystem events under every
// path through which the parent synchronizer may know them.
type linkMap map[string]map[string]bool

// add records that link aliases the canonical path target.
func (l linkMap) add(target, link string) {
	links, ok := l[target]
	if !ok {
		links = make(map[string]bool)
		l[target] = links
	}
	links[link] = true
}

// expand returns path together with every aliased rendition of path: for each
// known target that is a prefix of path, the corresponding suffix is rebased
// onto each of the target's aliasing links.
func (l linkMap) expand(path string) []string {
	candidates := []string{path}
	for target, links := range l {
		suffix, ok := filesystem.TrimPathPrefix(path, target)
		if !ok {
			continue
		}
		for link := range links {
			candidates = append(candidates, filesystem.JoinRelative(link, suffix))
		}
	}
	return candidates
}
