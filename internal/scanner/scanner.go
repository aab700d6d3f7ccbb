// Package scanner compiles each registered priority tier's handlers into
// its own YARA rule set and scans a file tier by tier, producing the
// candidate (handler, start offset) pairs the driver validates.
package scanner

import (
	"fmt"
	"strings"
	"time"

	"github.com/hillu/go-yara/v4"

	"github.com/nicholas-fedor/blobextract/internal/handler"
)

// ScanTimeout bounds a single file's YARA pass, matching unblob's
// finder.py timeout=60 on Rules.match.
const ScanTimeout = 60 * time.Second

// Candidate is a still-unvalidated container instance: a handler whose
// rule matched, and the absolute offset its header should start at once
// the match offset within the pattern is accounted for.
type Candidate struct {
	Handler handler.Handler
	Offset  int64
}

// tierRules is one priority tier's compiled rule set.
type tierRules struct {
	rules      *yara.Rules
	byRuleName map[string]handler.Handler
}

// Scanner owns one compiled YARA rule set per priority tier in a
// Registry. Compilation happens once at construction; Scan is safe for
// concurrent use across worker goroutines.
type Scanner struct {
	tiers []*tierRules
}

// New compiles each tier in reg into its own rule set, one YARA rule per
// handler named after handler.Name(), mirroring how unblob's Finder
// keeps handler priority groups distinct and scans them in order rather
// than flattening every handler into a single match pass.
func New(reg *handler.Registry) (*Scanner, error) {
	var tiers []*tierRules

	for _, handlers := range reg.Tiers() {
		if len(handlers) == 0 {
			continue
		}

		var src strings.Builder

		byRuleName := make(map[string]handler.Handler)

		for _, h := range handlers {
			byRuleName[h.Name()] = h

			fmt.Fprintf(&src, "rule %s {\n%s\n}\n", h.Name(), h.Rule())
		}

		rules, err := yara.Compile(src.String(), nil)
		if err != nil {
			return nil, fmt.Errorf("compile tier rule set: %w", err)
		}

		tiers = append(tiers, &tierRules{rules: rules, byRuleName: byRuleName})
	}

	return &Scanner{tiers: tiers}, nil
}

// Close releases every tier's compiled rule set's C resources.
func (s *Scanner) Close() {
	for _, t := range s.tiers {
		t.rules.Destroy()
	}
}

// Scan runs each tier's rule set against path, in priority order, and
// returns the candidates from every tier concatenated tier by tier.
// Keeping higher-priority tiers first in the returned slice is what
// makes "earlier tiers win containment ties" true downstream:
// chunk.OuterChunks sorts candidates by size with a stable sort, so
// among equal-sized chunks the one that appears first in this slice -
// the one from the higher-priority tier - is the one kept.
func (s *Scanner) Scan(path string) ([]Candidate, error) {
	var all []Candidate

	for _, t := range s.tiers {
		candidates, err := t.scan(path)
		if err != nil {
			return nil, err
		}

		all = append(all, candidates...)
	}

	return all, nil
}

// scan runs one tier's combined rule set against path and returns one
// Candidate per matched string occurrence, with the handler's
// MatchOffset already applied. Occurrences that would resolve to a
// negative start offset are dropped, matching unblob's Finder (a
// pattern that matches inside a header near the start of a file has
// nothing valid before offset 0).
func (t *tierRules) scan(path string) ([]Candidate, error) {
	var matches yara.MatchRules

	if err := t.rules.ScanFile(path, 0, ScanTimeout, &matches); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	seen := make(map[Candidate]struct{})

	var candidates []Candidate

	for _, m := range matches {
		h, ok := t.byRuleName[m.Rule]
		if !ok {
			continue
		}

		for _, str := range m.Strings {
			start := int64(str.Offset) + h.MatchOffset()
			if start < 0 {
				continue
			}

			c := Candidate{Handler: h, Offset: start}
			if _, dup := seen[c]; dup {
				continue
			}

			seen[c] = struct{}{}

			candidates = append(candidates, c)
		}
	}

	return candidates, nil
}
