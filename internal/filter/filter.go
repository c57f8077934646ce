// Package filter implements the ignore-filter machinery the scan engine
// consults while reading directories (spec.md §4.5): wildcard/regexp/fixed-
// string exclude rules, suffix and name-pattern filters, and the special
// "file-child" rules that wipe a whole directory when one of its direct,
// non-directory children matches.
package filter

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
)

// Kind is the pattern language an ExcludeRule is written in.
type Kind int

const (
	KindWildcard Kind = iota
	KindRegExp
	KindFixedString
)

// ExcludeRule is one compiled exclude pattern, grounded on Wildcard.cpp's
// anchored, non-capturing conversion from a shell-style glob to a regular
// expression — doublestar plays the role QRegularExpression::
// wildcardToRegularExpression played there.
type ExcludeRule struct {
	Pattern         string
	Kind            Kind
	CaseInsensitive bool
	// MatchFullPath matches against the node's absolute path; otherwise
	// only the leaf name is tested.
	MatchFullPath bool
	// FileChild marks a rule evaluated against a directory's direct,
	// non-directory children: a single match wipes the whole directory
	// back to empty and marks it on-request-only (§4.4 step 4).
	FileChild bool

	re *regexp.Regexp // compiled for KindRegExp only
}

// NewExcludeRule compiles pattern under kind, returning an error only for a
// malformed regular expression (wildcard and fixed-string patterns are
// always valid).
func NewExcludeRule(pattern string, kind Kind, caseInsensitive, matchFullPath, fileChild bool) (*ExcludeRule, error) {
	r := &ExcludeRule{
		Pattern:         pattern,
		Kind:            kind,
		CaseInsensitive: caseInsensitive,
		MatchFullPath:   matchFullPath,
		FileChild:       fileChild,
	}
	if kind == KindRegExp {
		expr := pattern
		if caseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errors.Wrapf(err, "filter: invalid regular expression %q", pattern)
		}
		r.re = re
	}
	return r, nil
}

// Match reports whether subject (a full path or a leaf name, matching
// MatchFullPath) satisfies this rule.
func (r *ExcludeRule) Match(subject string) bool {
	switch r.Kind {
	case KindFixedString:
		if r.CaseInsensitive {
			return strings.EqualFold(subject, r.Pattern)
		}
		return subject == r.Pattern
	case KindRegExp:
		return r.re.MatchString(subject)
	default: // KindWildcard
		pat := r.Pattern
		s := subject
		if r.CaseInsensitive {
			pat = strings.ToLower(pat)
			s = strings.ToLower(s)
		}
		ok, _ := doublestar.Match(pat, s)
		return ok
	}
}

// subjectOf picks the full path or the leaf name per the rule's anchoring.
func (r *ExcludeRule) subjectOf(path, name string) string {
	if r.MatchFullPath {
		return path
	}
	return name
}

// Set is the full collection of filters applied during a scan: exclude
// rules (general and file-child), name/suffix patterns, and packages
// excluded wholesale.
type Set struct {
	Rules        []*ExcludeRule
	NamePatterns []string // doublestar globs matched against the leaf name
	Suffixes     []string // e.g. ".o", ".bak" — matched case-sensitively
	Packages     map[string]bool
}

// NewSet builds an empty filter set; zero value is also usable (no filters).
func NewSet() *Set {
	return &Set{Packages: make(map[string]bool)}
}

// AddRule appends an exclude rule; general and file-child rules (FileChild
// set) are both added here.
func (s *Set) AddRule(r *ExcludeRule) { s.Rules = append(s.Rules, r) }

// AddSuffix registers a suffix (e.g. ".o") to ignore.
func (s *Set) AddSuffix(suffix string) { s.Suffixes = append(s.Suffixes, suffix) }

// AddNamePattern registers a doublestar glob matched against the leaf name.
func (s *Set) AddNamePattern(pattern string) { s.NamePatterns = append(s.NamePatterns, pattern) }

// ExcludePackage marks an installed package's files as wholly ignored.
func (s *Set) ExcludePackage(name string) { s.Packages[name] = true }

// ShouldIgnore reports whether path (with leaf name and directory-ness)
// should be routed to the attic: any general exclude rule, suffix, or name
// pattern match.
func (s *Set) ShouldIgnore(path, name string, isDir bool) bool {
	for _, suf := range s.Suffixes {
		if !isDir && strings.HasSuffix(name, suf) {
			return true
		}
	}
	for _, pat := range s.NamePatterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	for _, r := range s.Rules {
		if r.FileChild {
			continue // evaluated separately, against a directory's children
		}
		if r.Match(r.subjectOf(path, name)) {
			return true
		}
	}
	return false
}

// MatchesFileChildRule reports whether name (a direct, non-directory child
// of some directory D) matches any file-child exclude rule — the signal
// that wipes D's whole subtree back to empty (§4.4 step 4).
func (s *Set) MatchesFileChildRule(path, name string) bool {
	for _, r := range s.Rules {
		if !r.FileChild {
			continue
		}
		if r.Match(r.subjectOf(path, name)) {
			return true
		}
	}
	return false
}

// IsPackageExcluded reports whether pkgName's files should be ignored
// wholesale.
func (s *Set) IsPackageExcluded(pkgName string) bool { return s.Packages[pkgName] }
