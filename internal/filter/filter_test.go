package filter

import "testing"

func TestShouldIgnoreSuffix(t *testing.T) {
	s := NewSet()
	s.AddSuffix(".o")
	if !s.ShouldIgnore("/proj/main.o", "main.o", false) {
		t.Errorf("expected main.o to be ignored by suffix")
	}
	if s.ShouldIgnore("/proj/main.c", "main.c", false) {
		t.Errorf("did not expect main.c to be ignored")
	}
}

func TestShouldIgnoreNamePattern(t *testing.T) {
	s := NewSet()
	s.AddNamePattern("*.tmp")
	if !s.ShouldIgnore("/a/b.tmp", "b.tmp", false) {
		t.Errorf("expected b.tmp to match *.tmp")
	}
}

func TestExcludeRuleFixedString(t *testing.T) {
	r, err := NewExcludeRule("node_modules", KindFixedString, false, false, false)
	if err != nil {
		t.Fatalf("NewExcludeRule: %v", err)
	}
	s := NewSet()
	s.AddRule(r)
	if !s.ShouldIgnore("/proj/node_modules", "node_modules", true) {
		t.Errorf("expected node_modules to be excluded")
	}
	if s.ShouldIgnore("/proj/node_modules2", "node_modules2", true) {
		t.Errorf("fixed-string rule should not match a longer name")
	}
}

func TestExcludeRuleRegExpCaseInsensitive(t *testing.T) {
	r, err := NewExcludeRule(`^cache-\d+\.log$`, KindRegExp, true, false, false)
	if err != nil {
		t.Fatalf("NewExcludeRule: %v", err)
	}
	if !r.Match("CACHE-42.LOG") {
		t.Errorf("expected case-insensitive regexp match")
	}
	if r.Match("cache-abc.log") {
		t.Errorf("did not expect a non-numeric suffix to match")
	}
}

func TestExcludeRuleInvalidRegExp(t *testing.T) {
	if _, err := NewExcludeRule("(unterminated", KindRegExp, false, false, false); err == nil {
		t.Errorf("expected an error for an invalid regular expression")
	}
}

func TestFileChildRuleSeparateFromShouldIgnore(t *testing.T) {
	r, err := NewExcludeRule("Cargo.lock", KindFixedString, false, false, true)
	if err != nil {
		t.Fatalf("NewExcludeRule: %v", err)
	}
	s := NewSet()
	s.AddRule(r)

	if s.ShouldIgnore("/proj/Cargo.lock", "Cargo.lock", false) {
		t.Errorf("file-child rules must not be applied by ShouldIgnore")
	}
	if !s.MatchesFileChildRule("/proj/Cargo.lock", "Cargo.lock") {
		t.Errorf("expected MatchesFileChildRule to match Cargo.lock")
	}
}

func TestMatchFullPathWildcard(t *testing.T) {
	r, err := NewExcludeRule("/proj/build/**", KindWildcard, false, true, false)
	if err != nil {
		t.Fatalf("NewExcludeRule: %v", err)
	}
	if !r.Match("/proj/build/obj/x.o") {
		t.Errorf("expected ** to match nested path under /proj/build/")
	}
	if r.Match("/proj/src/x.o") {
		t.Errorf("did not expect a path outside build/ to match")
	}
}

func TestPackageExclusion(t *testing.T) {
	s := NewSet()
	s.ExcludePackage("vim-doc")
	if !s.IsPackageExcluded("vim-doc") {
		t.Errorf("expected vim-doc to be excluded")
	}
	if s.IsPackageExcluded("vim") {
		t.Errorf("did not expect vim to be excluded")
	}
}
