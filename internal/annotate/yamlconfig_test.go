package annotate

import (
	"os"
	"path/filepath"
	"testing"

	"firmstack/internal/errs"
)

func TestLoadRuleSetValid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ann.yaml")
	content := `
add:
  dispatch_table:
    - handle_event
    - handle_timeout
remove:
  - "helper,src/a.c:5"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	rs, findings, err := LoadRuleSet(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(findings) != 0 {
		t.Fatalf("unexpected findings: %+v", findings)
	}
	if len(rs.Add) != 1 || rs.Add[0].Source.Name != "dispatch_table" {
		t.Fatalf("Add = %+v", rs.Add)
	}
	if len(rs.Add[0].Destinations) != 2 {
		t.Fatalf("Destinations = %+v, want handle_event and handle_timeout", rs.Add[0].Destinations)
	}
	if len(rs.Remove) != 1 || rs.Remove[0].Name != "helper" || rs.Remove[0].Line != 5 {
		t.Fatalf("Remove = %+v", rs.Remove)
	}
}

func TestLoadRuleSetInvalidSignatureIsNonFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ann.yaml")
	content := `
add:
  3bad:
    - ok_target
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rs, findings, err := LoadRuleSet(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rs.Add) != 0 {
		t.Fatalf("rule with invalid source signature should be skipped, got %+v", rs.Add)
	}
	if len(findings) != 1 || findings[0].Kind != errs.FindingSignatureInvalid {
		t.Fatalf("findings = %+v, want one INVALID", findings)
	}
}

func TestLoadRuleSetMalformedYAMLIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ann.yaml")
	if err := os.WriteFile(path, []byte("add: [this is not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := LoadRuleSet(path)
	if err == nil {
		t.Fatal("expected a fatal AnnotationParse error for malformed YAML")
	}
}

func TestLoadRuleSetMissingFileIsFatal(t *testing.T) {
	_, _, err := LoadRuleSet("/does/not/exist.yaml")
	if err == nil {
		t.Fatal("expected a fatal error for a missing annotation file")
	}
}
