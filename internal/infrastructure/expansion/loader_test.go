package expansion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSynonymTableScalarAndList(t *testing.T) {
	table, err := ParseSynonymTable([]byte("Bauantrag: baugenehmigung\nKFZ:\n  - kraftfahrzeug\n  - auto\n"))
	if err != nil {
		t.Fatalf("ParseSynonymTable() error = %v", err)
	}
	if len(table["bauantrag"]) != 1 || table["bauantrag"][0] != "baugenehmigung" {
		t.Fatalf("bauantrag -> %v, want [baugenehmigung]", table["bauantrag"])
	}
	if len(table["kfz"]) != 2 || table["kfz"][0] != "kraftfahrzeug" || table["kfz"][1] != "auto" {
		t.Fatalf("kfz -> %v, want [kraftfahrzeug auto]", table["kfz"])
	}
}

func TestParseSynonymTableRejectsBlankSubstitute(t *testing.T) {
	_, err := ParseSynonymTable([]byte(`bauantrag: ""`))
	if err == nil {
		t.Fatalf("expected error for blank substitute")
	}
}

func TestParseSynonymTableRejectsMultiWordTerm(t *testing.T) {
	_, err := ParseSynonymTable([]byte(`"bau antrag": baugenehmigung`))
	if err == nil {
		t.Fatalf("expected error for multi-word term")
	}
	if !strings.Contains(err.Error(), "single token") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSynonymTableRejectsNonStringSubstitute(t *testing.T) {
	_, err := ParseSynonymTable([]byte("bauantrag: 42\n"))
	if err == nil {
		t.Fatalf("expected error for non-string substitute")
	}
}

func TestParseSynonymTableInvalidYAML(t *testing.T) {
	_, err := ParseSynonymTable([]byte("not: [valid"))
	if err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadSynonymTableFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	if err := os.WriteFile(path, []byte("anwalt: rechtsanwalt\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := LoadSynonymTable(path)
	if err != nil {
		t.Fatalf("LoadSynonymTable() error = %v", err)
	}
	if len(table["anwalt"]) != 1 || table["anwalt"][0] != "rechtsanwalt" {
		t.Fatalf("anwalt -> %v", table["anwalt"])
	}
}

func TestLoadSynonymTableMissingFile(t *testing.T) {
	_, err := LoadSynonymTable(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
