package utils

import "testing"

func TestHashDatasetOrderIndependent(t *testing.T) {
	a := HashDataset([]string{"sale|v1|2026-01-02|100.00|2", "goal|v1|2026-01|1000.00"})
	b := HashDataset([]string{"goal|v1|2026-01|1000.00", "sale|v1|2026-01-02|100.00|2"})

	if a != b {
		t.Errorf("hash should not depend on row order: %s != %s", a, b)
	}
}

func TestHashDatasetDetectsChange(t *testing.T) {
	a := HashDataset([]string{"sale|v1|2026-01-02|100.00|2"})
	b := HashDataset([]string{"sale|v1|2026-01-02|150.00|2"})

	if a == b {
		t.Error("different rows should produce different hashes")
	}
}

func TestHashDatasetDoesNotMutateInput(t *testing.T) {
	rows := []string{"b", "a"}
	HashDataset(rows)

	if rows[0] != "b" || rows[1] != "a" {
		t.Errorf("input slice was reordered: %v", rows)
	}
}

func TestHashStringStable(t *testing.T) {
	if HashString("lia") != HashString("lia") {
		t.Error("same input must hash the same")
	}
	if len(HashString("lia")) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(HashString("lia")))
	}
}
