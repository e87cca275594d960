package state

import "testing"

func TestLeaf(t *testing.T) {
	fixture := tree(t, `{"print":{"nozzle_temper":210.0,"ams":{"tray":[{"color":"FF0000"}]}}}`)

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{"top-level nested leaf", "print.nozzle_temper", 210.0, true},
		{"list element leaf", "print.ams.tray.0.color", "FF0000", true},
		{"missing key", "print.bed_temper", nil, false},
		{"index out of range", "print.ams.tray.5.color", nil, false},
		{"non-numeric index", "print.ams.tray.first.color", nil, false},
		{"path resolves to object", "print.ams", nil, false},
		{"path through leaf", "print.nozzle_temper.sub", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Leaf(fixture, tt.path)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Leaf(%q) = (%v, %v), want (%v, %v)", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNumber(t *testing.T) {
	if v, ok := Number(210); !ok || v != 210 {
		t.Errorf("Number(int) = (%v, %v), want (210, true)", v, ok)
	}
	if v, ok := Number(42.5); !ok || v != 42.5 {
		t.Errorf("Number(float64) = (%v, %v), want (42.5, true)", v, ok)
	}
	if _, ok := Number("210"); ok {
		t.Error("Number(string) = ok, want false")
	}
}

func TestDeepCopyIsolation(t *testing.T) {
	original := tree(t, `{"print":{"tray":[{"color":"FF0000"}]}}`)

	cpy := DeepCopy(original)
	printObj, _ := cpy["print"].(map[string]any)
	trayList, _ := printObj["tray"].([]any)
	elem, _ := trayList[0].(map[string]any)
	elem["color"] = "00FF00"

	if v, _ := Leaf(original, "print.tray.0.color"); v != "FF0000" {
		t.Errorf("original mutated through copy: color = %v", v)
	}
}
