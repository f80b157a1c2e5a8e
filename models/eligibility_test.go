package models

import (
	"slices"
	"testing"
)

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }

func TestIsInsured(t *testing.T) {
	tests := []struct {
		name string
		kind *Kind
		want bool
	}{
		{"nil participant", nil, false},
		{"no affiliation", &Kind{}, false},
		{"club only", &Kind{VereinID: uintPtr(5)}, true},
		{"federation only", &Kind{VerbandID: uintPtr(2)}, true},
		{"club with empty contract", &Kind{VereinID: uintPtr(5), VersicherungID: uintPtr(1), Vertrag: strPtr("")}, true},
		{"insurer with contract", &Kind{VersicherungID: uintPtr(1), Vertrag: strPtr("V-123")}, true},
		{"insurer without contract", &Kind{VersicherungID: uintPtr(1)}, false},
		{"insurer with empty contract", &Kind{VersicherungID: uintPtr(1), Vertrag: strPtr("")}, false},
		{"insurer with blank contract", &Kind{VersicherungID: uintPtr(1), Vertrag: strPtr("   ")}, false},
		{"contract without insurer", &Kind{Vertrag: strPtr("V-123")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInsured(tt.kind); got != tt.want {
				t.Fatalf("IsInsured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsInsuredClubWins(t *testing.T) {
	combos := []*Kind{
		{VereinID: uintPtr(1)},
		{VereinID: uintPtr(1), VerbandID: uintPtr(3)},
		{VereinID: uintPtr(1), VersicherungID: uintPtr(4)},
		{VereinID: uintPtr(1), Vertrag: strPtr("")},
	}
	for i, k := range combos {
		if !IsInsured(k) {
			t.Fatalf("combo %d: expected insured with club id set", i)
		}
	}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		ids            []uint
		wantVorlaeufig bool
		wantStatus     string
	}{
		{nil, true, StatusVorlaeufig},
		{[]uint{}, true, StatusVorlaeufig},
		{[]uint{3}, false, StatusAktiv},
		{[]uint{3, 7, 9}, false, StatusAktiv},
	}
	for _, tt := range tests {
		vorlaeufig, status := DeriveStatus(tt.ids)
		if vorlaeufig != tt.wantVorlaeufig || status != tt.wantStatus {
			t.Fatalf("DeriveStatus(%v) = (%v, %q), want (%v, %q)", tt.ids, vorlaeufig, status, tt.wantVorlaeufig, tt.wantStatus)
		}
	}
}

func TestApplyFiguresRecomputes(t *testing.T) {
	var a Anmeldung
	a.ApplyFigures([]uint{4, 2, 4, 0})
	if !slices.Equal(a.FigurIDs, []uint{2, 4}) {
		t.Fatalf("expected normalized set [2 4], got %v", a.FigurIDs)
	}
	if a.Vorlaeufig || a.Status != StatusAktiv {
		t.Fatalf("expected aktiv, got vorlaeufig=%v status=%q", a.Vorlaeufig, a.Status)
	}

	a.ApplyFigures(nil)
	if !a.Vorlaeufig || a.Status != StatusVorlaeufig {
		t.Fatalf("expected vorläufig after removing all figures, got vorlaeufig=%v status=%q", a.Vorlaeufig, a.Status)
	}
	if a.FigurIDs == nil || len(a.FigurIDs) != 0 {
		t.Fatalf("expected empty non-nil set, got %#v", a.FigurIDs)
	}

	// idempotent
	a.ApplyFigures([]uint{3})
	first := a
	a.ApplyFigures(a.FigurIDs)
	if a.Vorlaeufig != first.Vorlaeufig || a.Status != first.Status || !slices.Equal(a.FigurIDs, first.FigurIDs) {
		t.Fatalf("recomputing with the same set changed the result")
	}
}

func TestStatusStale(t *testing.T) {
	a := Anmeldung{Vorlaeufig: true, Status: StatusVorlaeufig}
	if a.StatusStale(0) {
		t.Fatal("vorläufig with no figures must not be stale")
	}
	if !a.StatusStale(2) {
		t.Fatal("vorläufig with figures must be stale")
	}
	a = Anmeldung{Vorlaeufig: false, Status: StatusAktiv}
	if a.StatusStale(1) {
		t.Fatal("aktiv with figures must not be stale")
	}
	if !a.StatusStale(0) {
		t.Fatal("aktiv without figures must be stale")
	}
}

func TestApplyFigurCountKeepsIDs(t *testing.T) {
	a := Anmeldung{FigurIDs: []uint{4}, Vorlaeufig: true, Status: StatusVorlaeufig}
	a.ApplyFigurCount(1)
	if a.Vorlaeufig || a.Status != StatusAktiv {
		t.Fatalf("expected aktiv, got %v/%q", a.Vorlaeufig, a.Status)
	}
	if len(a.FigurIDs) != 1 {
		t.Fatalf("figur ids must be untouched, got %v", a.FigurIDs)
	}
	a.ApplyFigurCount(0)
	if !a.Vorlaeufig || a.Status != StatusVorlaeufig {
		t.Fatalf("expected vorläufig, got %v/%q", a.Vorlaeufig, a.Status)
	}
}

func TestWettkampfIsFull(t *testing.T) {
	w := Wettkampf{}
	if w.IsFull(1000) {
		t.Fatal("unlimited competition reported full")
	}
	w.MaxTeilnehmer = 2
	if w.IsFull(1) {
		t.Fatal("expected free slot")
	}
	if !w.IsFull(2) {
		t.Fatal("expected full")
	}
}

func TestCompareNummer(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"101", "1000", -1},
		{"1000", "101", 1},
		{"101", "101", 0},
		{"0101", "101", 0},
		{"360a", "360b", -1},
		{"360", "360a", -1},
		{"99", "360a", -1},
		{"A12", "A2", 1},
		{"B1", "A9", 1},
	}
	for _, tt := range tests {
		if got := CompareNummer(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareNummer(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSortFiguren(t *testing.T) {
	figuren := []Figur{{Nummer: "1000"}, {Nummer: "301"}, {Nummer: "101"}}
	SortFiguren(figuren)
	for i, want := range []string{"101", "301", "1000"} {
		if figuren[i].Nummer != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, figuren[i].Nummer)
		}
	}
}
