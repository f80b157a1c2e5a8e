package services

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"synchro-manager/models"
)

func TestKindListSortsGermanAndFlagsInsurance(t *testing.T) {
	db := newTestDB(t)
	s := NewKindService(db)
	ctx := context.Background()

	verein := models.Verein{Name: "SC Wasserfreunde"}
	mustCreate(t, db, &verein)
	versicherung := models.Versicherung{Name: "ARAG"}
	mustCreate(t, db, &versicherung)

	reqs := []KindRequest{
		{Vorname: "Zoe", Nachname: "Özdemir", VereinID: &verein.ID},
		{Vorname: "Anna", Nachname: "Otto", VersicherungID: &versicherung.ID, Vertrag: strPtr("   ")},
		{Vorname: "Ben", Nachname: "otto", VersicherungID: &versicherung.ID, Vertrag: strPtr(" V-1 ")},
		{Vorname: "Emil", Nachname: "Ziegler"},
	}
	for _, r := range reqs {
		if _, err := s.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.Nachname, err)
		}
	}

	list, err := s.List(ctx, 0, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []struct {
		vorname    string
		versichert bool
	}{
		{"Anna", false},
		{"Ben", true},
		{"Zoe", true},
		{"Emil", false},
	}
	if len(list) != len(want) {
		t.Fatalf("expected %d kinder, got %d", len(want), len(list))
	}
	for i, w := range want {
		if list[i].Vorname != w.vorname || list[i].Versichert != w.versichert {
			t.Fatalf("position %d: expected %s/%v, got %s/%v", i, w.vorname, w.versichert, list[i].Vorname, list[i].Versichert)
		}
	}
	if list[0].Vertrag != nil {
		t.Fatal("blank vertrag must be stored as absent")
	}
	if list[1].Vertrag == nil || *list[1].Vertrag != "V-1" {
		t.Fatalf("expected trimmed vertrag, got %v", list[1].Vertrag)
	}

	search, err := s.List(ctx, 0, "OTT")
	if err != nil || len(search) != 2 {
		t.Fatalf("expected 2 search hits, got %d (%v)", len(search), err)
	}
	byVerein, err := s.List(ctx, verein.ID, "")
	if err != nil || len(byVerein) != 1 || byVerein[0].Vorname != "Zoe" {
		t.Fatalf("unexpected verein filter result %+v (%v)", byVerein, err)
	}
}

func TestKindValidation(t *testing.T) {
	db := newTestDB(t)
	s := NewKindService(db)
	ctx := context.Background()

	if _, err := s.Create(ctx, KindRequest{Vorname: " ", Nachname: "Berg"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid for blank vorname, got %v", err)
	}
	if _, err := s.Create(ctx, KindRequest{Vorname: "Mia", Nachname: "Berg", VereinID: uintPtr(42)}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid for unknown verein, got %v", err)
	}
	if _, err := s.Update(ctx, 42, KindRequest{Vorname: "Mia", Nachname: "Berg"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKindUpdateClearsAffiliation(t *testing.T) {
	db := newTestDB(t)
	s := NewKindService(db)
	ctx := context.Background()

	verein := models.Verein{Name: "SV Delphin"}
	mustCreate(t, db, &verein)
	k, err := s.Create(ctx, KindRequest{Vorname: "Mia", Nachname: "Berg", VereinID: &verein.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !k.Versichert || k.Verein == nil || k.Verein.Name != "SV Delphin" {
		t.Fatalf("unexpected created kind %+v", k)
	}

	k, err = s.Update(ctx, k.ID, KindRequest{Vorname: "Mia", Nachname: "Berg"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if k.VereinID != nil || k.Versichert {
		t.Fatalf("expected cleared club and no insurance, got %+v", k)
	}
}

func TestKindDeleteCascadesRegistrations(t *testing.T) {
	f := newFixture(t)
	anm := NewAnmeldungService(f.db)
	f.register(t, anm, f.kind.ID, f.figuren[0].ID)
	other := f.register(t, anm, f.kind2.ID)

	if err := NewKindService(f.db).Delete(context.Background(), f.kind.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var rest []models.Anmeldung
	f.db.Find(&rest)
	if len(rest) != 1 || rest[0].ID != other.ID {
		t.Fatalf("expected only the other registration to remain, got %+v", rest)
	}
	var links int64
	f.db.Table("anmeldung_figuren").Count(&links)
	if links != 0 {
		t.Fatalf("expected no figure links, got %d", links)
	}
}

func TestWettkampfSlugAndCounts(t *testing.T) {
	db := newTestDB(t)
	s := NewWettkampfService(db)
	ctx := context.Background()
	datum := time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)

	first, err := s.Create(ctx, WettkampfRequest{Name: "Bäderpokal Süd", Datum: Date{Time: datum}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Slug != "baederpokal-sued-2026-05-09" {
		t.Fatalf("unexpected slug %q", first.Slug)
	}
	second, err := s.Create(ctx, WettkampfRequest{Name: "Bäderpokal Süd", Datum: Date{Time: datum}})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if second.Slug != first.Slug+"-2" {
		t.Fatalf("expected suffixed slug, got %q", second.Slug)
	}

	if _, err := s.Create(ctx, WettkampfRequest{Name: "ohne Datum"}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid without datum, got %v", err)
	}

	k1 := models.Kind{Vorname: "Mia", Nachname: "Berg"}
	k2 := models.Kind{Vorname: "Lena", Nachname: "Adler"}
	mustCreate(t, db, &k1)
	mustCreate(t, db, &k2)
	fig := models.Figur{Nummer: "101", Name: "Ballettbein"}
	mustCreate(t, db, &fig)
	anm := NewAnmeldungService(db)
	if _, err := anm.Register(ctx, CreateAnmeldungRequest{KindID: k1.ID, WettkampfID: first.ID}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := anm.Register(ctx, CreateAnmeldungRequest{KindID: k2.ID, WettkampfID: first.ID, FigurIDs: []uint{fig.ID}}); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.AnmeldungenCount != 2 || got.VorlaeufigCount != 1 || got.AktivCount != 1 {
		t.Fatalf("unexpected counts %d/%d/%d", got.AnmeldungenCount, got.VorlaeufigCount, got.AktivCount)
	}

	_, err = s.Update(ctx, first.ID, WettkampfRequest{Name: "Bäderpokal Süd", Datum: Date{Time: datum}, MaxTeilnehmer: 1})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict when lowering the limit below the registrations, got %v", err)
	}

	if err := s.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	db.Model(&models.Anmeldung{}).Count(&n)
	if n != 0 {
		t.Fatalf("expected registrations to be deleted with the wettkampf, %d left", n)
	}
	db.Table("anmeldung_figuren").Count(&n)
	if n != 0 {
		t.Fatalf("expected figure links to be deleted, %d left", n)
	}
}

func TestFigurNummerUnique(t *testing.T) {
	db := newTestDB(t)
	s := NewFigurService(db, nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, FigurRequest{Nummer: "101", Name: "Ballettbein"}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, FigurRequest{Nummer: " 101 ", Name: "Kopie"}, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := s.Create(ctx, FigurRequest{Nummer: "102"}, nil); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid without name, got %v", err)
	}
}

func TestFigurDeleteRecomputesRegistrations(t *testing.T) {
	f := newFixture(t)
	anm := NewAnmeldungService(f.db)
	ctx := context.Background()

	only := f.register(t, anm, f.kind.ID, f.figuren[0].ID)
	both := f.register(t, anm, f.kind2.ID, f.figuren[0].ID, f.figuren[1].ID)

	if err := NewFigurService(f.db, nil).Delete(ctx, f.figuren[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := anm.Get(ctx, only.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertStatus(t, got, true)

	got, err = anm.Get(ctx, both.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertStatus(t, got, false)
	if len(got.FigurIDs) != 1 || got.FigurIDs[0] != f.figuren[1].ID {
		t.Fatalf("unexpected figur_ids %v", got.FigurIDs)
	}
}

func TestReconcileStatusFixesStaleRows(t *testing.T) {
	f := newFixture(t)
	anm := NewAnmeldungService(f.db)
	ctx := context.Background()

	withFigures := f.register(t, anm, f.kind.ID, f.figuren[0].ID)
	without := f.register(t, anm, f.kind2.ID)

	// simulate rows written around the service
	f.db.Model(&models.Anmeldung{ID: withFigures.ID}).Updates(map[string]any{"vorlaeufig": true, "status": models.StatusVorlaeufig})
	f.db.Model(&models.Anmeldung{ID: without.ID}).Updates(map[string]any{"vorlaeufig": false, "status": models.StatusAktiv})

	fixed, err := ReconcileStatus(ctx, f.db)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if fixed != 2 {
		t.Fatalf("expected 2 fixed rows, got %d", fixed)
	}

	got, _ := anm.Get(ctx, withFigures.ID)
	assertStatus(t, got, false)
	got, _ = anm.Get(ctx, without.ID)
	assertStatus(t, got, true)

	fixed, err = ReconcileStatus(ctx, f.db)
	if err != nil || fixed != 0 {
		t.Fatalf("second run should be a no-op, fixed %d (%v)", fixed, err)
	}
}

func TestKindSearchMatchesWildcardsLiterally(t *testing.T) {
	db := newTestDB(t)
	s := NewKindService(db)
	ctx := context.Background()

	for _, r := range []KindRequest{
		{Vorname: "Anna", Nachname: "Berg"},
		{Vorname: "Ida", Nachname: "Mai_Lee"},
		{Vorname: "Paul", Nachname: "Maier"},
	} {
		if _, err := s.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	tests := []struct {
		q    string
		want int
	}{
		{"%", 0},
		{"_", 1},
		{"mai_", 1},
		{"mai", 2},
		{`\`, 0},
	}
	for _, tt := range tests {
		list, err := s.List(ctx, 0, tt.q)
		if err != nil {
			t.Fatalf("search %q: %v", tt.q, err)
		}
		if len(list) != tt.want {
			t.Fatalf("search %q: expected %d hits, got %d", tt.q, tt.want, len(list))
		}
	}
}

func TestFigurListNaturalOrder(t *testing.T) {
	db := newTestDB(t)
	s := NewFigurService(db, nil)
	ctx := context.Background()
	for _, nr := range []string{"1000", "360b", "101", "360a"} {
		if _, err := s.Create(ctx, FigurRequest{Nummer: nr, Name: "Figur " + nr}, nil); err != nil {
			t.Fatalf("create %s: %v", nr, err)
		}
	}
	list, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, fig := range list {
		got = append(got, fig.Nummer)
	}
	if want := []string{"101", "360a", "360b", "1000"}; !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
