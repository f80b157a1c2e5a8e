package services

import (
	"context"
	"testing"
	"time"

	"synchro-manager/models"
	"synchro-manager/utils"

	"gorm.io/gorm"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := utils.OpenDatabase("sqlite::memory:", true)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and shared by every query
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func uintPtr(v uint) *uint    { return &v }
func strPtr(v string) *string { return &v }

func mustCreate(t *testing.T, db *gorm.DB, value any) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

type fixture struct {
	db        *gorm.DB
	verein    models.Verein
	kind      models.Kind
	kind2     models.Kind
	wettkampf models.Wettkampf
	figuren   []models.Figur
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: newTestDB(t)}
	f.verein = models.Verein{Name: "SV Delphin"}
	mustCreate(t, f.db, &f.verein)
	f.kind = models.Kind{Vorname: "Mia", Nachname: "Berg", VereinID: &f.verein.ID}
	mustCreate(t, f.db, &f.kind)
	f.kind2 = models.Kind{Vorname: "Lena", Nachname: "Adler"}
	mustCreate(t, f.db, &f.kind2)
	f.wettkampf = models.Wettkampf{Name: "Frühjahrscup", Slug: "fruehjahrscup", Datum: time.Date(2026, 4, 12, 9, 0, 0, 0, time.UTC)}
	mustCreate(t, f.db, &f.wettkampf)
	for _, nr := range []string{"101", "102", "301"} {
		fig := models.Figur{Nummer: nr, Name: "Figur " + nr}
		mustCreate(t, f.db, &fig)
		f.figuren = append(f.figuren, fig)
	}
	return f
}

func (f *fixture) register(t *testing.T, s *AnmeldungService, kindID uint, figurIDs ...uint) *models.Anmeldung {
	t.Helper()
	a, err := s.Register(context.Background(), CreateAnmeldungRequest{
		KindID:      kindID,
		WettkampfID: f.wettkampf.ID,
		FigurIDs:    figurIDs,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return a
}
