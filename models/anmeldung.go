package models

import (
	"slices"
	"time"

	"gorm.io/gorm"
)

const (
	StatusVorlaeufig = "vorläufig"
	StatusAktiv      = "aktiv"
)

// Anmeldung is a participant's registration for a competition.
type Anmeldung struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	KindID       uint      `json:"kind_id" gorm:"not null;uniqueIndex:idx_anmeldung_kind_wettkampf"`
	WettkampfID  uint      `json:"wettkampf_id" gorm:"not null;uniqueIndex:idx_anmeldung_kind_wettkampf;uniqueIndex:idx_anmeldung_startnummer"`
	Anmeldedatum time.Time `json:"anmeldedatum"`
	Startnummer  int       `json:"startnummer" gorm:"not null;uniqueIndex:idx_anmeldung_startnummer"`
	Vorlaeufig   bool      `json:"vorlaeufig"`
	Status       string    `json:"status" gorm:"type:varchar(16);not null"` // vorläufig | aktiv

	Kind      *Kind      `json:"kind,omitempty" gorm:"foreignKey:KindID"`
	Wettkampf *Wettkampf `json:"wettkampf,omitempty" gorm:"foreignKey:WettkampfID"`
	Figuren   []Figur    `json:"-" gorm:"many2many:anmeldung_figuren;"`

	// Calculated fields (not stored in DB)
	FigurIDs   []uint `json:"figur_ids" gorm:"-"`
	Versichert bool   `json:"versichert" gorm:"-"`

	Timestamps
}

// DeriveStatus maps the selected figure set to the registration status.
// An empty set is always preliminary, regardless of insurance.
func DeriveStatus(figurIDs []uint) (vorlaeufig bool, status string) {
	return deriveStatusFromCount(len(figurIDs))
}

func deriveStatusFromCount(n int) (bool, string) {
	if n == 0 {
		return true, StatusVorlaeufig
	}
	return false, StatusAktiv
}

// NormalizeFigurIDs turns a request list into a set: zero ids and duplicates are dropped,
// the result is sorted ascending. A nil or empty input yields an empty, non-nil slice.
func NormalizeFigurIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ApplyFigures sets the figure id set and recomputes Vorlaeufig and Status from it.
func (a *Anmeldung) ApplyFigures(ids []uint) {
	a.FigurIDs = NormalizeFigurIDs(ids)
	a.Vorlaeufig, a.Status = DeriveStatus(a.FigurIDs)
}

// StatusStale reports whether the stored status disagrees with the figure count.
func (a *Anmeldung) StatusStale(figurCount int) bool {
	vorlaeufig, status := deriveStatusFromCount(figurCount)
	return a.Vorlaeufig != vorlaeufig || a.Status != status
}

// ApplyFigurCount recomputes Vorlaeufig and Status from a link count without touching FigurIDs.
func (a *Anmeldung) ApplyFigurCount(figurCount int) {
	a.Vorlaeufig, a.Status = deriveStatusFromCount(figurCount)
}

// AfterFind fills the calculated fields from preloaded associations.
func (a *Anmeldung) AfterFind(tx *gorm.DB) error {
	if a.Figuren != nil {
		ids := make([]uint, 0, len(a.Figuren))
		for _, f := range a.Figuren {
			ids = append(ids, f.ID)
		}
		a.FigurIDs = NormalizeFigurIDs(ids)
	} else if a.FigurIDs == nil {
		a.FigurIDs = []uint{}
	}
	if a.Kind != nil {
		a.Kind.Refresh()
		a.Versichert = a.Kind.Versichert
	}
	return nil
}

// AutoMigrate creates or updates every table of the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Verband{},
		&Verein{},
		&Versicherung{},
		&Kind{},
		&Figur{},
		&Wettkampf{},
		&Anmeldung{},
	)
}

func (Anmeldung) TableName() string { return "anmeldungen" }
