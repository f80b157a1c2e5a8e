package models

import (
	"strings"
	"time"
)

// Kind is a participant (child) of the circuit.
type Kind struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Vorname        string     `json:"vorname" gorm:"not null"`
	Nachname       string     `json:"nachname" gorm:"not null;index"`
	Geburtsdatum   *time.Time `json:"geburtsdatum,omitempty"`
	Geschlecht     string     `json:"geschlecht"`
	VereinID       *uint      `json:"verein_id,omitempty" gorm:"index"`
	VerbandID      *uint      `json:"verband_id,omitempty" gorm:"index"`
	VersicherungID *uint      `json:"versicherung_id,omitempty" gorm:"index"`
	Vertrag        *string    `json:"vertrag,omitempty"`

	Verein *Verein `json:"verein,omitempty" gorm:"foreignKey:VereinID"`

	// Calculated fields (not stored in DB)
	Versichert bool `json:"versichert" gorm:"-"`

	Timestamps
}

// FullName returns "Vorname Nachname".
func (k *Kind) FullName() string {
	return strings.TrimSpace(k.Vorname + " " + k.Nachname)
}

// IsInsured reports whether the participant carries insurance coverage: through a club,
// through a federation, or through an insurer together with a non-empty contract number.
// A contract number of only whitespace counts as missing.
func IsInsured(k *Kind) bool {
	if k == nil {
		return false
	}
	if k.VereinID != nil || k.VerbandID != nil {
		return true
	}
	return k.VersicherungID != nil && k.Vertrag != nil && strings.TrimSpace(*k.Vertrag) != ""
}

// Refresh fills the calculated fields.
func (k *Kind) Refresh() {
	k.Versichert = IsInsured(k)
}

func (Kind) TableName() string { return "kinder" }
