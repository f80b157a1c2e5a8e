package models

import "time"

// Wettkampf is a competition event of the circuit.
type Wettkampf struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"not null"`
	Slug          string    `json:"slug" gorm:"uniqueIndex;not null"`
	Datum         time.Time `json:"datum" gorm:"not null"`
	Ort           string    `json:"ort"`
	Beschreibung  string    `json:"beschreibung" gorm:"type:text"`
	MaxTeilnehmer int       `json:"max_teilnehmer" gorm:"default:0"` // 0 = unlimited

	// Calculated fields (not stored in DB)
	AnmeldungenCount int64 `json:"anmeldungen_count" gorm:"-"`
	VorlaeufigCount  int64 `json:"vorlaeufig_count" gorm:"-"`
	AktivCount       int64 `json:"aktiv_count" gorm:"-"`

	Timestamps
}

// IsFull reports whether another registration would exceed MaxTeilnehmer.
func (w *Wettkampf) IsFull(current int64) bool {
	return w.MaxTeilnehmer > 0 && current >= int64(w.MaxTeilnehmer)
}

func (Wettkampf) TableName() string { return "wettkaempfe" }
