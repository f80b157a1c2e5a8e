package models

// Verband is a swimming federation a participant can be a member of.
type Verband struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Name     string `json:"name" gorm:"not null"`
	Kurzname string `json:"kurzname"`

	Timestamps
}

// Verein is a club. Clubs usually belong to a federation.
type Verein struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	Name      string `json:"name" gorm:"not null"`
	Ort       string `json:"ort"`
	VerbandID *uint  `json:"verband_id,omitempty" gorm:"index"`

	Verband *Verband `json:"verband,omitempty" gorm:"foreignKey:VerbandID"`

	Timestamps
}

// Versicherung is an insurer covering participants without club or federation membership.
type Versicherung struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"not null"`

	Timestamps
}

func (Verband) TableName() string { return "verbaende" }

func (Verein) TableName() string { return "vereine" }

func (Versicherung) TableName() string { return "versicherungen" }
