package models

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Figur is a figure from the catalog that a participant performs at a competition.
type Figur struct {
	ID                 uint    `json:"id" gorm:"primaryKey"`
	Nummer             string  `json:"nummer" gorm:"uniqueIndex;not null"`
	Name               string  `json:"name" gorm:"not null"`
	Kategorie          string  `json:"kategorie"`
	Schwierigkeitsgrad float64 `json:"schwierigkeitsgrad" gorm:"default:0"`
	Altersklasse       string  `json:"altersklasse"`
	Beschreibung       string  `json:"beschreibung" gorm:"type:text"`
	BildURL            string  `json:"bild_url"`

	Timestamps
}

func (Figur) TableName() string { return "figuren" }

// CompareNummer orders catalog numbers naturally, digit runs by value:
// "101" < "360a" < "360b" < "1000".
func CompareNummer(a, b string) int {
	for a != "" && b != "" {
		ad, ar := leadingDigits(a)
		bd, br := leadingDigits(b)
		if ad != "" && bd != "" {
			ad, bd = strings.TrimLeft(ad, "0"), strings.TrimLeft(bd, "0")
			if c := cmp.Compare(len(ad), len(bd)); c != 0 {
				return c
			}
			if c := strings.Compare(ad, bd); c != 0 {
				return c
			}
			a, b = ar, br
			continue
		}
		ra, na := utf8.DecodeRuneInString(a)
		rb, nb := utf8.DecodeRuneInString(b)
		if ra != rb {
			return cmp.Compare(ra, rb)
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

func leadingDigits(s string) (digits, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i], s[i:]
}

// SortFiguren sorts figures by catalog number in natural order.
func SortFiguren(figuren []Figur) {
	slices.SortStableFunc(figuren, func(x, y Figur) int {
		return CompareNummer(x.Nummer, y.Nummer)
	})
}
