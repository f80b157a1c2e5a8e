package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"synchro-manager/models"

	"github.com/gofiber/fiber/v2"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// CheckInCode is the text encoded into the registration QR code.
func CheckInCode(a *models.Anmeldung) string {
	return fmt.Sprintf("ANM:%d;WK:%d;START:%d", a.ID, a.WettkampfID, a.Startnummer)
}

// QRCode renders the check-in QR code of a registration as PNG.
func (s *AnmeldungService) QRCode(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	a, err := s.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	png, err := qrcode.Encode(CheckInCode(a), qrcode.Medium, qrSize)
	if err != nil {
		return respondError(c, fmt.Errorf("encode qr code: %w", err))
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// Startliste exports the start list of a Wettkampf as semicolon separated CSV.
func (s *AnmeldungService) Startliste(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var wk models.Wettkampf
	if err := s.DB.WithContext(c.UserContext()).First(&wk, id).Error; err != nil {
		return respondError(c, err)
	}

	var list []models.Anmeldung
	if err := s.DB.WithContext(c.UserContext()).
		Preload("Kind.Verein").
		Preload("Figuren").
		Where("wettkampf_id = ?", id).
		Order("startnummer ASC").
		Find(&list).Error; err != nil {
		return respondError(c, err)
	}

	out, err := writeStartliste(list)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="startliste_`+wk.Slug+`.csv"`)
	return c.Send(out)
}

func writeStartliste(list []models.Anmeldung) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write([]string{"Startnummer", "Nachname", "Vorname", "Verein", "Status", "Versichert", "Figuren"}); err != nil {
		return nil, err
	}
	for _, a := range list {
		var nachname, vorname, verein string
		if a.Kind != nil {
			nachname, vorname = a.Kind.Nachname, a.Kind.Vorname
			if a.Kind.Verein != nil {
				verein = a.Kind.Verein.Name
			}
		}
		versichert := "nein"
		if a.Versichert {
			versichert = "ja"
		}
		models.SortFiguren(a.Figuren)
		nummern := make([]string, 0, len(a.Figuren))
		for _, f := range a.Figuren {
			nummern = append(nummern, f.Nummer)
		}
		if err := w.Write([]string{
			strconv.Itoa(a.Startnummer),
			nachname,
			vorname,
			verein,
			a.Status,
			versichert,
			strings.Join(nummern, ","),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
