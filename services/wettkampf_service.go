package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"synchro-manager/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type WettkampfService struct {
	DB *gorm.DB
}

func NewWettkampfService(db *gorm.DB) *WettkampfService {
	return &WettkampfService{DB: db}
}

type WettkampfRequest struct {
	Name          string `json:"name"`
	Datum         Date   `json:"datum"`
	Ort           string `json:"ort"`
	Beschreibung  string `json:"beschreibung"`
	MaxTeilnehmer int    `json:"max_teilnehmer"`
}

func (r *WettkampfRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || r.Datum.IsZero() {
		return invalid("name and datum are required")
	}
	if r.MaxTeilnehmer < 0 {
		return invalid("max_teilnehmer must be a non-negative integer")
	}
	return nil
}

// uniqueSlug derives the slug from name and date and appends -2, -3, … on collisions.
func uniqueSlug(tx *gorm.DB, name string, datum time.Time, selfID uint) (string, error) {
	base := slug.MakeLang(name+" "+datum.Format("2006-01-02"), "de")
	candidate := base
	for i := 2; ; i++ {
		var n int64
		if err := tx.Model(&models.Wettkampf{}).
			Where("slug = ? AND id <> ?", candidate, selfID).
			Count(&n).Error; err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

type statusCount struct {
	WettkampfID uint
	Status      string
	N           int64
}

// fillCounts sets the registration counters of every Wettkampf in list.
func fillCounts(db *gorm.DB, list []models.Wettkampf) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	var rows []statusCount
	if err := db.Model(&models.Anmeldung{}).
		Select("wettkampf_id, status, COUNT(*) AS n").
		Where("wettkampf_id IN ?", ids).
		Group("wettkampf_id, status").
		Scan(&rows).Error; err != nil {
		return err
	}
	index := make(map[uint]*models.Wettkampf, len(list))
	for i := range list {
		index[list[i].ID] = &list[i]
	}
	for _, r := range rows {
		wk := index[r.WettkampfID]
		if wk == nil {
			continue
		}
		wk.AnmeldungenCount += r.N
		switch r.Status {
		case models.StatusVorlaeufig:
			wk.VorlaeufigCount += r.N
		case models.StatusAktiv:
			wk.AktivCount += r.N
		}
	}
	return nil
}

func (s *WettkampfService) List(ctx context.Context) ([]models.Wettkampf, error) {
	list := []models.Wettkampf{}
	db := s.DB.WithContext(ctx)
	if err := db.Order("datum ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	if err := fillCounts(db, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *WettkampfService) Get(ctx context.Context, id uint) (*models.Wettkampf, error) {
	db := s.DB.WithContext(ctx)
	var wk models.Wettkampf
	if err := db.First(&wk, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(fmt.Sprintf("wettkampf %d", id))
		}
		return nil, err
	}
	list := []models.Wettkampf{wk}
	if err := fillCounts(db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *WettkampfService) Create(ctx context.Context, req WettkampfRequest) (*models.Wettkampf, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	wk := models.Wettkampf{
		Name:          req.Name,
		Datum:         req.Datum.Time,
		Ort:           strings.TrimSpace(req.Ort),
		Beschreibung:  req.Beschreibung,
		MaxTeilnehmer: req.MaxTeilnehmer,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if wk.Slug, err = uniqueSlug(tx, wk.Name, wk.Datum, 0); err != nil {
			return err
		}
		return tx.Create(&wk).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, wk.ID)
}

func (s *WettkampfService) Update(ctx context.Context, id uint, req WettkampfRequest) (*models.Wettkampf, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wk models.Wettkampf
		if err := tx.First(&wk, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(fmt.Sprintf("wettkampf %d", id))
			}
			return err
		}
		var current int64
		if err := tx.Model(&models.Anmeldung{}).Where("wettkampf_id = ?", id).Count(&current).Error; err != nil {
			return err
		}
		if req.MaxTeilnehmer > 0 && current > int64(req.MaxTeilnehmer) {
			return conflict(fmt.Sprintf("wettkampf %d already has %d registrations", id, current))
		}

		wk.Name = req.Name
		wk.Datum = req.Datum.Time
		wk.Ort = strings.TrimSpace(req.Ort)
		wk.Beschreibung = req.Beschreibung
		wk.MaxTeilnehmer = req.MaxTeilnehmer
		var err error
		if wk.Slug, err = uniqueSlug(tx, wk.Name, wk.Datum, wk.ID); err != nil {
			return err
		}
		return tx.Save(&wk).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a Wettkampf and cascades to its registrations.
func (s *WettkampfService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Wettkampf{}, id); err != nil {
			return err
		} else if !ok {
			return notFound(fmt.Sprintf("wettkampf %d", id))
		}
		if err := deleteAnmeldungen(tx, "wettkampf_id = ?", id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Wettkampf{}, id).Error; err != nil {
			return err
		}
		log.Printf("[WETTKAMPF] deleted wettkampf %d with its registrations", id)
		return nil
	})
}

// --- fiber handlers ---

func (s *WettkampfService) ListWettkaempfe(c *fiber.Ctx) error {
	list, err := s.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (s *WettkampfService) GetWettkampf(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	wk, err := s.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(wk)
}

func (s *WettkampfService) CreateWettkampf(c *fiber.Ctx) error {
	var req WettkampfRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	wk, err := s.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(wk)
}

func (s *WettkampfService) UpdateWettkampf(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req WettkampfRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	wk, err := s.Update(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(wk)
}

func (s *WettkampfService) DeleteWettkampf(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
