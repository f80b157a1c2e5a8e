package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"strings"

	"synchro-manager/models"
	"synchro-manager/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FigurService struct {
	DB    *gorm.DB
	Store utils.ObjectStore
}

func NewFigurService(db *gorm.DB, store utils.ObjectStore) *FigurService {
	return &FigurService{DB: db, Store: store}
}

// FigurRequest is accepted as JSON or as multipart form (with an optional "bild" file).
type FigurRequest struct {
	Nummer             string  `json:"nummer" form:"nummer"`
	Name               string  `json:"name" form:"name"`
	Kategorie          string  `json:"kategorie" form:"kategorie"`
	Schwierigkeitsgrad float64 `json:"schwierigkeitsgrad" form:"schwierigkeitsgrad"`
	Altersklasse       string  `json:"altersklasse" form:"altersklasse"`
	Beschreibung       string  `json:"beschreibung" form:"beschreibung"`
}

func (r *FigurRequest) apply(f *models.Figur) error {
	f.Nummer = strings.TrimSpace(r.Nummer)
	f.Name = strings.TrimSpace(r.Name)
	if f.Nummer == "" || f.Name == "" {
		return invalid("nummer and name are required")
	}
	if r.Schwierigkeitsgrad < 0 {
		return invalid("schwierigkeitsgrad must be a non-negative number")
	}
	f.Kategorie = strings.TrimSpace(r.Kategorie)
	f.Schwierigkeitsgrad = r.Schwierigkeitsgrad
	f.Altersklasse = strings.TrimSpace(r.Altersklasse)
	f.Beschreibung = r.Beschreibung
	return nil
}

func checkNummerFree(tx *gorm.DB, nummer string, selfID uint) error {
	var n int64
	if err := tx.Model(&models.Figur{}).Where("nummer = ? AND id <> ?", nummer, selfID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return conflict(fmt.Sprintf("figur nummer %q already exists", nummer))
	}
	return nil
}

func (s *FigurService) List(ctx context.Context, kategorie string) ([]models.Figur, error) {
	q := s.DB.WithContext(ctx)
	if kategorie != "" {
		q = q.Where("kategorie = ?", kategorie)
	}
	list := []models.Figur{}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	models.SortFiguren(list)
	return list, nil
}

func (s *FigurService) Get(ctx context.Context, id uint) (*models.Figur, error) {
	var f models.Figur
	if err := s.DB.WithContext(ctx).First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(fmt.Sprintf("figur %d", id))
		}
		return nil, err
	}
	return &f, nil
}

// Create stores a figure; bild may be nil.
func (s *FigurService) Create(ctx context.Context, req FigurRequest, bild *multipart.FileHeader) (*models.Figur, error) {
	var f models.Figur
	if err := req.apply(&f); err != nil {
		return nil, err
	}
	if err := checkNummerFree(s.DB.WithContext(ctx), f.Nummer, 0); err != nil {
		return nil, err
	}
	if bild != nil {
		url, err := s.upload(ctx, bild)
		if err != nil {
			return nil, err
		}
		f.BildURL = url
	}
	if err := s.DB.WithContext(ctx).Create(&f).Error; err != nil {
		s.removeBild(ctx, f.BildURL)
		return nil, err
	}
	return &f, nil
}

// Update changes the catalog entry. A new bild replaces the stored picture.
func (s *FigurService) Update(ctx context.Context, id uint, req FigurRequest, bild *multipart.FileHeader) (*models.Figur, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := req.apply(f); err != nil {
		return nil, err
	}
	if err := checkNummerFree(s.DB.WithContext(ctx), f.Nummer, f.ID); err != nil {
		return nil, err
	}
	oldBild := f.BildURL
	if bild != nil {
		url, err := s.upload(ctx, bild)
		if err != nil {
			return nil, err
		}
		f.BildURL = url
	}
	if err := s.DB.WithContext(ctx).Save(f).Error; err != nil {
		if f.BildURL != oldBild {
			s.removeBild(ctx, f.BildURL)
		}
		return nil, err
	}
	if f.BildURL != oldBild {
		s.removeBild(ctx, oldBild)
	}
	return f, nil
}

// Delete removes a figure from the catalog and from every registration that selected it.
// Registrations losing their last figure become preliminary again.
func (s *FigurService) Delete(ctx context.Context, id uint) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var recomputed int
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var affected []uint
		if err := tx.Table("anmeldung_figuren").Where("figur_id = ?", id).Pluck("anmeldung_id", &affected).Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM anmeldung_figuren WHERE figur_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Figur{}, id).Error; err != nil {
			return err
		}
		recomputed, err = RecomputeStatus(tx, affected)
		return err
	})
	if err != nil {
		return err
	}
	log.Printf("[FIGUR] deleted figur %s (%d registrations back to %s)", f.Nummer, recomputed, models.StatusVorlaeufig)
	s.removeBild(ctx, f.BildURL)
	return nil
}

func (s *FigurService) upload(ctx context.Context, bild *multipart.FileHeader) (string, error) {
	if s.Store == nil {
		return "", invalid("image uploads are not configured")
	}
	url, err := utils.UploadFormFile(ctx, s.Store, bild, "figuren", ".png")
	if err != nil {
		return "", fmt.Errorf("failed to upload bild: %w", err)
	}
	return url, nil
}

// removeBild deletes a stored picture; failures are only logged.
func (s *FigurService) removeBild(ctx context.Context, url string) {
	if url == "" || s.Store == nil {
		return
	}
	key, ok := s.Store.KeyFromURL(url)
	if !ok {
		return
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		log.Printf("[FIGUR] ⚠️ failed to delete bild %s: %v", key, err)
	}
}

// formBild returns the optional "bild" upload of a multipart request.
func formBild(c *fiber.Ctx) *multipart.FileHeader {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("bild")
	if err != nil || fh.Size == 0 {
		return nil
	}
	return fh
}

// --- fiber handlers ---

func (s *FigurService) ListFiguren(c *fiber.Ctx) error {
	list, err := s.List(c.UserContext(), c.Query("kategorie"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (s *FigurService) GetFigur(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	f, err := s.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(f)
}

func (s *FigurService) CreateFigur(c *fiber.Ctx) error {
	var req FigurRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	f, err := s.Create(c.UserContext(), req, formBild(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(f)
}

func (s *FigurService) UpdateFigur(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req FigurRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	f, err := s.Update(c.UserContext(), id, req, formBild(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(f)
}

func (s *FigurService) DeleteFigur(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
