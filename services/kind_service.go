package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"synchro-manager/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

type KindService struct {
	DB *gorm.DB
}

func NewKindService(db *gorm.DB) *KindService {
	return &KindService{DB: db}
}

// KindRequest is the create/update payload of a participant.
type KindRequest struct {
	Vorname        string  `json:"vorname"`
	Nachname       string  `json:"nachname"`
	Geburtsdatum   *Date   `json:"geburtsdatum,omitempty"`
	Geschlecht     string  `json:"geschlecht"`
	VereinID       *uint   `json:"verein_id,omitempty"`
	VerbandID      *uint   `json:"verband_id,omitempty"`
	VersicherungID *uint   `json:"versicherung_id,omitempty"`
	Vertrag        *string `json:"vertrag,omitempty"`
}

func (r *KindRequest) apply(k *models.Kind) {
	k.Vorname = strings.TrimSpace(r.Vorname)
	k.Nachname = strings.TrimSpace(r.Nachname)
	k.Geburtsdatum = r.Geburtsdatum.TimePtr()
	k.Geschlecht = strings.TrimSpace(r.Geschlecht)
	k.VereinID = zeroToNil(r.VereinID)
	k.VerbandID = zeroToNil(r.VerbandID)
	k.VersicherungID = zeroToNil(r.VersicherungID)
	k.Vertrag = nil
	if r.Vertrag != nil {
		if v := strings.TrimSpace(*r.Vertrag); v != "" {
			k.Vertrag = &v
		}
	}
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func zeroToNil(id *uint) *uint {
	if id == nil || *id == 0 {
		return nil
	}
	return id
}

// validateKind checks required names and that every affiliation reference exists.
func validateKind(tx *gorm.DB, k *models.Kind) error {
	if k.Vorname == "" || k.Nachname == "" {
		return invalid("vorname and nachname are required")
	}
	refs := []struct {
		field string
		id    *uint
		model any
	}{
		{"verein_id", k.VereinID, &models.Verein{}},
		{"verband_id", k.VerbandID, &models.Verband{}},
		{"versicherung_id", k.VersicherungID, &models.Versicherung{}},
	}
	for _, ref := range refs {
		if ref.id == nil {
			continue
		}
		ok, err := exists(tx, ref.model, *ref.id)
		if err != nil {
			return err
		}
		if !ok {
			return invalid(fmt.Sprintf("%s %d does not exist", ref.field, *ref.id))
		}
	}
	return nil
}

// sortKinder orders participants by German collation of (nachname, vorname).
func sortKinder(list []models.Kind) {
	col := collate.New(language.German, collate.IgnoreCase)
	sort.SliceStable(list, func(i, j int) bool {
		if c := col.CompareString(list[i].Nachname, list[j].Nachname); c != 0 {
			return c < 0
		}
		return col.CompareString(list[i].Vorname, list[j].Vorname) < 0
	})
}

func (s *KindService) List(ctx context.Context, vereinID uint, search string) ([]models.Kind, error) {
	q := s.DB.WithContext(ctx).Model(&models.Kind{})
	if vereinID != 0 {
		q = q.Where("verein_id = ?", vereinID)
	}
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		q = q.Where(`LOWER(vorname) LIKE ? ESCAPE '\' OR LOWER(nachname) LIKE ? ESCAPE '\'`, term, term)
	}
	list := []models.Kind{}
	if err := q.Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Refresh()
	}
	sortKinder(list)
	return list, nil
}

func (s *KindService) Get(ctx context.Context, id uint) (*models.Kind, error) {
	var k models.Kind
	if err := s.DB.WithContext(ctx).Preload("Verein").First(&k, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(fmt.Sprintf("kind %d", id))
		}
		return nil, err
	}
	k.Refresh()
	return &k, nil
}

func (s *KindService) Create(ctx context.Context, req KindRequest) (*models.Kind, error) {
	var k models.Kind
	req.apply(&k)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := validateKind(tx, &k); err != nil {
			return err
		}
		return tx.Omit("Verein").Create(&k).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, k.ID)
}

func (s *KindService) Update(ctx context.Context, id uint, req KindRequest) (*models.Kind, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var k models.Kind
		if err := tx.First(&k, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(fmt.Sprintf("kind %d", id))
			}
			return err
		}
		req.apply(&k)
		if err := validateKind(tx, &k); err != nil {
			return err
		}
		// Save writes nil pointers too, so cleared affiliations are stored as NULL.
		return tx.Omit("Verein").Save(&k).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a participant together with all of their registrations.
func (s *KindService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Kind{}, id); err != nil {
			return err
		} else if !ok {
			return notFound(fmt.Sprintf("kind %d", id))
		}
		if err := deleteAnmeldungen(tx, "kind_id = ?", id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Kind{}, id).Error; err != nil {
			return err
		}
		log.Printf("[KIND] deleted kind %d with its registrations", id)
		return nil
	})
}

// --- fiber handlers ---

func (s *KindService) ListKinder(c *fiber.Ctx) error {
	vereinID, err := queryID(c, "verein_id")
	if err != nil {
		return respondError(c, err)
	}
	list, err := s.List(c.UserContext(), vereinID, c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (s *KindService) GetKind(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	k, err := s.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(k)
}

func (s *KindService) CreateKind(c *fiber.Ctx) error {
	var req KindRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	k, err := s.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(k)
}

func (s *KindService) UpdateKind(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req KindRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	k, err := s.Update(c.UserContext(), id, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(k)
}

func (s *KindService) DeleteKind(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
