package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"synchro-manager/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// startnummer allocation races with concurrent registrations for the same Wettkampf.
const maxCreateAttempts = 3

type AnmeldungService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewAnmeldungService(db *gorm.DB) *AnmeldungService {
	return &AnmeldungService{DB: db, Now: time.Now}
}

type CreateAnmeldungRequest struct {
	KindID       uint   `json:"kind_id"`
	WettkampfID  uint   `json:"wettkampf_id"`
	FigurIDs     []uint `json:"figur_ids"`
	Anmeldedatum *Date  `json:"anmeldedatum,omitempty"`
}

// UpdateAnmeldungRequest replaces the figure set. figur_ids must be present; [] clears it.
type UpdateAnmeldungRequest struct {
	FigurIDs *[]uint `json:"figur_ids"`
}

// AnmeldungFilter narrows List. Zero values are ignored.
type AnmeldungFilter struct {
	WettkampfID uint
	KindID      uint
	Status      string
}

// Register creates a registration with its start number and figure set.
func (s *AnmeldungService) Register(ctx context.Context, req CreateAnmeldungRequest) (*models.Anmeldung, error) {
	if req.KindID == 0 || req.WettkampfID == 0 {
		return nil, invalid("kind_id and wettkampf_id are required")
	}
	figurIDs := models.NormalizeFigurIDs(req.FigurIDs)

	anmeldedatum := s.Now()
	if t := req.Anmeldedatum.TimePtr(); t != nil {
		anmeldedatum = *t
	}

	var created *models.Anmeldung
	var err error
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		created, err = s.register(ctx, req.KindID, req.WettkampfID, figurIDs, anmeldedatum)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.Printf("[ANMELDUNG] startnummer collision for wettkampf %d (attempt %d)", req.WettkampfID, attempt)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, conflict("registration could not be stored, retry")
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[ANMELDUNG] kind %d registered for wettkampf %d (start %d, %s)",
		created.KindID, created.WettkampfID, created.Startnummer, created.Status)
	return s.Get(ctx, created.ID)
}

func (s *AnmeldungService) register(ctx context.Context, kindID, wettkampfID uint, figurIDs []uint, anmeldedatum time.Time) (*models.Anmeldung, error) {
	a := &models.Anmeldung{
		KindID:       kindID,
		WettkampfID:  wettkampfID,
		Anmeldedatum: anmeldedatum,
	}
	a.ApplyFigures(figurIDs)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Kind{}, kindID); err != nil {
			return err
		} else if !ok {
			return notFound(fmt.Sprintf("kind %d", kindID))
		}

		var wk models.Wettkampf
		if err := tx.First(&wk, wettkampfID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound(fmt.Sprintf("wettkampf %d", wettkampfID))
			}
			return err
		}

		var dup int64
		if err := tx.Model(&models.Anmeldung{}).
			Where("kind_id = ? AND wettkampf_id = ?", kindID, wettkampfID).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return conflict(fmt.Sprintf("kind %d is already registered for wettkampf %d", kindID, wettkampfID))
		}

		var current int64
		if err := tx.Model(&models.Anmeldung{}).Where("wettkampf_id = ?", wettkampfID).Count(&current).Error; err != nil {
			return err
		}
		if wk.IsFull(current) {
			return conflict(fmt.Sprintf("wettkampf %d is full", wettkampfID))
		}

		figuren, err := loadFiguren(tx, figurIDs)
		if err != nil {
			return err
		}

		var maxStart int
		if err := tx.Model(&models.Anmeldung{}).
			Where("wettkampf_id = ?", wettkampfID).
			Select("COALESCE(MAX(startnummer), 0)").
			Scan(&maxStart).Error; err != nil {
			return err
		}
		a.Startnummer = maxStart + 1

		if err := tx.Omit("Figuren", "Kind", "Wettkampf").Create(a).Error; err != nil {
			return err
		}
		return setFiguren(tx, a, figuren)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Get loads one registration with participant and figures.
func (s *AnmeldungService) Get(ctx context.Context, id uint) (*models.Anmeldung, error) {
	var a models.Anmeldung
	err := s.DB.WithContext(ctx).
		Preload("Kind").
		Preload("Figuren").
		First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(fmt.Sprintf("anmeldung %d", id))
		}
		return nil, err
	}
	return &a, nil
}

// List returns registrations ordered by Wettkampf and start number.
func (s *AnmeldungService) List(ctx context.Context, f AnmeldungFilter) ([]models.Anmeldung, error) {
	q := s.DB.WithContext(ctx).Preload("Kind").Preload("Figuren")
	if f.WettkampfID != 0 {
		q = q.Where("wettkampf_id = ?", f.WettkampfID)
	}
	if f.KindID != 0 {
		q = q.Where("kind_id = ?", f.KindID)
	}
	if f.Status != "" {
		if f.Status != models.StatusVorlaeufig && f.Status != models.StatusAktiv {
			return nil, invalid("status must be vorläufig or aktiv")
		}
		q = q.Where("status = ?", f.Status)
	}
	out := []models.Anmeldung{}
	if err := q.Order("wettkampf_id ASC, startnummer ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceFiguren sets the figure set of a registration and recomputes its status.
func (s *AnmeldungService) ReplaceFiguren(ctx context.Context, id uint, figurIDs []uint) (*models.Anmeldung, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockAnmeldung(tx, id)
		if err != nil {
			return err
		}
		figuren, err := loadFiguren(tx, models.NormalizeFigurIDs(figurIDs))
		if err != nil {
			return err
		}
		return setFiguren(tx, a, figuren)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// AddFigur links one figure. Linking an already selected figure changes nothing.
func (s *AnmeldungService) AddFigur(ctx context.Context, id, figurID uint) (*models.Anmeldung, error) {
	return s.editFiguren(ctx, id, func(ids []uint) []uint { return append(ids, figurID) })
}

// RemoveFigur unlinks one figure. Removing the last figure makes the registration preliminary.
func (s *AnmeldungService) RemoveFigur(ctx context.Context, id, figurID uint) (*models.Anmeldung, error) {
	return s.editFiguren(ctx, id, func(ids []uint) []uint {
		out := ids[:0]
		for _, fid := range ids {
			if fid != figurID {
				out = append(out, fid)
			}
		}
		return out
	})
}

func (s *AnmeldungService) editFiguren(ctx context.Context, id uint, edit func([]uint) []uint) (*models.Anmeldung, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockAnmeldung(tx, id)
		if err != nil {
			return err
		}
		current, err := linkedFigurIDs(tx, id)
		if err != nil {
			return err
		}
		figuren, err := loadFiguren(tx, models.NormalizeFigurIDs(edit(current)))
		if err != nil {
			return err
		}
		return setFiguren(tx, a, figuren)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a registration and its figure links.
func (s *AnmeldungService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := exists(tx, &models.Anmeldung{}, id); err != nil {
			return err
		} else if !ok {
			return notFound(fmt.Sprintf("anmeldung %d", id))
		}
		return deleteAnmeldungen(tx, "id = ?", id)
	})
}

// --- fiber handlers ---

func (s *AnmeldungService) ListAnmeldungen(c *fiber.Ctx) error {
	var f AnmeldungFilter
	var err error
	if f.WettkampfID, err = queryID(c, "wettkampf_id"); err != nil {
		return respondError(c, err)
	}
	if f.KindID, err = queryID(c, "kind_id"); err != nil {
		return respondError(c, err)
	}
	f.Status = c.Query("status")

	list, err := s.List(c.UserContext(), f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (s *AnmeldungService) GetAnmeldung(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	a, err := s.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (s *AnmeldungService) CreateAnmeldung(c *fiber.Ctx) error {
	var req CreateAnmeldungRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	a, err := s.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *AnmeldungService) UpdateAnmeldung(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req UpdateAnmeldungRequest
	if err := parseBody(c, &req); err != nil {
		return respondError(c, err)
	}
	if req.FigurIDs == nil {
		return respondError(c, invalid("figur_ids is required"))
	}
	a, err := s.ReplaceFiguren(c.UserContext(), id, *req.FigurIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (s *AnmeldungService) AddFigurHandler(c *fiber.Ctx) error {
	return s.figurHandler(c, s.AddFigur)
}

func (s *AnmeldungService) RemoveFigurHandler(c *fiber.Ctx) error {
	return s.figurHandler(c, s.RemoveFigur)
}

func (s *AnmeldungService) figurHandler(c *fiber.Ctx, op func(context.Context, uint, uint) (*models.Anmeldung, error)) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	figurID, err := paramID(c, "figur_id")
	if err != nil {
		return respondError(c, err)
	}
	a, err := op(c.UserContext(), id, figurID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(a)
}

func (s *AnmeldungService) DeleteAnmeldung(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	if err := s.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- transaction helpers, shared with the Wettkampf, Kind and Figur services ---

// forUpdate row-locks the selected rows until the transaction ends (no-op on SQLite).
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockAnmeldung loads a registration and holds its row lock, so concurrent figure edits
// of the same registration run one after another.
func lockAnmeldung(tx *gorm.DB, id uint) (*models.Anmeldung, error) {
	var a models.Anmeldung
	if err := forUpdate(tx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound(fmt.Sprintf("anmeldung %d", id))
		}
		return nil, err
	}
	return &a, nil
}

// loadFiguren fetches the figures for ids and fails if any id is unknown.
func loadFiguren(tx *gorm.DB, ids []uint) ([]models.Figur, error) {
	figuren := []models.Figur{}
	if len(ids) == 0 {
		return figuren, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&figuren).Error; err != nil {
		return nil, err
	}
	if len(figuren) != len(ids) {
		found := make(map[uint]bool, len(figuren))
		for _, f := range figuren {
			found[f.ID] = true
		}
		var missing []uint
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, invalid(fmt.Sprintf("unknown figur_ids %v", missing))
	}
	return figuren, nil
}

func linkedFigurIDs(tx *gorm.DB, anmeldungID uint) ([]uint, error) {
	var ids []uint
	err := tx.Table("anmeldung_figuren").
		Where("anmeldung_id = ?", anmeldungID).
		Pluck("figur_id", &ids).Error
	return ids, err
}

// setFiguren replaces the figure links of a and stores the recomputed status.
func setFiguren(tx *gorm.DB, a *models.Anmeldung, figuren []models.Figur) error {
	assoc := tx.Model(a).Association("Figuren")
	if len(figuren) == 0 {
		if err := assoc.Clear(); err != nil {
			return err
		}
	} else if err := assoc.Replace(figuren); err != nil {
		return err
	}

	ids := make([]uint, len(figuren))
	for i, f := range figuren {
		ids[i] = f.ID
	}
	a.ApplyFigures(ids)
	return saveStatus(tx, a)
}

func saveStatus(tx *gorm.DB, a *models.Anmeldung) error {
	return tx.Model(&models.Anmeldung{ID: a.ID}).Updates(map[string]any{
		"vorlaeufig": a.Vorlaeufig,
		"status":     a.Status,
	}).Error
}

// deleteAnmeldungen removes the registrations matching the condition with their figure links.
func deleteAnmeldungen(tx *gorm.DB, query string, args ...any) error {
	var ids []uint
	if err := tx.Model(&models.Anmeldung{}).Where(query, args...).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM anmeldung_figuren WHERE anmeldung_id IN ?", ids).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Anmeldung{}).Error
}

// RecomputeStatus rewrites vorlaeufig/status of the given registrations from their
// current figure links and returns how many rows changed.
func RecomputeStatus(tx *gorm.DB, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var list []models.Anmeldung
	if err := tx.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return 0, err
	}

	type countRow struct {
		AnmeldungID uint
		N           int
	}
	var rows []countRow
	if err := tx.Table("anmeldung_figuren").
		Select("anmeldung_id, COUNT(*) AS n").
		Where("anmeldung_id IN ?", ids).
		Group("anmeldung_id").
		Scan(&rows).Error; err != nil {
		return 0, err
	}
	counts := make(map[uint]int, len(rows))
	for _, r := range rows {
		counts[r.AnmeldungID] = r.N
	}

	changed := 0
	for i := range list {
		a := &list[i]
		n := counts[a.ID]
		if !a.StatusStale(n) {
			continue
		}
		a.ApplyFigurCount(n)
		if err := saveStatus(tx, a); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
