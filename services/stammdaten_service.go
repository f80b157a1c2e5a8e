package services

import (
	"errors"
	"fmt"
	"strings"

	"synchro-manager/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// reference is a column of another table pointing at a lookup row.
type reference struct {
	model  any
	column string
	label  string
}

// Lookup serves list/get/create/update/delete for one affiliation table.
type Lookup[T any] struct {
	DB    *gorm.DB
	Name  string
	Order string
	refs  []reference
	// build reads the request body into row and validates it.
	build func(c *fiber.Ctx, tx *gorm.DB, row *T) error
}

func (l *Lookup[T]) List(c *fiber.Ctx) error {
	list := []T{}
	if err := l.DB.WithContext(c.UserContext()).Order(l.Order).Find(&list).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(list)
}

func (l *Lookup[T]) load(c *fiber.Ctx, tx *gorm.DB) (*T, uint, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, 0, err
	}
	var row T
	if err := tx.First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, id, notFound(fmt.Sprintf("%s %d", l.Name, id))
		}
		return nil, id, err
	}
	return &row, id, nil
}

func (l *Lookup[T]) Get(c *fiber.Ctx) error {
	row, _, err := l.load(c, l.DB.WithContext(c.UserContext()))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(row)
}

func (l *Lookup[T]) Create(c *fiber.Ctx) error {
	var row T
	err := l.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := l.build(c, tx, &row); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(row)
}

func (l *Lookup[T]) Update(c *fiber.Ctx) error {
	var row *T
	err := l.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var err error
		if row, _, err = l.load(c, tx); err != nil {
			return err
		}
		if err := l.build(c, tx, row); err != nil {
			return err
		}
		return tx.Save(row).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(row)
}

// Delete refuses to remove rows that are still referenced.
func (l *Lookup[T]) Delete(c *fiber.Ctx) error {
	err := l.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		row, id, err := l.load(c, tx)
		if err != nil {
			return err
		}
		for _, ref := range l.refs {
			var n int64
			if err := tx.Model(ref.model).Where(ref.column+" = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return conflict(fmt.Sprintf("%s %d is still referenced by %d %s", l.Name, id, n, ref.label))
			}
		}
		return tx.Delete(row).Error
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type VerbandRequest struct {
	Name     string `json:"name"`
	Kurzname string `json:"kurzname"`
}

type VereinRequest struct {
	Name      string `json:"name"`
	Ort       string `json:"ort"`
	VerbandID *uint  `json:"verband_id,omitempty"`
}

type VersicherungRequest struct {
	Name string `json:"name"`
}

// StammdatenService groups the affiliation tables that decide insurance coverage.
type StammdatenService struct {
	Verbaende      *Lookup[models.Verband]
	Vereine        *Lookup[models.Verein]
	Versicherungen *Lookup[models.Versicherung]
}

func NewStammdatenService(db *gorm.DB) *StammdatenService {
	return &StammdatenService{
		Verbaende: &Lookup[models.Verband]{
			DB: db, Name: "verband", Order: "name ASC",
			refs: []reference{
				{&models.Kind{}, "verband_id", "kinder"},
				{&models.Verein{}, "verband_id", "vereine"},
			},
			build: func(c *fiber.Ctx, tx *gorm.DB, row *models.Verband) error {
				var req VerbandRequest
				if err := parseBody(c, &req); err != nil {
					return err
				}
				row.Name = strings.TrimSpace(req.Name)
				row.Kurzname = strings.TrimSpace(req.Kurzname)
				if row.Name == "" {
					return invalid("name is required")
				}
				return nil
			},
		},
		Vereine: &Lookup[models.Verein]{
			DB: db, Name: "verein", Order: "name ASC",
			refs: []reference{{&models.Kind{}, "verein_id", "kinder"}},
			build: func(c *fiber.Ctx, tx *gorm.DB, row *models.Verein) error {
				var req VereinRequest
				if err := parseBody(c, &req); err != nil {
					return err
				}
				row.Name = strings.TrimSpace(req.Name)
				row.Ort = strings.TrimSpace(req.Ort)
				row.VerbandID = zeroToNil(req.VerbandID)
				row.Verband = nil
				if row.Name == "" {
					return invalid("name is required")
				}
				if row.VerbandID != nil {
					ok, err := exists(tx, &models.Verband{}, *row.VerbandID)
					if err != nil {
						return err
					}
					if !ok {
						return invalid(fmt.Sprintf("verband_id %d does not exist", *row.VerbandID))
					}
				}
				return nil
			},
		},
		Versicherungen: &Lookup[models.Versicherung]{
			DB: db, Name: "versicherung", Order: "name ASC",
			refs: []reference{{&models.Kind{}, "versicherung_id", "kinder"}},
			build: func(c *fiber.Ctx, tx *gorm.DB, row *models.Versicherung) error {
				var req VersicherungRequest
				if err := parseBody(c, &req); err != nil {
					return err
				}
				row.Name = strings.TrimSpace(req.Name)
				if row.Name == "" {
					return invalid("name is required")
				}
				return nil
			},
		},
	}
}
