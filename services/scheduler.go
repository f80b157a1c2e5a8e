// services/scheduler.go
package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"synchro-manager/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ReconcileStatus rewrites every registration whose stored status no longer matches
// its figure links (e.g. rows edited directly in the database). Returns the number fixed.
func ReconcileStatus(ctx context.Context, db *gorm.DB) (int, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&models.Anmeldung{}).
		Where(`(vorlaeufig = ? OR status <> ?) AND EXISTS (SELECT 1 FROM anmeldung_figuren af WHERE af.anmeldung_id = anmeldungen.id)`,
			true, models.StatusAktiv).
		Or(`(vorlaeufig = ? OR status <> ?) AND NOT EXISTS (SELECT 1 FROM anmeldung_figuren af WHERE af.anmeldung_id = anmeldungen.id)`,
			false, models.StatusVorlaeufig).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var fixed int
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		fixed, err = RecomputeStatus(tx, ids)
		return err
	})
	return fixed, err
}

// StartStatusReconciler runs ReconcileStatus every interval until the scheduler is shut down.
func StartStatusReconciler(db *gorm.DB, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()

			fixed, err := ReconcileStatus(ctx, db)
			if err != nil {
				log.Printf("[Scheduler] status reconciliation failed: %v", err)
				return
			}
			if fixed > 0 {
				log.Printf("✅ [Scheduler] recomputed status of %d registration(s)", fixed)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule status reconciliation: %w", err)
	}

	sched.Start()
	return sched, nil
}
