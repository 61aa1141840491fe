package academic_periods

import (
	"errors"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/features/scholarship/academic_periods/model"
)

type AcademicPeriodSeed struct {
	AcademicPeriodID         uuid.UUID `json:"academic_period_id"`
	AcademicPeriodSchoolYear string    `json:"academic_period_school_year"`
	AcademicPeriodTerm       string    `json:"academic_period_term"`
	AcademicPeriodName       string    `json:"academic_period_name"`
	AcademicPeriodStartDate  time.Time `json:"academic_period_start_date"`
	AcademicPeriodEndDate    time.Time `json:"academic_period_end_date"`
	AcademicPeriodIsActive   bool      `json:"academic_period_is_active"`
}

// SeedAcademicPeriodsFromJSON insert periode yang belum ada,
// dicocokkan dari school year + term.
func SeedAcademicPeriodsFromJSON(db *gorm.DB, filePath string, log logrus.FieldLogger) (int, error) {
	log.WithField("file", filePath).Info("reading academic periods")

	content, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	var data []AcademicPeriodSeed
	if err := sonic.Unmarshal(content, &data); err != nil {
		return 0, err
	}

	inserted := 0
	for _, item := range data {
		var existing model.AcademicPeriodModel
		err := db.Where("academic_period_school_year = ? AND academic_period_term = ?",
			item.AcademicPeriodSchoolYear, item.AcademicPeriodTerm).Take(&existing).Error
		if err == nil {
			log.Debugf("period %s %s exists, skipping", item.AcademicPeriodSchoolYear, item.AcademicPeriodTerm)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return inserted, err
		}

		record := model.AcademicPeriodModel{
			AcademicPeriodID:         item.AcademicPeriodID,
			AcademicPeriodSchoolYear: item.AcademicPeriodSchoolYear,
			AcademicPeriodTerm:       item.AcademicPeriodTerm,
			AcademicPeriodName:       item.AcademicPeriodName,
			AcademicPeriodStartDate:  item.AcademicPeriodStartDate.UTC(),
			AcademicPeriodEndDate:    item.AcademicPeriodEndDate.UTC(),
			AcademicPeriodIsActive:   item.AcademicPeriodIsActive,
		}
		if err := db.Create(&record).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	log.WithField("inserted", inserted).Info("academic periods seeded")
	return inserted, nil
}
