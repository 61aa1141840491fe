package service

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beasiswaku_backend/internals/features/scholarship/applications/model"
)

// nextNumber hands out SCH-<year>-<seq>. The per-year counter row is
// created on first use and locked while it is bumped.
func nextNumber(tx *gorm.DB, year int) (string, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ApplicationSequenceModel{ApplicationSequenceYear: year}).Error; err != nil {
		return "", err
	}

	var seq model.ApplicationSequenceModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("application_sequence_year = ?", year).
		Take(&seq).Error; err != nil {
		return "", err
	}
	seq.ApplicationSequenceLast++
	if err := tx.Model(&model.ApplicationSequenceModel{}).
		Where("application_sequence_year = ?", year).
		Update("application_sequence_last", seq.ApplicationSequenceLast).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("SCH-%d-%06d", year, seq.ApplicationSequenceLast), nil
}
