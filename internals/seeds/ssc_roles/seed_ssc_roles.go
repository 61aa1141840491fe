package ssc_roles

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"beasiswaku_backend/internals/constants"
	"beasiswaku_backend/internals/features/scholarship/ssc_reviews/model"
)

type RoleAssignmentSeed struct {
	UserID uuid.UUID `json:"role_assignment_user_id"`
	Role   string    `json:"role_assignment_role"`
}

// SeedRoleAssignmentsFromJSON memberi assignment aktif ke anggota komite.
// Role tidak dikenal = seluruh run gagal.
func SeedRoleAssignmentsFromJSON(db *gorm.DB, filePath string, now time.Time, log logrus.FieldLogger) (int, error) {
	log.WithField("file", filePath).Info("reading committee role assignments")

	content, err := os.ReadFile(filePath)
	if err != nil {
		return 0, err
	}
	var data []RoleAssignmentSeed
	if err := sonic.Unmarshal(content, &data); err != nil {
		return 0, err
	}

	known := map[string]bool{}
	for _, r := range constants.AllSSCRoles {
		known[r] = true
	}

	inserted := 0
	for _, item := range data {
		if !known[item.Role] {
			return inserted, fmt.Errorf("unknown committee role %q", item.Role)
		}
		var existing model.RoleAssignmentModel
		err := db.Where("role_assignment_user_id = ? AND role_assignment_role = ? AND role_assignment_is_active = ?",
			item.UserID, item.Role, true).Take(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return inserted, err
		}
		record := model.RoleAssignmentModel{
			RoleAssignmentID:         uuid.New(),
			RoleAssignmentUserID:     item.UserID,
			RoleAssignmentRole:       item.Role,
			RoleAssignmentIsActive:   true,
			RoleAssignmentAssignedAt: now.UTC(),
		}
		if err := db.Create(&record).Error; err != nil {
			return inserted, err
		}
		inserted++
	}
	log.WithField("inserted", inserted).Info("committee roles seeded")
	return inserted, nil
}
