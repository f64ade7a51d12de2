package repository

import (
	"context"
	"errors"

	emaildomain "mailmirror-backend/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type labelRepository struct {
	db *gorm.DB
}

func NewLabelRepository(db *gorm.DB) LabelRepository {
	return &labelRepository{db: db}
}

var (
	onLabelConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "name"}},
		DoNothing: true,
	}
	onEmailLabelConflict = clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_id"}, {Name: "label_id"}},
		DoNothing: true,
	}
)

// ensureLabel is fetch-or-create keyed by (ownerID, name). Runs on tx.
func ensureLabel(tx *gorm.DB, ownerID, name string) (*emaildomain.Label, bool, error) {
	label := &emaildomain.Label{OwnerID: ownerID, Name: name}
	res := tx.Clauses(onLabelConflict).Create(label)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return label, true, nil
	}

	var stored emaildomain.Label
	if err := tx.Where("owner_id = ? AND name = ?", ownerID, name).First(&stored).Error; err != nil {
		return nil, false, err
	}
	return &stored, false, nil
}

func (r *labelRepository) Ensure(ctx context.Context, ownerID, name string) (*emaildomain.Label, bool, error) {
	var (
		label   *emaildomain.Label
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		label, created, err = ensureLabel(tx, ownerID, name)
		return err
	})
	return label, created, err
}

func (r *labelRepository) LinkEmail(ctx context.Context, emailID, ownerID string, names []string) (int, error) {
	linked := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, name := range names {
			label, _, err := ensureLabel(tx, ownerID, name)
			if err != nil {
				return err
			}
			res := tx.Clauses(onEmailLabelConflict).Create(&emaildomain.EmailLabel{EmailID: emailID, LabelID: label.ID})
			if res.Error != nil {
				return res.Error
			}
			linked += int(res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return linked, nil
}

func (r *labelRepository) Create(ctx context.Context, label *emaildomain.Label) error {
	res := r.db.WithContext(ctx).Clauses(onLabelConflict).Create(label)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrConflict
	}
	return nil
}

func (r *labelRepository) FindByID(ctx context.Context, id string) (*emaildomain.Label, error) {
	var label emaildomain.Label
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&label).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &label, nil
}

// ListVisible returns shared labels plus the ones owned by ownerID
func (r *labelRepository) ListVisible(ctx context.Context, ownerID string) ([]emaildomain.Label, error) {
	var labels []emaildomain.Label
	err := r.db.WithContext(ctx).
		Where("owner_id = ? OR owner_id = ?", "", ownerID).
		Order("name ASC").
		Find(&labels).Error
	return labels, err
}

func (r *labelRepository) Attach(ctx context.Context, emailID, labelID string) error {
	res := r.db.WithContext(ctx).Clauses(onEmailLabelConflict).Create(&emaildomain.EmailLabel{EmailID: emailID, LabelID: labelID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrConflict
	}
	return nil
}

func (r *labelRepository) Detach(ctx context.Context, emailID, labelID string) error {
	res := r.db.WithContext(ctx).Where("email_id = ? AND label_id = ?", emailID, labelID).Delete(&emaildomain.EmailLabel{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return emaildomain.ErrNotFound
	}
	return nil
}
