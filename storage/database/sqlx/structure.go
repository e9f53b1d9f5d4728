package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

var structureColumns = []string{
	"id", "school_id", "class_id", "fee_type", "tuition_fee", "admission_fee", "exam_fee", "other_fee",
	"version", "is_active", "effective_from", "created_by", "created_at",
}

type structureRow struct {
	ID            string          `db:"id"`
	SchoolID      string          `db:"school_id"`
	ClassID       string          `db:"class_id"`
	FeeType       string          `db:"fee_type"`
	TuitionFee    decimal.Decimal `db:"tuition_fee"`
	AdmissionFee  decimal.Decimal `db:"admission_fee"`
	ExamFee       decimal.Decimal `db:"exam_fee"`
	OtherFee      decimal.Decimal `db:"other_fee"`
	Version       int             `db:"version"`
	IsActive      bool            `db:"is_active"`
	EffectiveFrom time.Time       `db:"effective_from"`
	CreatedBy     string          `db:"created_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (row structureRow) structure() fee.FeeStructure {
	fs := fee.FeeStructure(row)
	fs.EffectiveFrom = fs.EffectiveFrom.UTC()
	fs.CreatedAt = fs.CreatedAt.UTC()
	return fs
}

type structureRepository struct {
	repository
}

var _ fee.StructureRepository = (*structureRepository)(nil)

func NewStructureRepository(exec core.DBExecutor) fee.StructureRepository {
	return &structureRepository{repository{exec: exec}}
}

func (repo structureRepository) CreateStructure(ctx context.Context, fs fee.FeeStructure, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	fs.ID = newID()
	b := psql.Insert("fee_structure").Columns(structureColumns...).Values(
		fs.ID, fs.SchoolID, fs.ClassID, fs.FeeType, fs.TuitionFee, fs.AdmissionFee, fs.ExamFee, fs.OtherFee,
		fs.Version, fs.IsActive, fs.EffectiveFrom.UTC(), fs.CreatedBy, fs.CreatedAt.UTC(),
	)
	if _, err := repo.execute(ctx, exec, b); err != nil {
		return fee.FeeStructure{}, errors.Wrap(err, "inserting fee structure")
	}
	return fs, nil
}

func (repo structureRepository) GetStructure(ctx context.Context, schoolID, id string, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	if !validUUID(id) {
		return fee.FeeStructure{}, fee.ErrFeeStructureNotFound
	}
	b := psql.Select(structureColumns...).From("fee_structure").Where(sq.Eq{"id": id, "school_id": schoolID})
	return repo.getOne(ctx, exec, b)
}

func (repo structureRepository) GetActiveStructure(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) (fee.FeeStructure, error) {
	if !validUUID(classID) {
		return fee.FeeStructure{}, fee.ErrFeeStructureNotFound
	}
	b := psql.Select(structureColumns...).From("fee_structure").
		Where(sq.Eq{"school_id": schoolID, "class_id": classID, "fee_type": feeType, "is_active": true})
	return repo.getOne(ctx, exec, b)
}

func (repo structureRepository) getOne(ctx context.Context, exec []core.DBExecutor, b sq.SelectBuilder) (fee.FeeStructure, error) {
	var row structureRow
	if err := repo.get(ctx, exec, &row, b, fee.ErrFeeStructureNotFound); err != nil {
		if err == fee.ErrFeeStructureNotFound {
			return fee.FeeStructure{}, err
		}
		return fee.FeeStructure{}, errors.Wrap(err, "finding fee structure")
	}
	return row.structure(), nil
}

func (repo structureRepository) QueryStructures(ctx context.Context, schoolID, classID string, exec ...core.DBExecutor) ([]fee.FeeStructure, error) {
	b := psql.Select(structureColumns...).From("fee_structure").Where(sq.Eq{"school_id": schoolID}).
		OrderBy("class_id ASC", "fee_type ASC", "version DESC")
	if classID != "" {
		if !validUUID(classID) {
			return []fee.FeeStructure{}, nil
		}
		b = b.Where(sq.Eq{"class_id": classID})
	}

	var rows []structureRow
	if err := repo.selectAll(ctx, exec, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]fee.FeeStructure, 0, len(rows))
	for _, row := range rows {
		structures = append(structures, row.structure())
	}
	return structures, nil
}

func (repo structureRepository) LatestVersion(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) (int, error) {
	b := psql.Select("COALESCE(MAX(version), 0)").From("fee_structure").
		Where(sq.Eq{"school_id": schoolID, "class_id": classID, "fee_type": feeType})

	var version int
	if err := repo.get(ctx, exec, &version, b, nil); err != nil {
		return 0, errors.Wrap(err, "finding latest fee structure version")
	}
	return version, nil
}

func (repo structureRepository) DeactivateStructures(ctx context.Context, schoolID, classID, feeType string, exec ...core.DBExecutor) error {
	b := psql.Update("fee_structure").Set("is_active", false).
		Where(sq.Eq{"school_id": schoolID, "class_id": classID, "fee_type": feeType, "is_active": true})
	if _, err := repo.execute(ctx, exec, b); err != nil {
		return errors.Wrap(err, "deactivating fee structures")
	}
	return nil
}
