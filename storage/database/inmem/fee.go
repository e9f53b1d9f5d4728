package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
)

type (
	studentRepository   struct{ db *DB }
	classRepository     struct{ db *DB }
	structureRepository struct{ db *DB }
)

var (
	_ fee.StudentRepository   = (*studentRepository)(nil)
	_ fee.ClassRepository     = (*classRepository)(nil)
	_ fee.StructureRepository = (*structureRepository)(nil)
)

func NewStudentRepository(db *DB) fee.StudentRepository     { return &studentRepository{db: db} }
func NewClassRepository(db *DB) fee.ClassRepository         { return &classRepository{db: db} }
func NewStructureRepository(db *DB) fee.StructureRepository { return &structureRepository{db: db} }

func (repo *studentRepository) GetStudent(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	st, ok := repo.db.students[id]
	if !ok || st.SchoolID != schoolID {
		return fee.Student{}, fee.ErrStudentNotFound
	}
	return st, nil
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter fee.StudentFilter, _ ...core.DBExecutor) ([]fee.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ids := toSet(filter.IDs)
	students := make([]fee.Student, 0)
	for _, st := range repo.db.students {
		if st.SchoolID != filter.SchoolID {
			continue
		}
		if ids != nil {
			if _, ok := ids[st.ID]; !ok {
				continue
			}
		}
		if filter.ClassID != "" && st.ClassID.String != filter.ClassID {
			continue
		}
		if filter.ActiveOnly && !st.IsActive {
			continue
		}
		students = append(students, st)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, st fee.Student, _ ...core.DBExecutor) (fee.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.students[st.ID]
	if !ok || orig.SchoolID != st.SchoolID {
		return fee.Student{}, fee.ErrStudentNotFound
	}
	repo.db.students[st.ID] = st
	return st, nil
}

func (repo *classRepository) GetClass(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	cls, ok := repo.db.classes[id]
	if !ok || cls.SchoolID != schoolID {
		return fee.Class{}, fee.ErrClassNotFound
	}
	return cls, nil
}

func (repo *structureRepository) CreateStructure(_ context.Context, fs fee.FeeStructure, _ ...core.DBExecutor) (fee.FeeStructure, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if fs.ID == "" {
		fs.ID = newID()
	}
	repo.db.structures[fs.ID] = fs
	return fs, nil
}

func (repo *structureRepository) GetStructure(_ context.Context, schoolID, id string, _ ...core.DBExecutor) (fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	fs, ok := repo.db.structures[id]
	if !ok || fs.SchoolID != schoolID {
		return fee.FeeStructure{}, fee.ErrFeeStructureNotFound
	}
	return fs, nil
}

func (repo *structureRepository) GetActiveStructure(_ context.Context, schoolID, classID, feeType string, _ ...core.DBExecutor) (fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, fs := range repo.db.structures {
		if fs.SchoolID == schoolID && fs.ClassID == classID && fs.FeeType == feeType && fs.IsActive {
			return fs, nil
		}
	}
	return fee.FeeStructure{}, fee.ErrFeeStructureNotFound
}

func (repo *structureRepository) QueryStructures(_ context.Context, schoolID, classID string, _ ...core.DBExecutor) ([]fee.FeeStructure, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	structures := make([]fee.FeeStructure, 0)
	for _, fs := range repo.db.structures {
		if fs.SchoolID == schoolID && (classID == "" || fs.ClassID == classID) {
			structures = append(structures, fs)
		}
	}
	sort.Slice(structures, func(i, j int) bool {
		if structures[i].ClassID != structures[j].ClassID {
			return structures[i].ClassID < structures[j].ClassID
		}
		return structures[i].Version > structures[j].Version
	})
	return structures, nil
}

func (repo *structureRepository) LatestVersion(_ context.Context, schoolID, classID, feeType string, _ ...core.DBExecutor) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var latest int
	for _, fs := range repo.db.structures {
		if fs.SchoolID == schoolID && fs.ClassID == classID && fs.FeeType == feeType && fs.Version > latest {
			latest = fs.Version
		}
	}
	return latest, nil
}

func (repo *structureRepository) DeactivateStructures(_ context.Context, schoolID, classID, feeType string, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for id, fs := range repo.db.structures {
		if fs.SchoolID == schoolID && fs.ClassID == classID && fs.FeeType == feeType && fs.IsActive {
			fs.IsActive = false
			repo.db.structures[id] = fs
		}
	}
	return nil
}

// toSet returns nil for an empty ids, meaning "no filter".
func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
