package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/masomofees/core"
	"github.com/trezcool/masomofees/core/fee"
	"github.com/trezcool/masomofees/core/user"
)

// DB is an in-memory store for tests & local runs.
type DB struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	users      map[string]user.User
	classes    map[string]fee.Class
	students   map[string]fee.Student
	structures map[string]fee.FeeStructure
	challans   map[string]fee.Challan
	payments   []fee.Payment
}

func NewDB() *DB {
	return &DB{
		users:      make(map[string]user.User),
		classes:    make(map[string]fee.Class),
		students:   make(map[string]fee.Student),
		structures: make(map[string]fee.FeeStructure),
		challans:   make(map[string]fee.Challan),
	}
}

// clone copies every table. The caller holds mu.
func (db *DB) clone() *DB {
	c := NewDB()
	for k, v := range db.users {
		c.users[k] = v
	}
	for k, v := range db.classes {
		c.classes[k] = v
	}
	for k, v := range db.students {
		c.students[k] = v
	}
	for k, v := range db.structures {
		c.structures[k] = v
	}
	for k, v := range db.challans {
		c.challans[k] = v
	}
	c.payments = append(c.payments, db.payments...)
	return c
}

// restore replaces every table with snap's. The caller holds mu.
func (db *DB) restore(snap *DB) {
	db.users = snap.users
	db.classes = snap.classes
	db.students = snap.students
	db.structures = snap.structures
	db.challans = snap.challans
	db.payments = snap.payments
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.restore(NewDB())
}

// AddClass stores cls as is. Classes are managed outside of the fee domain.
func (db *DB) AddClass(cls fee.Class) fee.Class {
	db.mu.Lock()
	defer db.mu.Unlock()
	if cls.ID == "" {
		cls.ID = newID()
	}
	db.classes[cls.ID] = cls
	return cls
}

// AddStudent stores st as is. Students are managed outside of the fee domain.
func (db *DB) AddStudent(st fee.Student) fee.Student {
	db.mu.Lock()
	defer db.mu.Unlock()
	if st.ID == "" {
		st.ID = newID()
	}
	db.students[st.ID] = st
	return st
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil)

// NewTransactor returns a Transactor that snapshots db before fn and restores
// the snapshot when fn fails. Transactions are serialised.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mu.RLock()
	snap := t.db.clone()
	t.db.mu.RUnlock()

	rollback := func() {
		t.db.mu.Lock()
		t.db.restore(snap)
		t.db.mu.Unlock()
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if err = fn(nil); err != nil {
		rollback()
	}
	return err
}

// NewRepositories wires every fee repository to db.
func NewRepositories(db *DB) fee.Repositories {
	return fee.Repositories{
		Students:   NewStudentRepository(db),
		Classes:    NewClassRepository(db),
		Structures: NewStructureRepository(db),
		Challans:   NewChallanRepository(db),
		Payments:   NewPaymentRepository(db),
	}
}
