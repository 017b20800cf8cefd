package contacts

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
)

// Repository defines the interface for contact storage
type Repository interface {
	Create(ctx context.Context, req *CreateContactRequest) (*Contact, error)
	GetByID(ctx context.Context, id string) (*Contact, error)
	GetByEmail(ctx context.Context, email string) (*Contact, error)
	List(ctx context.Context, filter ListFilter) ([]*Contact, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Contact, error)
}

const contactTable = "contact"

// MemoryRepository keeps contacts in a go-memdb table with a unique email
// index. Stored objects are never mutated; updates insert a copy.
type MemoryRepository struct {
	db  *memdb.MemDB
	now func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			contactTable: {
				Name: contactTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"email": {
						Name:    "email",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Email", Lowercase: true},
					},
					"status": {
						Name:    "status",
						Indexer: &memdb.StringFieldIndex{Field: "Status"},
					},
				},
			},
		},
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		panic("contacts: invalid memdb schema: " + err.Error())
	}
	return &MemoryRepository{db: db, now: time.Now}
}

// Create stores a new contact, rejecting emails that already exist.
func (r *MemoryRepository) Create(ctx context.Context, req *CreateContactRequest) (*Contact, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(contactTable, "email", req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	now := r.now().UTC()
	contact := &Contact{
		ID:                 uuid.New().String(),
		Name:               req.Name,
		Email:              req.Email,
		Company:            req.Company,
		Sector:             req.Sector,
		Message:            req.Message,
		SubscriptionVolume: req.SubscriptionVolume,
		SubscriptionTypeID: req.SubscriptionTypeID,
		Status:             StatusNew,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := txn.Insert(contactTable, contact); err != nil {
		return nil, err
	}
	txn.Commit()

	out := *contact
	return &out, nil
}

// GetByID retrieves a contact by ID
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*Contact, error) {
	return r.first("id", id)
}

// GetByEmail retrieves a contact by its normalized email.
func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*Contact, error) {
	return r.first("email", NormalizeEmail(email))
}

func (r *MemoryRepository) first(index, value string) (*Contact, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	obj, err := txn.First(contactTable, index, value)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrContactNotFound
	}
	out := *obj.(*Contact)
	return &out, nil
}

// List returns contacts newest first.
func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Contact, error) {
	filter = filter.normalized()

	txn := r.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	if filter.Status != "" {
		it, err = txn.Get(contactTable, "status", string(filter.Status))
	} else {
		it, err = txn.Get(contactTable, "id")
	}
	if err != nil {
		return nil, err
	}

	var all []*Contact
	for obj := it.Next(); obj != nil; obj = it.Next() {
		c := *obj.(*Contact)
		all = append(all, &c)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if filter.Offset >= len(all) {
		return []*Contact{}, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[filter.Offset:end], nil
}

// UpdateStatus moves a contact to a new pipeline status.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Contact, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(contactTable, "id", id)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrContactNotFound
	}
	updated := *obj.(*Contact)
	updated.Status = status
	updated.UpdatedAt = r.now().UTC()
	if err := txn.Insert(contactTable, &updated); err != nil {
		return nil, err
	}
	txn.Commit()

	out := updated
	return &out, nil
}

var _ Repository = (*MemoryRepository)(nil)
