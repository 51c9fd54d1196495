package institutionrepofake

import (
	"sort"
	"sync"

	"github.com/EXyrus/tabularasa/institutions"
	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/google/uuid"
)

var _ institutions.Repo = (*FakeInstitutionRepo)(nil)

type FakeInstitutionRepo struct {
	institutions map[string]*institutions.Institution
	slugIds      map[string]string
	lock         sync.RWMutex
}

func NewFakeInstitutionRepo() *FakeInstitutionRepo {
	return &FakeInstitutionRepo{
		institutions: make(map[string]*institutions.Institution),
		slugIds:      make(map[string]string),
	}
}

func (r *FakeInstitutionRepo) Upsert(inst *institutions.Institution) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.Slug = institutions.NormaliseSlug(inst.Slug)
	r.institutions[inst.ID] = inst
	r.slugIds[inst.Slug] = inst.ID
	return nil
}

func (r *FakeInstitutionRepo) Get(id string) (*institutions.Institution, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	inst, ok := r.institutions[id]
	if !ok {
		return nil, errors.ErrInstitutionNotFound
	}
	return inst, nil
}

func (r *FakeInstitutionRepo) GetBySlug(slug string) (*institutions.Institution, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	id, ok := r.slugIds[institutions.NormaliseSlug(slug)]
	if !ok {
		return nil, errors.ErrInstitutionNotFound
	}
	return r.institutions[id], nil
}

func (r *FakeInstitutionRepo) List(offset, limit int) ([]*institutions.Institution, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	list := make([]*institutions.Institution, 0, len(r.institutions))
	for _, inst := range r.institutions {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Slug < list[j].Slug
	})

	if offset >= len(list) {
		return []*institutions.Institution{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(list) {
		end = len(list)
	}
	return list[offset:end], nil
}
