// Package institutions resolves the tenant a school-admin login is scoped to.
package institutions

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/EXyrus/tabularasa/internal/errors"
)

// Institution is a school tenant. The slug is the human-facing identifier typed on the
// institution login form.
type Institution struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type Repo interface {
	Upsert(institution *Institution) error
	Get(id string) (*Institution, error)
	GetBySlug(slug string) (*Institution, error)
	List(offset, limit int) ([]*Institution, error)
}

// Resolver turns a slug into an institution before an institution login is attempted.
type Resolver struct {
	repo Repo
}

func NewResolver(repo Repo) *Resolver {
	return &Resolver{repo: repo}
}

// NormaliseSlug trims and lower-cases a slug as typed by a user.
func NormaliseSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Resolve returns errors.ErrInstitutionNotFound for empty or unknown slugs.
func (r *Resolver) Resolve(ctx context.Context, slug string) (*Institution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slug = NormaliseSlug(slug)
	if slug == "" {
		return nil, errors.ErrInstitutionNotFound
	}
	inst, err := r.repo.GetBySlug(slug)
	if err != nil || inst == nil {
		return nil, errors.Wrapf(errors.ErrInstitutionNotFound, "slug %q", slug)
	}
	return inst, nil
}

// Import reads a JSON array of institutions from r into repo.
func Import(r io.Reader, repo Repo) (int, error) {
	var list []*Institution
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return 0, errors.Wrapf(err, "[institutions.Import] decode")
	}
	for i, inst := range list {
		if inst == nil || NormaliseSlug(inst.Slug) == "" {
			return i, errors.Wrapf(errors.ErrValidation, "[institutions.Import] entry %d has no slug", i)
		}
		if err := repo.Upsert(inst); err != nil {
			return i, errors.Wrapf(err, "[institutions.Import] upsert %s", inst.Slug)
		}
	}
	return len(list), nil
}
