package apifake

import (
	"github.com/EXyrus/tabularasa/institutions"
	"github.com/EXyrus/tabularasa/internal/errors"
	"github.com/EXyrus/tabularasa/portal"
	"github.com/EXyrus/tabularasa/users"
)

// DemoPassword is the password of every demo account.
const DemoPassword = "Password123"

// DemoInstitutionSlug is the slug of the seeded institution.
const DemoInstitutionSlug = "greenfield-academy"

// SeedDemo adds one institution and an account per portal, so the shell can be explored
// without a backend.
func (b *Backend) SeedDemo() error {
	inst := &institutions.Institution{Slug: DemoInstitutionSlug, Name: "Greenfield Academy"}
	if err := b.AddInstitution(inst); err != nil {
		return errors.Wrapf(err, "[SeedDemo] institution")
	}

	accounts := []*users.User{
		{Email: "vendor@tabularasa.test", FirstName: "Vera", LastName: "Vendor", Role: users.RoleVendor, AppType: portal.Vendor},
		{Email: "admin@greenfield.test", FirstName: "Ivan", LastName: "Admin", Role: users.RoleEmployee, AppType: portal.Institution, InstitutionID: inst.ID},
		{Email: "parent@greenfield.test", FirstName: "Grace", LastName: "Guardian", Role: users.RoleGuest, AppType: portal.Guardian},
	}
	for _, u := range accounts {
		if err := b.AddUser(u, DemoPassword); err != nil {
			return errors.Wrapf(err, "[SeedDemo] user %s", u.Email)
		}
	}
	return nil
}
