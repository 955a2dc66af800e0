package routines

import "github.com/google/uuid"

// NormalizeProvisions enforces the ordering invariant of a routine
// plan: every provision and every nested item gets an id (fresh when
// the client supplied none, preserved otherwise), and every order
// index is re-derived from position in the sequence. Client-supplied
// order values are ignored.
//
// Running it twice over the same sequence is a no-op.
func NormalizeProvisions(provisions []Provision) []Provision {
	for i := range provisions {
		p := &provisions[i]
		p.Order = i

		switch p.Type {
		case ProvisionTypeExercise:
			if p.Item == nil {
				continue
			}
			if p.Item.ID == "" {
				p.Item.ID = uuid.NewString()
			}
			p.Item.Order = i
		case ProvisionTypeSuperset:
			if p.Superset == nil {
				continue
			}
			if p.Superset.ID == "" {
				p.Superset.ID = uuid.NewString()
			}
			p.Superset.Order = i
			for j := range p.Superset.Items {
				item := &p.Superset.Items[j]
				if item.ID == "" {
					item.ID = uuid.NewString()
				}
				item.Order = j
			}
		}
	}
	return provisions
}
