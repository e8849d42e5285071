// Package query builds member search predicates from filter requests.
//
// A Predicate can both evaluate a member in memory and render itself as a SQL
// boolean expression, so the memory and Postgres stores answer the same query
// the same way.
package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lib/pq"

	"memberdir/internal/member/models"
	pstrings "memberdir/pkg/platform/strings"
)

// Predicate is a condition over members.
type Predicate interface {
	Match(m *models.Member) bool
	// SQL renders the condition against the members table, appending bind
	// values to args.
	SQL(args *Args) string
}

// Args collects positional bind values while rendering SQL.
type Args struct {
	values []any
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return fmt.Sprintf("$%d", len(a.values))
}

// Values returns the collected bind values in placeholder order.
func (a *Args) Values() []any {
	return a.values
}

// True matches every member.
func True() Predicate { return truePredicate{} }

type truePredicate struct{}

func (truePredicate) Match(*models.Member) bool { return true }

func (truePredicate) SQL(*Args) string { return "TRUE" }

// And is the conjunction of ps. With no operands it matches everything.
func And(ps ...Predicate) Predicate {
	var flat []Predicate
	for _, p := range ps {
		switch v := p.(type) {
		case nil, truePredicate:
		case andPredicate:
			flat = append(flat, v...)
		default:
			flat = append(flat, p)
		}
	}
	switch len(flat) {
	case 0:
		return True()
	case 1:
		return flat[0]
	}
	return andPredicate(flat)
}

type andPredicate []Predicate

func (a andPredicate) Match(m *models.Member) bool {
	for _, p := range a {
		if !p.Match(m) {
			return false
		}
	}
	return true
}

func (a andPredicate) SQL(args *Args) string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = "(" + p.SQL(args) + ")"
	}
	return strings.Join(parts, " AND ")
}

// nameContains matches first OR last name by case-insensitive substring.
type nameContains string

func (n nameContains) Match(m *models.Member) bool {
	return pstrings.ContainsFold(m.Personal.FirstName, string(n)) ||
		pstrings.ContainsFold(m.Personal.LastName, string(n))
}

func (n nameContains) SQL(args *Args) string {
	ph := args.Add("%" + escapeLike(string(n)) + "%")
	return "first_name ILIKE " + ph + " OR last_name ILIKE " + ph
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// roleIn matches members whose role is one of roles.
type roleIn []models.Role

func (r roleIn) Match(m *models.Member) bool {
	return slices.Contains(r, m.Role)
}

func (r roleIn) SQL(args *Args) string {
	values := make([]string, len(r))
	for i, role := range r {
		values[i] = string(role)
	}
	return "role = ANY(" + args.Add(pq.Array(values)) + ")"
}

// admissionIn matches members whose admission status is one of statuses.
type admissionIn []models.AdmissionStatus

func (s admissionIn) Match(m *models.Member) bool {
	return slices.Contains(s, m.Account.Admission)
}

func (s admissionIn) SQL(args *Args) string {
	values := make([]string, len(s))
	for i, st := range s {
		values[i] = string(st)
	}
	return "admission_status = ANY(" + args.Add(pq.Array(values)) + ")"
}

// fieldIn matches when a scalar member field is one of values.
type fieldIn struct {
	column string
	get    func(*models.Member) string
	values []string
}

func (f fieldIn) Match(m *models.Member) bool {
	return slices.Contains(f.values, f.get(m))
}

func (f fieldIn) SQL(args *Args) string {
	return f.column + " = ANY(" + args.Add(pq.Array(f.values)) + ")"
}

// servicesOverlap matches when the member offers at least one of values.
type servicesOverlap []string

func (s servicesOverlap) Match(m *models.Member) bool {
	for _, svc := range m.Services() {
		if slices.Contains(s, svc) {
			return true
		}
	}
	return false
}

func (s servicesOverlap) SQL(args *Args) string {
	return "services && " + args.Add(pq.Array([]string(s)))
}
