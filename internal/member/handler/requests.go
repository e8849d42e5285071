package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"memberdir/internal/member/classification"
	"memberdir/internal/member/models"
	"memberdir/internal/member/query"
	dErrors "memberdir/pkg/domain-errors"
	pstrings "memberdir/pkg/platform/strings"
)

type RegisterRequest struct {
	Personal     models.Personal       `json:"personal"`
	Professional models.Professional   `json:"professional"`
	Answers      models.Answers        `json:"answers"`
	Education    *models.Education     `json:"education,omitempty"`
	Associate    *models.AssociateInfo `json:"associate,omitempty"`
}

// Validate trims input; field rules live in the domain.
func (r *RegisterRequest) Validate() error {
	r.Personal.FirstName = strings.TrimSpace(r.Personal.FirstName)
	r.Personal.LastName = strings.TrimSpace(r.Personal.LastName)
	r.Personal.Phone = strings.TrimSpace(r.Personal.Phone)
	r.Professional.Title = strings.TrimSpace(r.Professional.Title)
	r.Professional.Country = strings.TrimSpace(r.Professional.Country)
	return nil
}

type EditMembershipRequest struct {
	Answers   models.Answers        `json:"answers"`
	Education *models.Education     `json:"education,omitempty"`
	Associate *models.AssociateInfo `json:"associate,omitempty"`
}

func (r *EditMembershipRequest) Validate() error {
	return nil
}

// StepRequest applies one answer to a questionnaire state.
type StepRequest struct {
	Answers  models.Answers          `json:"answers"`
	Question classification.Question `json:"question"`
	Answer   *classification.Answer  `json:"answer"`
}

func (r *StepRequest) Validate() error {
	errs := map[string]string{}
	if !r.Question.IsValid() {
		errs["question"] = "unknown question"
	}
	if r.Answer == nil {
		errs["answer"] = "is required"
	}
	if len(errs) > 0 {
		return dErrors.Validation("invalid questionnaire step", errs)
	}
	return nil
}

type QuestionnaireResponse struct {
	Answers models.Answers         `json:"answers"`
	Outcome classification.Outcome `json:"outcome"`
}

type accountResponse struct {
	Membership  models.Category      `json:"membership"`
	InDirectory models.DirectoryFlag `json:"inDirectory"`
	Version     int64                `json:"version"`
}

// MemberResponse is the wire form of a member. Admission status is exposed
// only as the tri-state inDirectory flag.
type MemberResponse struct {
	ID           uuid.UUID             `json:"id"`
	Role         models.Role           `json:"role"`
	Account      accountResponse       `json:"account"`
	Personal     models.Personal       `json:"personal"`
	Professional models.Professional   `json:"professional"`
	Education    *models.Education     `json:"education,omitempty"`
	Associate    *models.AssociateInfo `json:"associate,omitempty"`
	Clinic       *models.Clinic        `json:"clinic,omitempty"`
	Display      *models.Display       `json:"display,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
}

func toResponse(m *models.Member) MemberResponse {
	return MemberResponse{
		ID:   m.ID,
		Role: m.Role,
		Account: accountResponse{
			Membership:  m.Account.Membership,
			InDirectory: m.InDirectory(),
			Version:     m.Account.Version,
		},
		Personal:     m.Personal,
		Professional: m.Professional,
		Education:    m.Education,
		Associate:    m.Associate,
		Clinic:       m.Clinic,
		Display:      m.Display,
		CreatedAt:    m.CreatedAt,
	}
}

type SearchResponse struct {
	Users []MemberResponse `json:"users"`
	Count int              `json:"count"`
}

// parseSearch reads the search query string. List dimensions accept repeated
// parameters and comma-separated values.
func parseSearch(v url.Values) (query.FilterSpec, query.Page, error) {
	spec := query.FilterSpec{
		Search:    strings.TrimSpace(v.Get("search")),
		Titles:    pstrings.SplitList(v["title"]),
		Education: pstrings.SplitList(v["education"]),
		Services:  pstrings.SplitList(v["services"]),
		Countries: pstrings.SplitList(v["country"]),
	}
	for _, c := range pstrings.SplitList(v["membership"]) {
		spec.Memberships = append(spec.Memberships, models.Category(c))
	}

	errs := map[string]string{}
	if raw := v.Get("isAdmin"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			errs["isAdmin"] = "must be true or false"
		} else {
			spec.IsAdmin = &b
		}
	}
	if raw := v.Get("inDirectory"); raw != "" {
		flag, err := models.ParseDirectoryFlag(raw)
		if err != nil {
			errs["inDirectory"] = "must be true, false or pending"
		} else {
			spec.InDirectory = &flag
		}
	}
	number := positiveInt(v.Get("page"), "page", errs)
	if number > query.MaxPageNumber {
		errs["page"] = "must be at most " + strconv.Itoa(query.MaxPageNumber)
	}
	size := positiveInt(v.Get("pageSize"), "pageSize", errs)
	if len(errs) > 0 {
		return query.FilterSpec{}, query.Page{}, dErrors.Validation("invalid search parameters", errs)
	}
	return spec, query.NewPage(number, size), nil
}

func positiveInt(raw, field string, errs map[string]string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		errs[field] = "must be a positive integer"
		return 0
	}
	return n
}
