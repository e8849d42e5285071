package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/member/models"
	"memberdir/internal/member/roles"
	"memberdir/internal/member/service"
	"memberdir/internal/member/store"
	"memberdir/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	store  *store.InMemoryStore
	router chi.Router
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory()
	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	h := New(service.New(s.store, service.WithLogger(logger)), roles.New(s.store), logger)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request, subject string) *httptest.ResponseRecorder {
	req = testutil.WithTime(testutil.WithSubject(req, subject), s.now)
	return testutil.DoRequest(s.router, req)
}

func registerBody(first string) map[string]any {
	return map[string]any{
		"personal": map[string]any{
			"firstName": first,
			"lastName":  "Doe",
			"email":     first + "@example.org",
			"phone":     "555-0100",
		},
		"professional": map[string]any{"country": "US", "preferredLanguage": "english"},
		"answers":      map[string]any{"formalTraining": true},
	}
}

func (s *HandlerSuite) register(subject, first string) MemberResponse {
	res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members", registerBody(first)), subject)
	s.Require().Equal(http.StatusCreated, res.Code, res.Body.String())
	return *testutil.UnmarshalResponse[MemberResponse](s.T(), res)
}

func (s *HandlerSuite) list(subject, first string) {
	m := s.register(subject, first)
	ctx := context.Background()
	_, err := s.store.TransitionAdmission(ctx, m.ID, models.AdmissionNone, 0, func(mm *models.Member) error {
		mm.ApplyAdmissionRequest(models.Clinic{Name: "Clinic"}, models.Display{Services: []string{"prenatal"}}, s.now)
		return nil
	})
	s.Require().NoError(err)
	_, err = s.store.TransitionAdmission(ctx, m.ID, models.AdmissionPending, 1, func(mm *models.Member) error {
		mm.ApplyAdmissionDecision(models.AdmissionApproved, s.now)
		return nil
	})
	s.Require().NoError(err)
}

func (s *HandlerSuite) TestRegisterAndGetMe() {
	created := s.register("sub-1", "Gina")
	s.Equal(models.CategoryGeneticCounselor, created.Account.Membership)
	s.Equal(models.FlagFalse, created.Account.InDirectory)
	s.Equal(models.RoleMember, created.Role)

	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members/me"), "sub-1")
	s.Equal(http.StatusOK, res.Code)
	s.Contains(res.Body.String(), `"inDirectory":false`)
	me := testutil.UnmarshalResponse[MemberResponse](s.T(), res)
	s.Equal(created.ID, me.ID)
}

func (s *HandlerSuite) TestRegisterValidationErrors() {
	body := registerBody("")
	body["answers"] = map[string]any{"formalTraining": false}
	res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members", body), "sub-1")
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation")
	s.Contains(testutil.ErrorFields(s.T(), res), "answers.qualifyingDegree")
}

func (s *HandlerSuite) TestRegisterTwiceConflicts() {
	s.register("sub-1", "Gina")
	res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members", registerBody("Gina")), "sub-1")
	testutil.AssertStatusAndError(s.T(), res, http.StatusConflict, "conflict")
}

func (s *HandlerSuite) TestRegisterWithoutSubjectIsUnauthorized() {
	res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members", registerBody("Gina")), "")
	testutil.AssertStatusAndError(s.T(), res, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestSearchMemberSeesOnlyListed() {
	s.register("sub-1", "Ann")
	s.list("sub-2", "Bea")

	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?inDirectory=false"), "sub-1")
	s.Require().Equal(http.StatusOK, res.Code)
	out := testutil.UnmarshalResponse[SearchResponse](s.T(), res)
	s.Equal(1, out.Count)
	s.Require().Len(out.Users, 1)
	s.Equal("Bea", out.Users[0].Personal.FirstName)
	s.Equal(models.FlagTrue, out.Users[0].Account.InDirectory)
}

func (s *HandlerSuite) TestSearchAdminFilters() {
	admin := s.register("sub-admin", "Ada")
	s.Require().NoError(s.store.SetRole(context.Background(), admin.ID, models.RoleAdmin))
	s.register("sub-1", "Ann")
	s.list("sub-2", "Bea")

	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?inDirectory=false&pageSize=1"), "sub-admin")
	s.Require().Equal(http.StatusOK, res.Code)
	out := testutil.UnmarshalResponse[SearchResponse](s.T(), res)
	s.Equal(2, out.Count)
	s.Len(out.Users, 1)

	res = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?isAdmin=true"), "sub-admin")
	out = testutil.UnmarshalResponse[SearchResponse](s.T(), res)
	s.Equal(1, out.Count)
	s.Equal(admin.ID, out.Users[0].ID)

	res = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?services=prenatal,oncology&search=BE"), "sub-admin")
	out = testutil.UnmarshalResponse[SearchResponse](s.T(), res)
	s.Equal(1, out.Count)
}

func (s *HandlerSuite) TestSearchRejectsBadParameters() {
	s.register("sub-1", "Ann")
	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?isAdmin=maybe&inDirectory=soon&page=0"), "sub-1")
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation")
	s.ElementsMatch([]string{"inDirectory", "isAdmin", "page"}, testutil.ErrorFields(s.T(), res))
}

func (s *HandlerSuite) TestSearchRejectsHugePageNumber() {
	s.register("sub-1", "Ann")
	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?page=9223372036854775807"), "sub-1")
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation")
	s.Equal([]string{"page"}, testutil.ErrorFields(s.T(), res))

	res = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members?page=1000000"), "sub-1")
	s.Equal(http.StatusOK, res.Code)
}

func (s *HandlerSuite) TestSearchUnknownCallerForbidden() {
	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members"), "stranger")
	testutil.AssertStatusAndError(s.T(), res, http.StatusForbidden, "forbidden")
}

func (s *HandlerSuite) TestEditMembershipAndQuestionnaire() {
	s.register("sub-1", "Gina")

	res := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/members/me/questionnaire"), "sub-1")
	s.Require().Equal(http.StatusOK, res.Code)
	s.JSONEq(`{"answers":{"formalTraining":true},"outcome":{"category":"geneticCounselor"}}`, res.Body.String())

	res = s.do(testutil.NewJSONRequest(s.T(), http.MethodPut, "/members/me/membership", map[string]any{
		"answers":   map[string]any{"formalTraining": false, "qualifyingDegree": false, "pathChoice": "associate"},
		"associate": map[string]any{"organization": "Lab", "specialization": "genomics"},
	}), "sub-1")
	s.Require().Equal(http.StatusOK, res.Code, res.Body.String())
	out := testutil.UnmarshalResponse[MemberResponse](s.T(), res)
	s.Equal(models.CategoryAssociate, out.Account.Membership)
	s.Require().NotNil(out.Associate)
}

func (s *HandlerSuite) TestStep() {
	res := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members/questionnaire/step", map[string]any{
		"answers":  map[string]any{"formalTraining": false, "qualifyingDegree": true, "clinicalYear": true},
		"question": "qualifyingDegree",
		"answer":   false,
	}), "sub-1")
	s.Require().Equal(http.StatusOK, res.Code, res.Body.String())
	s.JSONEq(`{"answers":{"formalTraining":false,"qualifyingDegree":false},"outcome":{"next":"pathChoice"}}`, res.Body.String())

	res = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/members/questionnaire/step", map[string]any{
		"answers":  map[string]any{"formalTraining": true},
		"question": "clinicalYear",
		"answer":   true,
	}), "sub-1")
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation")
}
