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
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/announcement/models"
	"memberdir/internal/announcement/service"
	"memberdir/internal/announcement/store"
	memberModels "memberdir/internal/member/models"
	"memberdir/internal/member/roles"
	memberStore "memberdir/internal/member/store"
	"memberdir/internal/notify"
	"memberdir/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	members := memberStore.NewInMemory()
	for subject, role := range map[string]memberModels.Role{"sub-admin": memberModels.RoleSuperadmin, "sub-member": memberModels.RoleMember} {
		m, err := memberModels.NewMember(uuid.New(), subject,
			memberModels.Personal{FirstName: "F", LastName: "L", Email: subject + "@example.org", Phone: "1"},
			memberModels.Professional{PreferredLanguage: memberModels.LanguageEnglish},
			memberModels.Classification{Category: memberModels.CategoryGeneticCounselor, Answers: memberModels.Answers{FormalTraining: memberModels.Yes()}},
			time.Now())
		s.Require().NoError(err)
		m.Role = role
		s.Require().NoError(members.Create(context.Background(), m))
	}
	svc := service.New(store.NewInMemory(), members, notify.NewLog(logger), service.WithLogger(logger))
	s.router = chi.NewRouter()
	New(svc, roles.New(members), logger).Register(s.router)
}

func (s *HandlerSuite) do(method, path, subject string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	return testutil.DoRequest(s.router, testutil.WithSubject(req, subject))
}

func (s *HandlerSuite) create(recipients []string) *models.Announcement {
	rr := s.do(http.MethodPost, "/announcements", "sub-admin", map[string]any{
		"title": "Meeting", "body": "Agenda attached.", "recipients": recipients,
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.UnmarshalResponse[models.Announcement](s.T(), rr)
}

func (s *HandlerSuite) TestCreateAndGet() {
	a := s.create([]string{"language:english"})
	s.Equal([]string{"language:english"}, a.Recipients)

	rr := s.do(http.MethodGet, "/announcements/"+a.ID.String(), "sub-member", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	got := testutil.UnmarshalResponse[models.Announcement](s.T(), rr)
	s.Equal(a.ID, got.ID)
	s.Equal("Meeting", got.Title)
}

func (s *HandlerSuite) TestCreateInvalidRecipients() {
	rr := s.do(http.MethodPost, "/announcements", "sub-admin", map[string]any{
		"title": "Meeting", "body": "Agenda.", "recipients": []string{"everyone", "not-an-email"},
	})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation")
	s.Equal([]string{"recipients[1]"}, testutil.ErrorFields(s.T(), rr))
}

func (s *HandlerSuite) TestMembersCannotAuthor() {
	rr := s.do(http.MethodPost, "/announcements", "sub-member", map[string]any{
		"title": "Meeting", "body": "Agenda.", "recipients": []string{"everyone"},
	})
	testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
}

func (s *HandlerSuite) TestAudienceAndDeliver() {
	a := s.create([]string{"everyone"})

	rr := s.do(http.MethodGet, "/announcements/"+a.ID.String()+"/audience", "sub-admin", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	aud := testutil.UnmarshalResponse[AudienceResponse](s.T(), rr)
	s.Equal(2, aud.Count)

	rr = s.do(http.MethodPost, "/announcements/"+a.ID.String()+"/deliver", "sub-admin", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	d := testutil.UnmarshalResponse[models.Delivery](s.T(), rr)
	s.Equal(2, d.Sent)
	s.Empty(d.Failed)
}

func (s *HandlerSuite) TestGetErrors() {
	rr := s.do(http.MethodGet, "/announcements/not-a-uuid", "sub-member", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")

	rr = s.do(http.MethodGet, "/announcements/"+uuid.NewString(), "sub-member", nil)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
}
