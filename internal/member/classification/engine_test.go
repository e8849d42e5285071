package classification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

// walk applies answers in order starting from an empty state.
func (s *EngineSuite) walk(steps ...qa) (State, Outcome) {
	var (
		state   State
		outcome Outcome
		err     error
	)
	for _, st := range steps {
		state, outcome, err = Step(state, st.q, st.a)
		s.Require().NoError(err)
	}
	return state, outcome
}

type qa struct {
	q Question
	a Answer
}

func (s *EngineSuite) TestScenarioFormalTraining() {
	_, outcome := s.walk(qa{QuestionFormalTraining, Yes()})
	s.True(outcome.IsDone())
	s.Equal(models.CategoryGeneticCounselor, outcome.Category())

	cat, err := Classify(models.Answers{FormalTraining: models.Yes()})
	s.Require().NoError(err)
	s.Equal(models.CategoryGeneticCounselor, cat)
}

func (s *EngineSuite) TestScenarioStudentNeedsEducation() {
	state, outcome := s.walk(
		qa{QuestionFormalTraining, No()},
		qa{QuestionQualifyingDegree, No()},
	)
	s.Equal(QuestionPathChoice, outcome.NextQuestion())

	state, outcome, err := Step(state, QuestionPathChoice, Choose(models.CategoryStudent))
	s.Require().NoError(err)
	s.Equal(models.CategoryStudent, outcome.Category())

	_, err = Validate(state.Answers, Subrecords{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("education", dErrors.FieldsOf(err)[0].Field)

	c, err := Validate(state.Answers, Subrecords{
		Education: &models.Education{School: "State U", Program: "MS Genetic Counseling", Degree: "MS", GraduationYear: 2027},
		Associate: &models.AssociateInfo{Organization: "dropped"},
	})
	s.Require().NoError(err)
	s.Equal(models.CategoryStudent, c.Category)
	s.NotNil(c.Education)
	s.Nil(c.Associate)
}

func (s *EngineSuite) TestDegreeBranchConverges() {
	for _, clinical := range []Answer{Yes(), No()} {
		_, outcome := s.walk(
			qa{QuestionFormalTraining, No()},
			qa{QuestionQualifyingDegree, Yes()},
			qa{QuestionClinicalYear, clinical},
		)
		s.Equal(models.CategoryHealthcareProvider, outcome.Category())
	}
}

func (s *EngineSuite) TestChangingAnswerClearsDeeperAnswers() {
	state, _ := s.walk(
		qa{QuestionFormalTraining, No()},
		qa{QuestionQualifyingDegree, Yes()},
		qa{QuestionClinicalYear, No()},
	)

	changed, outcome, err := Step(state, QuestionQualifyingDegree, No())
	s.Require().NoError(err)
	s.Nil(changed.Answers.ClinicalYear)
	s.Equal(QuestionPathChoice, outcome.NextQuestion())
	s.NotNil(state.Answers.ClinicalYear, "input state must not be mutated")

	root, outcome, err := Step(changed, QuestionFormalTraining, Yes())
	s.Require().NoError(err)
	s.Nil(root.Answers.QualifyingDegree)
	s.Equal(models.CategoryGeneticCounselor, outcome.Category())
}

func (s *EngineSuite) TestStepRejectsQuestionOffPath() {
	state, _ := s.walk(qa{QuestionFormalTraining, Yes()})

	_, _, err := Step(state, QuestionQualifyingDegree, No())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, _, err = Step(State{}, QuestionClinicalYear, Yes())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestStepRejectsWrongAnswerShape() {
	state, _ := s.walk(
		qa{QuestionFormalTraining, No()},
		qa{QuestionQualifyingDegree, No()},
	)
	_, _, err := Step(state, QuestionPathChoice, Yes())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, _, err = Step(state, QuestionPathChoice, Choose(models.CategoryGeneticCounselor))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, _, err = Step(State{}, QuestionFormalTraining, Choose(models.CategoryStudent))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *EngineSuite) TestClassifyRejectsIncompleteAnswers() {
	cases := map[string]models.Answers{
		"empty":                  {},
		"deeper without parent":  {FormalTraining: models.No(), ClinicalYear: models.Yes()},
		"stops before terminal":  {FormalTraining: models.No(), QualifyingDegree: models.Yes()},
		"stale answer past root": {FormalTraining: models.Yes(), QualifyingDegree: models.No()},
		"invalid path choice":    {FormalTraining: models.No(), QualifyingDegree: models.No(), PathChoice: models.CategoryHealthcareProvider},
	}
	for name, answers := range cases {
		s.Run(name, func() {
			_, err := Classify(answers)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *EngineSuite) TestResume() {
	previous := models.Answers{
		FormalTraining:   models.No(),
		QualifyingDegree: models.No(),
		PathChoice:       models.CategoryAssociate,
	}

	s.Run("revisit keeps answers as defaults", func() {
		state := Resume(previous, EditPolicyRevisit)
		s.Equal(previous, state.Answers)
		cat, err := Classify(state.Answers)
		s.Require().NoError(err)
		s.Equal(models.CategoryAssociate, cat)
	})

	s.Run("revisit drops answers off the active path", func() {
		stale := previous
		stale.ClinicalYear = models.Yes()
		state := Resume(stale, EditPolicyRevisit)
		s.Nil(state.Answers.ClinicalYear)
	})

	s.Run("restart begins at the root", func() {
		state := Resume(previous, EditPolicyRestart)
		outcome, err := Evaluate(state)
		s.Require().NoError(err)
		s.Equal(Root, outcome.NextQuestion())
	})
}

// Every complete path yields exactly one category, and repeated
// classification of the same answers is stable.
func TestClassifyCompletenessAndDeterminism(t *testing.T) {
	paths := []struct {
		answers models.Answers
		want    models.Category
	}{
		{models.Answers{FormalTraining: models.Yes()}, models.CategoryGeneticCounselor},
		{models.Answers{FormalTraining: models.No(), QualifyingDegree: models.Yes(), ClinicalYear: models.Yes()}, models.CategoryHealthcareProvider},
		{models.Answers{FormalTraining: models.No(), QualifyingDegree: models.Yes(), ClinicalYear: models.No()}, models.CategoryHealthcareProvider},
		{models.Answers{FormalTraining: models.No(), QualifyingDegree: models.No(), PathChoice: models.CategoryStudent}, models.CategoryStudent},
		{models.Answers{FormalTraining: models.No(), QualifyingDegree: models.No(), PathChoice: models.CategoryAssociate}, models.CategoryAssociate},
	}
	for _, p := range paths {
		first, err := Classify(p.answers)
		require.NoError(t, err)
		assert.Equal(t, p.want, first)
		assert.True(t, first.IsValid())
		for range 10 {
			again, err := Classify(p.answers)
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	}
}

func TestAnswerAndOutcomeJSON(t *testing.T) {
	var a Answer
	require.NoError(t, json.Unmarshal([]byte(`true`), &a))
	assert.Equal(t, Yes(), a)
	require.NoError(t, json.Unmarshal([]byte(`"associate"`), &a))
	assert.Equal(t, Choose(models.CategoryAssociate), a)

	b, err := json.Marshal(Next(QuestionClinicalYear))
	require.NoError(t, err)
	assert.JSONEq(t, `{"next":"clinicalYear"}`, string(b))

	b, err = json.Marshal(Done(models.CategoryStudent))
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"student"}`, string(b))
}
