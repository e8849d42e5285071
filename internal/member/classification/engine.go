// Package classification turns membership questionnaire answers into a
// membership category.
//
// The questionnaire is a small decision tree:
//
//	formalTraining   yes -> geneticCounselor
//	                 no  -> qualifyingDegree
//	qualifyingDegree yes -> clinicalYear
//	                 no  -> pathChoice
//	clinicalYear     yes -> healthcareProvider
//	                 no  -> healthcareProvider
//	pathChoice       student | associate
//
// State is passed whole on every transition and never mutated in place.
package classification

import (
	"encoding/json"
	"fmt"

	"memberdir/internal/member/models"
	dErrors "memberdir/pkg/domain-errors"
)

// Question identifies a node of the questionnaire.
type Question string

const (
	QuestionFormalTraining   Question = "formalTraining"
	QuestionQualifyingDegree Question = "qualifyingDegree"
	QuestionClinicalYear     Question = "clinicalYear"
	QuestionPathChoice       Question = "pathChoice"
)

// Root is the first question asked.
const Root = QuestionFormalTraining

func (q Question) IsValid() bool {
	switch q {
	case QuestionFormalTraining, QuestionQualifyingDegree, QuestionClinicalYear, QuestionPathChoice:
		return true
	}
	return false
}

func (q Question) isChoice() bool {
	return q == QuestionPathChoice
}

// Answer is either a yes/no answer or, for pathChoice, a category choice.
type Answer struct {
	yes    *bool
	choice models.Category
}

func Yes() Answer { return Answer{yes: models.Yes()} }

func No() Answer { return Answer{yes: models.No()} }

// Choose answers the pathChoice question.
func Choose(c models.Category) Answer { return Answer{choice: c} }

// Equal reports whether two answers are the same.
func (a Answer) Equal(b Answer) bool {
	if (a.yes == nil) != (b.yes == nil) {
		return false
	}
	if a.yes != nil {
		return *a.yes == *b.yes
	}
	return a.choice == b.choice
}

// MarshalJSON writes yes/no as a boolean and a choice as its category string.
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.yes != nil {
		return json.Marshal(*a.yes)
	}
	return json.Marshal(string(a.choice))
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = Answer{yes: &b}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("answer must be a boolean or a category: %w", err)
	}
	*a = Answer{choice: models.Category(s)}
	return nil
}

// State is the set of answers captured so far.
type State struct {
	Answers models.Answers `json:"answers"`
}

// Outcome is the result of evaluating a state: either the next question to
// ask or the terminal category. Exactly one of the two is set.
type Outcome struct {
	next     Question
	category models.Category
}

// Next builds an outcome that asks q.
func Next(q Question) Outcome { return Outcome{next: q} }

// Done builds a terminal outcome.
func Done(c models.Category) Outcome { return Outcome{category: c} }

func (o Outcome) IsDone() bool { return o.category != "" }

func (o Outcome) NextQuestion() Question { return o.next }

func (o Outcome) Category() models.Category { return o.category }

func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.IsDone() {
		return json.Marshal(struct {
			Category models.Category `json:"category"`
		}{o.category})
	}
	return json.Marshal(struct {
		Next Question `json:"next"`
	}{o.next})
}

// Step applies answer to node and returns the new state with every answer
// deeper than node cleared, plus what comes next. The input state is not modified.
func Step(state State, node Question, answer Answer) (State, Outcome, error) {
	if !node.IsValid() {
		return state, Outcome{}, invalid(node, "unknown question")
	}
	if !onActivePath(state.Answers, node) {
		return state, Outcome{}, invalid(node, "question is not on the active path")
	}
	if err := checkAnswer(node, answer); err != nil {
		return state, Outcome{}, err
	}

	next := prune(state.Answers, node)
	set(&next, node, answer)
	outcome, err := Evaluate(State{Answers: next})
	if err != nil {
		return state, Outcome{}, err
	}
	return State{Answers: next}, outcome, nil
}

// Evaluate walks the tree from the root and returns the first unanswered
// question on the active path, or the terminal category. Answers recorded
// beyond an unanswered question or off the active path make the state invalid.
func Evaluate(state State) (Outcome, error) {
	a := state.Answers
	q := Root
	visited := map[Question]bool{}
	for {
		if !answered(a, q) {
			if extra := answeredExcept(a, visited); extra != "" {
				return Outcome{}, incomplete(q, extra)
			}
			return Next(q), nil
		}
		if q.isChoice() && !validChoice(a.PathChoice) {
			return Outcome{}, invalid(q, "must be student or associate")
		}
		visited[q] = true
		nq, cat := transition(a, q)
		if cat != "" {
			if extra := answeredExcept(a, visited); extra != "" {
				return Outcome{}, invalid(extra, "answer is not on the active path")
			}
			return Done(cat), nil
		}
		q = nq
	}
}

// Classify returns the category for a complete answer set.
func Classify(answers models.Answers) (models.Category, error) {
	outcome, err := Evaluate(State{Answers: answers})
	if err != nil {
		return "", err
	}
	if !outcome.IsDone() {
		return "", incomplete(outcome.NextQuestion(), "")
	}
	return outcome.Category(), nil
}

// Subrecords are the category-specific records collected after the questionnaire.
type Subrecords struct {
	Education *models.Education
	Associate *models.AssociateInfo
}

// Validate classifies answers and checks the sub-record the chosen category
// requires. Sub-records belonging to other categories are dropped.
func Validate(answers models.Answers, sub Subrecords) (models.Classification, error) {
	category, err := Classify(answers)
	if err != nil {
		return models.Classification{}, err
	}
	c := models.Classification{Category: category, Answers: answers.Clone()}
	errs := models.FieldErrors{}
	switch category {
	case models.CategoryStudent:
		sub.Education.Validate(errs)
		c.Education = sub.Education
	case models.CategoryAssociate:
		sub.Associate.Validate(errs)
		c.Associate = sub.Associate
	}
	if len(errs) > 0 {
		return models.Classification{}, dErrors.Validation("classification is incomplete", errs)
	}
	return c, nil
}

// EditPolicy decides where a membership edit re-enters the questionnaire.
type EditPolicy string

const (
	EditPolicyRevisit EditPolicy = "revisit"
	EditPolicyRestart EditPolicy = "restart"
)

// Resume returns the starting state for a membership edit. Revisit keeps the
// stored answers that still lie on the active path; restart starts empty.
func Resume(previous models.Answers, policy EditPolicy) State {
	if policy == EditPolicyRestart {
		return State{}
	}
	var kept models.Answers
	q := Root
	for answered(previous, q) {
		copyAnswer(&kept, previous, q)
		nq, cat := transition(previous, q)
		if cat != "" {
			break
		}
		q = nq
	}
	return State{Answers: kept}
}

// transition follows the answer recorded for q. Exactly one of the results is set.
func transition(a models.Answers, q Question) (Question, models.Category) {
	switch q {
	case QuestionFormalTraining:
		if *a.FormalTraining {
			return "", models.CategoryGeneticCounselor
		}
		return QuestionQualifyingDegree, ""
	case QuestionQualifyingDegree:
		if *a.QualifyingDegree {
			return QuestionClinicalYear, ""
		}
		return QuestionPathChoice, ""
	case QuestionClinicalYear:
		// Both answers converge on healthcareProvider.
		return "", models.CategoryHealthcareProvider
	case QuestionPathChoice:
		return "", a.PathChoice
	}
	return "", ""
}

func onActivePath(a models.Answers, node Question) bool {
	q := Root
	for q != node {
		if !answered(a, q) {
			return false
		}
		nq, cat := transition(a, q)
		if cat != "" {
			return false
		}
		q = nq
	}
	return true
}

// prune keeps only the answers on the path strictly above node.
func prune(a models.Answers, node Question) models.Answers {
	var out models.Answers
	q := Root
	for q != node {
		copyAnswer(&out, a, q)
		q, _ = transition(a, q)
	}
	return out
}

func checkAnswer(node Question, answer Answer) error {
	if node.isChoice() {
		if !validChoice(answer.choice) {
			return invalid(node, "must be student or associate")
		}
		return nil
	}
	if answer.yes == nil {
		return invalid(node, "must be yes or no")
	}
	return nil
}

func validChoice(c models.Category) bool {
	return c == models.CategoryStudent || c == models.CategoryAssociate
}

func answered(a models.Answers, q Question) bool {
	switch q {
	case QuestionFormalTraining:
		return a.FormalTraining != nil
	case QuestionQualifyingDegree:
		return a.QualifyingDegree != nil
	case QuestionClinicalYear:
		return a.ClinicalYear != nil
	case QuestionPathChoice:
		return a.PathChoice != ""
	}
	return false
}

var order = []Question{QuestionFormalTraining, QuestionQualifyingDegree, QuestionClinicalYear, QuestionPathChoice}

// answeredExcept returns the first recorded answer not in visited.
func answeredExcept(a models.Answers, visited map[Question]bool) Question {
	for _, q := range order {
		if answered(a, q) && !visited[q] {
			return q
		}
	}
	return ""
}

func set(a *models.Answers, q Question, answer Answer) {
	switch q {
	case QuestionFormalTraining:
		a.FormalTraining = answer.yesCopy()
	case QuestionQualifyingDegree:
		a.QualifyingDegree = answer.yesCopy()
	case QuestionClinicalYear:
		a.ClinicalYear = answer.yesCopy()
	case QuestionPathChoice:
		a.PathChoice = answer.choice
	}
}

func copyAnswer(dst *models.Answers, src models.Answers, q Question) {
	switch q {
	case QuestionFormalTraining:
		dst.FormalTraining = Answer{yes: src.FormalTraining}.yesCopy()
	case QuestionQualifyingDegree:
		dst.QualifyingDegree = Answer{yes: src.QualifyingDegree}.yesCopy()
	case QuestionClinicalYear:
		dst.ClinicalYear = Answer{yes: src.ClinicalYear}.yesCopy()
	case QuestionPathChoice:
		dst.PathChoice = src.PathChoice
	}
}

func (a Answer) yesCopy() *bool {
	if a.yes == nil {
		return nil
	}
	v := *a.yes
	return &v
}

func invalid(q Question, msg string) error {
	return dErrors.Validation("invalid questionnaire answer", map[string]string{"answers." + string(q): msg})
}

func incomplete(missing, deeper Question) error {
	msg := "is required"
	if deeper != "" {
		msg = fmt.Sprintf("is required before answering %s", deeper)
	}
	return dErrors.Validation("questionnaire is incomplete", map[string]string{"answers." + string(missing): msg})
}
