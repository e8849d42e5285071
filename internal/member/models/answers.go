package models

// Answers is the persisted questionnaire state. A nil answer means the
// question has not been answered.
type Answers struct {
	FormalTraining   *bool    `json:"formalTraining,omitempty"`
	QualifyingDegree *bool    `json:"qualifyingDegree,omitempty"`
	ClinicalYear     *bool    `json:"clinicalYear,omitempty"`
	PathChoice       Category `json:"pathChoice,omitempty"`
}

// Yes and No are helpers for building answer sets.
func Yes() *bool {
	v := true
	return &v
}

func No() *bool {
	v := false
	return &v
}

// Clone returns a deep copy so callers never share answer pointers.
func (a Answers) Clone() Answers {
	out := Answers{PathChoice: a.PathChoice}
	out.FormalTraining = cloneBool(a.FormalTraining)
	out.QualifyingDegree = cloneBool(a.QualifyingDegree)
	out.ClinicalYear = cloneBool(a.ClinicalYear)
	return out
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
