package engine

// AnswerKey resolves a question id to its correct option index.
type AnswerKey map[string]int

// NewAnswerKey indexes the correct options of qs.
func NewAnswerKey(qs []Question) AnswerKey {
	key := make(AnswerKey, len(qs))
	for _, q := range qs {
		key[q.ID] = q.CorrectOptionIndex
	}
	return key
}

// Resolve returns the correct option for id and whether id is known.
func (k AnswerKey) Resolve(id string) (int, bool) {
	idx, ok := k[id]
	return idx, ok
}

// IsCorrect reports whether a carries a selection matching the key.
// Unanswered and unknown questions are never correct.
func (k AnswerKey) IsCorrect(a Answer) bool {
	if a.SelectedOptionIndex == nil {
		return false
	}
	idx, ok := k.Resolve(a.QuestionID)
	return ok && idx == *a.SelectedOptionIndex
}
