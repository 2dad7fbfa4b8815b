package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
)

//go:embed questions.json
var defaultQuestions []byte

// Question is one entry of the read-only question bank, as provided by
// the external bank file: an ordered list of multiple-choice questions.
type Question struct {
	ID                 int      `json:"id"`
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correct_answer_index"`
}

// QuestionBank is immutable after load.
type QuestionBank struct {
	questions []Question
	byID      map[int]Question
}

// loadQuestionBank reads the bank from path, or the embedded default
// bank when path is empty, and validates every entry.
func loadQuestionBank(path string) (*QuestionBank, error) {
	data := defaultQuestions
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading question bank: %w", err)
		}
	}

	var questions []Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parsing question bank: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question bank is empty")
	}

	byID := make(map[int]Question, len(questions))
	for _, q := range questions {
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("question %d: needs at least 2 options", q.ID)
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct_answer_index %d out of range", q.ID, q.CorrectAnswerIndex)
		}
		if _, dup := byID[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id", q.ID)
		}
		byID[q.ID] = q
	}

	return &QuestionBank{questions: questions, byID: byID}, nil
}

func (b *QuestionBank) get(id int) (Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

func (b *QuestionBank) all() []Question {
	return b.questions
}
