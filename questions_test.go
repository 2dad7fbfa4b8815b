package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeBank(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "questions.json")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing bank file: %v", err)
	}
	return path
}

func TestDefaultBankLoads(t *testing.T) {
	bank, err := loadQuestionBank("")
	if err != nil {
		t.Fatalf("loading embedded bank: %v", err)
	}

	if len(bank.all()) == 0 {
		t.Fatal("embedded bank is empty")
	}
	for _, q := range bank.all() {
		got, ok := bank.get(q.ID)
		if !ok || got.Question != q.Question {
			t.Fatalf("lookup by id %d failed", q.ID)
		}
	}
}

func TestLoadBankFromFile(t *testing.T) {
	path := writeBank(t, `[
		{"id": 1, "question": "up or down?", "options": ["up", "down"], "correct_answer_index": 1}
	]`)

	bank, err := loadQuestionBank(path)
	if err != nil {
		t.Fatalf("loading bank: %v", err)
	}

	q, ok := bank.get(1)
	if !ok || q.CorrectAnswerIndex != 1 {
		t.Fatalf("loaded question = %+v, ok = %v", q, ok)
	}
}

func TestLoadBankRejectsBadEntries(t *testing.T) {
	cases := []struct {
		name     string
		contents string
		wantErr  string
	}{
		{
			name:     "index out of range",
			contents: `[{"id": 1, "question": "q", "options": ["a", "b"], "correct_answer_index": 2}]`,
			wantErr:  "out of range",
		},
		{
			name:     "negative index",
			contents: `[{"id": 1, "question": "q", "options": ["a", "b"], "correct_answer_index": -1}]`,
			wantErr:  "out of range",
		},
		{
			name: "duplicate id",
			contents: `[
				{"id": 1, "question": "q1", "options": ["a", "b"], "correct_answer_index": 0},
				{"id": 1, "question": "q2", "options": ["a", "b"], "correct_answer_index": 0}
			]`,
			wantErr: "duplicate id",
		},
		{
			name:     "too few options",
			contents: `[{"id": 1, "question": "q", "options": ["a"], "correct_answer_index": 0}]`,
			wantErr:  "at least 2 options",
		},
		{
			name:     "empty bank",
			contents: `[]`,
			wantErr:  "empty",
		},
		{
			name:     "not json",
			contents: `question one: what`,
			wantErr:  "parsing",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadQuestionBank(writeBank(t, tc.contents))
			if err == nil {
				t.Fatal("bad bank accepted")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want mention of %q", err, tc.wantErr)
			}
		})
	}
}

func TestMissingBankFile(t *testing.T) {
	if _, err := loadQuestionBank(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("missing file accepted")
	}
}
