package parser

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expectedQ     string
		expectedA     string
		expectedE     string
		expectedT     string
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What is the slope of y = 2x + 1?\nA: 2",
			expectedCards: 1,
			expectedQ:     "What is the slope of y = 2x + 1?",
			expectedA:     "2",
		},
		{
			name:          "All fields",
			input:         "Q: 3x = 12, x = ?\nA: 4\nE: Divide both sides by 3.\nT: Linear equations",
			expectedCards: 1,
			expectedQ:     "3x = 12, x = ?",
			expectedA:     "4",
			expectedE:     "Divide both sides by 3.",
			expectedT:     "Linear equations",
		},
		{
			name: "Multiline Answer",
			input: `
Q: Name three transition words that show contrast.
A: however
nevertheless
conversely
`,
			expectedCards: 1,
			expectedQ:     "Name three transition words that show contrast.",
			expectedA:     "however\nnevertheless\nconversely",
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Separator ends a card",
			input: `
Q: First
A: One
---
stray text is ignored
Q: Second
A: Two
`,
			expectedCards: 2,
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.",
			expectedCards: 0,
		},
		{
			name:          "Answer without question is dropped",
			input:         "A: orphan answer",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expectedQ:     "Question",
			expectedA:     "Answer",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cards, err := Parse(strings.NewReader(tc.input))
			if err != nil {
				t.Fatalf("Parse() returned an unexpected error: %v", err)
			}

			if len(cards) != tc.expectedCards {
				t.Fatalf("Expected %d cards, but got %d", tc.expectedCards, len(cards))
			}

			if tc.expectedCards == 1 {
				card := cards[0]
				if card.Front != tc.expectedQ {
					t.Errorf("Expected Front to be '%s', but got '%s'", tc.expectedQ, card.Front)
				}
				if card.Back != tc.expectedA {
					t.Errorf("Expected Back to be '%s', but got '%s'", tc.expectedA, card.Back)
				}
				if card.Explanation != tc.expectedE {
					t.Errorf("Expected Explanation to be '%s', but got '%s'", tc.expectedE, card.Explanation)
				}
				if card.Topic != tc.expectedT {
					t.Errorf("Expected Topic to be '%s', but got '%s'", tc.expectedT, card.Topic)
				}
			}
		})
	}
}

func TestIsDeckFile(t *testing.T) {
	for name, want := range map[string]bool{
		"algebra.md":  true,
		"VOCAB.XLSX":  true,
		"notes.txt":   false,
		"deck.md.bak": false,
	} {
		if got := IsDeckFile(name); got != want {
			t.Errorf("IsDeckFile(%q) = %v, want %v", name, got, want)
		}
	}
}
