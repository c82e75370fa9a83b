package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/satprep/internal/domain"
)

type field int

const (
	seeking field = iota
	readingFront
	readingBack
	readingExplanation
	readingTopic
)

var prefixes = []struct {
	prefix string
	field  field
}{
	{"Q:", readingFront},
	{"A:", readingBack},
	{"E:", readingExplanation},
	{"T:", readingTopic},
}

// ParseFile reads a markdown deck from the given path and extracts all cards.
func ParseFile(path string) ([]domain.Card, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a markdown deck and extracts all cards.
//
// A card is a run of "Q:", "A:", "E:" (explanation) and "T:" (topic) lines.
// Values may continue over several lines until the next prefix. A "---" line
// or a new "Q:" ends the card. Cards without a question are dropped.
func Parse(r io.Reader) ([]domain.Card, error) {
	scanner := bufio.NewScanner(r)
	var cards []domain.Card
	var current domain.Card
	var block []string
	state := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch state {
		case readingFront:
			current.Front = content
		case readingBack:
			current.Back = content
		case readingExplanation:
			current.Explanation = content
		case readingTopic:
			current.Topic = content
		}
		block = nil
	}

	finishCard := func() {
		flushBlock()
		if current.Front != "" {
			cards = append(cards, current)
		}
		current = domain.Card{}
		state = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if strings.TrimSpace(line) == "---" {
			finishCard()
			continue
		}

		next, rest, ok := matchPrefix(line)
		if !ok {
			if state != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingFront && state != seeking {
			finishCard()
		} else {
			flushBlock()
		}
		state = next
		block = append(block, rest)
	}

	finishCard()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cards, nil
}

func matchPrefix(line string) (field, string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.field, strings.TrimPrefix(line[len(p.prefix):], " "), true
		}
	}
	return seeking, "", false
}
