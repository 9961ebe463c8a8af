package practice

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"sync"
)

// ErrNoPhrases is returned by [PhraseBank.Random] when the bank is empty.
var ErrNoPhrases = errors.New("practice: no phrases")

// PhraseBank holds the phrases a learner is asked to repeat. It is safe for
// concurrent use; [PhraseBank.Replace] swaps the whole list atomically.
type PhraseBank struct {
	mu      sync.RWMutex
	phrases []string

	// intN is replaced in tests.
	intN func(n int) int
}

// NewPhraseBank returns a bank holding phrases. Surrounding whitespace is
// trimmed and blank entries are dropped.
func NewPhraseBank(phrases []string) *PhraseBank {
	b := &PhraseBank{}
	b.Replace(phrases)
	return b
}

// LoadPhraseFile reads a UTF-8 file with one phrase per line.
func LoadPhraseFile(path string) (*PhraseBank, error) {
	phrases, err := ReadPhraseFile(path)
	if err != nil {
		return nil, err
	}
	return NewPhraseBank(phrases), nil
}

// ReadPhraseFile returns the non-blank lines of the file at path.
func ReadPhraseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("practice: open phrase file: %w", err)
	}
	defer f.Close()

	phrases, err := ParsePhrases(f)
	if err != nil {
		return nil, fmt.Errorf("practice: read phrase file %q: %w", path, err)
	}
	return phrases, nil
}

// ParsePhrases returns the non-blank, trimmed lines of r.
func ParsePhrases(r io.Reader) ([]string, error) {
	var phrases []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			phrases = append(phrases, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return phrases, nil
}

// Replace swaps the bank's contents for phrases.
func (b *PhraseBank) Replace(phrases []string) {
	clean := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	b.mu.Lock()
	b.phrases = clean
	b.mu.Unlock()
}

// Random returns a uniformly chosen phrase, or [ErrNoPhrases].
func (b *PhraseBank) Random() (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.phrases) == 0 {
		return "", ErrNoPhrases
	}
	intN := b.intN
	if intN == nil {
		intN = rand.IntN
	}
	return b.phrases[intN(len(b.phrases))], nil
}

// Len returns the number of phrases in the bank.
func (b *PhraseBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.phrases)
}

// All returns a copy of the phrases.
func (b *PhraseBank) All() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.phrases)
}
