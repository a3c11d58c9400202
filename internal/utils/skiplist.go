package utils

import (
	"bufio"
	"os"
	"strings"
)

// SkipList holds titles the importer must never bring into the catalog
type SkipList struct {
	terms []string
}

// LoadSkipList loads skip terms from a file, one per line. Lines starting
// with # are comments. A missing file yields an empty list.
func LoadSkipList(path string) (*SkipList, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &SkipList{terms: []string{}}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term != "" && !strings.HasPrefix(term, "#") {
			terms = append(terms, term)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &SkipList{terms: terms}, nil
}

// IsSkipped checks if a title matches any skip term
// Returns (isSkipped, matchedTerm)
func (s *SkipList) IsSkipped(title string) (bool, string) {
	titleLower := strings.ToLower(title)

	for _, term := range s.terms {
		if strings.Contains(titleLower, strings.ToLower(term)) {
			return true, term
		}
	}

	return false, ""
}
