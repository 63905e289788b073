// Package output saves consensus results to files with prompt-derived
// names.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// stopWords are excluded from generated filenames: articles, pronouns,
// auxiliaries, and verbs so common in prompts they carry no signal.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a an the and or but in on at to for of with by from as is was are
		were been be have has had do does did will would could should may
		might must can this that these those i you he she it we they what
		which who whom how when where why all each every both few more
		most other some such no nor not only own same so than too very
		just about into through during before after above below between
		under again further then once here there any me my create make
		write generate build design develop implement add get set use
		using please help need want like give show explain describe
		document documentation doc docs file files`) {
		stopWords[w] = struct{}{}
	}
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

const (
	maxKeywords = 6
	maxSlugLen  = 50
)

// GenerateFilename derives a slug filename from a prompt, such as
// "abstract-class-racer-api.md".
func GenerateFilename(prompt, extension string) string {
	text := nonAlnum.ReplaceAllString(strings.ToLower(prompt), " ")

	var keywords []string
	for _, w := range strings.Fields(text) {
		if _, skip := stopWords[w]; skip || len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == maxKeywords {
			break
		}
	}
	if len(keywords) == 0 {
		keywords = []string{"output"}
	}

	slug := strings.Join(keywords, "-")
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
		if i := strings.LastIndexByte(slug, '-'); i > 0 {
			slug = slug[:i]
		}
	}
	return slug + extension
}

// Save writes content under dir with a prompt-derived name, creating the
// directory as needed. Existing files are never overwritten; a numeric
// suffix disambiguates.
func Save(content, dir, prompt string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	name := GenerateFilename(prompt, ".md")
	path := filepath.Join(absDir, name)

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(absDir, fmt.Sprintf("%s-%d%s", base, counter, ext))
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}
