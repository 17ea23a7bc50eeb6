// Package prompts holds the LLM prompt templates, embedded at compile time
// from JSON files that map a prompt key to its template text.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"
)

//go:embed *.json
var promptFiles embed.FS

var (
	loadOnce sync.Once
	library  map[string]map[string]string
	loadErr  error
)

// Get retrieves a prompt by filename and key, e.g. Get("ranking.json", "relevance").
func Get(filename, key string) (string, error) {
	lib, err := load()
	if err != nil {
		return "", err
	}

	file, ok := lib[filename]
	if !ok {
		return "", fmt.Errorf("failed to read prompt file %s: %w", filename, fs.ErrNotExist)
	}
	prompt, ok := file[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// Format replaces {{.Key}} placeholders with values from data. Unknown
// placeholders are left in place.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func load() (map[string]map[string]string, error) {
	loadOnce.Do(func() {
		entries, err := promptFiles.ReadDir(".")
		if err != nil {
			loadErr = fmt.Errorf("failed to list prompt files: %w", err)
			return
		}

		lib := make(map[string]map[string]string, len(entries))
		for _, entry := range entries {
			data, err := promptFiles.ReadFile(entry.Name())
			if err != nil {
				loadErr = fmt.Errorf("failed to read prompt file %s: %w", entry.Name(), err)
				return
			}
			var prompts map[string]string
			if err := json.Unmarshal(data, &prompts); err != nil {
				loadErr = fmt.Errorf("failed to parse prompt file %s: %w", entry.Name(), err)
				return
			}
			lib[entry.Name()] = prompts
		}
		library = lib
	})
	return library, loadErr
}
