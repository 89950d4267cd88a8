package duplicate

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
)

// Placeholder is replaced by the copy index in every output
const Placeholder = "%"

// TemplatePath returns the template read for stem
func TemplatePath(stem string) string {
	return stem + ".template"
}

// OutputPath returns the path of copy i of stem
func OutputPath(stem string, i int) string {
	return stem + "." + strconv.Itoa(i)
}

// Render returns the template with every placeholder replaced by i
func Render(template []byte, i int) []byte {
	return bytes.ReplaceAll(template, []byte(Placeholder), []byte(strconv.Itoa(i)))
}

// Run reads <stem>.template and writes <stem>.0 ... <stem>.(n-1), each
// executable by everyone. It returns the written paths.
func Run(stem string, n int) ([]string, error) {
	if n < 0 {
		return nil, fmt.Errorf("copy count must not be negative, got %d", n)
	}

	template, err := os.ReadFile(TemplatePath(stem))
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out := OutputPath(stem, i)
		if err := os.WriteFile(out, Render(template, i), 0644); err != nil {
			return paths, fmt.Errorf("failed to write '%s': %w", out, err)
		}
		paths = append(paths, out)
	}

	for _, out := range paths {
		if err := makeExecutable(out); err != nil {
			return paths, err
		}
	}
	return paths, nil
}

// makeExecutable adds the execute bit for user, group and others
func makeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, info.Mode()|0111); err != nil {
		return fmt.Errorf("failed to mark '%s' executable: %w", path, err)
	}
	return nil
}
