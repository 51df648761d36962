// Package selector discovers generated problems under an output directory
// and loads the files a review pass needs.
package selector

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound means no problem with the requested ID exists.
var ErrNotFound = errors.New("problem not found")

// ProblemContext is an immutable snapshot of one problem's files, taken for
// a single review pass. Variants maps variant kind to content; VariantPaths
// maps the same kinds to their file paths.
type ProblemContext struct {
	ProblemID    string
	BasePath     string
	ImagePath    string
	DocPath      string
	DocContent   string
	Variants     map[string]string
	VariantPaths map[string]string
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// Discover returns all problem IDs under outputDir in lexical order.
// Problems live either in a scans/ subdirectory (standard layout) or as
// .tex files directly in outputDir (flat layout).
func Discover(outputDir string) ([]string, error) {
	for _, dir := range []string{filepath.Join(outputDir, "scans"), outputDir} {
		ids, err := texStems(dir)
		if err != nil {
			continue
		}
		if len(ids) > 0 {
			sort.Strings(ids)
			return ids, nil
		}
	}
	if _, err := os.Stat(outputDir); err != nil {
		return nil, fmt.Errorf("read output directory %s: %w", outputDir, err)
	}
	return nil, nil
}

// SortNatural orders problem IDs with embedded numbers compared
// numerically, so problem_2 sorts before problem_10.
func SortNatural(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool { return naturalLess(ids[i], ids[j]) })
}

func naturalLess(a, b string) bool {
	ai, bi := 0, 0
	for ai < len(a) && bi < len(b) {
		if isDigit(a[ai]) && isDigit(b[bi]) {
			aj, bj := ai, bi
			for aj < len(a) && isDigit(a[aj]) {
				aj++
			}
			for bj < len(b) && isDigit(b[bj]) {
				bj++
			}
			an := strings.TrimLeft(a[ai:aj], "0")
			bn := strings.TrimLeft(b[bi:bj], "0")
			if len(an) != len(bn) {
				return len(an) < len(bn)
			}
			if an != bn {
				return an < bn
			}
			ai, bi = aj, bj
			continue
		}
		if a[ai] != b[bi] {
			return a[ai] < b[bi]
		}
		ai++
		bi++
	}
	return len(a)-ai < len(b)-bi
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// SelectRandom draws up to count problem IDs without replacement. When fewer
// than count problems exist, all are returned; the caller can compare
// len(result) against count to report the shortfall.
func SelectRandom(outputDir string, count int) ([]string, error) {
	all, err := Discover(outputDir)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	if count >= len(all) {
		return all, nil
	}

	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	picked := all[:count]
	sort.Strings(picked)
	return picked, nil
}

// SelectByID verifies that the given problem exists under outputDir.
func SelectByID(outputDir, id string) (string, error) {
	all, err := Discover(outputDir)
	if err != nil {
		return "", err
	}
	for _, pid := range all {
		if pid == id {
			return pid, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNotFound, id, outputDir)
}

// LoadContext reads every file belonging to a problem. A missing or
// unreadable primary document is fatal. Variant files that exist but cannot
// be read are reported as warnings and omitted from the context.
func LoadContext(outputDir, problemID string) (*ProblemContext, []string, error) {
	docPath := filepath.Join(outputDir, "scans", problemID+".tex")
	if _, err := os.Stat(docPath); err != nil {
		docPath = filepath.Join(outputDir, problemID+".tex")
	}
	raw, err := os.ReadFile(docPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load problem %s: %w", problemID, err)
	}
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("load problem %s: document is empty: %s", problemID, docPath)
	}

	pc := &ProblemContext{
		ProblemID:    problemID,
		BasePath:     outputDir,
		DocPath:      docPath,
		DocContent:   string(raw),
		Variants:     map[string]string{},
		VariantPaths: map[string]string{},
	}

	pc.ImagePath = findImage(outputDir, problemID)

	var warnings []string
	variantsDir := filepath.Join(outputDir, "variants")
	entries, err := os.ReadDir(variantsDir)
	if err != nil {
		return pc, nil, nil // no variants directory
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		kind := entry.Name()
		vpath := filepath.Join(variantsDir, kind, problemID+".tex")
		vraw, err := os.ReadFile(vpath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			warnings = append(warnings, fmt.Sprintf("variant %s unreadable for %s: %v", kind, problemID, err))
			continue
		}
		pc.Variants[kind] = string(vraw)
		pc.VariantPaths[kind] = vpath
	}

	return pc, warnings, nil
}

// findImage looks for a source image alongside the output directory or
// inside it, trying common extensions.
func findImage(outputDir, problemID string) string {
	for _, dir := range []string{
		filepath.Join(filepath.Dir(outputDir), "images"),
		filepath.Join(outputDir, "images"),
	} {
		for _, ext := range imageExts {
			candidate := filepath.Join(dir, problemID+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

// texStems returns the base names of .tex files directly in dir.
func texStems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".tex") {
			ids = append(ids, strings.TrimSuffix(name, ".tex"))
		}
	}
	return ids, nil
}
