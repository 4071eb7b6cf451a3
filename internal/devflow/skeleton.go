package devflow

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"appforge/internal/safeio"
)

// Skeleton describes one generated source file: the types it declares and
// the capitalized identifiers it references but does not declare.
type Skeleton struct {
	Path        string
	Definitions map[string]struct{}
	References  map[string]struct{}
	Category    string
}

var (
	identifierRe = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9_]*\b`)
	typeDefRe    = regexp.MustCompile(`\b(?:struct|class|enum|protocol|extension|actor)\s+([A-Z][a-zA-Z0-9_]*)`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`//.*`)
	stringLit    = regexp.MustCompile(`"(?:\\.|[^"\\])*"`)
)

// builtinTypes are identifiers that never create a file dependency.
var builtinTypes = map[string]struct{}{
	"String": {}, "Int": {}, "Double": {}, "Float": {}, "Bool": {},
	"Array": {}, "Dictionary": {}, "Set": {}, "Data": {}, "Date": {},
	"URL": {}, "UUID": {}, "Error": {}, "Result": {}, "Optional": {},
	"Codable": {}, "Identifiable": {}, "Hashable": {}, "Equatable": {},
	"View": {}, "Text": {}, "Image": {}, "Button": {}, "List": {},
	"VStack": {}, "HStack": {}, "ZStack": {}, "NavigationStack": {},
	"State": {}, "Binding": {}, "ObservedObject": {}, "StateObject": {},
	"EnvironmentObject": {}, "Published": {}, "ObservableObject": {},
	"Task": {}, "MainActor": {}, "Void": {},
}

// ScanSkeletons walks the project for files with the given extension and
// extracts declared types and outbound type references.
func ScanSkeletons(sfs *safeio.SafeFS, ext string) ([]Skeleton, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var out []Skeleton
	err := sfs.Walk(func(rel string, _ fs.FileInfo) error {
		if !strings.HasSuffix(rel, ext) || strings.HasPrefix(rel, planningPrefix) {
			return nil
		}
		b, err := sfs.ReadFile(rel)
		if err != nil {
			return err
		}
		out = append(out, ParseSkeleton(rel, string(b)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// planningPrefix keeps planning documents out of the development queue.
const planningPrefix = "planning" + string(filepath.Separator)

// ParseSkeleton extracts the skeleton of one source file.
func ParseSkeleton(path, content string) Skeleton {
	cleaned := blockComment.ReplaceAllString(content, "")
	cleaned = stringLit.ReplaceAllString(cleaned, "")
	cleaned = lineComment.ReplaceAllString(cleaned, "")

	// Imports reference modules, not project files.
	var kept []string
	for _, line := range strings.Split(cleaned, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "import ") {
			continue
		}
		kept = append(kept, line)
	}
	cleaned = strings.Join(kept, "\n")

	defs := map[string]struct{}{}
	for _, m := range typeDefRe.FindAllStringSubmatch(cleaned, -1) {
		defs[m[1]] = struct{}{}
	}
	refs := map[string]struct{}{}
	for _, ident := range identifierRe.FindAllString(cleaned, -1) {
		if _, ok := builtinTypes[ident]; ok {
			continue
		}
		if _, ok := defs[ident]; ok {
			continue
		}
		refs[ident] = struct{}{}
	}
	return Skeleton{
		Path:        path,
		Definitions: defs,
		References:  refs,
		Category:    categorize(path),
	}
}

func categorize(path string) string {
	switch {
	case strings.Contains(path, "ViewModel"):
		return "viewmodel"
	case strings.Contains(path, "View") || strings.Contains(path, "Screen"):
		return "view"
	case strings.Contains(path, "Service") || strings.Contains(path, "Manager") || strings.Contains(path, "Client"):
		return "service"
	case strings.Contains(path, "Repository") || strings.Contains(path, "Store"):
		return "repository"
	case strings.Contains(path, "Model"):
		return "model"
	default:
		return "other"
	}
}
