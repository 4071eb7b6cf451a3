package devflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"appforge/internal/safeio"
	"appforge/internal/tester"
)

// devGen implements files by echoing a marker plus the file path pulled
// from the prompt. failPaths makes selected files fail.
type devGen struct {
	mu        sync.Mutex
	prompts   []string
	failPaths map[string]struct{}
}

func (g *devGen) Send(_ context.Context, prompt, _ string, _ bool) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()

	path := promptedFile(prompt)
	if _, fail := g.failPaths[path]; fail {
		return "", errors.New("model unavailable")
	}
	return "```swift\n// implemented " + path + "\n```", nil
}

func promptedFile(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if rest, ok := strings.CutPrefix(line, "File: "); ok {
			return rest
		}
	}
	return ""
}

func seedProject(t *testing.T) *safeio.SafeFS {
	t.Helper()
	sfs, err := safeio.NewSafeFS(t.TempDir())
	tester.NoErr(t, err)

	tester.NoErr(t, sfs.WriteFile("Models/Habit.swift", []byte("struct Habit {}")))
	tester.NoErr(t, sfs.WriteFile("ViewModels/HabitViewModel.swift",
		[]byte("class HabitViewModel { var habit: Habit? }")))
	tester.NoErr(t, sfs.WriteFile("Views/HabitView.swift",
		[]byte("struct HabitView { let vm: HabitViewModel }")))
	tester.NoErr(t, sfs.WriteFile("planning/Skeleton.md", []byte("plan")))
	return sfs
}

func TestRunDevelopsEveryFile(t *testing.T) {
	sfs := seedProject(t)
	gen := &devGen{}
	o := NewOrchestrator(gen, sfs, "swift", 2, nil)

	res, err := o.Run(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, res.Completed, 3)
	tester.Eq(t, len(res.Failed), 0)
	tester.Eq(t, res.Waves, 3)

	b, err := sfs.ReadFile("Views/HabitView.swift")
	tester.NoErr(t, err)
	tester.Eq(t, string(b), "// implemented Views/HabitView.swift\n")
}

func TestRunDependencyOrder(t *testing.T) {
	sfs := seedProject(t)
	gen := &devGen{}
	o := NewOrchestrator(gen, sfs, "swift", 1, nil)

	_, err := o.Run(context.Background())
	tester.NoErr(t, err)

	var order []string
	for _, p := range gen.prompts {
		order = append(order, promptedFile(p))
	}
	tester.Eq(t, order, []string{
		"Models/Habit.swift",
		"ViewModels/HabitViewModel.swift",
		"Views/HabitView.swift",
	})
}

func TestRunRecordsFailures(t *testing.T) {
	sfs := seedProject(t)
	gen := &devGen{failPaths: map[string]struct{}{"ViewModels/HabitViewModel.swift": {}}}
	o := NewOrchestrator(gen, sfs, "swift", 2, nil)

	res, err := o.Run(context.Background())
	tester.NoErr(t, err)
	tester.Eq(t, res.Completed, 2)
	tester.Eq(t, res.Failed, []string{"ViewModels/HabitViewModel.swift"})

	// The failed file keeps its skeleton; later waves still ran.
	b, err := sfs.ReadFile("ViewModels/HabitViewModel.swift")
	tester.NoErr(t, err)
	tester.Eq(t, string(b), "class HabitViewModel { var habit: Habit? }")

	b, err = sfs.ReadFile("Views/HabitView.swift")
	tester.NoErr(t, err)
	tester.Eq(t, string(b), "// implemented Views/HabitView.swift\n")
}

func TestRunEmptyProject(t *testing.T) {
	sfs, err := safeio.NewSafeFS(t.TempDir())
	tester.NoErr(t, err)

	o := NewOrchestrator(&devGen{}, sfs, "swift", 1, nil)
	_, err = o.Run(context.Background())
	tester.Err(t, err, "a project with no skeleton files must fail")
}

func TestExtractCodeFallsBackToRawResponse(t *testing.T) {
	tester.Eq(t, extractCode("```swift\nstruct A {}\n```", "swift"), "struct A {}")
	tester.Eq(t, extractCode("```SWIFT\nstruct A {}\n```", "swift"), "struct A {}")
	tester.Eq(t, extractCode("  struct A {}  ", "swift"), "struct A {}")
}

func TestSystemPromptsPerCategory(t *testing.T) {
	seen := map[string]struct{}{}
	for _, cat := range []string{"view", "viewmodel", "service", "repository", "other"} {
		p := systemPromptFor(cat, "swift")
		tester.True(t, strings.Contains(p, "swift"), cat)
		seen[p] = struct{}{}
	}
	// The four roles get distinct guidance; "other" shares the base.
	tester.Eq(t, len(seen), 5)

	sorted := make([]string, 0, len(seen))
	for p := range seen {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)
	for _, p := range sorted {
		tester.True(t, strings.HasPrefix(p, "You are an expert mobile developer."))
	}
}
