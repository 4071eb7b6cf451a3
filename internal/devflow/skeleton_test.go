package devflow

import (
	"testing"

	"appforge/internal/safeio"
	"appforge/internal/tester"
)

const habitSkeleton = `import SwiftUI

/* The main habit list.
   Backed by HabitViewModel. */
struct HabitListView: View {
    // "Habit" in this comment must not count as a reference.
    @StateObject var viewModel: HabitViewModel
    let title = "My Habits with FakeType inside a string"

    var body: some View {
        Text(title)
    }
}

extension HabitListView {
    func refresh() async {}
}
`

func TestParseSkeletonDefinitions(t *testing.T) {
	sk := ParseSkeleton("Views/HabitListView.swift", habitSkeleton)

	_, ok := sk.Definitions["HabitListView"]
	tester.True(t, ok)
	tester.Eq(t, len(sk.Definitions), 1)
}

func TestParseSkeletonReferences(t *testing.T) {
	sk := ParseSkeleton("Views/HabitListView.swift", habitSkeleton)

	_, ok := sk.References["HabitViewModel"]
	tester.True(t, ok)

	// Built-in and SwiftUI types never become dependencies.
	for _, builtin := range []string{"View", "Text", "StateObject", "String"} {
		_, ok := sk.References[builtin]
		tester.False(t, ok, builtin)
	}

	// Stripped regions contribute nothing.
	for _, stripped := range []string{"Habit", "FakeType", "SwiftUI", "Backed"} {
		_, ok := sk.References[stripped]
		tester.False(t, ok, stripped)
	}

	// A file's own declarations are not references.
	_, ok = sk.References["HabitListView"]
	tester.False(t, ok)
}

func TestParseSkeletonCategory(t *testing.T) {
	cases := map[string]string{
		"ViewModels/HabitViewModel.swift": "viewmodel",
		"Views/HabitListView.swift":       "view",
		"Screens/HomeScreen.swift":        "view",
		"Services/SyncService.swift":      "service",
		"Network/APIClient.swift":         "service",
		"Data/HabitRepository.swift":      "repository",
		"Data/HabitStore.swift":           "repository",
		"Models/Habit.swift":              "model",
		"App/Main.swift":                  "other",
	}
	for path, want := range cases {
		tester.Eq(t, ParseSkeleton(path, "").Category, want, path)
	}
}

func TestScanSkeletons(t *testing.T) {
	sfs, err := safeio.NewSafeFS(t.TempDir())
	tester.NoErr(t, err)

	tester.NoErr(t, sfs.WriteFile("Models/Habit.swift", []byte("struct Habit {}")))
	tester.NoErr(t, sfs.WriteFile("Views/HabitView.swift", []byte("struct HabitView { let habit: Habit }")))
	tester.NoErr(t, sfs.WriteFile("planning/Skeleton.md", []byte("## Models/Habit.swift")))
	tester.NoErr(t, sfs.WriteFile("README.md", []byte("docs")))

	skeletons, err := ScanSkeletons(sfs, "swift")
	tester.NoErr(t, err)
	tester.Eq(t, len(skeletons), 2)
	for _, sk := range skeletons {
		tester.True(t, sk.Path == "Models/Habit.swift" || sk.Path == "Views/HabitView.swift", sk.Path)
	}
}
