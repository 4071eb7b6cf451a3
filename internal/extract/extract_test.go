package extract

import (
	"os"
	"path/filepath"
	"testing"

	"appforge/internal/safeio"
	"appforge/internal/tester"
)

const sampleMarkdown = "Intro text that should be ignored.\n\n" +
	"## Models/UserModel.swift\n\n" +
	"Some prose about the model.\n\n" +
	"```swift\nstruct UserModel {\n    let id: String\n}\n```\n\n" +
	"## Views/ProfileView.swift\n\n" +
	"```Swift\nstruct ProfileView {}\n```\n\n" +
	"## Docs/Notes.md\n\nNo code block here.\n\n" +
	"## /Services/APIService.swift\n\n" +
	"```swift\nfinal class APIService {}\n```\n"

func TestFilesParsesSections(t *testing.T) {
	files := Files(sampleMarkdown, "swift")
	tester.Eq(t, len(files), 3)

	tester.Eq(t, files[0].Path, "Models/UserModel.swift")
	tester.Eq(t, files[0].Content, "struct UserModel {\n    let id: String\n}")

	// Fence language match is case-insensitive.
	tester.Eq(t, files[1].Path, "Views/ProfileView.swift")

	// Leading slash is stripped.
	tester.Eq(t, files[2].Path, "Services/APIService.swift")
}

func TestFilesIgnoresOtherLanguages(t *testing.T) {
	md := "## diagram.mmd\n\n```mermaid\nflowchart TD\n```\n"
	tester.Eq(t, len(Files(md, "swift")), 0)
	tester.Eq(t, len(Files(md, "mermaid")), 1)
}

func TestFilesNoSections(t *testing.T) {
	tester.Eq(t, len(Files("just some text", "swift")), 0)
}

func TestSaveWritesUnderRoot(t *testing.T) {
	dir := t.TempDir()
	fs, err := safeio.NewSafeFS(dir)
	tester.NoErr(t, err)

	n, err := SaveMarkdown(fs, sampleMarkdown, "swift", nil)
	tester.NoErr(t, err)
	tester.Eq(t, n, 3)

	b, err := os.ReadFile(filepath.Join(dir, "Models", "UserModel.swift"))
	tester.NoErr(t, err)
	tester.Eq(t, string(b), "struct UserModel {\n    let id: String\n}\n")
}

func TestSaveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	fs, err := safeio.NewSafeFS(dir)
	tester.NoErr(t, err)

	md := "## ../escape.swift\n\n```swift\nstruct X {}\n```\n"
	_, err = SaveMarkdown(fs, md, "swift", nil)
	tester.Err(t, err, "path traversal must fail the save")
}
