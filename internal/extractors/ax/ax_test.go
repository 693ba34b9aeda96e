package ax

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/glimpsed/internal/core/domain"
)

type fakeElement struct {
	role     string
	title    string
	value    string
	children []Element
	attrs    map[string]Variant
	set      map[string]Variant
	childErr error
}

func (f *fakeElement) Role() (string, error)        { return f.role, nil }
func (f *fakeElement) Title() (string, error)       { return f.title, nil }
func (f *fakeElement) Value() (string, error)       { return f.value, nil }
func (f *fakeElement) Description() (string, error) { return "", nil }

func (f *fakeElement) Children() ([]Element, error) {
	if f.childErr != nil {
		return nil, f.childErr
	}
	return f.children, nil
}

func (f *fakeElement) Attribute(name string) (Variant, error) {
	if v, ok := f.attrs[name]; ok {
		return v, nil
	}
	return Variant{}, errAttrMissing
}

func (f *fakeElement) SetAttribute(name string, value Variant) error {
	if f.set == nil {
		f.set = map[string]Variant{}
	}
	f.set[name] = value
	return nil
}

func text(s string) *fakeElement {
	return &fakeElement{role: "AXStaticText", value: s}
}

func group(children ...Element) *fakeElement {
	return &fakeElement{role: "AXGroup", children: children}
}

func TestHarvestText(t *testing.T) {
	root := &fakeElement{role: "AXWindow", children: []Element{
		group(text("hello")),
		&fakeElement{role: "AXButton", children: []Element{text("not harvested")}},
		&fakeElement{role: "AXTextArea", value: "   "},
		&fakeElement{role: "AXWebArea", value: "page title", children: []Element{
			text("page body"),
		}},
		&fakeElement{role: "AXCell", title: "cell title"},
	}}

	got, err := HarvestText(root)
	require.NoError(t, err)
	assert.Equal(t, "hello\npage title\npage body\ncell title", got)
}

func TestHarvestTextCyclicTreeStopsAtDepthCap(t *testing.T) {
	cyclic := &fakeElement{role: "AXGroup", children: []Element{text("leaf")}}
	cyclic.children = append(cyclic.children, cyclic)

	got, err := HarvestText(cyclic)
	require.NoError(t, err)
	assert.NotEmpty(t, got)
}

func TestHarvestTextChildErrorNonFatal(t *testing.T) {
	root := &fakeElement{role: "AXWindow", children: []Element{
		text("before"),
		&fakeElement{role: "AXGroup", childErr: errors.New("subtree vanished")},
		text("after"),
	}}

	got, err := HarvestText(root)
	require.NoError(t, err)
	assert.Equal(t, "before\nafter", got)
}

func TestHarvestMessagesRows(t *testing.T) {
	root := &fakeElement{role: "AXWindow", children: []Element{
		&fakeElement{role: "AXScrollArea", children: []Element{
			group(text("alice"), text("10:00 AM"), text("hi there")),
			group(text("bob"), text("10:01 AM"), text("hello"), text("again")),
			group(text("orphan")),
		}},
	}}

	got, err := HarvestMessages("com.tinyspeck.slackmacgap", root)
	require.NoError(t, err)
	assert.Equal(t, "[alice] [10:00 AM] hi there\n[bob] [10:01 AM] hello again", got)
}

func TestHarvestMessagesRowWithoutTimestamp(t *testing.T) {
	root := group(group(text("alice"), text("no stamp here")))

	got, err := HarvestMessages("com.hnc.Discord", root)
	require.NoError(t, err)
	assert.Equal(t, "[alice] no stamp here", got)
}

func TestHarvestMessagesUnknownBundleFallsBack(t *testing.T) {
	root := group(text("plain document text"))

	got, err := HarvestMessages("com.example.unknownchat", root)
	require.NoError(t, err)
	assert.Equal(t, "plain document text", got)
}

func TestHarvestWebViewEnablesManualAccessibility(t *testing.T) {
	root := &fakeElement{role: "AXWindow", children: []Element{
		&fakeElement{role: "AXWebArea", children: []Element{
			text("carol"), text("2:15 PM"), text("deploy done"),
		}},
	}}

	got, err := HarvestMessages("com.microsoft.teams2", root)
	require.NoError(t, err)
	assert.Equal(t, "[carol] [2:15 PM] deploy done", got)

	v, ok := root.set["AXManualAccessibility"]
	require.True(t, ok)
	assert.True(t, v.Bool)
}

type fakeResolver struct {
	root    Element
	focused Element
	rootErr error
}

func (f *fakeResolver) AppRoot(context.Context, int32) (Element, error) {
	return f.root, f.rootErr
}

func (f *fakeResolver) FocusedWindow(context.Context, int32) (Element, error) {
	if f.focused == nil {
		return nil, errors.New("no focused window")
	}
	return f.focused, nil
}

func TestExtractGeneric(t *testing.T) {
	resolver := &fakeResolver{root: group(text("editor body"))}
	e := NewExtractor(resolver)

	win := domain.Window{ID: 7, BundleID: "com.example.editor", AppName: "Editor", Title: "notes.txt"}
	got, err := e.Extract(context.Background(), win)
	require.NoError(t, err)

	assert.Equal(t, "editor body", got.Body)
	assert.Equal(t, "editor", got.Source)
	assert.Equal(t, "notes.txt", got.Title)
	assert.Equal(t, "accessibility", got.Method)
}

func TestExtractEmptyTreeIsNoContent(t *testing.T) {
	e := NewExtractor(&fakeResolver{root: group()})

	_, err := e.Extract(context.Background(), domain.Window{ID: 1, BundleID: "com.example.app"})
	require.ErrorIs(t, err, domain.ErrNoContent)
}

func TestExtractOfficeReadsBackingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	writeDocx(t, path, `<w:p><w:r><w:t>quarterly numbers</w:t></w:r></w:p>`)

	resolver := &fakeResolver{
		focused: &fakeElement{role: "AXWindow", attrs: map[string]Variant{
			"AXDocument": StringVariant("file://" + path),
		}},
	}
	e := NewExtractor(resolver, WithScriptFallback(func(context.Context, string) (string, error) {
		t.Fatal("scripting bridge must not run when the file is readable")
		return "", nil
	}))

	win := domain.Window{ID: 2, BundleID: "com.microsoft.Word", AppName: "Microsoft Word"}
	got, err := e.Extract(context.Background(), win)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers", got.Body)
	assert.Equal(t, "word", got.Source)
}

func TestExtractOfficeFallsBackToScripting(t *testing.T) {
	resolver := &fakeResolver{focused: &fakeElement{role: "AXWindow"}}
	e := NewExtractor(resolver, WithScriptFallback(func(context.Context, string) (string, error) {
		return "scripted text", nil
	}))

	win := domain.Window{ID: 3, BundleID: "com.microsoft.Excel", AppName: "Microsoft Excel"}
	got, err := e.Extract(context.Background(), win)
	require.NoError(t, err)
	assert.Equal(t, "scripted text", got.Body)
}

func TestExtractOfficeBothPathsFail(t *testing.T) {
	resolver := &fakeResolver{focused: &fakeElement{role: "AXWindow"}}
	e := NewExtractor(resolver, WithScriptFallback(func(context.Context, string) (string, error) {
		return "", errors.New("automation denied")
	}))

	_, err := e.Extract(context.Background(), domain.Window{ID: 4, BundleID: "com.microsoft.Word"})
	require.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestSourceFor(t *testing.T) {
	cases := map[string]string{
		"com.tinyspeck.slackmacgap": "slack",
		"com.microsoft.Word":        "word",
		"com.example.SomeApp":       "someapp",
		"singleword":                "singleword",
	}
	for bundle, want := range cases {
		assert.Equal(t, want, SourceFor(bundle), bundle)
	}
}

func writeDocx(t *testing.T, path, body string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="x"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}
