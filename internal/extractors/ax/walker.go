package ax

import (
	"strings"
)

// maxDepth caps traversal. Accessibility trees can be cyclic under
// faulty apps; the cap plus stateless recursion means no allocation is
// held across a cycle.
const maxDepth = 100

// chromeRoles are UI furniture: traversal skips the whole subtree.
var chromeRoles = map[string]bool{
	"AXMenuBar":     true,
	"AXMenu":        true,
	"AXMenuItem":    true,
	"AXToolbar":     true,
	"AXButton":      true,
	"AXTabGroup":    true,
	"AXTab":         true,
	"AXStatusBar":   true,
	"AXOutline":     true,
	"AXList":        true,
	"AXPopUpButton": true,
}

// textRoles carry harvestable values.
var textRoles = map[string]bool{
	"AXTextArea":   true,
	"AXTextField":  true,
	"AXStaticText": true,
	"AXDocument":   true,
	"AXWebArea":    true,
	"AXCell":       true,
	"AXLayoutArea": true,
}

// HarvestText walks the tree from root and collects the text of every
// element whose role is harvestable. Whitespace-only values are dropped.
// Recursion stops at depth 100 without error.
func HarvestText(root Element) (string, error) {
	var out []string
	if err := walk(root, 0, &out); err != nil {
		return "", err
	}
	return strings.Join(out, "\n"), nil
}

func walk(el Element, depth int, out *[]string) error {
	if depth > maxDepth {
		return nil
	}

	role, err := el.Role()
	if err != nil {
		return err
	}

	if chromeRoles[role] {
		return nil
	}

	if textRoles[role] {
		if text := harvestValue(el); text != "" {
			*out = append(*out, text)
		}
		// Web areas are both readable and traversable; other text roles
		// are leaves.
		if role != "AXWebArea" {
			return nil
		}
	}

	children, err := el.Children()
	if err != nil {
		// A vanished subtree is not fatal to the harvest.
		return nil
	}
	for _, child := range children {
		if err := walk(child, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// harvestValue reads an element's text, preferring value over title.
func harvestValue(el Element) string {
	value, err := el.Value()
	if err == nil && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}

	title, err := el.Title()
	if err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return ""
}

// collectStaticText gathers only static-text descendants, used by the
// deep web-view traversal where intermediate roles are unreliable.
func collectStaticText(el Element, depth int, out *[]string) {
	if depth > maxDepth {
		return
	}

	role, err := el.Role()
	if err != nil {
		return
	}

	if role == "AXStaticText" || role == "AXTextArea" || role == "AXTextField" {
		if text := harvestValue(el); text != "" {
			*out = append(*out, text)
		}
		return
	}

	children, err := el.Children()
	if err != nil {
		return
	}
	for _, child := range children {
		collectStaticText(child, depth+1, out)
	}
}
