package ax

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Messaging clients need bundle-specific harvesting: the generic walk
// flattens a conversation into an unusable soup, while the message rows
// carry enough structure to emit one "[author] [time] text" line per
// message in discovered order.

// timeStampRe recognises the visible per-message timestamp.
var timeStampRe = regexp.MustCompile(`^\d{1,2}:\d{2}\s*(?:AM|PM)$`)

// webViewSettleDelay gives a web-view-hosted client time to populate
// its tree after AXManualAccessibility is enabled.
const webViewSettleDelay = 300 * time.Millisecond

// messagingBundles maps chat bundle ids to their harvest strategy.
// Two bundle ids from the same vendor can need divergent strategies;
// unknown ids fall back to the generic walk, never to the deep
// traversal.
var messagingBundles = map[string]harvestStrategy{
	"com.tinyspeck.slackmacgap": harvestRows,
	"com.hnc.Discord":           harvestRows,
	"com.apple.MobileSMS":       harvestRows,
	"com.microsoft.teams2":      harvestWebView,
	"com.cisco.squared":         harvestWebView,
}

type harvestStrategy func(root Element) (string, error)

// IsMessagingBundle reports whether a bundle id has a chat harvester.
func IsMessagingBundle(bundleID string) bool {
	_, ok := messagingBundles[bundleID]
	return ok
}

// HarvestMessages extracts a conversation as one message per line.
func HarvestMessages(bundleID string, root Element) (string, error) {
	strategy, ok := messagingBundles[bundleID]
	if !ok {
		return HarvestText(root)
	}
	return strategy(root)
}

// harvestRows finds message-container rows and formats each as
// "[author] [time] text". A row is any group/row element whose leading
// static texts look like an author and an optional timestamp.
func harvestRows(root Element) (string, error) {
	var lines []string
	if err := walkRows(root, 0, &lines); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func walkRows(el Element, depth int, lines *[]string) error {
	if depth > maxDepth {
		return nil
	}

	role, err := el.Role()
	if err != nil {
		return err
	}

	if role == "AXGroup" || role == "AXRow" {
		if line, ok := messageLine(el); ok {
			*lines = append(*lines, line)
			return nil
		}
	}

	children, err := el.Children()
	if err != nil {
		return nil
	}
	for _, child := range children {
		if err := walkRows(child, depth+1, lines); err != nil {
			return err
		}
	}
	return nil
}

// messageLine interprets an element as one chat message. The first
// static text is the author, an adjacent "H:MM AM/PM" text is the
// timestamp, the remainder is the body.
func messageLine(el Element) (string, bool) {
	var texts []string
	collectStaticText(el, 0, &texts)
	if len(texts) < 2 {
		return "", false
	}

	author := texts[0]
	rest := texts[1:]

	stamp := ""
	if timeStampRe.MatchString(strings.TrimSpace(rest[0])) {
		stamp = strings.TrimSpace(rest[0])
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", false
	}

	body := strings.TrimSpace(strings.Join(rest, " "))
	if body == "" {
		return "", false
	}

	if stamp != "" {
		return fmt.Sprintf("[%s] [%s] %s", author, stamp, body), true
	}
	return fmt.Sprintf("[%s] %s", author, body), true
}

// harvestWebView handles clients rendering chat inside a web view whose
// tree is only populated after manual accessibility is enabled. The
// attribute write is best-effort: some client versions reject it and
// still expose a usable tree.
func harvestWebView(root Element) (string, error) {
	_ = root.SetAttribute("AXManualAccessibility", BoolVariant(true))
	time.Sleep(webViewSettleDelay)

	webArea := findRole(root, "AXWebArea", 0)
	if webArea == nil {
		webArea = root
	}

	var texts []string
	collectStaticText(webArea, 0, &texts)
	if len(texts) == 0 {
		return "", nil
	}

	// Web-view rows arrive pre-flattened: pair author-looking texts with
	// the following body where possible, otherwise keep raw order.
	var lines []string
	for i := 0; i < len(texts); i++ {
		if i+2 < len(texts) && timeStampRe.MatchString(strings.TrimSpace(texts[i+1])) {
			lines = append(lines, fmt.Sprintf("[%s] [%s] %s",
				texts[i], strings.TrimSpace(texts[i+1]), texts[i+2]))
			i += 2
			continue
		}
		lines = append(lines, texts[i])
	}

	return strings.Join(lines, "\n"), nil
}

// findRole returns the first descendant with the given role.
func findRole(el Element, role string, depth int) Element {
	if depth > maxDepth {
		return nil
	}

	r, err := el.Role()
	if err != nil {
		return nil
	}
	if r == role {
		return el
	}

	children, err := el.Children()
	if err != nil {
		return nil
	}
	for _, child := range children {
		if found := findRole(child, role, depth+1); found != nil {
			return found
		}
	}
	return nil
}
