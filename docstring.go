package pluginengine

import "strings"

// noDescription is the description reported for plugins whose documentation
// has no body beyond the title line.
const noDescription = "no description available"

// trimDoc normalizes a plugin documentation string: tabs are expanded, the
// common leading indentation of all lines after the first is removed, and
// leading/trailing blank lines are stripped.
func trimDoc(doc string) string {
	if doc == "" {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(doc, "\t", "        "), "\n")

	// The first line does not count toward the common indentation.
	indent := -1
	for _, line := range lines[1:] {
		stripped := strings.TrimLeft(line, " ")
		if stripped == "" {
			continue
		}
		lineIndent := len(line) - len(stripped)
		if indent < 0 || lineIndent < indent {
			indent = lineIndent
		}
	}

	trimmed := []string{strings.TrimSpace(lines[0])}
	if indent > 0 {
		for _, line := range lines[1:] {
			if len(line) > indent {
				line = line[indent:]
			} else {
				line = strings.TrimLeft(line, " ")
			}
			trimmed = append(trimmed, strings.TrimRight(line, " "))
		}
	} else {
		for _, line := range lines[1:] {
			trimmed = append(trimmed, strings.TrimRight(line, " "))
		}
	}

	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == "" {
		trimmed = trimmed[:len(trimmed)-1]
	}
	for len(trimmed) > 0 && trimmed[0] == "" {
		trimmed = trimmed[1:]
	}
	return strings.Join(trimmed, "\n")
}

// splitDoc derives the title and description of a plugin from its
// documentation string. The first line is the title; the remainder is the
// description. Missing documentation yields an empty title and a fixed
// placeholder description.
func splitDoc(doc string) (title, description string) {
	trimmed := trimDoc(doc)
	parts := strings.SplitN(trimmed, "\n", 2)
	title = strings.TrimSpace(parts[0])
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return title, noDescription
	}
	return title, strings.TrimSpace(parts[1])
}
