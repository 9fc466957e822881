package tabletext

import "strings"

// The doublezero and solana CLIs print loosely formatted pipe tables whose
// column order and wording drift between versions. Parsing is therefore
// marker-based and tolerant: unknown lines are skipped, and a missing header
// means "no row", never a failure.

// IsSeparator reports whether line is a table rule made only of
// dashes, pluses, pipes, and spaces.
func IsSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, r := range trimmed {
		switch r {
		case '-', '+', '|', ' ':
		default:
			return false
		}
	}
	return true
}

// SplitFields splits a table line on '|' and trims each field.
func SplitFields(line string) []string {
	parts := strings.Split(line, "|")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// FirstRow locates the header line containing marker (and at least one pipe)
// and returns the first subsequent data row as a map from lowercased header
// name to field value. Returns ok=false when no header or data row is found.
func FirstRow(text, marker string) (map[string]string, bool) {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			lines = append(lines, ln)
		}
	}

	headerIdx := -1
	for i, ln := range lines {
		if strings.Contains(ln, "|") && strings.Contains(ln, marker) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, false
	}

	headers := SplitFields(lines[headerIdx])
	for i := range headers {
		headers[i] = strings.ToLower(headers[i])
	}

	for _, ln := range lines[headerIdx+1:] {
		if IsSeparator(ln) {
			continue
		}
		fields := SplitFields(ln)
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i >= len(fields) {
				break
			}
			row[h] = fields[i]
		}
		return row, true
	}
	return nil, false
}
