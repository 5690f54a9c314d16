package extract

import (
	"regexp"
	"strings"
)

// cell is a run of text on one line, separated from its neighbours by two
// or more spaces. Layout-preserving text extraction renders table columns
// and side-by-side blocks this way.
type cell struct {
	start int
	text  string
}

var cellGap = regexp.MustCompile(` {2,}`)

// splitCells splits a line into cells with their byte offsets.
func splitCells(line string) []cell {
	var cells []cell
	pos := 0
	for _, gap := range cellGap.FindAllStringIndex(line, -1) {
		if txt := line[pos:gap[0]]; strings.TrimSpace(txt) != "" {
			cells = append(cells, trimCell(pos, txt))
		}
		pos = gap[1]
	}
	if txt := line[pos:]; strings.TrimSpace(txt) != "" {
		cells = append(cells, trimCell(pos, txt))
	}
	return cells
}

func trimCell(start int, txt string) cell {
	lead := len(txt) - len(strings.TrimLeft(txt, " "))
	return cell{start: start + lead, text: strings.TrimSpace(txt)}
}

// splitWords splits on single spaces, for headers rendered without gaps.
func splitWords(line string) []cell {
	var cells []cell
	start := -1
	for i := 0; i <= len(line); i++ {
		if i == len(line) || line[i] == ' ' {
			if start >= 0 {
				cells = append(cells, cell{start: start, text: line[start:i]})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	return cells
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

var separatorLine = regexp.MustCompile(`^[\s\-=_*.]+$`)

func isSeparator(s string) bool {
	return !isBlank(s) && separatorLine.MatchString(s)
}
