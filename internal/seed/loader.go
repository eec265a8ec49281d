package seed

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

const (
	magicModule   = "--# MODULE:"
	magicProvides = "--# PROVIDES:"
	magicRequires = "--# REQUIRES:"
	magicWorker   = "--# WORKER:"
)

// initModuleName is the name of the implicit module holding everything
// before the first MODULE: comment.
const initModuleName = "(init)"

// Loader tokenizes a seed's `_Main.sql` into an ordered module list.
type Loader struct{}

// Load reads path and returns the seed's modules in file order. Magic
// comments are recognized only at the start of a trimmed line. Lines inside
// a block comment are skipped, so a `--#` there is not mistaken for a magic
// comment. Quotes are tracked only within a single line, to find where a
// block comment starts; a `--#` line inside a string literal that spans
// lines is read as a magic comment.
func (Loader) Load(path string) ([]*SeedModule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed: opening %s: %w", path, err)
	}
	defer f.Close()

	var modules []*SeedModule
	current := newModule(initModuleName)
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text != "" {
			current.Batches = append(current.Batches, text)
		}
		modules = append(modules, current)
		body.Reset()
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	inBlockComment := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if inBlockComment {
			if idx := strings.Index(line, "*/"); idx >= 0 {
				inBlockComment = false
				line = line[idx+2:]
			} else {
				continue
			}
		}

		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)

		switch {
		case strings.HasPrefix(upper, "--# MODULE:"):
			arg := strings.TrimSpace(trimmed[len(magicModule):])
			if arg == "" {
				return nil, fmt.Errorf("seed: %s:%d: MODULE: requires a name", path, lineNo)
			}
			flush()
			fields := strings.Fields(arg)
			current = newModule(fields[0])
			if len(fields) > 1 {
				current.addProvides(fields[1:])
			}
			continue

		case strings.HasPrefix(upper, "--# PROVIDES:"):
			arg := strings.TrimSpace(trimmed[len(magicProvides):])
			current.addProvides(strings.Fields(arg))
			continue

		case strings.HasPrefix(upper, "--# REQUIRES:"):
			arg := strings.TrimSpace(trimmed[len(magicRequires):])
			current.addRequires(strings.Fields(arg))
			continue

		case strings.HasPrefix(upper, "--# WORKER:"):
			arg := strings.ToLower(strings.TrimSpace(trimmed[len(magicWorker):]))
			switch arg {
			case "", "any":
				current.WorkerId = AnyWorker
			case "all":
				current.WorkerId = AllWorkers
			default:
				return nil, fmt.Errorf("seed: %s:%d: WORKER: must be any or all, got %q", path, lineNo, arg)
			}
			continue
		}

		if blockStart := findBlockCommentStart(line); blockStart >= 0 {
			body.WriteString(line[:blockStart])
			body.WriteByte('\n')
			rest := line[blockStart+2:]
			if idx := strings.Index(rest, "*/"); idx >= 0 {
				body.WriteString(rest[idx+2:])
				body.WriteByte('\n')
			} else {
				inBlockComment = true
			}
			continue
		}

		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed: reading %s: %w", path, err)
	}

	flush()
	return modules, nil
}

// findBlockCommentStart returns the index of a "/*" that begins outside any
// single- or double-quoted run, or -1 if none exists on this line.
func findBlockCommentStart(line string) int {
	inSingle, inDouble := false, false
	for i := 0; i < len(line)-1; i++ {
		c := line[i]
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case !inSingle && !inDouble && c == '/' && line[i+1] == '*':
			return i
		}
	}
	return -1
}
