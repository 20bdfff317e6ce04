package reconcile

// Feed is the operator-facing log, newest entry first.
//
// A Feed is immutable: Push and PushBurst return a new Feed that shares its
// tail with the receiver, so States handed to a view never change under it.
// The zero value is an empty feed.
type Feed struct {
	head *feedEntry
	n    int
}

type feedEntry struct {
	line string
	next *feedEntry
}

// Len returns the number of entries.
func (f Feed) Len() int { return f.n }

// Head returns the newest entry, or "" for an empty feed.
func (f Feed) Head() string {
	if f.head == nil {
		return ""
	}
	return f.head.line
}

// Lines returns the entries newest first.
func (f Feed) Lines() []string {
	out := make([]string, 0, f.n)
	for e := f.head; e != nil; e = e.next {
		out = append(out, e.line)
	}
	return out
}

// Push appends line unless it equals the newest entry.
// The second return value reports whether the feed grew.
func (f Feed) Push(line string) (Feed, bool) {
	if f.head != nil && f.head.line == line {
		return f, false
	}
	return Feed{head: &feedEntry{line: line, next: f.head}, n: f.n + 1}, true
}

// PushBurst appends lines in emission order (the last one ends up newest).
// The whole burst is skipped when the newest len(lines) entries already are
// that burst, which keeps a burst re-emitted on every poll from stacking up.
// It returns the lines that were actually appended.
func (f Feed) PushBurst(lines ...string) (Feed, []string) {
	if len(lines) == 0 || f.endsWith(lines) {
		return f, nil
	}
	var appended []string
	for _, line := range lines {
		var ok bool
		if f, ok = f.Push(line); ok {
			appended = append(appended, line)
		}
	}
	return f, appended
}

// endsWith reports whether the newest entries, read oldest to newest, equal lines.
func (f Feed) endsWith(lines []string) bool {
	if f.n < len(lines) {
		return false
	}
	e := f.head
	for i := len(lines) - 1; i >= 0; i-- {
		if e.line != lines[i] {
			return false
		}
		e = e.next
	}
	return true
}
