package engine

import (
	"strings"

	"go-deskline/internal/pkg/conversation/domain"
)

// TriggerSpan is the active slash-command region of the compose buffer:
// the byte range [Start,End) covering the "/" and the word characters up to
// the caret, with the lowercased search term.
type TriggerSpan struct {
	Start int
	End   int
	Term  string
}

// DetectTrigger finds the active search term: a "/" at the start of the
// buffer or immediately after whitespace, followed by zero or more word
// characters up to the caret.
func DetectTrigger(buffer string, caret int) (TriggerSpan, bool) {
	if caret < 0 || caret > len(buffer) {
		return TriggerSpan{}, false
	}
	i := caret
	for i > 0 && isWordByte(buffer[i-1]) {
		i--
	}
	if i == 0 || buffer[i-1] != '/' {
		return TriggerSpan{}, false
	}
	slash := i - 1
	if slash > 0 && !isSpaceByte(buffer[slash-1]) {
		return TriggerSpan{}, false
	}
	return TriggerSpan{
		Start: slash,
		End:   caret,
		Term:  strings.ToLower(buffer[i:caret]),
	}, true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// CannedMatcher is a case-insensitive prefix search over the shortcut
// dictionary. The dictionary is loaded once per view session and immutable
// while composing.
type CannedMatcher struct {
	dict []domain.CannedResponse
}

// NewCannedMatcher keeps its own copy of the dictionary so later reloads
// cannot mutate a matcher already in use.
func NewCannedMatcher(dict []domain.CannedResponse) *CannedMatcher {
	return &CannedMatcher{dict: append([]domain.CannedResponse(nil), dict...)}
}

// Match returns entries whose shortcut has term as a prefix, preserving
// dictionary order. An empty result hides the suggestion surface.
func (m *CannedMatcher) Match(term string) []domain.CannedResponse {
	term = strings.ToLower(term)
	var out []domain.CannedResponse
	for _, r := range m.dict {
		if strings.HasPrefix(strings.ToLower(r.Shortcut), term) {
			out = append(out, r)
		}
	}
	return out
}

// Key is a compose-surface key event the suggestor reacts to.
type Key int

const (
	KeyDown Key = iota
	KeyUp
	KeyEnter
	KeyShiftEnter
	KeyTab
	KeyEscape
)

// Action is what the host should do after HandleKey.
type Action int

const (
	// ActionNone: key consumed (or irrelevant), buffer unchanged.
	ActionNone Action = iota
	// ActionCommitted: a suggestion replaced the trigger span; read the new
	// buffer and caret from the suggestor.
	ActionCommitted
	// ActionDismissed: the surface was hidden without mutating the buffer.
	ActionDismissed
	// ActionSubmit: Enter outside an open surface; submit the buffer.
	ActionSubmit
	// ActionNewline: Shift+Enter; insert a literal newline.
	ActionNewline
)

// Suggestor drives the keyboard-navigable suggestion surface over the
// matcher. It owns a bounded selection cursor that clamps, never wraps.
type Suggestor struct {
	matcher *CannedMatcher

	buffer   string
	caret    int
	span     TriggerSpan
	results  []domain.CannedResponse
	selected int
	visible  bool
}

// NewSuggestor builds the surface for one compose session.
func NewSuggestor(matcher *CannedMatcher) *Suggestor {
	return &Suggestor{matcher: matcher}
}

// SetBuffer feeds the current compose buffer and caret position, re-running
// trigger detection and the prefix match.
func (s *Suggestor) SetBuffer(buffer string, caret int) {
	s.buffer = buffer
	s.caret = caret

	span, ok := DetectTrigger(buffer, caret)
	if !ok {
		s.hide()
		return
	}
	results := s.matcher.Match(span.Term)
	if len(results) == 0 {
		s.hide()
		return
	}
	s.span = span
	s.results = results
	if s.selected >= len(results) {
		s.selected = len(results) - 1
	}
	s.visible = true
}

// HandleKey applies the keyboard contract and reports what happened.
func (s *Suggestor) HandleKey(k Key) Action {
	if k == KeyShiftEnter {
		return ActionNewline
	}
	if !s.visible {
		if k == KeyEnter {
			return ActionSubmit
		}
		return ActionNone
	}

	switch k {
	case KeyDown:
		if s.selected < len(s.results)-1 {
			s.selected++
		}
		return ActionNone
	case KeyUp:
		if s.selected > 0 {
			s.selected--
		}
		return ActionNone
	case KeyEnter, KeyTab:
		s.commit()
		return ActionCommitted
	case KeyEscape:
		s.hide()
		return ActionDismissed
	default:
		return ActionNone
	}
}

// Buffer returns the compose buffer after any commit.
func (s *Suggestor) Buffer() string { return s.buffer }

// Caret returns the caret position after any commit.
func (s *Suggestor) Caret() int { return s.caret }

// Visible reports whether the suggestion surface is showing.
func (s *Suggestor) Visible() bool { return s.visible }

// Results returns the current suggestion list in dictionary order.
func (s *Suggestor) Results() []domain.CannedResponse { return s.results }

// Selected returns the index of the highlighted suggestion.
func (s *Suggestor) Selected() int { return s.selected }

// commit replaces the trigger span with the selected content and places the
// caret at the end of the inserted text.
func (s *Suggestor) commit() {
	r := s.results[s.selected]
	s.buffer = s.buffer[:s.span.Start] + r.Content + s.buffer[s.span.End:]
	s.caret = s.span.Start + len(r.Content)
	s.hide()
}

func (s *Suggestor) hide() {
	s.visible = false
	s.results = nil
	s.selected = 0
	s.span = TriggerSpan{}
}
