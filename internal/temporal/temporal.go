// Package temporal detects recurring patterns in the *order* of events
// rather than their content: two tool_call events with entirely
// different arguments still share the same temporal motif if they sit
// in the same position of a recurring [search, read_results, think,
// tool_call, observe]-style sequence. This is a read-only companion
// signal over agent event traces, grounded on original_source's
// temporal.py ("TemporalMotifTracker", "TemporalEncoder"). It is
// deliberately not wired into the UCOG wire format: the codec's wire
// format is normative and closed, so motif compression here produces
// its own standalone token stream and never a codec.Codec blob.
package temporal

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Motif is a detected recurring event-type pattern.
type Motif struct {
	MotifID     int
	Pattern     []string
	Occurrences int
	FirstSeen   int
	AvgGap      float64
}

// Length returns the number of events in the pattern.
func (m Motif) Length() int { return len(m.Pattern) }

func patternKey(pattern []string) string {
	return strings.Join(pattern, "\x1f")
}

// Tracker performs sliding-window n-gram analysis over an event-type
// history to find recurring subsequences.
type Tracker struct {
	mu sync.Mutex

	minLen, maxLen, minOcc int

	history     []string
	ngramCounts map[string]int
	motifs      map[string]*Motif
	nextMotifID int
}

// NewTracker builds a Tracker. minPatternLen/maxPatternLen bound the
// n-gram window sizes considered; minOccurrences is how many times a
// pattern must repeat before it is promoted to a Motif.
func NewTracker(minPatternLen, maxPatternLen, minOccurrences int) *Tracker {
	if minPatternLen <= 0 {
		minPatternLen = 3
	}
	if maxPatternLen < minPatternLen {
		maxPatternLen = minPatternLen + 7
	}
	if minOccurrences <= 0 {
		minOccurrences = 2
	}
	return &Tracker{
		minLen:      minPatternLen,
		maxLen:      maxPatternLen,
		minOcc:      minOccurrences,
		ngramCounts: make(map[string]int),
		motifs:      make(map[string]*Motif),
	}
}

// Observe records one event and checks whether the tail of history now
// matches a known or newly-qualifying motif. Returns the longest motif
// matched at this position, if any.
func (t *Tracker) Observe(eventType string) *Motif {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, eventType)
	idx := len(t.history)

	var matched *Motif
	upper := t.maxLen + 1
	if idx+1 < upper {
		upper = idx + 1
	}
	for n := t.minLen; n < upper; n++ {
		pattern := append([]string(nil), t.history[idx-n:]...)
		key := patternKey(pattern)
		t.ngramCounts[key]++
		count := t.ngramCounts[key]

		if count >= t.minOcc {
			m, ok := t.motifs[key]
			if !ok {
				m = &Motif{
					MotifID:     t.nextMotifID,
					Pattern:     pattern,
					Occurrences: count,
					FirstSeen:   idx - n,
					AvgGap:      0.0,
				}
				t.motifs[key] = m
				t.nextMotifID++
			} else {
				m.Occurrences = count
			}

			if matched == nil || n > matched.Length() {
				matched = m
			}
		}
	}
	return matched
}

// ObserveBatch observes a sequence of events in order.
func (t *Tracker) ObserveBatch(events []string) {
	for _, e := range events {
		t.Observe(e)
	}
}

// DetectedMotifs returns every motif of at least minLength (clamped up
// to the tracker's own minLen), sorted by occurrences*length descending.
func (t *Tracker) DetectedMotifs(minLength int) []*Motif {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.detectedMotifsLocked(minLength)
}

func (t *Tracker) detectedMotifsLocked(minLength int) []*Motif {
	floor := t.minLen
	if minLength > floor {
		floor = minLength
	}
	out := make([]*Motif, 0, len(t.motifs))
	for _, m := range t.motifs {
		if m.Length() >= floor {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		wi := out[i].Occurrences * out[i].Length()
		wj := out[j].Occurrences * out[j].Length()
		if wi != wj {
			return wi > wj
		}
		// Deterministic tie-break: motif_id ascending (history's
		// map iteration order is otherwise unstable).
		return out[i].MotifID < out[j].MotifID
	})
	return out
}

// MotifByPattern looks up a motif by its exact event-type pattern.
func (t *Tracker) MotifByPattern(pattern []string) (*Motif, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.motifs[patternKey(pattern)]
	return m, ok
}

// HistoryLength returns the number of events observed so far.
func (t *Tracker) HistoryLength() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// MotifCount returns the number of distinct motifs detected so far.
func (t *Tracker) MotifCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.motifs)
}

// Stats summarizes the tracker's current state.
type Stats struct {
	EventsObserved      int
	UniqueNgrams        int
	MotifsDetected      int
	TopMotifOccurrences int
	TopMotifLength      int
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	motifs := t.detectedMotifsLocked(0)
	s := Stats{
		EventsObserved: len(t.history),
		UniqueNgrams:   len(t.ngramCounts),
		MotifsDetected: len(motifs),
	}
	t.mu.Unlock()

	if len(motifs) > 0 {
		s.TopMotifOccurrences = motifs[0].Occurrences
		s.TopMotifLength = motifs[0].Length()
	}
	return s
}

// TokenKind distinguishes a motif reference from a literal event in a
// CompressionResult's token stream.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenMotif
)

// Token is one entry of a compressed event-sequence token stream:
// either a literal event string or a reference to a motif_id.
type Token struct {
	Kind    TokenKind
	Literal string
	MotifID int
}

// CompressionResult is the outcome of compressing an event sequence
// against a Tracker's detected motifs.
type CompressionResult struct {
	Tokens          []Token
	OriginalEvents  int
	CompressedTokens int
	SavingsPct      float64
	MotifsUsed      int
}

// Encoder compresses event sequences by greedily replacing the longest
// matching known motif at each position with a single reference token.
type Encoder struct {
	tracker *Tracker
}

// NewEncoder builds an Encoder over tracker's currently detected motifs.
func NewEncoder(tracker *Tracker) *Encoder {
	return &Encoder{tracker: tracker}
}

// Encode compresses events using greedy longest-match against motifs
// known to the encoder's tracker at call time.
func (e *Encoder) Encode(events []string) CompressionResult {
	motifs := e.tracker.DetectedMotifs(0)
	if len(motifs) == 0 {
		tokens := make([]Token, len(events))
		for i, ev := range events {
			tokens[i] = Token{Kind: TokenLiteral, Literal: ev}
		}
		return CompressionResult{
			Tokens:           tokens,
			OriginalEvents:   len(events),
			CompressedTokens: len(tokens),
			SavingsPct:       0.0,
			MotifsUsed:       0,
		}
	}

	byLen := append([]*Motif(nil), motifs...)
	sort.Slice(byLen, func(i, j int) bool { return byLen[i].Length() > byLen[j].Length() })

	var tokens []Token
	used := make(map[int]struct{})
	i := 0
	for i < len(events) {
		matched := false
		for _, m := range byLen {
			end := i + m.Length()
			if end > len(events) {
				continue
			}
			if sameWindow(events[i:end], m.Pattern) {
				tokens = append(tokens, Token{Kind: TokenMotif, MotifID: m.MotifID})
				used[m.MotifID] = struct{}{}
				i = end
				matched = true
				break
			}
		}
		if !matched {
			tokens = append(tokens, Token{Kind: TokenLiteral, Literal: events[i]})
			i++
		}
	}

	denom := len(events)
	if denom < 1 {
		denom = 1
	}
	savings := (float64(len(events)-len(tokens)) / float64(denom)) * 100.0

	return CompressionResult{
		Tokens:           tokens,
		OriginalEvents:   len(events),
		CompressedTokens: len(tokens),
		SavingsPct:       roundTo1(savings),
		MotifsUsed:       len(used),
	}
}

// Decode reverses Encode, expanding motif references back into their
// literal event sequences using the motif set detected at call time.
func (e *Encoder) Decode(result CompressionResult) ([]string, error) {
	motifs := e.tracker.DetectedMotifs(0)
	lookup := make(map[int]*Motif, len(motifs))
	for _, m := range motifs {
		lookup[m.MotifID] = m
	}

	var events []string
	for _, tok := range result.Tokens {
		switch tok.Kind {
		case TokenMotif:
			m, ok := lookup[tok.MotifID]
			if !ok {
				return nil, fmt.Errorf("temporal: unknown motif_id=%d", tok.MotifID)
			}
			events = append(events, m.Pattern...)
		case TokenLiteral:
			events = append(events, tok.Literal)
		}
	}
	return events, nil
}

func sameWindow(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
