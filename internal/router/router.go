// Package router classifies normalized transcripts as instant commands or
// model turns.
//
// Classification is pattern-based for determinism and zero latency: a fixed
// table of command phrases is matched positionally against the leading tokens
// of the transcript. Each phrase token matches exactly or by double-metaphone
// equality, which absorbs common transcription slips ("safe session" still
// triggers "save session"). Anything ambiguous falls through to the model
// path rather than misfiring.
//
// Instant actions mutate the memory manager directly and return a fixed
// confirmation message; they never reach the language model and never appear
// in the session log.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/tts"
)

// Kind identifies how a transcript was classified.
type Kind string

const (
	// KindForward means no command matched; send the transcript to the
	// dispatch loop unchanged.
	KindForward Kind = "forward"

	KindSaveSession   Kind = "save_session"
	KindLoadSession   Kind = "load_session"
	KindListSessions  Kind = "list_sessions"
	KindDeleteSession Kind = "delete_session"
	KindClear         Kind = "clear_conversation"
	KindSpeed         Kind = "set_speed"
	KindRemember      Kind = "remember"
	KindUpdateProfile Kind = "update_profile"
	KindExit          Kind = "exit"
)

// Decision is the outcome of routing one transcript.
type Decision struct {
	// Kind is KindForward for model turns, otherwise the command executed.
	Kind Kind

	// Response is the fixed confirmation message for commands; empty for
	// forwards.
	Response string

	// Speed is the new speech rate after a KindSpeed command.
	Speed float64

	// Exit is set when the user asked to end the session.
	Exit bool
}

// Forwarded reports whether the transcript should go to the dispatch loop.
func (d Decision) Forwarded() bool { return d.Kind == KindForward }

// fillerPrefixes are discarded from the front of a transcript before phrase
// matching, so "please save session trip" still matches.
var fillerPrefixes = []string{"please", "hey", "ok", "okay", "now", "can", "you", "could"}

// argStopWords are discarded from the front of a captured argument, so
// "save session as trip" yields the name "trip".
var argStopWords = []string{"as", "to", "called", "named", "the", "that", "this", ":"}

// pattern is one command phrase: alternatives per token position, matched
// against the transcript's leading tokens.
type pattern struct {
	kind   Kind
	phrase [][]string
	// takesArg captures the remaining tokens as the command argument.
	takesArg bool
}

var patterns = []pattern{
	{kind: KindSaveSession, phrase: [][]string{{"save"}, {"session", "conversation"}}, takesArg: true},
	{kind: KindLoadSession, phrase: [][]string{{"load", "restore"}, {"session", "conversation"}}, takesArg: true},
	{kind: KindListSessions, phrase: [][]string{{"list"}, {"sessions", "session"}}},
	{kind: KindListSessions, phrase: [][]string{{"list"}, {"saved"}, {"sessions"}}},
	{kind: KindDeleteSession, phrase: [][]string{{"delete", "remove"}, {"session"}}, takesArg: true},
	{kind: KindClear, phrase: [][]string{{"clear"}, {"conversation", "chat", "history"}}},
	{kind: KindClear, phrase: [][]string{{"new"}, {"conversation"}}},
	{kind: KindSpeed, phrase: [][]string{{"speak", "talk"}, {"slower", "slowly"}}},
	{kind: KindSpeed, phrase: [][]string{{"speak", "talk"}, {"faster", "quicker"}}},
	{kind: KindSpeed, phrase: [][]string{{"speak", "talk"}, {"normal", "normally"}}},
	{kind: KindRemember, phrase: [][]string{{"remember"}}, takesArg: true},
	{kind: KindUpdateProfile, phrase: [][]string{{"update"}, {"my"}, {"summary", "profile"}}},
	{kind: KindExit, phrase: [][]string{{"exit"}}},
	{kind: KindExit, phrase: [][]string{{"quit"}}},
	{kind: KindExit, phrase: [][]string{{"goodbye"}}},
}

// speedByKeyword maps the second phrase token of speed commands to rates.
var speedByKeyword = map[string]float64{
	"slower": tts.SpeedSlow, "slowly": tts.SpeedSlow,
	"faster": tts.SpeedFast, "quicker": tts.SpeedFast,
	"normal": tts.SpeedNormal, "normally": tts.SpeedNormal,
}

// Router executes instant commands against the memory manager.
type Router struct {
	mem *memory.Manager
	now func() time.Time
}

// New creates a Router over mem.
func New(mem *memory.Manager) *Router {
	return &Router{mem: mem, now: time.Now}
}

// Route classifies transcript and executes any matched instant command. The
// transcript must already be normalized (lower-cased, trimmed). Command
// failures return the Decision with the command kind alongside the error so
// the caller can still account the attempt.
func (r *Router) Route(ctx context.Context, transcript string) (Decision, error) {
	tokens := strip(strings.Fields(transcript), fillerPrefixes)
	if len(tokens) == 0 {
		return Decision{Kind: KindForward}, nil
	}

	for _, p := range patterns {
		arg, ok := match(tokens, p)
		if !ok {
			continue
		}
		return r.execute(ctx, p, tokens, arg)
	}
	return Decision{Kind: KindForward}, nil
}

// match tests p against the leading tokens, returning the captured argument.
func match(tokens []string, p pattern) (string, bool) {
	if len(tokens) < len(p.phrase) {
		return "", false
	}
	// A bare command phrase with trailing words it cannot capture is
	// ambiguous ("list sessions for me" matches; "exit the highway" should
	// not hijack the turn). Commands without an argument require an exact
	// phrase length or a single trailing token.
	if !p.takesArg && len(tokens) > len(p.phrase)+1 {
		return "", false
	}
	for i, alternatives := range p.phrase {
		if !matchToken(tokens[i], alternatives) {
			return "", false
		}
	}
	if !p.takesArg {
		return "", true
	}
	rest := strip(tokens[len(p.phrase):], argStopWords)
	return strings.Join(rest, " "), true
}

// matchToken reports whether token equals any alternative exactly or by
// double-metaphone.
func matchToken(token string, alternatives []string) bool {
	for _, alt := range alternatives {
		if token == alt {
			return true
		}
		p1, _ := matchr.DoubleMetaphone(token)
		p2, _ := matchr.DoubleMetaphone(alt)
		if p1 != "" && p1 == p2 {
			return true
		}
	}
	return false
}

// resolveAlternative returns the alternative that token matched, or token
// itself when none did.
func resolveAlternative(token string, alternatives []string) string {
	for _, alt := range alternatives {
		if matchToken(token, []string{alt}) {
			return alt
		}
	}
	return token
}

// strip drops leading tokens found in stop, in order, until a non-stop token.
func strip(tokens []string, stop []string) []string {
	for len(tokens) > 0 {
		found := false
		for _, s := range stop {
			if tokens[0] == s {
				found = true
				break
			}
		}
		if !found {
			break
		}
		tokens = tokens[1:]
	}
	return tokens
}

// execute performs the matched command's side effect and builds the
// confirmation.
func (r *Router) execute(ctx context.Context, p pattern, tokens []string, arg string) (Decision, error) {
	d := Decision{Kind: p.kind}

	switch p.kind {
	case KindSaveSession:
		name := arg
		if name == "" {
			name = r.now().Format("session-2006-01-02-150405")
		}
		if err := r.mem.PersistSession(ctx, name); err != nil {
			return d, err
		}
		d.Response = fmt.Sprintf("Session saved as %s.", name)

	case KindLoadSession:
		if arg == "" {
			return d, errors.New("router: load session needs a name")
		}
		if err := r.mem.LoadSession(ctx, arg); err != nil {
			return d, err
		}
		d.Response = fmt.Sprintf("Session %s loaded.", arg)

	case KindListSessions:
		names, err := r.mem.ListSessions(ctx)
		if err != nil {
			return d, err
		}
		if len(names) == 0 {
			d.Response = "There are no saved sessions."
		} else {
			d.Response = "Saved sessions: " + strings.Join(names, ", ") + "."
		}

	case KindDeleteSession:
		if arg == "" {
			return d, errors.New("router: delete session needs a name")
		}
		if err := r.mem.DeleteSession(ctx, arg); err != nil {
			return d, err
		}
		d.Response = fmt.Sprintf("Session %s deleted.", arg)

	case KindClear:
		r.mem.ClearLog()
		d.Response = "Conversation cleared."

	case KindSpeed:
		// The second phrase token decided the rate. Resolve through the
		// matched alternative so a phonetic match ("slowur") still lands on
		// its rate.
		d.Speed = speedByKeyword[resolveAlternative(tokens[1], p.phrase[1])]
		if d.Speed == 0 {
			d.Speed = tts.SpeedNormal
		}
		d.Response = fmt.Sprintf("Speech rate set to %.2fx.", d.Speed)

	case KindRemember:
		if arg == "" {
			return d, errors.New("router: nothing to remember")
		}
		if _, err := r.mem.Write(ctx, arg, map[string]string{"source": "instant_command"}); err != nil {
			return d, err
		}
		d.Response = "Noted, I'll remember that."

	case KindUpdateProfile:
		if err := r.mem.SummarizeIntoProfile(ctx); err != nil {
			return d, err
		}
		d.Response = "Your summary has been updated."

	case KindExit:
		d.Exit = true
		d.Response = "Goodbye."
	}

	return d, nil
}
