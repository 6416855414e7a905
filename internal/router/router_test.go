package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory"
	memmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/memory/mock"
	embmock "github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/provider/embeddings/mock"
	"github.com/Zeyadelgabbas/speech-speech-ai-assistant/pkg/types"
)

type fixture struct {
	router  *Router
	mem     *memory.Manager
	archive *memmock.Archive
	index   *memmock.Index
	profile *memmock.Profile
}

func newFixture(t *testing.T, opts ...memory.ManagerOption) *fixture {
	t.Helper()
	archive := &memmock.Archive{}
	index := &memmock.Index{}
	profile := &memmock.Profile{}
	embedder := &embmock.Provider{EmbedResult: []float32{1, 0}}
	mem, err := memory.NewManager(embedder, archive, index, profile, opts...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &fixture{router: New(mem), mem: mem, archive: archive, index: index, profile: profile}
}

func route(t *testing.T, f *fixture, transcript string) Decision {
	t.Helper()
	d, err := f.router.Route(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Route(%q): %v", transcript, err)
	}
	return d
}

func TestRouteForwardsUnmatchedTranscripts(t *testing.T) {
	f := newFixture(t)
	for _, transcript := range []string{
		"what is the weather in lisbon",
		"tell me about my saved sessions", // command keyword not leading
		"exit the highway at the next junction",
		"",
	} {
		d := route(t, f, transcript)
		if !d.Forwarded() {
			t.Errorf("Route(%q) = %v, want forward", transcript, d.Kind)
		}
	}
	if len(f.archive.SaveCalls)+len(f.index.InsertCalls)+len(f.profile.AppendCalls) != 0 {
		t.Error("forwarded transcripts must not touch memory")
	}
}

func TestRouteSaveSession(t *testing.T) {
	f := newFixture(t)
	f.mem.Append(types.Turn{Role: types.RoleUser, Content: "hi"})

	d := route(t, f, "save session trip planning")
	if d.Kind != KindSaveSession {
		t.Fatalf("kind = %v", d.Kind)
	}
	if len(f.archive.SaveCalls) != 1 || f.archive.SaveCalls[0].Name != "trip planning" {
		t.Errorf("unexpected save calls: %+v", f.archive.SaveCalls)
	}
	if !strings.Contains(d.Response, "trip planning") {
		t.Errorf("confirmation should name the session: %q", d.Response)
	}
}

func TestRouteSaveSessionDefaultName(t *testing.T) {
	f := newFixture(t)
	d := route(t, f, "save session")
	if len(f.archive.SaveCalls) != 1 || f.archive.SaveCalls[0].Name == "" {
		t.Errorf("default session name should be generated: %+v", f.archive.SaveCalls)
	}
	if d.Kind != KindSaveSession {
		t.Errorf("kind = %v", d.Kind)
	}
}

func TestRouteSaveSessionStripsFiller(t *testing.T) {
	f := newFixture(t)
	route(t, f, "please save session as friday")
	if len(f.archive.SaveCalls) != 1 || f.archive.SaveCalls[0].Name != "friday" {
		t.Errorf("expected name %q, got %+v", "friday", f.archive.SaveCalls)
	}
}

func TestRoutePhoneticTolerance(t *testing.T) {
	// "safe" and "save" share a double-metaphone encoding, so a common STT
	// slip still triggers the command.
	f := newFixture(t)
	d := route(t, f, "safe session trip")
	if d.Kind != KindSaveSession {
		t.Fatalf("kind = %v, want save_session", d.Kind)
	}
}

func TestRouteLoadSessionReplacesLog(t *testing.T) {
	f := newFixture(t)
	f.archive.Snapshot = memory.SessionSnapshot{
		Name:  "trip",
		Turns: []types.Turn{{Role: types.RoleUser, Content: "restored"}},
	}
	f.mem.Append(types.Turn{Role: types.RoleUser, Content: "current"})

	d := route(t, f, "load session trip")
	if d.Kind != KindLoadSession {
		t.Fatalf("kind = %v", d.Kind)
	}
	log := f.mem.Log()
	if len(log) != 1 || log[0].Content != "restored" {
		t.Errorf("log not replaced: %+v", log)
	}
}

func TestRouteLoadUnknownSessionKeepsKind(t *testing.T) {
	f := newFixture(t)
	f.archive.LoadErr = memory.ErrSessionNotFound

	d, err := f.router.Route(context.Background(), "load session ghost")
	if !errors.Is(err, memory.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if d.Kind != KindLoadSession {
		t.Errorf("failed commands must keep their kind for analytics, got %v", d.Kind)
	}
}

func TestRouteListSessions(t *testing.T) {
	f := newFixture(t)
	f.archive.Names = []string{"alpha", "beta"}

	d := route(t, f, "list sessions")
	if d.Kind != KindListSessions {
		t.Fatalf("kind = %v", d.Kind)
	}
	if !strings.Contains(d.Response, "alpha") || !strings.Contains(d.Response, "beta") {
		t.Errorf("response should list names: %q", d.Response)
	}

	f.archive.Names = nil
	d = route(t, f, "list sessions")
	if !strings.Contains(d.Response, "no saved sessions") {
		t.Errorf("empty archive response: %q", d.Response)
	}
}

func TestRouteDeleteSession(t *testing.T) {
	f := newFixture(t)
	d := route(t, f, "delete session old stuff")
	if d.Kind != KindDeleteSession {
		t.Fatalf("kind = %v", d.Kind)
	}
	if len(f.archive.DeleteCalls) != 1 || f.archive.DeleteCalls[0] != "old stuff" {
		t.Errorf("unexpected delete calls: %v", f.archive.DeleteCalls)
	}
}

func TestRouteClearConversation(t *testing.T) {
	f := newFixture(t)
	f.mem.Append(types.Turn{Role: types.RoleUser, Content: "a"})

	d := route(t, f, "clear conversation")
	if d.Kind != KindClear {
		t.Fatalf("kind = %v", d.Kind)
	}
	if len(f.mem.Log()) != 0 {
		t.Error("log should be cleared")
	}
}

func TestRouteSpeedCommands(t *testing.T) {
	tests := []struct {
		transcript string
		want       float64
	}{
		{"speak slower", 0.75},
		{"talk faster", 1.25},
		{"speak normally", 1.0},
	}
	for _, tt := range tests {
		f := newFixture(t)
		d := route(t, f, tt.transcript)
		if d.Kind != KindSpeed {
			t.Errorf("Route(%q) kind = %v", tt.transcript, d.Kind)
			continue
		}
		if d.Speed != tt.want {
			t.Errorf("Route(%q) speed = %v, want %v", tt.transcript, d.Speed, tt.want)
		}
	}
}

func TestRouteSpeedPhoneticVariant(t *testing.T) {
	// "slowur" matches "slower" by double-metaphone; the rate must resolve
	// through the matched alternative, not the raw token.
	f := newFixture(t)
	d := route(t, f, "speak slowur")
	if d.Kind != KindSpeed {
		t.Fatalf("kind = %v, want set_speed", d.Kind)
	}
	if d.Speed != 0.75 {
		t.Errorf("speed = %v, want 0.75", d.Speed)
	}
}

func TestResolveAlternative(t *testing.T) {
	tests := []struct {
		token string
		alts  []string
		want  string
	}{
		{"slower", []string{"slower", "slowly"}, "slower"},
		{"slowur", []string{"slower", "slowly"}, "slower"},
		{"banana", []string{"slower", "slowly"}, "banana"},
	}
	for _, tt := range tests {
		if got := resolveAlternative(tt.token, tt.alts); got != tt.want {
			t.Errorf("resolveAlternative(%q, %v) = %q, want %q", tt.token, tt.alts, got, tt.want)
		}
	}
}

func TestRouteRememberWritesToIndex(t *testing.T) {
	f := newFixture(t)
	d := route(t, f, "remember that i prefer window seats")
	if d.Kind != KindRemember {
		t.Fatalf("kind = %v", d.Kind)
	}
	if len(f.index.InsertCalls) != 1 {
		t.Fatalf("expected one index insert, got %d", len(f.index.InsertCalls))
	}
	rec := f.index.InsertCalls[0]
	if rec.Content != "i prefer window seats" {
		t.Errorf("stop word not stripped from argument: %q", rec.Content)
	}
	if rec.Metadata["source"] != "instant_command" {
		t.Errorf("metadata missing provenance: %+v", rec.Metadata)
	}
}

func TestRouteUpdateProfile(t *testing.T) {
	sum := &memmock.Summarizer{Summary: "enjoys hiking"}
	f := newFixture(t, memory.WithSummarizer(sum))
	f.mem.Append(types.Turn{Role: types.RoleUser, Content: "i went hiking"})

	d := route(t, f, "update my summary")
	if d.Kind != KindUpdateProfile {
		t.Fatalf("kind = %v", d.Kind)
	}
	if len(f.profile.AppendCalls) != 1 || f.profile.AppendCalls[0] != "enjoys hiking" {
		t.Errorf("profile not updated: %v", f.profile.AppendCalls)
	}
}

func TestRouteExit(t *testing.T) {
	for _, transcript := range []string{"exit", "quit", "goodbye"} {
		f := newFixture(t)
		d := route(t, f, transcript)
		if d.Kind != KindExit || !d.Exit {
			t.Errorf("Route(%q) = %+v, want exit", transcript, d)
		}
	}
}

func TestRouteCommandsNeverTouchSessionLog(t *testing.T) {
	f := newFixture(t)
	route(t, f, "list sessions")
	route(t, f, "speak slower")
	if len(f.mem.Log()) != 0 {
		t.Error("instant commands must not appear in the session log")
	}
}
