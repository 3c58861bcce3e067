// Portcullis - Access control for admin consoles
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/portcullis

package policy

import (
	"errors"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Line
		wantErr bool
	}{
		{
			name:  "policy with effect",
			input: "p, editor, /posts, GET, allow",
			want:  Policy{Subject: "editor", Object: "/posts", Action: "GET", Effect: EffectAllow},
		},
		{
			name:  "policy deny upper case",
			input: "p,editor,/posts/{id},PATCH,DENY",
			want:  Policy{Subject: "editor", Object: "/posts/{id}", Action: "PATCH", Effect: EffectDeny},
		},
		{
			name:  "policy without effect defaults to allow",
			input: "p, admin, /system/*, GET|POST",
			want:  Policy{Subject: "admin", Object: "/system/*", Action: "GET|POST", Effect: EffectAllow},
		},
		{
			name:  "action regex with comma",
			input: "p, r, /x, G{1,2}ET, allow",
			want:  Policy{Subject: "r", Object: "/x", Action: "G{1,2}ET", Effect: EffectAllow},
		},
		{
			name:  "action regex with commas and deny",
			input: "p, r, /x, (GET){1,2}|P{1,}OST, deny",
			want:  Policy{Subject: "r", Object: "/x", Action: "(GET){1,2}|P{1,}OST", Effect: EffectDeny},
		},
		{
			name:  "grouping",
			input: " g , alice , editor ",
			want:  Grouping{Member: "alice", Role: "editor"},
		},
		{name: "unknown type", input: "x, a, b", wantErr: true},
		{name: "policy too short", input: "p, editor, /posts", wantErr: true},
		{name: "policy too long", input: "p, a, /b, GET, allow, extra", wantErr: true},
		{name: "grouping too long", input: "g, a, b, c", wantErr: true},
		{name: "empty field", input: "p, editor, , GET", wantErr: true},
		{name: "unknown effect", input: "p, editor, /posts, GET, maybe", wantErr: true},
		{name: "comma in action without effect", input: "p, r, /x, G{1,2}ET", wantErr: true},
		{name: "bad regex", input: "p, editor, /posts, GET(, allow", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseLine(%q) expected error, got %v", tt.input, got)
				}
				if !errors.Is(err, ErrMalformedLine) {
					t.Errorf("ParseLine(%q) error = %v, want ErrMalformedLine", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseLine(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLine_CommaActionMatches(t *testing.T) {
	line, err := ParseLine("p, r, /x, G{1,2}ET, allow")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	pol := line.(Policy)
	for action, want := range map[string]bool{"GET": true, "GGET": true, "GGGET": false} {
		if got := pol.Matches("/x", action); got != want {
			t.Errorf("Matches(/x, %s) = %v, want %v", action, got, want)
		}
	}

	again, err := ParseLine(pol.String())
	if err != nil || again != line {
		t.Errorf("ParseLine(String()) = %#v, %v, want %#v", again, err, line)
	}
}

func TestParseLines_SkipsCommentsAndReportsAllErrors(t *testing.T) {
	set, err := ParseLines([]string{
		"# header",
		"",
		"p, editor, /posts, GET, allow",
		"g, alice, editor",
	})
	if err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}
	if len(set.Policies) != 1 || len(set.Groupings) != 1 {
		t.Fatalf("ParseLines() = %d policies, %d groupings, want 1 and 1", len(set.Policies), len(set.Groupings))
	}

	_, err = ParseLines([]string{"p, a", "p, b, /x, GET", "g, only"})
	if err == nil {
		t.Fatal("ParseLines() expected error for malformed lines")
	}
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("error %v does not carry a *LineError", err)
	}
	if lineErr.Index != 0 {
		t.Errorf("first LineError index = %d, want 0", lineErr.Index)
	}
	if !strings.Contains(err.Error(), "at 2") {
		t.Errorf("error %q should mention the third line", err)
	}
}

func TestMatchPath(t *testing.T) {
	tests := []struct {
		object, pattern string
		want            bool
	}{
		{"/posts", "/posts", true},
		{"/posts", "/comments", false},
		{"/posts/7", "/posts/{id}", true},
		{"/posts/7", "/posts/:id", true},
		{"/posts/", "/posts/{id}", false},
		{"/posts/7/approve", "/posts/{id}", false},
		{"/posts/7/approve", "/posts/{id}/approve", true},
		{"/system/users/3", "/system/*", true},
		{"/system", "/system/*", true},
		{"/systems/x", "/system/*", false},
		{"/api/v1/users", "/api/v1/user*", true},
		{"/anything/at/all", "*", true},
		{"/posts", "/posts/{id}", false},
	}

	for _, tt := range tests {
		if got := MatchPath(tt.object, tt.pattern); got != tt.want {
			t.Errorf("MatchPath(%q, %q) = %v, want %v", tt.object, tt.pattern, got, tt.want)
		}
	}
}

func TestMatchAction(t *testing.T) {
	tests := []struct {
		action, pattern string
		want            bool
	}{
		{"GET", "GET", true},
		{"POST", "GET", false},
		{"FORGET", "GET", false},
		{"PATCH", "GET|PATCH", true},
		{"DELETE", "(GET)|(DELETE)", true},
		{"DELETE", ".*", true},
		{"DELETE", "*", true},
		{"GET", "GET(", false},
	}

	for _, tt := range tests {
		if got := MatchAction(tt.action, tt.pattern); got != tt.want {
			t.Errorf("MatchAction(%q, %q) = %v, want %v", tt.action, tt.pattern, got, tt.want)
		}
	}
}

func TestSetHash_OrderIndependent(t *testing.T) {
	a, err := ParseLines([]string{"p, r, /x, GET, allow", "p, r, /x, GET, deny", "g, u, r"})
	if err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}
	b, err := ParseLines([]string{"g, u, r", "p, r, /x, GET, deny", "p, r, /x, GET, allow"})
	if err != nil {
		t.Fatalf("ParseLines() error = %v", err)
	}
	if a.Hash() != b.Hash() {
		t.Error("Hash() differs for the same lines in a different order")
	}

	c := a.WithGroupings(Grouping{Member: "u", Role: "r2"})
	if c.Hash() == a.Hash() {
		t.Error("Hash() should change when a grouping is added")
	}
	if len(a.Groupings) != 1 {
		t.Errorf("WithGroupings mutated the receiver: %d groupings", len(a.Groupings))
	}
}

func TestFlatten(t *testing.T) {
	lines := Flatten(Payload{
		Permissions: []PermissionEntry{
			{Resource: "/posts", Action: "GET"},
			{Subject: "editor", Resource: "/posts/{id}", Action: "PATCH", Effect: "deny"},
		},
		Groupings: []GroupingEntry{{Child: "editor", Parent: "viewer"}},
	})

	want := []string{
		"p, @self, /posts, GET, allow",
		"p, editor, /posts/{id}, PATCH, deny",
		"g, editor, viewer",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Fatalf("Flatten() = %v, want %v", lines, want)
	}
	if _, err := ParseLines(lines); err != nil {
		t.Errorf("flattened lines do not parse: %v", err)
	}
}

func TestSynthesizeGroupings(t *testing.T) {
	got := SynthesizeGroupings("u1", []string{"editor", "", "u1", "viewer"})
	want := []Grouping{
		{Member: "u1", Role: SelfRole},
		{Member: "u1", Role: "editor"},
		{Member: "u1", Role: "viewer"},
	}
	if len(got) != len(want) {
		t.Fatalf("SynthesizeGroupings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SynthesizeGroupings()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if SynthesizeGroupings("", []string{"editor"}) != nil {
		t.Error("SynthesizeGroupings with empty user should return nil")
	}
}
