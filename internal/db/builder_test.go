package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_KnowledgeSchema(t *testing.T) {
	idx := NewIndex("polyqa:kb:helpdesk:idx").
		Prefix("polyqa:kb:helpdesk:").
		Text("__content").
		VectorHNSW("__vector", "vector", 1024, DistanceCosine, 16, 200).
		MustBuild()

	if idx.Name != "polyqa:kb:helpdesk:idx" {
		t.Errorf("name = %q", idx.Name)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldText || idx.Fields[1].Type != IndexFieldVector {
		t.Errorf("unexpected field types: %+v", idx.Fields)
	}
	v := idx.Fields[1]
	if v.Alias != "vector" || v.VectorDim != 1024 || v.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", v)
	}
	if v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("HNSW params = M %d EF %d", v.VectorM, v.VectorEFConstruct)
	}
}

func TestIndexBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Text("a"), "index name is required"},
		{"bad name", NewIndex("bad name!").Text("a"), "invalid characters"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"duplicate", NewIndex("idx").Text("a").Text("a"), "duplicate field name: a"},
		{"alias clash", NewIndex("idx").Text("vector").VectorHNSW("__vector", "vector", 4, DistanceCosine, 0, 0), "duplicate field name: vector"},
		{"zero dim", NewIndex("idx").VectorHNSW("v", "", 0, DistanceCosine, 0, 0), "positive DIM"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestIndexBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	NewIndex("").MustBuild()
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("kb").
		Prefix("kb:").
		Text("__content").
		VectorHNSW("__vector", "vector", 8, DistanceCosine, 0, 0).
		MustBuild()

	want := "FT.CREATE kb ON HASH PREFIX kb: SCHEMA __content TEXT __vector AS vector VECTOR HNSW"
	if got := idx.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestIsValidIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"polyqa:kb:helpdesk", true},
		{"a-b_c", true},
		{"", false},
		{"has space", false},
		{"emoji😀", false},
	}
	for _, tc := range tests {
		if got := IsValidIdentifier(tc.in); got != tc.want {
			t.Errorf("IsValidIdentifier(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
