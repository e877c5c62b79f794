package db

import (
	"reflect"
	"strings"
	"testing"
)

func TestIndexBuilder_ItemCatalog(t *testing.T) {
	idx := NewIndex("feedex:idx:items").
		Prefix("feedex:item:").
		TextWeighted("title", 5).
		Text("description").
		Text("terms").
		Numeric("created_at").
		MustBuild()

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if idx.Fields[0].Weight != 5 {
		t.Errorf("title weight = %v, want 5", idx.Fields[0].Weight)
	}
	if idx.Fields[3].Type != IndexFieldNumeric {
		t.Errorf("field[3] = %+v, want NUMERIC", idx.Fields[3])
	}
}

func TestIndexDefinition_TextFields(t *testing.T) {
	idx := NewIndex("idx").
		TextWeighted("title", 3).
		Text("body").
		Tag("kind").
		MustBuild()

	got := idx.TextFields()
	want := map[string]float64{"title": 3, "body": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TextFields() = %v, want %v", got, want)
	}
}

func TestIndexBuilder_TagOptions(t *testing.T) {
	idx := NewIndex("tag-idx").
		Prefix("t:").
		TagWithOpts("tags", "|", true).
		MustBuild()

	f := idx.Fields[0]
	if f.TagSeparator != "|" {
		t.Errorf("separator = %q, want |", f.TagSeparator)
	}
	if !f.TagCaseSensitive {
		t.Error("expected TagCaseSensitive=true")
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "negative weight",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").TextWeighted("t", -1).Build()
			},
			wantErr: "negative weight",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate field",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Text("a").Numeric("a").Build()
			},
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("my-idx").
		Prefix("doc:").
		TextWeighted("title", 2.5).
		MustBuild()

	s := idx.String()
	if !strings.HasPrefix(s, "FT.CREATE ") {
		t.Errorf("expected FT.CREATE prefix, got %q", s)
	}
	if !strings.Contains(s, "title TEXT WEIGHT 2.5") {
		t.Errorf("missing weighted text field in %q", s)
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Dark Techno Loop", []string{"dark", "techno", "loop"}},
		{"  lo-fi, 808!! ", []string{"lo", "fi", "808"}},
		{"", nil},
		{"Guitarra eléctrica", []string{"guitarra", "eléctrica"}},
	}
	for _, tc := range tests {
		got := Tokenize(tc.in)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
