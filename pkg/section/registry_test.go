package section

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func passthroughParse(table StringTable) (interface{}, error) {
	return table, nil
}

func TestRegister(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(Info{Name: "uptime", Parse: passthroughParse})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if !registry.IsRegistered("uptime") {
		t.Error("IsRegistered(uptime) = false after registration")
	}

	info := registry.Get("uptime")
	if info == nil {
		t.Fatal("Get(uptime) = nil")
	}
	if info.ParsedName != "uptime" {
		t.Errorf("ParsedName = %q, want default to section name", info.ParsedName)
	}
}

func TestRegisterValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Register(Info{Parse: passthroughParse}); !errors.Is(err, ErrEmptySectionName) {
		t.Errorf("Register without name: error = %v, want ErrEmptySectionName", err)
	}
	if err := registry.Register(Info{Name: "x"}); !errors.Is(err, ErrNilParseFunc) {
		t.Errorf("Register without parse func: error = %v, want ErrNilParseFunc", err)
	}

	if err := registry.Register(Info{Name: "x", Parse: passthroughParse}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(Info{Name: "x", Parse: passthroughParse}); !errors.Is(err, ErrDuplicateSection) {
		t.Errorf("duplicate Register: error = %v, want ErrDuplicateSection", err)
	}
}

func TestRegisterRenaming(t *testing.T) {
	registry := NewRegistry()

	registry.MustRegister(Info{
		Name:       "kube_start_time",
		ParsedName: "uptime",
		Parse:      passthroughParse,
	})

	info := registry.Get("kube_start_time")
	if info == nil || info.ParsedName != "uptime" {
		t.Fatalf("Get(kube_start_time) = %+v, want ParsedName uptime", info)
	}
}

func TestRegisteredNamesSorted(t *testing.T) {
	registry := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		registry.MustRegister(Info{Name: name, Parse: passthroughParse})
	}

	names := registry.RegisteredNames()
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("RegisteredNames() = %v, want sorted", names)
	}
}

func TestParseAll(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(Info{
		Name: "good",
		Parse: func(table StringTable) (interface{}, error) {
			return len(table), nil
		},
	})
	registry.MustRegister(Info{
		Name: "bad",
		Parse: func(table StringTable) (interface{}, error) {
			return nil, fmt.Errorf("malformed row")
		},
	})
	registry.MustRegister(Info{
		Name: "panics",
		Parse: func(table StringTable) (interface{}, error) {
			panic("boom")
		},
	})

	raw := RawInput{
		{Name: "good", Rows: [][]string{{"a"}, {"b"}}},
		{Name: "bad", Rows: [][]string{{"c"}}},
		{Name: "panics", Rows: [][]string{{"d"}}},
		{Name: "unregistered", Rows: [][]string{{"e"}}},
	}

	parsed, failures := ParseAll(registry, raw)

	if got, ok := parsed["good"].(int); !ok || got != 2 {
		t.Errorf("parsed[good] = %v, want 2", parsed["good"])
	}
	if parsed.Has("bad") || parsed.Has("panics") || parsed.Has("unregistered") {
		t.Errorf("unexpected parsed sections: %v", parsed)
	}
	if len(failures) != 2 {
		t.Fatalf("got %d failures, want 2 (bad + panics): %v", len(failures), failures)
	}
	for _, f := range failures {
		if f.Section != "bad" && f.Section != "panics" {
			t.Errorf("unexpected failure section %q", f.Section)
		}
	}
}

func TestParseAllDeterministic(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(Info{
		Name: "rows",
		Parse: func(table StringTable) (interface{}, error) {
			out := make([]string, 0, len(table))
			for _, row := range table {
				out = append(out, strings.Join(row, " "))
			}
			return out, nil
		},
	})

	raw := RawInput{{Name: "rows", Rows: [][]string{{"a", "b"}, {"c"}}}}

	first, _ := ParseAll(registry, raw)
	second, _ := ParseAll(registry, raw)

	if fmt.Sprintf("%v", first) != fmt.Sprintf("%v", second) {
		t.Errorf("ParseAll not deterministic: %v vs %v", first, second)
	}
}

func TestParseAllRenamedWins(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(Info{
		Name:       "native_uptime",
		ParsedName: "uptime",
		Parse:      func(StringTable) (interface{}, error) { return "native", nil },
	})
	registry.MustRegister(Info{
		Name:       "kube_start_time",
		ParsedName: "uptime",
		Parse:      func(StringTable) (interface{}, error) { return "kube", nil },
	})

	raw := RawInput{
		{Name: "native_uptime", Rows: [][]string{{"1"}}},
		{Name: "kube_start_time", Rows: [][]string{{"2"}}},
	}

	parsed, _ := ParseAll(registry, raw)
	if parsed["uptime"] != "native" {
		t.Errorf("parsed[uptime] = %v, want first source to win", parsed["uptime"])
	}
}
