package section

import "fmt"

// ParseFailure records that one section's raw data could not be parsed.
// A failure is isolated to its section; sibling sections parse normally.
type ParseFailure struct {
	Section string
	Err     error
}

func (f ParseFailure) Error() string {
	return fmt.Sprintf("section %q: parse failed: %v", f.Section, f.Err)
}

func (f ParseFailure) Unwrap() error { return f.Err }

// Parsed holds the typed sections produced for one host this cycle,
// keyed by their logical (parsed) name.
type Parsed map[string]interface{}

// Has reports whether a logical section is present.
func (p Parsed) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// ParseAll runs every registered parser whose raw section name appears in
// the input. Unregistered sections are skipped silently (the input may
// carry sections this process has no plugins for). A parser error or
// panic becomes a ParseFailure; it never aborts sibling sections.
//
// When several raw sections publish under the same parsed name, the first
// one (in input order) that parses successfully wins.
func ParseAll(registry *Registry, raw RawInput) (Parsed, []ParseFailure) {
	parsed := make(Parsed)
	var failures []ParseFailure

	merged := raw.Merge()
	for _, name := range raw.SectionNames() {
		info := registry.Get(name)
		if info == nil {
			continue
		}

		value, err := safeParse(info.Parse, merged[name])
		if err != nil {
			failures = append(failures, ParseFailure{Section: name, Err: err})
			continue
		}
		if value == nil {
			// Parser declined: treat like absent data.
			continue
		}
		if _, exists := parsed[info.ParsedName]; exists {
			continue
		}
		parsed[info.ParsedName] = value
	}

	return parsed, failures
}

// safeParse invokes a parse function with panic recovery so a buggy
// plugin cannot abort the evaluation of sibling sections.
func safeParse(parse ParseFunc, table StringTable) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("parse function panicked: %v", r)
		}
	}()
	return parse(table)
}
