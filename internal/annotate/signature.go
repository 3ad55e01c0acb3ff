// Package annotate implements the annotation resolver (C4): parsing the
// NAME[,PATH[:LINE]] signature grammar, matching signatures against known
// functions, and resolving indirect callsites via their inline-expansion
// stack. Signature resolution failures are never fatal — they are
// collected as non-fatal findings (NOTFOUND, AMBIGUOUS, INVALID) per
// spec.md §7.
package annotate

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"firmstack/internal/model"
)

// ParseSignature parses the NAME[,PATH[:LINE]] grammar from spec.md §4.4.
// NAME must look like a C identifier (letters, digits, underscore, not
// starting with a digit); anything else is an INVALID signature.
func ParseSignature(text string) (model.Signature, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Signature{}, fmt.Errorf("annotate: empty signature")
	}

	parts := strings.SplitN(text, ",", 2)
	name := strings.TrimSpace(parts[0])
	if !isCIdentifier(name) {
		return model.Signature{}, fmt.Errorf("annotate: %q is not a valid symbol name", name)
	}
	if len(parts) == 1 {
		return model.Signature{Kind: model.SigName, Name: name}, nil
	}

	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return model.Signature{}, fmt.Errorf("annotate: %q has an empty path", text)
	}

	if colon := strings.LastIndexByte(rest, ':'); colon >= 0 {
		lineText := rest[colon+1:]
		if n, err := strconv.Atoi(lineText); err == nil {
			path := rest[:colon]
			if path == "" {
				return model.Signature{}, fmt.Errorf("annotate: %q has an empty path", text)
			}
			return model.Signature{Kind: model.SigNameFileLine, Name: name, Path: canonicalize(path), Line: n}, nil
		}
	}
	return model.Signature{Kind: model.SigNameFile, Name: name, Path: canonicalize(rest)}, nil
}

func isCIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// canonicalize matches the original tool's os.path.realpath treatment of
// annotation signature paths (spec.md §4.4): make it absolute and, when
// the path exists on this machine, resolve its symlinks, so matching
// against a function's declaring file (canonicalized the same way) is
// exact. A path that does not exist here (an annotation authored against
// a source tree absent on the analyzing machine) stays absolute with its
// symlinks unresolved.
func canonicalize(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}

// stripToIdentifier trims compiler-added suffixes (".constprop.0",
// ".isra.5", " [clone ...]") from a linker symbol name so it can be
// compared against the bare C identifier a signature names: it keeps the
// longest leading run of identifier characters ([_A-Za-z0-9]).
func stripToIdentifier(symbolName string) string {
	if i := strings.IndexFunc(symbolName, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}); i >= 0 {
		return symbolName[:i]
	}
	return symbolName
}

// Matches reports whether fn satisfies sig, per spec.md §4.4: name match
// is by C-identifier prefix (stripping compiler suffixes from fn.Name),
// then narrowed by declaring file and line when the signature carries
// them.
func Matches(sig model.Signature, fn *model.Function) bool {
	if stripToIdentifier(fn.Name) != sig.Name {
		return false
	}
	switch sig.Kind {
	case model.SigName:
		return true
	case model.SigNameFile:
		return samePath(fn.File, sig.Path)
	case model.SigNameFileLine:
		return samePath(fn.File, sig.Path) && fn.Line == sig.Line
	default:
		return false
	}
}

func samePath(file, sigPath string) bool {
	if file == "" {
		return false
	}
	a := canonicalize(file)
	return a == sigPath || strings.HasSuffix(a, string(filepath.Separator)+strings.TrimPrefix(sigPath, string(filepath.Separator)))
}
