package annotate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"firmstack/internal/errs"
	"firmstack/internal/model"
)

// fileDoc is the on-disk shape of an annotation file (spec.md §6): add
// maps each source signature to the set of destination signatures it
// should gain an edge to, and remove is a flat list of signatures whose
// matching functions are excised as graph nodes entirely. Both keys are
// optional; a missing or null key parses as empty.
type fileDoc struct {
	Add    map[string][]string `yaml:"add"`
	Remove []string            `yaml:"remove"`
}

// LoadRuleSet reads and parses an annotation file (spec.md §6), returning
// the parsed rule set plus any per-signature INVALID findings. A
// malformed YAML document (not the expected add-map/remove-list shape)
// is a fatal errs.AnnotationParse error; a malformed individual
// signature inside an otherwise well-formed document is a non-fatal
// FindingSignatureInvalid and that signature (or the whole add rule, if
// its source is the one that's invalid) is skipped.
func LoadRuleSet(path string) (model.RuleSet, []errs.Finding, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RuleSet{}, nil, errs.New(errs.AnnotationParse, fmt.Errorf("read %s: %w", path, err))
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.RuleSet{}, nil, errs.New(errs.AnnotationParse, fmt.Errorf("parse %s: %w", path, err))
	}

	var findings []errs.Finding
	rs := model.RuleSet{}

	for srcText, dstTexts := range doc.Add {
		src, err := ParseSignature(srcText)
		if err != nil {
			findings = append(findings, errs.Finding{Kind: errs.FindingSignatureInvalid, Subject: srcText, Detail: err.Error()})
			continue
		}
		var dsts []model.Signature
		for _, dstText := range dstTexts {
			dst, err := ParseSignature(dstText)
			if err != nil {
				findings = append(findings, errs.Finding{Kind: errs.FindingSignatureInvalid, Subject: dstText, Detail: err.Error()})
				continue
			}
			dsts = append(dsts, dst)
		}
		if len(dsts) == 0 {
			continue
		}
		rs.Add = append(rs.Add, model.AddRule{Source: src, Destinations: dsts})
	}

	for _, text := range doc.Remove {
		sig, err := ParseSignature(text)
		if err != nil {
			findings = append(findings, errs.Finding{Kind: errs.FindingSignatureInvalid, Subject: text, Detail: err.Error()})
			continue
		}
		rs.Remove = append(rs.Remove, sig)
	}

	return rs, findings, nil
}
