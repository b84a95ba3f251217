package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jonathan/yecs/internal/types"
)

// Merge returns a copy of profile with partial unioned into one section.
// For object sections keys in partial overwrite existing keys and every
// other key is kept. For documents, entries replace existing entries with
// the same name and are appended otherwise. Sibling sections are never touched.
func Merge(profile types.ApplicantProfile, section types.Section, partial json.RawMessage) (types.ApplicantProfile, error) {
	out := profile.Clone()

	var err error
	switch section {
	case types.SectionPersonal:
		err = overlay(&out.Personal, partial)
	case types.SectionBusiness:
		err = overlay(&out.Business, partial)
	case types.SectionFinancials:
		err = overlay(&out.Financials, partial)
	case types.SectionDocuments:
		out.Documents, err = mergeDocuments(out.Documents, partial)
	default:
		return profile, fmt.Errorf("unknown profile section: %q", section)
	}
	if err != nil {
		return profile, fmt.Errorf("failed to merge %s section: %w", section, err)
	}
	return out, nil
}

// MergeSections applies Merge for each section present in sections, in
// profile order. Unknown keys are ignored.
func MergeSections(profile types.ApplicantProfile, sections map[string]json.RawMessage) (types.ApplicantProfile, error) {
	for _, section := range []types.Section{
		types.SectionPersonal,
		types.SectionBusiness,
		types.SectionFinancials,
		types.SectionDocuments,
	} {
		partial, ok := sections[string(section)]
		if !ok || isNull(partial) {
			continue
		}
		var err error
		if profile, err = Merge(profile, section, partial); err != nil {
			return profile, err
		}
	}
	return profile, nil
}

// overlay unions the keys of partial into the JSON form of target.
func overlay[T any](target *T, partial json.RawMessage) error {
	if isNull(partial) {
		return nil
	}

	var updates map[string]json.RawMessage
	if err := json.Unmarshal(partial, &updates); err != nil {
		return fmt.Errorf("expected a JSON object: %w", err)
	}

	current, err := json.Marshal(target)
	if err != nil {
		return err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(current, &fields); err != nil {
		return err
	}
	for key, value := range updates {
		fields[key] = value
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	// Decode into a fresh value so keys set to null become zero
	var next T
	if err := json.Unmarshal(merged, &next); err != nil {
		return err
	}
	*target = next
	return nil
}

func mergeDocuments(existing []types.Document, partial json.RawMessage) ([]types.Document, error) {
	if isNull(partial) {
		return existing, nil
	}

	var incoming []types.Document
	trimmed := bytes.TrimSpace(partial)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc types.Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		incoming = []types.Document{doc}
	} else if err := json.Unmarshal(trimmed, &incoming); err != nil {
		return nil, fmt.Errorf("expected a document or list of documents: %w", err)
	}

	out := make([]types.Document, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	for _, doc := range incoming {
		replaced := false
		for i := range out {
			if out[i].Name == doc.Name {
				out[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, doc)
		}
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
