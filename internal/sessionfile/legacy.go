package sessionfile

import (
	"bytes"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

// looksLikeJSON sniffs content so a JSON body in a .yaml file still loads.
// YAML is close to a JSON superset but the repair path is JSON-only, so
// JSON-shaped input always goes through the JSON decoder.
func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// decodeJSONDocument parses a JSON session document. A top-level array is
// the legacy bare-activities form. Agents produce near-JSON often enough
// (trailing commas, unquoted keys) that strict parse failures get one repair
// attempt before giving up.
func decodeJSONDocument(path string, data []byte) (document, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	bare := len(trimmed) > 0 && trimmed[0] == '['

	doc, err := parseJSON(data, bare)
	if err == nil {
		return doc, nil
	}

	repaired, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return document{}, formatErrf(path, "invalid JSON: %v", err)
	}
	doc, jerr := parseJSON([]byte(repaired), bare)
	if jerr != nil {
		return document{}, formatErrf(path, "invalid JSON after repair: %v", jerr)
	}
	// jsonrepair will happily turn structural garbage into an empty object.
	// A repair that recovers nothing from non-empty input is a failed parse.
	if doc.Subject == nil && len(doc.Activities) == 0 {
		return document{}, formatErrf(path, "invalid JSON: %v", err)
	}
	return doc, nil
}

func parseJSON(data []byte, bare bool) (document, error) {
	if bare {
		var activities []activityDoc
		if err := json.Unmarshal(data, &activities); err != nil {
			return document{}, err
		}
		return document{Activities: activities}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, err
	}
	return doc, nil
}
