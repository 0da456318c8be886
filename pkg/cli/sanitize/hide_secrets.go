// Package sanitize redacts Secret resource payloads before they reach a
// terminal: report.WriteResourceDetail prints DeployedResource snapshots,
// and those snapshots can contain a Secret's `data`/`stringData`.
package sanitize

import (
	"sigs.k8s.io/yaml"
)

const redacted = "**REDACTED**"

// HideManifestSecrets walks manifest (one or more YAML documents, "---"
// separated) and replaces every value under `data`/`stringData` of a Secret
// object with a fixed redaction marker, leaving everything else untouched.
func HideManifestSecrets(manifest string) string {
	docs := splitYAMLDocs(manifest)
	for i, doc := range docs {
		docs[i] = hideOne(doc)
	}
	return joinYAMLDocs(docs)
}

func hideOne(doc string) string {
	var obj map[string]interface{}
	if err := yaml.Unmarshal([]byte(doc), &obj); err != nil {
		return doc
	}
	kind, _ := obj["kind"].(string)
	if kind != "Secret" {
		return doc
	}
	redactField(obj, "data")
	redactField(obj, "stringData")

	out, err := yaml.Marshal(obj)
	if err != nil {
		return doc
	}
	return string(out)
}

func redactField(obj map[string]interface{}, field string) {
	m, ok := obj[field].(map[string]interface{})
	if !ok {
		return
	}
	for k := range m {
		m[k] = redacted
	}
}

func splitYAMLDocs(manifest string) []string {
	var docs []string
	start := 0
	for i := 0; i+4 <= len(manifest); i++ {
		if manifest[i:i+4] == "\n---" {
			docs = append(docs, manifest[start:i])
			start = i + 4
		}
	}
	docs = append(docs, manifest[start:])
	return docs
}

func joinYAMLDocs(docs []string) string {
	out := ""
	for i, d := range docs {
		if i > 0 {
			out += "\n---"
		}
		out += d
	}
	return out
}
