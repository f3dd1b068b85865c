package artifact

const (
	typeKey         = "@type"
	typeDataFeed    = "DataFeed"
	typeARArtifact  = "ARArtifact"
	typeBarcode     = "Barcode"
	typeImageTarget = "ARImageTarget"
	keyFeedElement  = "dataFeedElement"
	keyTarget       = "arTarget"
	keyContent      = "arContent"
)

// Decode walks a JSON-LD style tree (as produced by encoding/json into
// map[string]any / []any) and extracts every well-formed artifact record.
// Malformed or unrecognized nodes yield no artifacts; Decode never fails.
// One broken source must not poison a batch load.
func Decode(node any) []*Artifact {
	switch n := node.(type) {
	case []any:
		var out []*Artifact
		for _, el := range n {
			out = append(out, Decode(el)...)
		}
		return out
	case map[string]any:
		typ, ok := n[typeKey].(string)
		if !ok {
			return nil
		}
		switch typ {
		case typeDataFeed:
			return Decode(n[keyFeedElement])
		case typeARArtifact:
			return []*Artifact{decodeArtifact(n)}
		}
	}
	return nil
}

func decodeArtifact(node map[string]any) *Artifact {
	a := &Artifact{Content: node[keyContent]}
	for _, t := range asList(node[keyTarget]) {
		if target := decodeTarget(t); target != nil {
			a.Targets = append(a.Targets, target)
		}
	}
	return a
}

// decodeTarget returns nil for untagged or unrecognized target nodes.
func decodeTarget(node any) Target {
	m, ok := node.(map[string]any)
	if !ok {
		return nil
	}
	typ, ok := m[typeKey].(string)
	if !ok {
		return nil
	}
	switch typ {
	case typeBarcode:
		text, _ := m["text"].(string)
		return Barcode{Text: text}
	case typeImageTarget:
		name, _ := m["name"].(string)
		t := ImageTarget{Name: name}
		for _, key := range []string{"image", "encoding", "associatedMedia"} {
			for _, ref := range asList(m[key]) {
				if u := mediaURL(ref); u != "" {
					t.Media = append(t.Media, u)
				}
			}
		}
		return t
	}
	return nil
}

// mediaURL accepts a bare URL string or a media object carrying one.
func mediaURL(ref any) string {
	switch r := ref.(type) {
	case string:
		return r
	case map[string]any:
		if u, ok := r["contentUrl"].(string); ok {
			return u
		}
		if u, ok := r["url"].(string); ok {
			return u
		}
	}
	return ""
}

func asList(node any) []any {
	switch n := node.(type) {
	case nil:
		return nil
	case []any:
		return n
	default:
		return []any{n}
	}
}
