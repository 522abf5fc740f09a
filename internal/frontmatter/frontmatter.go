// Package frontmatter splits YAML frontmatter from note bodies and composes it back.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrMissingClosingDelimiter indicates the document opened a frontmatter block but
// never closed it.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Document is a note split into its raw frontmatter and body.
type Document struct {
	Meta    []byte // raw YAML without delimiters; nil when the note has none
	Body    []byte
	Newline string
}

// Split separates `---` delimited YAML frontmatter from the body. Documents without
// frontmatter come back with a nil Meta and the full input as Body.
func Split(content []byte) (Document, error) {
	nl := detectNewline(content)
	doc := Document{Body: content, Newline: nl}

	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return doc, nil
	}
	rest := content[len(open):]
	if bytes.HasPrefix(rest, open) {
		doc.Meta, doc.Body = []byte{}, rest[len(open):]
		return doc, nil
	}

	closeSeq := []byte(nl + "---" + nl)
	idx := bytes.Index(rest, closeSeq)
	if idx < 0 {
		// a closing delimiter at EOF without trailing newline
		if bytes.HasSuffix(rest, []byte(nl+"---")) {
			doc.Meta, doc.Body = rest[:len(rest)-3], []byte{}
			return doc, nil
		}
		return Document{}, ErrMissingClosingDelimiter
	}
	doc.Meta = rest[:idx+len(nl)]
	doc.Body = rest[idx+len(closeSeq):]
	return doc, nil
}

// Decode splits content and decodes the frontmatter into out. Notes without
// frontmatter leave out untouched.
func Decode(content []byte, out any) (body []byte, err error) {
	doc, err := Split(content)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(doc.Meta)) > 0 {
		if err := yaml.Unmarshal(doc.Meta, out); err != nil {
			return nil, fmt.Errorf("parse frontmatter: %w", err)
		}
	}
	return doc.Body, nil
}

// Compose renders meta as frontmatter ahead of body. Keys are sorted so output is
// stable; an empty meta yields body unchanged.
func Compose(meta map[string]any, body []byte) ([]byte, error) {
	if len(meta) == 0 {
		return body, nil
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var val yaml.Node
		if err := val.Encode(meta[k]); err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, &val)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.Write(body)
	return buf.Bytes(), nil
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
