package markdown

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var analyzer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// References lists what a note body points at.
type References struct {
	Images    []string // image destinations in document order, deduplicated
	Resources []string // attachment ids referenced by links or images
}

// ExtractReferences parses body and collects image destinations and attachment ids.
// This is an analysis API; it does not render.
func ExtractReferences(body string) References {
	src := []byte(body)
	root := analyzer.Parser().Parse(text.NewReader(src))

	var refs References
	seenImg, seenRes := map[string]bool{}, map[string]bool{}
	addRes := func(dest string) {
		if id, ok := ResourceID(dest); ok && !seenRes[id] {
			seenRes[id] = true
			refs.Resources = append(refs.Resources, id)
		}
	}
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			dest := string(node.Destination)
			if !seenImg[dest] {
				seenImg[dest] = true
				refs.Images = append(refs.Images, dest)
			}
			addRes(dest)
		case *gmast.Link:
			addRes(string(node.Destination))
		}
		return gmast.WalkContinue, nil
	})
	return refs
}
