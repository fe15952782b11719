package scene

import (
	"bufio"
	"encoding/xml"
	"io"
	"slices"
	"strconv"
)

const clipID = "clip"

// WriteSVG serialises the graph as a standalone SVG document.
func (g *Graph) WriteSVG(w io.Writer, width, height float64) error {
	bw := bufio.NewWriter(w)
	ws := func(s string) { _, _ = bw.WriteString(s) }

	wstr := strconv.FormatFloat(width, 'f', -1, 64)
	hstr := strconv.FormatFloat(height, 'f', -1, 64)
	ws(`<svg xmlns="http://www.w3.org/2000/svg" width="` + wstr + `" height="` + hstr + `" viewBox="0 0 ` + wstr + ` ` + hstr + `">`)
	if g.clipPath != "" {
		ws(`<defs><clipPath id="` + clipID + `"><path d="`)
		writeEscaped(bw, g.clipPath)
		ws(`"/></clipPath></defs>`)
	}

	for _, l := range g.layers {
		ws(`<g id="`)
		writeEscaped(bw, l.spec.ID)
		ws(`"`)
		if l.transform != "" {
			ws(` transform="`)
			writeEscaped(bw, l.transform)
			ws(`"`)
		}
		if l.spec.Clip && g.clipPath != "" {
			ws(` clip-path="url(#` + clipID + `)"`)
		}
		if l.hidden {
			ws(` visibility="hidden"`)
		}
		writeAttrs(bw, l.attrs)
		ws(`>`)
		for _, k := range l.order {
			writeNode(bw, l.nodes[k])
		}
		ws(`</g>`)
	}
	ws(`</svg>`)
	return bw.Flush()
}

func writeNode(bw *bufio.Writer, n *Node) {
	kind := n.Kind
	if kind == "" {
		kind = KindPath
	}
	_, _ = bw.WriteString("<" + string(kind) + ` data-key="`)
	writeEscaped(bw, n.Key)
	_, _ = bw.WriteString(`"`)
	writeAttrs(bw, n.Attrs)
	if kind == KindText {
		_, _ = bw.WriteString(">")
		writeEscaped(bw, n.Text)
		_, _ = bw.WriteString("</text>")
		return
	}
	_, _ = bw.WriteString("/>")
}

func writeAttrs(bw *bufio.Writer, attrs map[string]string) {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = bw.WriteString(" " + k + `="`)
		writeEscaped(bw, attrs[k])
		_, _ = bw.WriteString(`"`)
	}
}

func writeEscaped(w io.Writer, s string) {
	_ = xml.EscapeText(w, []byte(s))
}
