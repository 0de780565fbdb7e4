package guideline

import (
	"strings"

	docs "google.golang.org/api/docs/v1"
)

// documentText extracts the plain text of a Google Doc: paragraph runs and
// table cells, in document order. Tabbed documents (every tab's body) and
// legacy single-body documents are both supported.
func documentText(doc *docs.Document) string {
	if doc == nil {
		return ""
	}

	var b strings.Builder
	if len(doc.Tabs) > 0 {
		for _, tab := range doc.Tabs {
			writeTab(&b, tab)
		}
	} else if doc.Body != nil {
		writeElements(&b, doc.Body.Content)
	}
	return strings.TrimSpace(b.String())
}

func writeTab(b *strings.Builder, tab *docs.Tab) {
	if tab == nil {
		return
	}
	if tab.DocumentTab != nil && tab.DocumentTab.Body != nil {
		writeElements(b, tab.DocumentTab.Body.Content)
	}
	for _, child := range tab.ChildTabs {
		writeTab(b, child)
	}
}

func writeElements(b *strings.Builder, elements []*docs.StructuralElement) {
	for _, el := range elements {
		switch {
		case el.Paragraph != nil:
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					b.WriteString(pe.TextRun.Content)
				}
			}
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				for _, cell := range row.TableCells {
					writeElements(b, cell.Content)
				}
			}
		}
	}
}
