package ui

import "strings"

// RenderPanel wraps pre-rendered content (radar, heatmap) in a bordered panel
// with a title line above and a footer line below. The content itself is
// produced by the caller to avoid import cycles.
func RenderPanel(width, height int, title, content, footer string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StylePanelTitle.Render(title))
		sb.WriteByte('\n')
	}
	sb.WriteString(content)
	if footer != "" {
		sb.WriteByte('\n')
		sb.WriteString(footer)
	}
	return StylePanelBorder.Width(width - 2).Height(height - 2).Render(sb.String())
}
