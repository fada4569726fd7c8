package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/corey/hotword/internal/adapters/socket"
	"github.com/corey/hotword/internal/domain/contextgraph"
	"github.com/corey/hotword/internal/ports"
)

// ANSI color codes for terminal output.
const (
	colorReset   = "\033[0m"
	colorBold    = "\033[1m"
	colorCyan    = "\033[36m"
	colorMagenta = "\033[35m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorGray    = "\033[90m"
)

// formatStats formats graph statistics, optionally with the stored metadata.
//
//	⚡ default │ 3 phrases │ 7 states │ 10 arcs (4 fallback)
//	  Max depth:  3
//	  Vocab:      units.txt (5231 units)
func formatStats(name string, st contextgraph.Stats, meta *ports.GraphMeta) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %s%s │ %d phrases │ %d states │ %d arcs (%d fallback)\n",
		colorBold, name, colorReset, st.Phrases, st.States, st.Arcs, st.FallbackArcs))
	sb.WriteString(fmt.Sprintf("  Max depth:  %d\n", st.MaxDepth))
	if meta == nil {
		return sb.String()
	}
	if meta.VocabPath != "" {
		sb.WriteString(fmt.Sprintf("  Vocab:      %s (%d units)\n", meta.VocabPath, meta.VocabSize))
	}
	if meta.PhrasePath != "" {
		sb.WriteString(fmt.Sprintf("  Phrases:    %s\n", meta.PhrasePath))
	}
	sb.WriteString(fmt.Sprintf("  Bias:       %g\n", meta.Bias))
	if meta.Generation > 0 {
		sb.WriteString(fmt.Sprintf("  Generation: %d\n", meta.Generation))
	}
	if meta.BuiltAt > 0 {
		sb.WriteString(fmt.Sprintf("  Built:      %s\n", time.Unix(meta.BuiltAt, 0).Format(time.RFC3339)))
	}
	return sb.String()
}

// formatSteps renders one line per decoder step:
//
//	  天  2 → 1   +1.5
//	  健  4 → 0   +1.5  天行健
func formatSteps(symbols []string, steps []contextgraph.StepResult) string {
	var sb strings.Builder
	var total float64
	for i, st := range steps {
		total += st.Score
		sym := ""
		if i < len(symbols) {
			sym = symbols[i]
		}
		scoreColor := colorGreen
		if st.Score < 0 {
			scoreColor = colorYellow
		} else if st.Score == 0 {
			scoreColor = colorGray
		}
		sb.WriteString(fmt.Sprintf("  %s%-4s%s %5d → %-4d %s%+g%s",
			colorCyan, sym, colorReset, st.Unit, st.Next, scoreColor, st.Score, colorReset))
		if len(st.Matched) > 0 {
			sb.WriteString(fmt.Sprintf("  %s%s%s", colorMagenta, strings.Join(st.Matched, ", "), colorReset))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("%s⚡ %d steps │ total %+g%s\n", colorBold, len(steps), total, colorReset))
	return sb.String()
}

// formatSpot lists the phrases found in a transcript.
func formatSpot(phrases []string) string {
	if len(phrases) == 0 {
		return fmt.Sprintf("%s⚡ no hot phrases%s\n", colorBold, colorReset)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d hot phrases%s\n", colorBold, len(phrases), colorReset))
	for _, p := range phrases {
		sb.WriteString(fmt.Sprintf("  %s%s%s\n", colorMagenta, p, colorReset))
	}
	return sb.String()
}

// formatHealth formats a HealthResult for terminal display.
func formatHealth(h *socket.HealthResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ hotword daemon%s\n", colorBold, colorReset))
	sb.WriteString(fmt.Sprintf("  Status:     %s%s%s\n", colorGreen, h.Status, colorReset))
	sb.WriteString(fmt.Sprintf("  Generation: %d\n", h.Generation))
	sb.WriteString(fmt.Sprintf("  Phrases:    %d\n", h.Stats.Phrases))
	sb.WriteString(fmt.Sprintf("  States:     %d\n", h.Stats.States))
	if h.BuiltAt != "" {
		sb.WriteString(fmt.Sprintf("  Built:      %s\n", h.BuiltAt))
	}
	sb.WriteString(fmt.Sprintf("  Uptime:     %s\n", h.Uptime))
	return sb.String()
}

// formatGraphList lists stored graphs, one per line.
func formatGraphList(metas []ports.GraphMeta) string {
	if len(metas) == 0 {
		return fmt.Sprintf("%s⚡ no stored graphs%s\n", colorBold, colorReset)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s⚡ %d graphs%s\n", colorBold, len(metas), colorReset))
	for _, m := range metas {
		sb.WriteString(fmt.Sprintf("  %s%-16s%s %4d phrases  %6d states  %sgen %d%s\n",
			colorCyan, m.Name, colorReset, m.Phrases, m.States, colorGray, m.Generation, colorReset))
	}
	return sb.String()
}
