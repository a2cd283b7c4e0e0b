package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/ui/output"
	"go.trai.ch/splitup/internal/ui/style"
)

type palette struct {
	r *lipgloss.Renderer
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(output.New(w))
	r.SetColorProfile(output.ColorProfile())
	return palette{r: r}
}

func (p palette) color(c lipgloss.Color, s string) string {
	return p.r.NewStyle().Foreground(c).Render(s)
}

func (p palette) bold(s string) string {
	return p.r.NewStyle().Bold(true).Render(s)
}

func (p palette) dim(s string) string {
	return p.color(style.Slate, s)
}

func renderExecution(w io.Writer, exec *domain.Execution) {
	p := newPalette(w)
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s  %s %s  %s %s  %s\n",
		p.bold("execution"), exec.ID,
		p.dim("model"), exec.ModelID,
		p.dim("requestor"), exec.Requestor,
		p.color(style.ExecutionColor(exec.Status), exec.Status.String()))
	fmt.Fprintf(&b, "  %s %s  %s %d\n", p.dim("input"), exec.InputLocation, p.dim("max fee"), exec.MaxFee)

	for i := range exec.Tasks {
		rec := &exec.Tasks[i]
		icon, color := style.TaskIcon(rec.State)
		subject := fmt.Sprintf("task %s", rec.TaskID)
		if rec.IsShadow() {
			subject = fmt.Sprintf("verifies #%d", *rec.TaskToVerify)
		}
		line := fmt.Sprintf("  %s %-4s %-12s %s",
			p.color(color, icon), fmt.Sprintf("#%d", rec.Index), subject, p.color(color, rec.State.String()))
		if rec.AssignedNode != "" {
			line += "  " + p.dim(style.Arrow) + " " + rec.AssignedNode.String()
		}
		if len(rec.OutputLocations) > 0 {
			line += "  " + p.dim("out") + " " + strings.Join(rec.OutputLocations, ",")
		}
		if rec.FailureReason != "" {
			line += "  " + p.color(style.Red, rec.FailureReason)
		}
		b.WriteString(line + "\n")
	}
	_, _ = io.WriteString(w, b.String())
}

func renderTask(w io.Writer, task *domain.Task) {
	p := newPalette(w)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s %s\n", p.bold("task"), task.ID, p.dim("model"), task.ModelID)
	if task.Description != "" {
		fmt.Fprintf(&b, "  %s\n", task.Description)
	}
	fmt.Fprintf(&b, "  %s %s\n", p.dim("weights"), task.WeightLocation)
	writeTensors(&b, p, "in ", task.Inputs)
	writeTensors(&b, p, "out", task.Outputs)
	_, _ = io.WriteString(w, b.String())
}

func writeTensors(b *strings.Builder, p palette, label string, specs []domain.TensorSpec) {
	for i, t := range specs {
		dims := make([]string, len(t.Shape))
		for j, d := range t.Shape {
			dims[j] = string(d)
		}
		fmt.Fprintf(b, "  %s %d  dtype %d  [%s]  %s\n", p.dim(label), i, t.DType, strings.Join(dims, "x"), t.Location)
	}
}

func renderModel(w io.Writer, model *domain.Model) {
	p := newPalette(w)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n", p.bold("model"), model.ID, model.Name)
	ids := make([]string, len(model.TaskIDs))
	for i, id := range model.TaskIDs {
		ids[i] = id.String()
	}
	fmt.Fprintf(&b, "  %s %s\n", p.dim("tasks"), strings.Join(ids, " "))
	for _, conn := range model.Connections {
		fmt.Fprintf(&b, "  %s %s %s\n", endpoint("input", conn.SourceTaskID, conn.SourceOutputIndex),
			p.dim(style.Arrow), endpoint("output", conn.DestTaskID, conn.DestInputIndex))
	}
	_, _ = io.WriteString(w, b.String())
}

func endpoint(boundary string, id domain.TaskID, slot uint8) string {
	if id.IsZero() {
		return "model " + boundary
	}
	return fmt.Sprintf("%s[%d]", id, slot)
}

func renderNode(w io.Writer, node *domain.Node, balance *uint64) {
	p := newPalette(w)
	var b strings.Builder
	ids := make([]string, len(node.Specializations))
	for i, id := range node.Specializations {
		ids[i] = id.String()
	}
	fmt.Fprintf(&b, "%s %s  %s %d  %s %s\n", p.bold("node"), node.Owner,
		p.dim("stake"), node.Stake, p.dim("tasks"), strings.Join(ids, " "))
	if balance != nil {
		fmt.Fprintf(&b, "  %s %d\n", p.dim("balance"), *balance)
	}
	_, _ = io.WriteString(w, b.String())
}

func renderEvent(w io.Writer, e domain.Event) {
	p := newPalette(w)
	fields := []string{p.color(style.Iris, string(e.Kind))}
	add := func(k, v string) {
		fields = append(fields, p.dim(k+"=")+v)
	}
	if e.ExecutionID != 0 {
		add("exec", e.ExecutionID.String())
	}
	if e.ModelID != 0 {
		add("model", e.ModelID.String())
	}
	if e.TaskID != 0 {
		add("task", e.TaskID.String())
	}
	if e.TaskIndex != nil {
		add("index", fmt.Sprint(*e.TaskIndex))
	}
	if e.Node != "" {
		add("node", e.Node.String())
	}
	if e.Requestor != "" {
		add("requestor", e.Requestor.String())
	}
	if e.Amount != 0 {
		add("amount", fmt.Sprint(e.Amount))
	}
	if len(e.Outputs) > 0 {
		add("outputs", strings.Join(e.Outputs, ","))
	}
	if e.Match != nil {
		add("match", fmt.Sprint(*e.Match))
	}
	if e.Reason != "" {
		add("reason", e.Reason)
	}
	_, _ = fmt.Fprintln(w, strings.Join(fields, " "))
}
