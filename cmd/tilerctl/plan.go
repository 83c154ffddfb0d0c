package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/shenjiangwei/tilerAllocator/reserve"
	"github.com/shenjiangwei/tilerAllocator/rpc"
	"github.com/spf13/cobra"
)

var planOpts struct {
	width    int
	height   int
	align    int
	offset   int
	count    int
	separate bool
	server   string
}

func init() {
	cmd := newPlanCmd()
	cmd.Flags().IntVar(&planOpts.width, "width", 256, "Buffer width in pixels")
	cmd.Flags().IntVar(&planOpts.height, "height", 128, "Buffer height in pixels")
	cmd.Flags().IntVar(&planOpts.align, "align", 256, "Alignment in bytes")
	cmd.Flags().IntVar(&planOpts.offset, "offset", 0, "Offset from the alignment in bytes")
	cmd.Flags().IntVarP(&planOpts.count, "count", "n", 1, "Number of buffers")
	cmd.Flags().BoolVar(&planOpts.separate, "separate", false, "Do not consider co-located packing")
	cmd.Flags().StringVar(&planOpts.server, "server", "", "Ask a running server instead of a local container")
	rootCmd.AddCommand(cmd)
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show how a batch of NV12 buffers would be packed",
		Long: `The plan command shows the separate and the co-located packing of the
first reservation round for a batch of NV12 buffers, their ranks and which
one is committed first. Nothing is reserved.

Example:
  tilerctl plan --width 256 --height 128 --align 256 --offset 128 -n 9
  tilerctl plan -n 4 --separate
  tilerctl plan -n 9 --server localhost:1234`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.OutOrStdout())
		},
	}
}

func runPlan(w io.Writer) error {
	req := reserve.Request{
		Count:    planOpts.count,
		Width:    planOpts.width,
		Height:   planOpts.height,
		Align:    planOpts.align,
		Offset:   planOpts.offset,
		Together: !planOpts.separate,
	}

	var p reserve.Plan
	if planOpts.server != "" {
		client, err := rpc.NewClient(0, planOpts.server)
		if err != nil {
			return err
		}
		defer client.Close()
		if p, err = client.Plan(req); err != nil {
			return err
		}
	} else {
		_, r, err := newReserver()
		if err != nil {
			return err
		}
		if p, err = r.PlanNV12(req); err != nil {
			return err
		}
	}

	fmt.Fprint(w, renderPlan(p, p.Block.Band))
	return nil
}

// renderPlan formats a plan, wrapping the packing map every lineWidth slots
func renderPlan(p reserve.Plan, lineWidth int) string {
	var sb strings.Builder
	line := func(label, format string, args ...interface{}) {
		sb.WriteString(render(labelStyle, fmt.Sprintf("%-10s", label)))
		sb.WriteString(fmt.Sprintf(format, args...))
		sb.WriteByte('\n')
	}

	b := p.Block
	line("Block", "%dx%d slots, band %d, align %d, offset %d", b.Width, b.Height, b.Band, b.Align, b.Offset)
	if p.SeparateCount > 0 {
		line("Separate", "%d of %d in %d slots, rank %d", p.SeparateCount, p.Need, p.SeparateArea, p.SeparateRank)
	} else {
		line("Separate", "none")
	}
	if t := p.Together; t.Count() > 0 {
		line("Together", "%s, %d of %d in %d slots, rank %d", t.Pattern, t.Count(), p.Need, t.Area, p.TogetherRank)
	} else {
		line("Together", "none")
	}

	decision := "nothing fits"
	switch {
	case p.Separate && p.Together.Count() > 0:
		decision = "separate, co-located if that fails"
	case p.Separate:
		decision = "separate"
	case p.Together.Count() > 0:
		decision = "co-located"
	}
	line("Decision", "%s", render(decisionStyle, decision))

	if p.Together.Count() > 0 {
		sb.WriteString(render(mapStyle, colorMap(packingMap(p.Together, b.Width), lineWidth)))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// packingMap draws one row of a co-located area: luma blocks as upper case
// letters, the matching chroma blocks in lower case and free slots as dots
func packingMap(p reserve.Packing, w int) string {
	row := []byte(strings.Repeat(".", p.Area))
	for i, pr := range p.Pairs {
		luma, chroma := byte('#'), byte('#')
		if i < 26 {
			luma, chroma = byte('A'+i), byte('a'+i)
		}
		for x := pr.Luma; x < pr.Luma+w && x < len(row); x++ {
			row[x] = luma
		}
		for x := pr.Chroma; x < pr.Chroma+(w+1)/2 && x < len(row); x++ {
			row[x] = chroma
		}
	}
	return string(row)
}

func colorMap(row string, lineWidth int) string {
	if lineWidth <= 0 {
		lineWidth = len(row)
	}
	var lines []string
	for start := 0; start < len(row); start += lineWidth {
		end := min(start+lineWidth, len(row))
		var sb strings.Builder
		for _, ch := range row[start:end] {
			switch {
			case ch >= 'A' && ch <= 'Z':
				sb.WriteString(render(lumaStyle, string(ch)))
			case ch == '.':
				sb.WriteString(render(freeStyle, string(ch)))
			default:
				sb.WriteString(render(chromaStyle, string(ch)))
			}
		}
		lines = append(lines, sb.String())
	}
	return strings.Join(lines, "\n")
}
