package reviews

import (
	"context"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/jung-kurt/gofpdf"
)

// ExportPDF writes the review content as an A4 document.
func (s *Service) ExportPDF(ctx context.Context, orgID, id string, w io.Writer) (*Review, error) {
	return s.export(ctx, orgID, id, w, RenderPDF)
}

// ExportDOCX writes the review content as a Word document.
func (s *Service) ExportDOCX(ctx context.Context, orgID, id string, w io.Writer) (*Review, error) {
	return s.export(ctx, orgID, id, w, RenderDOCX)
}

func (s *Service) export(ctx context.Context, orgID, id string, w io.Writer, render func(Review, io.Writer) error) (*Review, error) {
	review, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !review.hasContent() {
		return nil, ErrNoContent
	}
	if err := render(*review, w); err != nil {
		return nil, err
	}
	return review, nil
}

type blockKind int

const (
	blockBlank blockKind = iota
	blockHeading
	blockBullet
	blockRule
	blockParagraph
)

type block struct {
	kind  blockKind
	level int
	text  string
}

// contentBlocks splits review markdown into the handful of shapes both
// exporters lay out. Inline emphasis markers are dropped.
func contentBlocks(content string) []block {
	var out []block
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			out = append(out, block{kind: blockBlank})
		case strings.HasPrefix(trimmed, "#"):
			level := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
			out = append(out, block{kind: blockHeading, level: level, text: plainText(strings.TrimSpace(trimmed[level:]))})
		case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
			out = append(out, block{kind: blockBullet, text: plainText(trimmed[2:])})
		case trimmed == "---" || trimmed == "***":
			out = append(out, block{kind: blockRule})
		default:
			out = append(out, block{kind: blockParagraph, text: plainText(trimmed)})
		}
	}
	return out
}

func reviewMeta(review Review) string {
	meta := []string{"Period: " + review.ReviewPeriod}
	if review.ReviewerName != "" {
		meta = append(meta, "Reviewer: "+review.ReviewerName)
	}
	if review.Employee != nil && review.Employee.Position != "" {
		meta = append(meta, "Role: "+review.Employee.Position)
	}
	return strings.Join(meta, "   ")
}

// RenderPDF lays out markdown headings, bullets and paragraphs.
func RenderPDF(review Review, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(review.Title), false)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(review.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 6, tr(reviewMeta(review)), "", "L", false)
	pdf.Ln(4)

	for _, b := range contentBlocks(*review.Content) {
		switch b.kind {
		case blockBlank:
			pdf.Ln(3)
		case blockHeading:
			size := 16.0 - float64(b.level)*1.5
			if size < 11 {
				size = 11
			}
			pdf.Ln(2)
			pdf.SetFont("Helvetica", "B", size)
			pdf.MultiCell(0, 7, tr(b.text), "", "L", false)
		case blockBullet:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetX(26)
			pdf.MultiCell(0, 6, tr("- "+b.text), "", "L", false)
		case blockRule:
			y := pdf.GetY() + 2
			pdf.Line(20, y, 190, y)
			pdf.Ln(4)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(b.text), "", "L", false)
		}
	}

	return pdf.Output(w)
}

// Run sizes are in half-points.
var docxHeadingSizes = map[int]string{1: "32", 2: "28", 3: "26"}

// RenderDOCX builds the same layout as RenderPDF as an A4 Word document.
// Consecutive blank lines collapse since Word spaces paragraphs itself.
func RenderDOCX(review Review, w io.Writer) error {
	doc := docx.New().WithDefaultTheme().WithA4Page()

	doc.AddParagraph().AddText(review.Title).Bold().Size("36")
	doc.AddParagraph().AddText(reviewMeta(review)).Italic().Size("20")

	blank := false
	for _, b := range contentBlocks(*review.Content) {
		if b.kind == blockBlank {
			if !blank {
				doc.AddParagraph()
			}
			blank = true
			continue
		}
		blank = false
		switch b.kind {
		case blockHeading:
			size, ok := docxHeadingSizes[b.level]
			if !ok {
				size = "24"
			}
			doc.AddParagraph().AddText(b.text).Bold().Size(size)
		case blockBullet:
			doc.AddParagraph().AddText("• " + b.text).Size("22")
		case blockRule:
			doc.AddParagraph().Justification("center").AddText("* * *").Size("22")
		default:
			doc.AddParagraph().AddText(b.text).Size("22")
		}
	}

	_, err := doc.WriteTo(w)
	return err
}

func plainText(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.ReplaceAll(s, "`", "")
}
