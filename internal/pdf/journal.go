package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/dream-atlas/backend/internal/logger"
	"github.com/dream-atlas/backend/internal/store"
)

type mediaFetcher interface {
	Fetch(ctx context.Context, publicURL string) ([]byte, string, error)
	Owns(publicURL string) bool
}

// JournalRenderer lays a user's dreams out as a paginated PDF. It reads
// whatever thumbnail_url/media_url already hold and never triggers
// normalization writes.
type JournalRenderer struct {
	log     *logger.Logger
	objects mediaFetcher
}

func NewJournalRenderer(log *logger.Logger, objects mediaFetcher) *JournalRenderer {
	return &JournalRenderer{
		log:     log.With("service", "JournalRenderer"),
		objects: objects,
	}
}

func (r *JournalRenderer) Render(ctx context.Context, userName string, dreams []store.Dream, w io.Writer) error {
	if len(dreams) == 0 {
		return fmt.Errorf("no dreams to export")
	}

	doc := fpdf.New("P", "mm", "A4", "")
	tr := doc.UnicodeTranslatorFromDescriptor("")

	r.renderCover(doc, tr, userName, dreams)
	for i := range dreams {
		r.renderDream(ctx, doc, tr, &dreams[i], i)
	}

	return doc.Output(w)
}

func (r *JournalRenderer) renderCover(doc *fpdf.Fpdf, tr func(string) string, userName string, dreams []store.Dream) {
	doc.AddPage()
	doc.Ln(60)
	doc.SetFont("Helvetica", "B", 28)
	doc.CellFormat(0, 14, "Dream Atlas", "", 1, "C", false, 0, "")
	doc.SetFont("Helvetica", "", 14)
	doc.CellFormat(0, 10, tr(fmt.Sprintf("The dream journal of %s", userName)), "", 1, "C", false, 0, "")
	doc.Ln(8)
	doc.SetFont("Helvetica", "I", 11)
	doc.CellFormat(0, 8, fmt.Sprintf("%d dreams over %d days", len(dreams), totalDays(dreams)), "", 1, "C", false, 0, "")
	doc.CellFormat(0, 8, "Exported "+time.Now().Format("January 2, 2006"), "", 1, "C", false, 0, "")
}

func (r *JournalRenderer) renderDream(ctx context.Context, doc *fpdf.Fpdf, tr func(string) string, dream *store.Dream, index int) {
	doc.AddPage()

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(120, 120, 120)
	doc.CellFormat(0, 6, dream.DreamDate, "", 1, "L", false, 0, "")

	doc.SetTextColor(0, 0, 0)
	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 8, tr(dream.Title), "", "L", false)
	doc.Ln(2)

	if r.renderImage(ctx, doc, dream, index) {
		doc.Ln(4)
	}

	if dream.Description != nil && strings.TrimSpace(*dream.Description) != "" {
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 6, tr(*dream.Description), "", "L", false)
	}
}

// renderImage embeds the dream's stored still image when one exists. Videos
// rely on their cached thumbnail; external addresses are skipped since the
// export must not fetch from untrusted origins.
func (r *JournalRenderer) renderImage(ctx context.Context, doc *fpdf.Fpdf, dream *store.Dream, index int) bool {
	url := ""
	if dream.ThumbnailURL != nil && *dream.ThumbnailURL != "" {
		url = *dream.ThumbnailURL
	} else if dream.MediaURL != nil && *dream.MediaURL != "" {
		url = *dream.MediaURL
	}
	if url == "" || !r.objects.Owns(url) {
		return false
	}

	data, contentType, err := r.objects.Fetch(ctx, url)
	if err != nil {
		r.log.Warn("failed to fetch image for export, skipping", "dream_id", dream.ID, "error", err)
		return false
	}

	imageType := pdfImageType(contentType, url)
	if imageType == "" {
		return false
	}

	name := fmt.Sprintf("dream-%d", index)
	opts := fpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if doc.Err() {
		r.log.Warn("failed to register image for export, skipping", "dream_id", dream.ID, "error", doc.Error())
		doc.ClearError()
		return false
	}
	doc.ImageOptions(name, -1, -1, 120, 0, true, opts, 0, "")
	return !doc.Err()
}

func pdfImageType(contentType, url string) string {
	src := strings.ToLower(contentType + " " + url)
	switch {
	case strings.Contains(src, "png"):
		return "PNG"
	case strings.Contains(src, "gif"):
		return "GIF"
	case strings.Contains(src, "jp"):
		return "JPG"
	default:
		return ""
	}
}

func totalDays(dreams []store.Dream) int {
	minDate, maxDate := dreams[0].DreamDate, dreams[0].DreamDate
	for _, d := range dreams[1:] {
		if d.DreamDate < minDate {
			minDate = d.DreamDate
		}
		if d.DreamDate > maxDate {
			maxDate = d.DreamDate
		}
	}
	start, err1 := time.Parse("2006-01-02", minDate)
	end, err2 := time.Parse("2006-01-02", maxDate)
	if err1 != nil || err2 != nil {
		return 1
	}
	return int(end.Sub(start).Hours()/24) + 1
}
