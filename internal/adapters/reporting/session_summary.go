package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/corvid-labs/harvestd/internal/adapters/storage"
	"github.com/corvid-labs/harvestd/internal/core/domain"
)

// SessionSummary bundles the data a session-summary PDF report covers.
type SessionSummary struct {
	GeneratedAt time.Time
	Mood        domain.MoodSnapshot
	Epochs      []storage.EpochEventModel
	Handshakes  []storage.HandshakeCaptureModel
}

// SessionReporter renders a SessionSummary to PDF, following the teacher's
// PDFExporter section-by-section layout.
type SessionReporter struct{}

// NewSessionReporter constructs a SessionReporter.
func NewSessionReporter() *SessionReporter {
	return &SessionReporter{}
}

// Export renders summary to a complete PDF document.
func (r *SessionReporter) Export(summary SessionSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	r.addHeader(pdf, summary)
	r.addMood(pdf, summary)
	r.addEpochTable(pdf, summary)
	r.addHandshakeTable(pdf, summary)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("reporting: generate session summary PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *SessionReporter) addHeader(pdf *gofpdf.Fpdf, s SessionSummary) {
	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 12, "Session Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", s.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *SessionReporter) addMood(pdf *gofpdf.Fpdf, s SessionSummary) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, fmt.Sprintf("Mood: %s (epoch %d, since %d)", s.Mood.Mood, s.Mood.EpochNum, s.Mood.SinceEpoch), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func (r *SessionReporter) addEpochTable(pdf *gofpdf.Fpdf, s SessionSummary) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, "Recent Epochs", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, e := range s.Epochs {
		line := fmt.Sprintf("#%d  mood=%s  deauths=%d  shakes=%d  hops=%d  missed=%d  dwell=%.1fs",
			e.EpochNum, e.Mood, e.NumDeauths, e.NumShakes, e.NumHops, e.NumMissed, e.DwellTime)
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *SessionReporter) addHandshakeTable(pdf *gofpdf.Fpdf, s SessionSummary) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, "Captured Handshakes", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, h := range s.Handshakes {
		line := fmt.Sprintf("%s (%s) - %s", h.SSID, h.BSSID, h.Quality)
		pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
	}
}
