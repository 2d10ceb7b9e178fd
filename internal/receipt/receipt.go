// Package receipt renders fiscal receipts for closed orders.
package receipt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
	"github.com/xelth-com/eckposgo/internal/apperrors"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/store"
)

// PaperWidth is the roll width in millimetres
const PaperWidth = 80.0

const (
	margin     = 4.0
	lineHeight = 4.5
	qrSize     = 36.0
)

// ErrNotClosed is returned for orders that have not been checked out
var ErrNotClosed = errors.New("order is not closed")

// Receipt is everything printed on one slip
type Receipt struct {
	Order      models.Order
	Payments   []models.Payment
	Settings   models.Settings
	TerminalID string
}

// Load collects a closed order, its payments and the settings row
func Load(ctx context.Context, st *store.Store, orderID, terminalID string) (*Receipt, error) {
	const op = "receipt.Load"

	res := st.Orders.GetOrder(ctx, orderID)
	if !res.Success {
		return nil, res.Err()
	}
	if res.Data == nil {
		return nil, apperrors.Validation(op, fmt.Errorf("order %s not found", orderID))
	}
	if !res.Data.IsClosed() {
		return nil, apperrors.Validation(op, fmt.Errorf("%s: %w", orderID, ErrNotClosed))
	}

	var payments []models.Payment
	if err := st.DB().WithContext(ctx).Where("order_id = ?", orderID).Order("created_at, id").Find(&payments).Error; err != nil {
		return nil, apperrors.Persistence(op, err)
	}
	settings, err := st.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	return &Receipt{Order: *res.Data, Payments: payments, Settings: settings, TerminalID: terminalID}, nil
}

// QRContent is the verification string encoded on the slip:
// version|invoice label|total|hash|signature
func QRContent(o models.Order) string {
	return strings.Join([]string{"ECKPOS1", o.InvoiceLabel, o.Total.StringFixed(2), o.Hash, o.Signature}, "|")
}

// Render draws the receipt as a single-page PDF sized to its content
func Render(r Receipt) ([]byte, error) {
	const op = "receipt.Render"
	if !r.Order.IsClosed() || r.Order.Hash == "" {
		return nil, apperrors.Validation(op, ErrNotClosed)
	}

	qrPng, err := qrcode.Encode(QRContent(r.Order), qrcode.Medium, 512)
	if err != nil {
		return nil, apperrors.Validation(op, err)
	}

	lines := 12 + len(r.Order.Items) + len(r.Payments)
	height := margin*2 + float64(lines)*lineHeight + qrSize + 10

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: PaperWidth, Ht: height},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	width := PaperWidth - 2*margin
	currency := r.Settings.Currency

	// Header
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(width, lineHeight+1, tr(r.Settings.RestaurantName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	if r.Settings.Address != "" {
		pdf.CellFormat(width, lineHeight, tr(r.Settings.Address), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(width, lineHeight, r.Order.InvoiceLabel, "", 1, "C", false, 0, "")
	if r.Order.ClosedAt != nil {
		pdf.CellFormat(width, lineHeight, r.Order.ClosedAt.Format("2006-01-02 15:04:05 MST"), "", 1, "C", false, 0, "")
	}
	rule(pdf, width)

	// Items
	for _, it := range r.Order.Items {
		label := fmt.Sprintf("%d x %s", it.Quantity, it.Name)
		pdf.CellFormat(width*0.7, lineHeight, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(width*0.3, lineHeight, it.LineTotal.StringFixed(2), "", 1, "R", false, 0, "")
	}
	rule(pdf, width)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(width*0.5, lineHeight+1, "TOTAL", "", 0, "L", false, 0, "")
	pdf.CellFormat(width*0.5, lineHeight+1, r.Order.Total.StringFixed(2)+" "+currency, "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	if r.Settings.TaxRate.IsPositive() {
		mode := "excl."
		if r.Settings.TaxIncluded {
			mode = "incl."
		}
		pdf.CellFormat(width, lineHeight, fmt.Sprintf("VAT %s%% %s", r.Settings.TaxRate.Shift(2).StringFixed(2), mode), "", 1, "R", false, 0, "")
	}

	// Payments
	for _, p := range r.Payments {
		pdf.CellFormat(width*0.5, lineHeight, strings.ToUpper(p.Method), "", 0, "L", false, 0, "")
		pdf.CellFormat(width*0.5, lineHeight, p.Amount.StringFixed(2), "", 1, "R", false, 0, "")
	}
	rule(pdf, width)

	// Signature block
	imgOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("fiscal_qr", imgOpts, bytes.NewReader(qrPng))
	pdf.ImageOptions("fiscal_qr", (PaperWidth-qrSize)/2, pdf.GetY()+1, qrSize, qrSize, false, imgOpts, 0, "")
	pdf.SetY(pdf.GetY() + qrSize + 2)

	pdf.SetFont("Courier", "", 6)
	pdf.MultiCell(width, 2.8, "Hash: "+r.Order.Hash, "", "L", false)
	if r.TerminalID != "" {
		pdf.CellFormat(width, 3, "Terminal: "+r.TerminalID, "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, apperrors.Validation(op, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func rule(pdf *gofpdf.Fpdf, width float64) {
	y := pdf.GetY() + 1
	pdf.Line(margin, y, margin+width, y)
	pdf.SetY(y + 1)
}
