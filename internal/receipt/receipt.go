// Package receipt рисует PDF чек заказа. Результат зависит только от данных заказа:
// одинаковый заказ даёт побайтно одинаковый файл.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/linemk/peckup-shop/internal/domain/models"
	"github.com/shopspring/decimal"
)

var ErrIncompleteOrder = errors.New("order is missing data required for the receipt")

// размеры в мм, страница Letter
const (
	marginLeft   = 15.24
	marginTop    = 30.48
	marginRight  = 15.24
	marginBottom = 20.32
	headerHeight = 25.4

	lineH = 4.2
	pad   = 1.6

	dateLayout = "January 02, 2006 03:04 PM"
)

type rgb struct{ r, g, b int }

var (
	colorBrand     = rgb{255, 107, 53}
	colorText      = rgb{51, 51, 51}
	colorMuted     = rgb{102, 102, 102}
	colorLabelBg   = rgb{248, 249, 250}
	colorGrid      = rgb{224, 224, 224}
	colorFooter    = rgb{204, 204, 204}
	colorNoticeBg  = rgb{232, 245, 232}
	colorNoticeTxt = rgb{21, 87, 36}
	colorNoticeBox = rgb{40, 167, 69}
	colorWhite     = rgb{255, 255, 255}
)

// Branding - тексты шапки и подвала
type Branding struct {
	CompanyName  string
	Tagline      string
	SupportEmail string
}

type Renderer struct {
	brand Branding
}

func NewRenderer(brand Branding) *Renderer {
	return &Renderer{brand: brand}
}

// Render возвращает PDF. Заказ не изменяется. При ошибке байты не возвращаются.
func (r *Renderer) Render(order *models.Order) (out []byte, err error) {
	if order == nil || order.OrderNumber == "" || order.ReceiptNumber == "" {
		return nil, ErrIncompleteOrder
	}

	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = fmt.Errorf("pdf render panic: %v", p)
		}
	}()

	d := newDocument(r.brand, order)
	d.build()

	if d.pdf.Err() {
		return nil, d.pdf.Error()
	}
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename - имя файла для Content-Disposition
func Filename(order *models.Order) string {
	return "peckup_receipt_" + order.ReceiptNumber + ".pdf"
}

// PaymentNotice - текст плашки об оплате внизу чека
func PaymentNotice(order *models.Order) string {
	if order.PaymentMethod == models.PaymentMethodCOD {
		return "Payment Method: Cash on Delivery (COD) - Payment will be collected upon delivery."
	}
	return fmt.Sprintf("Payment Method: %s - Payment Status: %s",
		strings.ToUpper(order.PaymentMethod), capitalize(order.PaymentStatus))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func money(d decimal.Decimal) string {
	return "Rs " + d.StringFixed(2)
}

type document struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	brand   Branding
	order   *models.Order
	width   float64 // ширина области контента
	pageH   float64
	itemCol []float64
}

func newDocument(brand Branding, order *models.Order) *document {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetCreationDate(order.CreatedAt)
	pdf.SetModificationDate(order.CreatedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Receipt "+order.ReceiptNumber, false)
	pdf.SetAuthor(brand.CompanyName, false)
	pdf.AliasNbPages("")

	pageW, pageH := pdf.GetPageSize()
	width := pageW - marginLeft - marginRight

	d := &document{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		brand: brand,
		order: order,
		width: width,
		pageH: pageH,
		itemCol: []float64{
			width * 0.43, width * 0.15, width * 0.09, width * 0.15, width * 0.18,
		},
	}
	pdf.SetHeaderFunc(d.header)
	pdf.SetFooterFunc(d.footer)
	return d
}

func (d *document) fill(c rgb)   { d.pdf.SetFillColor(c.r, c.g, c.b) }
func (d *document) text(c rgb)   { d.pdf.SetTextColor(c.r, c.g, c.b) }
func (d *document) stroke(c rgb) { d.pdf.SetDrawColor(c.r, c.g, c.b) }

func (d *document) build() {
	d.pdf.AddPage()

	d.title()
	d.orderInfo()
	d.customerInfo()
	d.items()
	d.totals()
	d.paymentNotice()
}

// header - оранжевая плашка с названием компании на каждой странице
func (d *document) header() {
	pageW, _ := d.pdf.GetPageSize()
	d.fill(colorBrand)
	d.pdf.Rect(0, 0, pageW, headerHeight, "F")

	d.text(colorWhite)
	d.pdf.SetXY(0, 7)
	d.pdf.SetFont("Helvetica", "B", 18)
	d.pdf.CellFormat(pageW, 8, d.tr(d.brand.CompanyName), "", 2, "C", false, 0, "")
	d.pdf.SetFont("Helvetica", "", 8)
	d.pdf.CellFormat(pageW, 4.5, d.tr(d.brand.Tagline), "", 2, "C", false, 0, "")
	d.pdf.CellFormat(pageW, 4.5, d.tr(d.brand.SupportEmail), "", 2, "C", false, 0, "")

	d.pdf.SetXY(marginLeft, marginTop)
}

func (d *document) footer() {
	pageW, _ := d.pdf.GetPageSize()
	y := d.pageH - 15.24
	d.stroke(colorFooter)
	d.pdf.SetLineWidth(0.2)
	d.pdf.Line(19.05, y, pageW-19.05, y)

	d.text(colorMuted)
	d.pdf.SetFont("Helvetica", "", 7)
	d.pdf.SetXY(marginLeft, y+1.5)
	d.pdf.CellFormat(d.width, 3.5, d.tr("Thank you for shopping with Peckup!"), "", 2, "C", false, 0, "")
	d.pdf.CellFormat(d.width, 3.5, d.tr("For queries, contact: "+d.brand.SupportEmail), "", 2, "C", false, 0, "")
	d.pdf.CellFormat(d.width, 3.5, fmt.Sprintf("Page %d/{nb}", d.pdf.PageNo()), "", 0, "C", false, 0, "")
}

func (d *document) title() {
	d.text(colorText)
	d.pdf.SetFont("Helvetica", "B", 14)
	d.pdf.CellFormat(d.width, 8, "ORDER RECEIPT", "", 1, "C", false, 0, "")
	d.pdf.Ln(3)
}

func (d *document) sectionHeader(title string) {
	d.pdf.Ln(2)
	d.text(colorBrand)
	d.pdf.SetFont("Helvetica", "B", 10)
	d.pdf.CellFormat(d.width, 6, title, "", 1, "L", false, 0, "")
}

func (d *document) orderInfo() {
	o := d.order
	d.labelTable([]float64{0.18, 0.32, 0.18, 0.32}, [][4]string{
		{"Order Number:", o.OrderNumber, "Receipt Number:", o.ReceiptNumber},
		{"Order Date:", o.CreatedAt.UTC().Format(dateLayout), "Payment Method:", strings.ToUpper(o.PaymentMethod)},
	})
	d.pdf.Ln(3)
}

func (d *document) customerInfo() {
	d.sectionHeader("Customer & Shipping Information")

	name, email := "N/A", "N/A"
	if c := d.order.Customer; c != nil {
		if c.Name != "" {
			name = c.Name
		}
		if c.Email != "" {
			email = c.Email
		}
	}
	ship := d.order.ShippingAddress
	d.labelTable([]float64{0.14, 0.36, 0.14, 0.36}, [][4]string{
		{"Customer:", name, "Ship To:", ship.FullName},
		{"Email:", email, "Phone:", ship.Phone},
		{"", "", "Address:", formatAddress(ship)},
	})
	d.pdf.Ln(3)
}

func formatAddress(a models.ShippingAddress) string {
	parts := []string{a.AddressLine1}
	if a.AddressLine2 != nil && *a.AddressLine2 != "" {
		parts = append(parts, *a.AddressLine2)
	}
	parts = append(parts, a.City, a.State)
	return strings.Join(parts, ", ") + " - " + a.Pincode
}

// labelTable - таблица пар "подпись: значение", высота строки по самому длинному значению
func (d *document) labelTable(fractions []float64, rows [][4]string) {
	cols := make([]float64, len(fractions))
	for i, f := range fractions {
		cols[i] = d.width * f
	}
	d.stroke(colorGrid)
	d.pdf.SetLineWidth(0.2)

	for _, row := range rows {
		d.pdf.SetFont("Helvetica", "", 8)
		cells := make([][]string, len(row))
		maxLines := 1
		for i, txt := range row {
			cells[i] = d.split(txt, cols[i]-2*pad)
			if len(cells[i]) > maxLines {
				maxLines = len(cells[i])
			}
		}
		h := float64(maxLines)*lineH + 2*pad
		d.ensureSpace(h)

		x, y := d.pdf.GetX(), d.pdf.GetY()
		for i := range row {
			label := i%2 == 0
			style := "D"
			if label {
				d.fill(colorLabelBg)
				style = "FD"
			}
			d.pdf.Rect(x, y, cols[i], h, style)

			align := "L"
			if label {
				align = "R"
				d.pdf.SetFont("Helvetica", "B", 8)
			} else {
				d.pdf.SetFont("Helvetica", "", 8)
			}
			d.text(colorText)
			d.pdf.SetXY(x+pad, y+pad)
			for _, line := range cells[i] {
				d.pdf.CellFormat(cols[i]-2*pad, lineH, line, "", 2, align, false, 0, "")
			}
			x += cols[i]
		}
		d.pdf.SetXY(marginLeft, y+h)
	}
}

// split переводит текст в cp1252 и режет по ширине колонки текущим шрифтом.
// SplitText не годится: он считает ширину по рунам и падает на байтах cp1252.
func (d *document) split(txt string, w float64) []string {
	if txt == "" {
		return []string{""}
	}
	raw := d.pdf.SplitLines([]byte(d.tr(txt)), w)
	if len(raw) == 0 {
		return []string{""}
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines
}

// ensureSpace переносит на новую страницу, если блок высотой h не влезает
func (d *document) ensureSpace(h float64) bool {
	if d.pdf.GetY()+h <= d.pageH-marginBottom {
		return false
	}
	d.pdf.AddPage()
	return true
}

func (d *document) itemsHeader() {
	d.fill(colorBrand)
	d.stroke(colorGrid)
	d.text(colorWhite)
	d.pdf.SetFont("Helvetica", "B", 9)
	for i, title := range []string{"Item", "SKU", "Qty", "Price", "Total"} {
		ln := 0
		if i == len(d.itemCol)-1 {
			ln = 1
		}
		d.pdf.CellFormat(d.itemCol[i], 7, title, "1", ln, "C", true, 0, "")
	}
	// толстая линия под шапкой
	d.stroke(colorBrand)
	d.pdf.SetLineWidth(0.7)
	y := d.pdf.GetY()
	d.pdf.Line(marginLeft, y, marginLeft+sum(d.itemCol), y)
	d.pdf.SetLineWidth(0.2)
	d.stroke(colorGrid)
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func itemDetails(item models.OrderItem) string {
	var details []string
	if item.Size != nil && *item.Size != "" {
		details = append(details, "Size: "+*item.Size)
	}
	if item.Color != nil && *item.Color != "" {
		details = append(details, "Color: "+*item.Color)
	}
	return strings.Join(details, ", ")
}

func (d *document) items() {
	d.sectionHeader("Order Items")
	d.ensureSpace(7 + lineH + 2*pad)
	d.itemsHeader()

	for i, item := range d.order.Items {
		d.itemRow(item, i%2 == 1)
	}
	d.pdf.Ln(3)
}

func (d *document) itemRow(item models.OrderItem, striped bool) {
	nameW := d.itemCol[0] - 2*pad
	d.pdf.SetFont("Helvetica", "", 8)
	name := item.ProductName
	if name == "" {
		name = "Unknown Product"
	}
	nameLines := d.split(name, nameW)
	detail := itemDetails(item)
	var detailLines []string
	if detail != "" {
		d.pdf.SetFont("Helvetica", "", 7)
		detailLines = d.split(detail, nameW)
	}
	h := float64(len(nameLines)+len(detailLines))*lineH + 2*pad

	if d.ensureSpace(h) {
		d.itemsHeader()
	}

	x, y := d.pdf.GetX(), d.pdf.GetY()
	style := "D"
	if striped {
		d.fill(colorLabelBg)
		style = "FD"
	}
	cx := x
	for _, w := range d.itemCol {
		d.pdf.Rect(cx, y, w, h, style)
		cx += w
	}

	d.text(colorText)
	d.pdf.SetFont("Helvetica", "", 8)
	d.pdf.SetXY(x+pad, y+pad)
	for _, line := range nameLines {
		d.pdf.CellFormat(nameW, lineH, line, "", 2, "L", false, 0, "")
	}
	if len(detailLines) > 0 {
		d.text(colorMuted)
		d.pdf.SetFont("Helvetica", "", 7)
		for _, line := range detailLines {
			d.pdf.CellFormat(nameW, lineH, line, "", 2, "L", false, 0, "")
		}
		d.text(colorText)
		d.pdf.SetFont("Helvetica", "", 8)
	}

	sku := item.ProductSKU
	if sku == "" {
		sku = "N/A"
	}
	cells := []struct {
		txt   string
		align string
	}{
		{d.tr(sku), "C"},
		{fmt.Sprintf("%d", item.Quantity), "C"},
		{money(item.Price), "R"},
		{money(item.LineTotal()), "R"},
	}
	cx = x + d.itemCol[0]
	for i, c := range cells {
		w := d.itemCol[i+1]
		d.pdf.SetXY(cx+pad, y)
		d.pdf.CellFormat(w-2*pad, h, c.txt, "", 0, c.align, false, 0, "")
		cx += w
	}
	d.pdf.SetXY(marginLeft, y+h)
}

// totals - подытог пересчитывается по позициям, доставка бесплатная
func (d *document) totals() {
	subtotal := d.order.ItemsSubtotal()
	shipping := decimal.Zero
	total := subtotal.Add(shipping)

	labelW, valueW := d.width*0.78, d.width*0.22
	d.ensureSpace(4*7 + 4)

	d.text(colorMuted)
	d.pdf.SetFont("Helvetica", "", 10)
	d.pdf.CellFormat(labelW, 7, "Subtotal:", "", 0, "R", false, 0, "")
	d.pdf.CellFormat(valueW, 7, money(subtotal), "", 1, "R", false, 0, "")
	d.pdf.CellFormat(labelW, 7, "Shipping & Handling:", "", 0, "R", false, 0, "")
	d.pdf.CellFormat(valueW, 7, money(shipping), "", 1, "R", false, 0, "")
	d.pdf.Ln(3)

	y := d.pdf.GetY()
	d.stroke(colorBrand)
	d.pdf.SetLineWidth(0.7)
	d.pdf.Line(marginLeft, y, marginLeft+d.width, y)
	d.pdf.SetLineWidth(0.2)

	d.text(colorBrand)
	d.pdf.SetFont("Helvetica", "B", 12)
	d.pdf.CellFormat(labelW, 8, "Total Amount:", "", 0, "R", false, 0, "")
	d.pdf.CellFormat(valueW, 8, money(total), "", 1, "R", false, 0, "")
	d.pdf.Ln(4)
}

func (d *document) paymentNotice() {
	d.pdf.SetFont("Helvetica", "", 8)
	lines := d.split(PaymentNotice(d.order), d.width-2*3)
	h := float64(len(lines))*lineH + 2*pad
	d.ensureSpace(h)

	x, y := d.pdf.GetX(), d.pdf.GetY()
	d.fill(colorNoticeBg)
	d.stroke(colorNoticeBox)
	d.pdf.SetLineWidth(0.5)
	d.pdf.Rect(x, y, d.width, h, "FD")
	d.pdf.SetLineWidth(0.2)

	d.text(colorNoticeTxt)
	d.pdf.SetXY(x+3, y+pad)
	for _, line := range lines {
		d.pdf.CellFormat(d.width-2*3, lineH, line, "", 2, "L", false, 0, "")
	}
	d.pdf.SetXY(marginLeft, y+h)
}
