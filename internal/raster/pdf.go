package raster

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// ExportPDF writes a single-page PDF sized widthPx x heightPx points that
// holds the rendered PNG. Embedding the raster keeps eraser strokes exact.
func ExportPDF(w io.Writer, pngData []byte, widthPx, heightPx int) error {
	if len(pngData) == 0 {
		return fmt.Errorf("no image data to export")
	}
	width, height := float64(widthPx), float64(heightPx)

	orientation := "P"
	if width > height {
		orientation = "L"
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("sketch", opt, bytes.NewReader(pngData))
	pdf.ImageOptions("sketch", 0, 0, width, height, false, opt, 0, "")

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}
