package service

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"

	apperrors "artifact-stamper/pkg/errors"

	"github.com/jung-kurt/gofpdf"
	"github.com/phpdave11/gofpdi"
)

// importedPage is one source page registered as a form XObject in the
// output document, with the size it is displayed at.
type importedPage struct {
	template string
	width    float64
	height   float64
}

// formBoxPattern matches the bounding box line of a form XObject header and
// the matrix line that follows it when the form is offset or rotated.
var formBoxPattern = regexp.MustCompile(`/BBox \[[^\]]*\]\n(/Matrix \[([-0-9.]+) ([-0-9.]+) [^\]]*\]\n)?`)

// importPages registers every page of src as a template in pdf.
//
// gofpdi reads the page box of page 1 for every template it creates, so each
// form's /BBox and /Matrix are rebuilt from the page's own MediaBox before
// the objects are handed to gofpdf. All pages are imported before the form
// objects are written so each template is emitted exactly once.
func importPages(pdf *gofpdf.Fpdf, src []byte, pageCount int) ([]importedPage, error) {
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(src))
	importer.SetSourceStream(&rs)

	boxes := importer.GetPageSizes()
	ids := make([]int, pageCount)
	for page := 1; page <= pageCount; page++ {
		ids[page-1] = importer.ImportPage(page, "/MediaBox")
	}

	names := importer.PutFormXobjectsUnordered()
	objects := importer.GetImportedObjectsUnordered()
	positions := importer.GetImportedObjHashPos()

	pages := make([]importedPage, pageCount)
	for page := 1; page <= pageCount; page++ {
		box, ok := boxes[page]["/MediaBox"]
		if !ok || box["w"] <= 0 || box["h"] <= 0 {
			return nil, apperrors.NewMalformedDocumentError(fmt.Sprintf("page %d has no media box", page), nil)
		}

		name, _, _, _, _ := importer.UseTemplate(ids[page-1], 0, 0, box["w"], box["h"])
		hash, ok := names[name]
		if !ok {
			return nil, apperrors.NewMalformedDocumentError(fmt.Sprintf("page %d was not imported", page), nil)
		}

		obj, pos, rotated, err := fitFormToBox(objects[hash], positions[hash], box)
		if err != nil {
			return nil, apperrors.NewMalformedDocumentError(fmt.Sprintf("page %d", page), err)
		}
		objects[hash] = obj
		positions[hash] = pos

		w, h := box["w"], box["h"]
		if rotated {
			w, h = h, w
		}
		pages[page-1] = importedPage{template: name, width: w, height: h}
	}

	pdf.ImportTemplates(names)
	pdf.ImportObjects(objects)
	pdf.ImportObjPos(positions)
	return pages, nil
}

// placePage adds a page sized to p and draws its template at full size.
func placePage(pdf *gofpdf.Fpdf, p importedPage) {
	// "P" keeps Wd/Ht as given; landscape pages already have Wd > Ht
	pdf.AddPageFormat("P", gofpdf.SizeType{Wd: p.width, Ht: p.height})
	pdf.UseImportedTemplate(p.template, 1, 1, 0, -p.height)
}

// fitFormToBox rewrites the /BBox and /Matrix header of a form XObject for
// box and shifts the recorded object-reference positions past the header by
// the change in length. It reports whether the page is rotated by a quarter
// turn, in which case its displayed width and height are swapped.
func fitFormToBox(obj []byte, pos map[int]string, box map[string]float64) ([]byte, map[int]string, bool, error) {
	loc := formBoxPattern.FindSubmatchIndex(obj)
	if loc == nil {
		return nil, nil, false, fmt.Errorf("form has no bounding box")
	}

	// c and s are the cosine and sine of the page rotation
	c, s := 1.0, 0.0
	if loc[4] >= 0 {
		var err error
		if c, err = strconv.ParseFloat(string(obj[loc[4]:loc[5]]), 64); err != nil {
			return nil, nil, false, fmt.Errorf("form matrix: %w", err)
		}
		if s, err = strconv.ParseFloat(string(obj[loc[6]:loc[7]]), 64); err != nil {
			return nil, nil, false, fmt.Errorf("form matrix: %w", err)
		}
	}

	llx, lly, urx, ury := box["llx"], box["lly"], box["urx"], box["ury"]
	tx, ty := -llx, -lly
	rotated := false
	switch {
	case s < -0.5:
		tx, ty, rotated = -lly, urx, true
	case c < -0.5:
		tx, ty = urx, ury
	case s > 0.5:
		tx, ty, rotated = ury, -llx, true
	}

	header := fmt.Sprintf("/BBox [%.2f %.2f %.2f %.2f]\n", llx, lly, urx, ury)
	if c != 1 || s != 0 || tx != 0 || ty != 0 {
		header += fmt.Sprintf("/Matrix [%.5f %.5f %.5f %.5f %.5f %.5f]\n", c, s, -s, c, tx, ty)
	}

	start, end := loc[0], loc[1]
	delta := len(header) - (end - start)

	out := make([]byte, 0, len(obj)+delta)
	out = append(out, obj[:start]...)
	out = append(out, header...)
	out = append(out, obj[end:]...)

	shifted := make(map[int]string, len(pos))
	for p, hash := range pos {
		if p >= end {
			p += delta
		}
		shifted[p] = hash
	}
	return out, shifted, rotated, nil
}

