package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	defaultDocumentPart = "word/document.xml"
	contentTypesPart    = "[Content_Types].xml"
	mainDocumentType    = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// extractDOCX reads the main document part of a .docx package. Paragraphs become lines;
// tabs and breaks inside runs are kept.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	part := defaultDocumentPart
	if ct, ok := files[contentTypesPart]; ok {
		if name := mainPart(ct); name != "" {
			part = name
		}
	}
	f, ok := files[part]
	if !ok {
		return "", fmt.Errorf("open DOCX: %s not found", part)
	}
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}
	defer rc.Close()
	return paragraphs(rc)
}

func mainPart(f *zip.File) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	var ct contentTypes
	if err := xml.NewDecoder(rc).Decode(&ct); err != nil {
		return ""
	}
	for _, o := range ct.Overrides {
		if o.ContentType == mainDocumentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return ""
}

// paragraphs walks WordprocessingML and collects w:t text, one line per w:p.
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		lines  []string
		line   strings.Builder
		inText bool
	)
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse DOCX: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br", "cr":
				line.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()
	return strings.Join(lines, "\n"), nil
}
