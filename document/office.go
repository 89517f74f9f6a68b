package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// extractPDF renders the text of every page under a page heading. Pages
// without text are skipped; a page that fails to decode is reported inline
// and the remaining pages are still read.
func extractPDF(data []byte) (res Result) {
	// the reader panics on malformed object streams
	defer func() {
		if r := recover(); r != nil {
			res = failure("PDF处理失败: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failure("PDF处理失败: %v", err)
	}

	pages := r.NumPage()
	blocks := make([]string, 0, pages)
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			blocks = append(blocks, fmt.Sprintf("=== 第 %d 页 ===\n[页面解析失败: %v]", i, err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("=== 第 %d 页 ===\n%s", i, text))
	}

	content := strings.Join(blocks, "\n\n")
	return Result{
		Success: true,
		Content: content,
		Metadata: map[string]any{
			"type":  "pdf",
			"pages": pages,
			"size":  utf8.RuneCountInString(content),
		},
	}
}

// extractDOCX returns the non-empty paragraphs of the main document part.
func extractDOCX(data []byte) Result {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failure("Word文档处理失败: %v", err)
	}
	defer doc.Close()

	paragraphs, err := paragraphsOf(doc.Editable().GetContent())
	if err != nil {
		return failure("Word文档处理失败: %v", err)
	}

	content := strings.Join(paragraphs, "\n\n")
	return Result{
		Success: true,
		Content: content,
		Metadata: map[string]any{
			"type":       "docx",
			"paragraphs": len(paragraphs),
			"size":       utf8.RuneCountInString(content),
		},
	}
}

// paragraphsOf walks WordprocessingML and collects the text runs of each
// w:p element. Tabs and breaks inside a paragraph are kept.
func paragraphsOf(documentXML string) ([]string, error) {
	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	dec := xml.NewDecoder(strings.NewReader(documentXML))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return paragraphs, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if strings.TrimSpace(current.String()) != "" {
					paragraphs = append(paragraphs, current.String())
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
}

// extractXLSX renders every sheet as tab separated rows under a sheet
// heading. Empty rows are skipped.
func extractXLSX(data []byte) Result {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return failure("Excel文件处理失败: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	sections := make([]string, 0, len(sheets))
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return failure("Excel文件处理失败: %v", err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			if strings.TrimSpace(strings.Join(row, "")) == "" {
				continue
			}
			lines = append(lines, strings.Join(row, "\t"))
		}
		if len(lines) > 0 {
			sections = append(sections, "=== 工作表: "+name+" ===\n"+strings.Join(lines, "\n"))
		}
	}

	content := strings.Join(sections, "\n\n")
	return Result{
		Success: true,
		Content: content,
		Metadata: map[string]any{
			"type":   "excel",
			"sheets": len(sheets),
			"size":   utf8.RuneCountInString(content),
		},
	}
}
