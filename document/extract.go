package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/agentrelay/logging"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultMaxBytes is the default upload size limit (10 MiB).
const DefaultMaxBytes = 10 << 20

// Result is the outcome of one extraction. Failures are reported in-band
// with Success false and a human readable Error; Extract itself never
// returns an error value.
type Result struct {
	Success  bool           `json:"success"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Error    string         `json:"error,omitempty"`
}

func failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...), Metadata: map[string]any{}}
}

// Options configures an Extractor.
type Options struct {
	// MaxBytes rejects larger inputs. Defaults to DefaultMaxBytes.
	MaxBytes int64
	// IncludeImageData attaches a base64 data URI to image metadata.
	IncludeImageData bool
	Logger           logging.Logger
}

// Extractor turns uploaded files into plain text for the analyst.
type Extractor struct {
	maxBytes         int64
	includeImageData bool
	logger           logging.Logger
}

// NewExtractor creates an extractor with a 10 MiB limit.
func NewExtractor(optFns ...func(o *Options)) *Extractor {
	opts := Options{MaxBytes: DefaultMaxBytes}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	return &Extractor{
		maxBytes:         opts.MaxBytes,
		includeImageData: opts.IncludeImageData,
		logger:           logging.OrNoOp(opts.Logger),
	}
}

// MaxBytes returns the configured size limit.
func (e *Extractor) MaxBytes() int64 { return e.maxBytes }

// Extract extracts the text of the file called name.
func (e *Extractor) Extract(ctx context.Context, name string, data []byte) Result {
	if err := ctx.Err(); err != nil {
		return failure("文件处理失败: %v", err)
	}
	if int64(len(data)) > e.maxBytes {
		return failure("文件大小超过限制 (%d MB)", e.maxBytes>>20)
	}

	ext := strings.ToLower(filepath.Ext(name))
	typ := TypeOf(name)

	var res Result
	switch {
	case typ == TypeText || typ == TypeCode:
		res = extractText(data)
	case ext == ".pdf":
		res = extractPDF(data)
	case ext == ".docx":
		res = extractDOCX(data)
	case ext == ".xlsx":
		res = extractXLSX(data)
	case typ == TypeImage:
		res = e.extractImage(data)
	case typ == TypeUnknown:
		res = failure("不支持的文件类型: %s", typ)
	default:
		res = failure("暂不支持解析 %s 格式", ext)
	}

	if !res.Success {
		e.logger.Warn("document.extract.failed", "name", name, "type", string(typ), "error", res.Error)
	} else {
		e.logger.Debug("document.extract.done", "name", name, "type", string(typ), "chars", utf8.RuneCountInString(res.Content))
	}
	return res
}

func extractText(data []byte) Result {
	content, encoding, err := decodeText(data)
	if err != nil {
		return failure("无法读取文件编码")
	}
	meta := map[string]any{
		"type":  "text",
		"size":  utf8.RuneCountInString(content),
		"lines": strings.Count(content, "\n") + 1,
	}
	if encoding != "utf-8" {
		meta["encoding"] = encoding
	}
	return Result{Success: true, Content: content, Metadata: meta}
}

// decodeText decodes data as UTF-8, honouring a UTF-8 or UTF-16 byte order
// mark, and falls back to GBK for legacy Chinese text files.
func decodeText(data []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}),
		bytes.HasPrefix(data, []byte{0xFF, 0xFE}),
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", "", err
		}
		encoding := "utf-8"
		if data[0] != 0xEF {
			encoding = "utf-16"
		}
		return string(out), encoding, nil
	case utf8.Valid(data):
		return string(data), "utf-8", nil
	}

	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", err
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", "", fmt.Errorf("undecodable text")
	}
	return string(out), "gbk", nil
}

func (e *Extractor) extractImage(data []byte) Result {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return failure("图片处理失败: %v", err)
	}

	format = strings.ToUpper(format)
	mode := colorMode(cfg.ColorModel)
	meta := map[string]any{
		"type":   "image",
		"format": format,
		"width":  cfg.Width,
		"height": cfg.Height,
		"mode":   mode,
	}
	if e.includeImageData {
		meta["base64"] = "data:image/" + strings.ToLower(format) + ";base64," + base64.StdEncoding.EncodeToString(data)
	}

	return Result{
		Success:  true,
		Content:  fmt.Sprintf("这是一张图片文件，格式：%s，尺寸：%dx%d像素，颜色模式：%s", format, cfg.Width, cfg.Height, mode),
		Metadata: meta,
	}
}

func colorMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.YCbCrModel:
		return "RGB"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	}
	return "unknown"
}
