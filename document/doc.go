// Package document extracts plain text from uploaded files so it can be
// handed to the document analyst.
//
// Text and source files are decoded as UTF-8 (with BOM handling) and fall
// back to GBK. PDF and Office Open XML documents are rendered as plain
// text. Images yield a short description with format and
// dimensions. The legacy binary Office formats (.doc, .xls) are accepted for
// upload but produce a Result with Success false.
package document
