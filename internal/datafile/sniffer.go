// Package datafile recognizes uploaded dataset files and measures their shape.
package datafile

import (
	"bytes"
	"errors"
	"net/textproto"
	"strings"
	"unicode/utf8"
)

type FileType string

const (
	TypeCSV  FileType = "csv"
	TypeXLSX FileType = "xlsx"
	TypeJSON FileType = "json"
)

var ErrUnknownType = errors.New("unknown dataset file type")

type Result struct {
	Type FileType
	MIME string
}

// mimeAliases lists declared content types accepted for each detected type.
var mimeAliases = map[FileType][]string{
	TypeCSV:  {"text/csv", "text/plain", "application/csv", "application/vnd.ms-excel"},
	TypeXLSX: {"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/zip"},
	TypeJSON: {"application/json", "text/json", "text/plain"},
}

func DetectHead(head []byte) (Result, error) {
	if len(head) == 0 {
		return Result{}, ErrUnknownType
	}

	if isZip(head) {
		return Result{Type: TypeXLSX, MIME: mimeAliases[TypeXLSX][0]}, nil
	}
	if isJSON(head) {
		return Result{Type: TypeJSON, MIME: "application/json"}, nil
	}
	if isText(head) {
		return Result{Type: TypeCSV, MIME: "text/csv"}, nil
	}

	return Result{}, ErrUnknownType
}

// Agrees reports whether a client-declared content type is consistent with
// the detected one. Empty and generic binary declarations always agree.
func (r Result) Agrees(declared string) bool {
	if declared == "" || declared == "application/octet-stream" {
		return true
	}
	for _, alias := range mimeAliases[r.Type] {
		if strings.EqualFold(alias, declared) {
			return true
		}
	}
	return false
}

func isZip(head []byte) bool {
	return len(head) >= 4 && bytes.Equal(head[:4], []byte{'P', 'K', 0x03, 0x04})
}

func isJSON(head []byte) bool {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(head, []byte("\xef\xbb\xbf")), " \t\r\n")
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func isText(head []byte) bool {
	// the head may end mid-rune
	for i := 0; i < 3 && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	return utf8.Valid(head) && bytes.IndexByte(head, 0) < 0
}

// MimeTypeFromHeader returns the media type declared by a multipart part header.
func MimeTypeFromHeader(header textproto.MIMEHeader) string {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		return ""
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
