package datafile

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyFile = errors.New("empty dataset file")

// Shape is the record and column count of a dataset file. Header rows are
// not counted as records.
type Shape struct {
	Records int64
	Columns int64
}

func Inspect(fileType FileType, data []byte) (Shape, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Shape{}, ErrEmptyFile
	}

	switch fileType {
	case TypeCSV:
		return inspectCSV(data)
	case TypeXLSX:
		return inspectXLSX(data)
	case TypeJSON:
		return inspectJSON(data)
	}
	return Shape{}, ErrUnknownType
}

func inspectCSV(data []byte) (Shape, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	var shape Shape
	header := true
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Shape{}, fmt.Errorf("read csv: %w", err)
		}
		if header {
			shape.Columns = int64(len(record))
			header = false
			continue
		}
		shape.Records++
	}
	return shape, nil
}

func inspectXLSX(data []byte) (Shape, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Shape{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Shape{}, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Shape{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return Shape{}, nil
	}

	shape := Shape{Columns: int64(len(rows[0]))}
	for _, row := range rows[1:] {
		if len(row) > 0 {
			shape.Records++
		}
	}
	return shape, nil
}

// inspectJSON expects a top-level array of objects; columns is the number of
// distinct keys across all objects.
func inspectJSON(data []byte) (Shape, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return Shape{}, fmt.Errorf("decode json array: %w", err)
	}

	keys := make(map[string]struct{})
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for k := range obj {
			keys[k] = struct{}{}
		}
	}
	return Shape{Records: int64(len(items)), Columns: int64(len(keys))}, nil
}
