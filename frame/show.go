// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// truncateAt is the cell width past which Show cuts values.
const truncateAt = 20

// Show writes the first n rows as an ASCII table.
func (f *Frame) Show(w io.Writer, n int) error {
	names := make([]string, f.schema.NumFields())
	for i, fd := range f.schema.Fields() {
		names[i] = fd.Name
	}

	var cells [][]string
	for _, rec := range f.records {
		for r := 0; r < int(rec.NumRows()) && len(cells) < n; r++ {
			row := make([]string, len(names))
			for c := range names {
				col := rec.Column(c)
				if col.IsNull(r) {
					row[c] = "null"
				} else {
					row[c] = truncate(col.ValueStr(r))
				}
			}
			cells = append(cells, row)
		}
	}

	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = len(name)
	}
	for _, row := range cells {
		for i, v := range row {
			widths[i] = max(widths[i], len(v))
		}
	}

	var sb strings.Builder
	sep := separator(widths)
	sb.WriteString(sep)
	writeRow(&sb, names, widths)
	sb.WriteString(sep)
	for _, row := range cells {
		writeRow(&sb, row, widths)
	}
	sb.WriteString(sep)
	if int64(len(cells)) < f.numRows {
		fmt.Fprintf(&sb, "only showing top %d rows\n", len(cells))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func truncate(s string) string {
	if len(s) <= truncateAt {
		return s
	}
	return s[:truncateAt-3] + "..."
}

func separator(widths []int) string {
	var sb strings.Builder
	sb.WriteByte('+')
	for _, w := range widths {
		sb.WriteString(strings.Repeat("-", w))
		sb.WriteByte('+')
	}
	sb.WriteByte('\n')
	return sb.String()
}

func writeRow(sb *strings.Builder, row []string, widths []int) {
	sb.WriteByte('|')
	for i, v := range row {
		fmt.Fprintf(sb, "%*s|", widths[i], v)
	}
	sb.WriteByte('\n')
}

// PrintSchema writes the schema as an indented tree, naming custom types
// where the frame metadata records them.
func (f *Frame) PrintSchema(w io.Writer) error {
	types, err := f.Types()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString("root\n")
	for _, fd := range f.schema.Fields() {
		typ := arrowTypeToString(fd.Type)
		if name, ok := types[fd.Name]; ok {
			typ = name
		}
		fmt.Fprintf(&sb, " |-- %s: %s (nullable = %t)\n", fd.Name, typ, fd.Nullable)
	}
	_, err = io.WriteString(w, sb.String())
	return err
}

// arrowTypeToString returns a human-readable type name for an Arrow type.
func arrowTypeToString(dt arrow.DataType) string {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return "string"
	case arrow.INT64:
		return "long"
	case arrow.INT32:
		return "int"
	case arrow.FLOAT64:
		return "double"
	case arrow.FLOAT32:
		return "float"
	case arrow.BOOL:
		return "boolean"
	case arrow.BINARY:
		return "binary"
	case arrow.LIST:
		lt := dt.(*arrow.ListType)
		return "array<" + arrowTypeToString(lt.Elem()) + ">"
	case arrow.MAP:
		mt := dt.(*arrow.MapType)
		return "map<" + arrowTypeToString(mt.KeyType()) + "," + arrowTypeToString(mt.ItemType()) + ">"
	case arrow.STRUCT:
		st := dt.(*arrow.StructType)
		parts := make([]string, st.NumFields())
		for i, fd := range st.Fields() {
			parts[i] = fd.Name + ":" + arrowTypeToString(fd.Type)
		}
		return "struct<" + strings.Join(parts, ",") + ">"
	default:
		return dt.String()
	}
}
