package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Align is a table column alignment.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

var twAligns = map[Align]tw.Align{
	AlignLeft:   tw.AlignLeft,
	AlignCenter: tw.AlignCenter,
	AlignRight:  tw.AlignRight,
}

// Data is a rendered table. ColumnAlignment may be shorter than Headers.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align
}

// Tabler is implemented by results with their own column layout.
type Tabler interface {
	Table() Data
}

func writeTable(w io.Writer, data any) error {
	switch v := data.(type) {
	case Data:
		return render(w, v)
	case Tabler:
		return render(w, v.Table())
	}
	if t, ok := reflectTable(data); ok {
		return render(w, t)
	}
	return writeJSON(w, data)
}

func render(w io.Writer, data Data) error {
	var cfg tablewriter.Config
	if len(data.ColumnAlignment) > 0 {
		per := make([]tw.Align, len(data.ColumnAlignment))
		for i, a := range data.ColumnAlignment {
			if mapped, ok := twAligns[a]; ok {
				per[i] = mapped
			} else {
				per[i] = tw.Skip
			}
		}
		cfg.Header.Alignment = tw.CellAlignment{PerColumn: per}
		cfg.Row.Alignment = tw.CellAlignment{PerColumn: per}
	}

	table := tablewriter.NewTable(w, tablewriter.WithConfig(cfg))
	if len(data.Headers) > 0 {
		table.Header(toAny(data.Headers)...)
	}
	for _, row := range data.Rows {
		if err := table.Append(toAny(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// reflectTable lays out a struct as property/value rows and a slice of
// structs as one row per element.
func reflectTable(data any) (Data, bool) {
	v := reflect.Indirect(reflect.ValueOf(data))
	switch {
	case v.Kind() == reflect.Struct:
		t := Data{Headers: []string{"Property", "Value"}}
		for _, i := range exported(v.Type()) {
			t.Rows = append(t.Rows, []string{columnName(v.Type().Field(i)), cell(v.Field(i))})
		}
		return t, true

	case v.Kind() == reflect.Slice && v.Len() > 0 && reflect.Indirect(v.Index(0)).Kind() == reflect.Struct:
		fields := exported(reflect.Indirect(v.Index(0)).Type())
		var t Data
		for _, i := range fields {
			t.Headers = append(t.Headers, columnName(reflect.Indirect(v.Index(0)).Type().Field(i)))
		}
		for i := 0; i < v.Len(); i++ {
			elem := reflect.Indirect(v.Index(i))
			row := make([]string, 0, len(fields))
			for _, j := range fields {
				row = append(row, cell(elem.Field(j)))
			}
			t.Rows = append(t.Rows, row)
		}
		return t, true
	}
	return Data{}, false
}

func exported(t reflect.Type) []int {
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			idx = append(idx, i)
		}
	}
	return idx
}

// columnName prefers the json tag, so "reports_to" becomes "Reports To".
func columnName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

func cell(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	return fmt.Sprint(v.Interface())
}
