package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

func extractCSV(content []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1

	var buf strings.Builder
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read CSV: %w", err)
		}
		buf.WriteString(strings.Join(row, ", "))
		buf.WriteByte('\n')
	}
	return strings.TrimSpace(buf.String()), nil
}
