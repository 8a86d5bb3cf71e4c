package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/relvacode/iso8601"
	"golang.org/x/sync/errgroup"

	apperrors "udip-dashboard/internal/errors"
)

const batchSize = 5000

// row is one CSV record addressed by normalised column name. The first parse
// failure is kept in err and later accessors become no-ops for error reporting.
type row struct {
	cols   map[string]int
	record []string
	err    error
}

func (r *row) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", col, err)
	}
}

func (r *row) has(col string) bool {
	i, ok := r.cols[col]
	return ok && i < len(r.record) && strings.TrimSpace(r.record[i]) != ""
}

func (r *row) str(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// id reads a required identifier.
func (r *row) id(col string) string {
	s := r.str(col)
	if s == "" {
		r.fail(col, errors.New("empty"))
	}
	return s
}

func (r *row) float(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		r.fail(col, err)
	}
	return v
}

// optFloat reads a column that may be absent or blank.
func (r *row) optFloat(col string) float64 {
	if !r.has(col) {
		return 0
	}
	return r.float(col)
}

func (r *row) int(col string) int {
	s := r.str(col)
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		r.fail(col, fmt.Errorf("%q is not an integer", s))
		return 0
	}
	return int(f)
}

func (r *row) bool(col string) bool {
	s := r.str(col)
	if v, err := strconv.ParseBool(s); err == nil {
		return v
	}
	r.fail(col, fmt.Errorf("%q is not a boolean", s))
	return false
}

func (r *row) time(col string) time.Time {
	t, err := parseTime(r.str(col))
	if err != nil {
		r.fail(col, err)
	}
	return t
}

func (r *row) optTime(col string) time.Time {
	if !r.has(col) {
		return time.Time{}
	}
	return r.time(col)
}

// parseTime accepts ISO 8601 timestamps, bare dates and the space-separated
// form pandas writes ("2024-01-31 06:00:00"). Zone-less values are UTC.
func parseTime(s string) (time.Time, error) {
	switch {
	case len(s) == len("2006-01-02"):
		s += "T00:00:00"
	case len(s) > 10 && s[10] == ' ':
		s = s[:10] + "T" + s[11:]
	}
	return iso8601.ParseString(s)
}

// normalizeHeader maps "Order Date", "orderDate" and "order_date" to the same key.
func normalizeHeader(h string) string {
	return strcase.ToSnake(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

type tableSpec struct {
	name     string
	file     string
	required []string
}

// parseTable reads a CSV with a header line and converts every record with
// parse, in batches on up to workers goroutines. Records that fail to parse
// are skipped and counted. Output keeps file order.
func parseTable[T any](ctx context.Context, src io.Reader, spec tableSpec, workers int, parse func(*row) T) ([]T, int, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, apperrors.MissingData(fmt.Sprintf("%s table is empty", spec.name))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s header: %w", spec.name, err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := cols[normalizeHeader(h)]; !dup {
			cols[normalizeHeader(h)] = i
		}
	}
	var missing []string
	for _, c := range spec.required {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, 0, apperrors.MissingData(fmt.Sprintf("%s table lacks required columns", spec.name)).
			WithDetails("missing %s", strings.Join(missing, ", "))
	}

	var records [][]string
	skipped := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return nil, 0, fmt.Errorf("read %s: %w", spec.name, err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, skipped, apperrors.MissingData(fmt.Sprintf("%s table has no rows", spec.name))
	}

	nBatches := (len(records) + batchSize - 1) / batchSize
	results := make([][]T, nBatches)
	bad := make([]int, nBatches)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for b := range nBatches {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch := records[b*batchSize : min((b+1)*batchSize, len(records))]
			out := make([]T, 0, len(batch))
			for _, rec := range batch {
				r := row{cols: cols, record: rec}
				v := parse(&r)
				if r.err != nil {
					bad[b]++
					continue
				}
				out = append(out, v)
			}
			results[b] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var all []T
	for b := range results {
		all = append(all, results[b]...)
		skipped += bad[b]
	}
	if len(all) == 0 {
		return nil, skipped, apperrors.MissingData(fmt.Sprintf("%s table has no valid rows", spec.name)).
			WithDetails("%d rows skipped", skipped)
	}
	return all, skipped, nil
}
