package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CsvBack writes one CSV file per Datum title into a directory, buffering
// lines between flushes the way the upstream CsvBack backend does
// (`original_source/src/Core/Utility/CsvBack.{h,cpp}`): a header line is
// written only the first time a title is seen, every Notify flushes
// whatever it buffered.
type CsvBack struct {
	mu      sync.Mutex
	dir     string
	log     zerolog.Logger
	headers map[string]bool
}

// NewCsvBack creates (or clears, if overwrite) dir and returns a CsvBack
// writing into it.
func NewCsvBack(dir string, overwrite bool, log zerolog.Logger) (*CsvBack, error) {
	if overwrite {
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("clear csv dir %s: %w", dir, err)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create csv dir %s: %w", dir, err)
	}
	return &CsvBack{
		dir:     dir,
		log:     log.With().Str("component", "csv_backend").Logger(),
		headers: make(map[string]bool),
	}, nil
}

func (c *CsvBack) Name() string { return c.dir }

// Notify writes every Datum's line, then flushes immediately (the upstream
// CsvBack calls flush() unconditionally at the end of notify()).
func (c *CsvBack) Notify(batch []*Datum) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make(map[string][]string)
	order := make([]string, 0)
	for _, d := range batch {
		if _, ok := lines[d.Title]; !ok {
			order = append(order, d.Title)
		}
		if !c.headers[d.Title] {
			lines[d.Title] = append(lines[d.Title], headerLine(d))
			c.headers[d.Title] = true
		}
		lines[d.Title] = append(lines[d.Title], c.valueLine(d))
	}

	var firstErr error
	for _, title := range order {
		if err := c.appendLines(title, lines[title]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func headerLine(d *Datum) string {
	line := ""
	for i, f := range d.Fields {
		if i > 0 {
			line += ", "
		}
		line += f.Name
	}
	return line
}

func (c *CsvBack) valueLine(d *Datum) string {
	line := ""
	for i, f := range d.Fields {
		if i > 0 {
			line += ", "
		}
		line += c.csvValue(f.Value)
	}
	return line
}

func (c *CsvBack) csvValue(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case uuid.UUID:
		return strconv.Quote(x.String())
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		b, err := msgpack.Marshal(x)
		if err != nil {
			c.log.Error().Err(err).Str("backend", c.Name()).Msgf("attempted to record unsupported type %T", v)
			return strconv.Quote(fmt.Sprintf("unsupported-type: %T", v))
		}
		return strconv.Quote(fmt.Sprintf("%x", b))
	}
}

func (c *CsvBack) appendLines(title string, lines []string) error {
	path := filepath.Join(c.dir, title+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv file %s: %w", path, err)
	}
	defer f.Close()
	for _, line := range lines {
		if _, err := f.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("write csv file %s: %w", path, err)
		}
	}
	return nil
}

// Close is a no-op: Notify already flushes every batch to disk.
func (c *CsvBack) Close() error { return nil }
