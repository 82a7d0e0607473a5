// Package universe resuelve la lista de tickers a simular a partir de
// archivos .csv, .txt o .json con includes y excludes opcionales.
package universe

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/alejandrodnm/swingbot/internal/domain"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,14}$`)

var headerKeys = []string{"ticker", "symbol", "symbols", "tickers"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Result es el universo resuelto.
type Result struct {
	Tickers    []string // válidos, deduplicados y ordenados
	Invalid    []string // únicos y ordenados
	Duplicates int
}

// Files agrupa las rutas de entrada. Las relativas se resuelven contra BaseDir.
type Files struct {
	Tickers string
	Include string
	Exclude string
	BaseDir string
}

// Resolve lee los archivos, normaliza (trim + mayúsculas), valida, aplica
// excludes y deduplica.
func Resolve(f Files) (Result, error) {
	if f.Tickers == "" {
		return Result{}, errors.New("universe.Resolve: tickers file is required")
	}
	raw, err := readTickers(resolvePath(f.BaseDir, f.Tickers))
	if err != nil {
		return Result{}, fmt.Errorf("universe.Resolve: %w", err)
	}
	if f.Include != "" {
		inc, err := readTickers(resolvePath(f.BaseDir, f.Include))
		if err != nil {
			return Result{}, fmt.Errorf("universe.Resolve: include: %w", err)
		}
		raw = append(raw, inc...)
	}
	excludes := make(map[string]bool)
	if f.Exclude != "" {
		exc, err := readTickers(resolvePath(f.BaseDir, f.Exclude))
		if err != nil {
			return Result{}, fmt.Errorf("universe.Resolve: exclude: %w", err)
		}
		for _, t := range exc {
			if t != "" {
				excludes[t] = true
			}
		}
	}

	var res Result
	seen := make(map[string]bool, len(raw))
	invalid := make(map[string]bool)
	for _, t := range raw {
		switch {
		case t == "":
		case !tickerPattern.MatchString(t):
			invalid[t] = true
		case excludes[t]:
		case seen[t]:
			res.Duplicates++
		default:
			seen[t] = true
			res.Tickers = append(res.Tickers, t)
		}
	}
	slices.Sort(res.Tickers)
	for t := range invalid {
		res.Invalid = append(res.Invalid, t)
	}
	slices.Sort(res.Invalid)
	return res, nil
}

// SaveResolved escribe el universo resuelto como CSV con un bloque de
// metadata al final.
func SaveResolved(res Result, path string, src Files) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("universe.SaveResolved: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("universe.SaveResolved: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	rows := [][]string{{"ticker"}}
	for _, t := range res.Tickers {
		rows = append(rows, []string{t})
	}
	if len(res.Invalid) > 0 {
		rows = append(rows, []string{""}, []string{"invalid_tickers"})
		for _, t := range res.Invalid {
			rows = append(rows, []string{t})
		}
	}
	rows = append(rows,
		[]string{""},
		[]string{"metadata"},
		[]string{"generated_at_utc", time.Now().UTC().Format(time.RFC3339)},
		[]string{"source_file", src.Tickers},
		[]string{"include_file", src.Include},
		[]string{"exclude_file", src.Exclude},
		[]string{"ticker_count", fmt.Sprint(len(res.Tickers))},
		[]string{"invalid_ticker_count", fmt.Sprint(len(res.Invalid))},
		[]string{"duplicate_count", fmt.Sprint(res.Duplicates)},
	)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("universe.SaveResolved: %w", err)
	}
	return file.Close()
}

// --- helpers internos ---

func resolvePath(base, p string) string {
	if base == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func readTickers(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, utf8BOM)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSV(b)
	case ".txt":
		return readTXT(b), nil
	case ".json":
		return readJSON(b)
	}
	return nil, fmt.Errorf("unsupported universe file type %q", filepath.Ext(path))
}

func readTXT(b []byte) []string {
	var out []string
	for line := range strings.Lines(string(b)) {
		if t := domain.NormalizeSymbol(line); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func readCSV(b []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := 0
	header := records[0]
	if slices.Contains(headerKeys, strings.ToLower(strings.TrimSpace(header[0]))) {
		col = headerColumn(header)
		records = records[1:]
	}

	var out []string
	for _, rec := range records {
		if col < len(rec) {
			out = append(out, domain.NormalizeSymbol(rec[col]))
		}
	}
	return out, nil
}

// headerColumn devuelve la primera columna cuyo nombre es una clave de ticker.
func headerColumn(header []string) int {
	for _, key := range headerKeys {
		for i, h := range header {
			if strings.ToLower(strings.TrimSpace(h)) == key {
				return i
			}
		}
	}
	return 0
}

func readJSON(b []byte) ([]string, error) {
	var data any
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	switch v := data.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, tickerFromObject(obj))
				continue
			}
			out = append(out, normalizeAny(item))
		}
		return out, nil
	case map[string]any:
		for _, key := range []string{"tickers", "symbols"} {
			if list, ok := v[key].([]any); ok {
				out := make([]string, 0, len(list))
				for _, item := range list {
					out = append(out, normalizeAny(item))
				}
				return out, nil
			}
		}
	}
	return nil, errors.New("unsupported json structure")
}

func tickerFromObject(obj map[string]any) string {
	lowered := make(map[string]any, len(obj))
	for k, v := range obj {
		lowered[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, key := range headerKeys {
		if v, ok := lowered[key]; ok {
			return normalizeAny(v)
		}
	}
	return ""
}

func normalizeAny(v any) string {
	if v == nil {
		return ""
	}
	return domain.NormalizeSymbol(fmt.Sprint(v))
}
