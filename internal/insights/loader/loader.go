package loader

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"insights-filter/internal/clock"
	"insights-filter/internal/insights"
	"insights-filter/internal/logger"
	"insights-filter/internal/metrics"
	"insights-filter/internal/models"
)

// NormalizedCache memoizes the normalize stage by CacheKey. Get returns
// nil, nil on a miss.
type NormalizedCache interface {
	Get(ctx context.Context, hash string) (*models.NormalizedTable, error)
	Set(ctx context.Context, hash string, table *models.NormalizedTable) error
}

type Options struct {
	Clock         clock.Clock
	Location      *time.Location
	Cache         NormalizedCache
	MaxAdvisories int
	Logger        *logger.Logger
}

type Loader struct {
	clock         clock.Clock
	location      *time.Location
	cache         NormalizedCache
	maxAdvisories int
	logger        *logger.Logger
}

func New(opts Options) *Loader {
	l := &Loader{
		clock:         opts.Clock,
		location:      opts.Location,
		cache:         opts.Cache,
		maxAdvisories: opts.MaxAdvisories,
		logger:        opts.Logger,
	}
	if l.clock == nil {
		l.clock = clock.NewSystem()
	}
	if l.location == nil {
		l.location = time.UTC
	}
	if l.maxAdvisories <= 0 {
		l.maxAdvisories = DefaultMaxAdvisories
	}
	if l.logger == nil {
		l.logger = logger.NewWithWriter(io.Discard)
	}
	return l
}

// Load reads a whole upload and returns a derived table evaluated at the
// loader's current instant. Only input that is not tabular at all fails.
func (l *Loader) Load(ctx context.Context, r io.Reader) (*insights.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	hash := ContentHash(data)
	key := CacheKey(hash, l.location, l.maxAdvisories)

	nt, source := l.fromCache(ctx, key), "cache"
	if nt == nil {
		source = "parsed"
		nt, err = Normalize(data, l.location, l.maxAdvisories)
		if err != nil {
			metrics.LoadFailures.Inc()
			return nil, err
		}
		nt.ContentHash = hash
		l.toCache(ctx, key, nt)
	}

	table := insights.NewTable(nt, l.clock.Now())
	metrics.TablesLoaded.WithLabelValues(source).Inc()
	for _, a := range nt.Advisories {
		metrics.Advisories.WithLabelValues(string(a.Kind)).Inc()
	}
	l.logger.Info("LOADER", fmt.Sprintf("Loaded %d rows (%s, variant %s, %d advisories) hash=%s",
		table.Len(), source, nt.Schema.Variant, len(nt.Advisories), shortHash(hash)))
	return table, nil
}

func (l *Loader) fromCache(ctx context.Context, key string) *models.NormalizedTable {
	if l.cache == nil {
		return nil
	}
	nt, err := l.cache.Get(ctx, key)
	if err != nil {
		l.logger.Warn("CACHE", fmt.Sprintf("Normalized cache lookup failed for %s: %v", shortHash(key), err))
		return nil
	}
	if nt != nil {
		l.logger.LogCache("HIT", shortHash(key), "reusing normalized rows")
	}
	return nt
}

func (l *Loader) toCache(ctx context.Context, key string, nt *models.NormalizedTable) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, key, nt); err != nil {
		l.logger.Warn("CACHE", fmt.Sprintf("Failed to store normalized rows for %s: %v", shortHash(key), err))
		return
	}
	l.logger.LogCache("SET", shortHash(key), fmt.Sprintf("%d rows", len(nt.Records)))
}

// ContentHash is the hex SHA-256 of an upload.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CacheKey scopes a content hash by the settings that shape normalized rows,
// so loaders with a different timezone or advisory cap never share entries.
func CacheKey(hash string, loc *time.Location, maxAdvisories int) string {
	return fmt.Sprintf("%s:%s:%d", hash, loc, maxAdvisories)
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// Normalize parses CSV bytes into typed records. Per-cell problems become
// advisories; only unreadable input returns an error.
func Normalize(data []byte, loc *time.Location, maxAdvisories int) (*models.NormalizedTable, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, insights.ErrEmptyInput
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: binary content", insights.ErrNotTabular)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, insights.ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", insights.ErrNotTabular, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	schema, index := detectSchema(header)
	adv := newAdvisoryCollector(maxAdvisories)
	for _, field := range expectedFields(schema.Variant) {
		if !schema.Has(field) {
			adv.add(models.Advisory{
				Kind:    models.AdvisoryMissingColumn,
				Column:  field,
				Message: missingColumnMessage(field),
			})
		}
	}

	n := &normalizer{
		header: header,
		index:  index,
		schema: schema,
		loc:    loc,
		adv:    adv,
		seen:   map[string]int{},
	}

	var records []models.EventRecord
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", insights.ErrNotTabular, len(records)+1, err)
		}
		records = append(records, n.record(len(records), cells))
	}

	return &models.NormalizedTable{
		Header:     header,
		Schema:     schema,
		Records:    records,
		Advisories: adv.result(),
	}, nil
}

type normalizer struct {
	header []string
	index  map[string]int
	schema models.Schema
	loc    *time.Location
	adv    *advisoryCollector
	seen   map[string]int
}

func (n *normalizer) record(row int, cells []string) models.EventRecord {
	if len(cells) != len(n.header) {
		n.adv.add(models.RowAdvisory(models.AdvisoryMalformedField, "", row,
			strconv.Itoa(len(cells)),
			fmt.Sprintf("row has %d cells, header has %d", len(cells), len(n.header))))
	}
	source := make([]string, len(n.header))
	copy(source, cells)

	cell := func(field string) string {
		i, ok := n.index[field]
		if !ok {
			return ""
		}
		return source[i]
	}

	rec := models.EventRecord{
		Row:        row,
		Name:       strings.TrimSpace(cell(models.FieldName)),
		Location:   strings.TrimSpace(cell(models.FieldLocation)),
		OOSZones:   placeholderToBlank(cell(models.FieldOOSZones)),
		Monitoring: placeholderToBlank(cell(models.FieldMonitoring)),
		Source:     source,
	}
	rec.ID = n.id(row, cell(models.FieldID))

	rec.RawPrice = cell(models.FieldPrice)
	rec.Price = n.price(row, models.FieldPrice, rec.RawPrice)
	rec.RawSecondaryPrice = cell(models.FieldSecondaryPrice)
	rec.SecondaryPrice = n.price(row, models.FieldSecondaryPrice, rec.RawSecondaryPrice)

	rec.RawDateTime = cell(models.FieldDateTime)
	rec.DateTime = n.datetime(row, models.FieldDateTime, rec.RawDateTime)
	rec.RawOnSaleDate = cell(models.FieldOnSaleDate)
	rec.OnSaleDate = n.datetime(row, models.FieldOnSaleDate, rec.RawOnSaleDate)

	return rec
}

// id takes the ID cell when the table has one. Without an ID column, or for a
// blank cell, the 1-based row number is used.
func (n *normalizer) id(row int, raw string) string {
	id := strings.TrimSpace(raw)
	if !n.schema.Has(models.FieldID) {
		return strconv.Itoa(row + 1)
	}
	if id == "" {
		id = strconv.Itoa(row + 1)
		n.adv.add(models.RowAdvisory(models.AdvisoryMalformedField, n.schema.Column(models.FieldID), row, raw,
			fmt.Sprintf("blank id, using row number %s", id)))
	}
	if first, dup := n.seen[id]; dup {
		n.adv.add(models.RowAdvisory(models.AdvisoryMalformedField, n.schema.Column(models.FieldID), row, id,
			fmt.Sprintf("duplicate id, first seen at row %d", first)))
	} else {
		n.seen[id] = row
	}
	return id
}

func (n *normalizer) price(row int, field, raw string) *float64 {
	if !n.schema.Has(field) {
		return nil
	}
	p, ok := insights.ParsePrice(raw)
	if !ok {
		n.adv.add(models.RowAdvisory(models.AdvisoryMalformedField, n.schema.Column(field), row, raw, "unreadable price"))
	}
	return p
}

func (n *normalizer) datetime(row int, field, raw string) *time.Time {
	if !n.schema.Has(field) {
		return nil
	}
	t, ok := insights.ParseDateTime(raw, n.loc)
	if !ok {
		n.adv.add(models.RowAdvisory(models.AdvisoryMalformedField, n.schema.Column(field), row, raw, "unreadable date"))
	}
	return t
}

func placeholderToBlank(raw string) string {
	if insights.IsPlaceholder(raw) {
		return ""
	}
	return strings.TrimSpace(raw)
}
