package core

import (
	"bytes"
	"context"
	"elmah/codec"
	"elmah/models"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const fileTimeLayout = "2006-01-02150405.0000000Z"

var errorFileName = regexp.MustCompile(`^error-(\d{4}-\d{2}-\d{8}\.\d{7}Z)-(\d{16})-([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\.xml$`)

// XMLFileErrorLog stores each error as its own XML file. Names sort
// lexically in reverse chronological order, sequence breaking ties.
type XMLFileErrorLog struct {
	app    string
	dir    string
	logger *slog.Logger

	mu  sync.Mutex
	seq int64
}

// NewXMLFileErrorLog opens (creating when needed) the directory for app under logPath.
func NewXMLFileErrorLog(applicationName, logPath string, logger *slog.Logger) (*XMLFileErrorLog, error) {
	if err := ValidateApplicationName(applicationName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(logPath) == "" {
		return nil, fmt.Errorf("%w: logPath is required for the XML file error log", ErrConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}

	dir := XMLFileDir(logPath, applicationName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create log directory %s: %v", ErrConfiguration, dir, err)
	}

	l := &XMLFileErrorLog{app: applicationName, dir: dir, logger: logger}

	names, err := l.list()
	if err != nil {
		return nil, NewStoreError(l.Name(), "open", err)
	}
	for _, name := range names {
		if seq := sequenceOf(name); seq > l.seq {
			l.seq = seq
		}
	}

	logger.Debug("xml file error log opened", "dir", dir, "entries", len(names), "sequence", l.seq)
	return l, nil
}

func (l *XMLFileErrorLog) Name() string            { return "XML File-Based Error Log" }
func (l *XMLFileErrorLog) ApplicationName() string { return l.app }

// Dir returns the directory holding the files.
func (l *XMLFileErrorLog) Dir() string { return l.dir }

func (l *XMLFileErrorLog) Log(ctx context.Context, e *models.Error) (string, error) {
	if e == nil {
		return "", ErrNilError
	}
	e = OwnedBy(e, l.app)

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	if err := codec.Encode(&buf, e); err != nil {
		return "", NewStoreError(l.Name(), "log", err)
	}

	id := NewID()

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.mu.Unlock()

	name := fmt.Sprintf("error-%s-%016d-%s.xml", e.Time().UTC().Format(fileTimeLayout), seq, id)
	if err := writeFileAtomic(l.dir, name, buf.Bytes()); err != nil {
		return "", NewStoreError(l.Name(), "log", err)
	}
	return id, nil
}

func (l *XMLFileErrorLog) GetError(ctx context.Context, id string) (*models.ErrorLogEntry, error) {
	id, err := ParseID(id)
	if err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(l.dir, "error-*-"+id+".xml"))
	if err != nil {
		return nil, NewStoreError(l.Name(), "get", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	e, err := readErrorFile(matches[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, NewStoreError(l.Name(), "get", err)
	}
	return models.NewErrorLogEntry(l, id, e), nil
}

func (l *XMLFileErrorLog) GetErrors(ctx context.Context, pageIndex, pageSize int) ([]*models.ErrorLogEntry, int, error) {
	if err := ValidatePage(pageIndex, pageSize); err != nil {
		return nil, 0, err
	}

	names, err := l.list()
	if err != nil {
		return nil, 0, NewStoreError(l.Name(), "list", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	start, end := PageBounds(len(names), pageIndex, pageSize)
	entries := make([]*models.ErrorLogEntry, 0, end-start)
	for _, name := range names[start:end] {
		id := errorFileName.FindStringSubmatch(name)[3]
		e, err := readErrorFile(filepath.Join(l.dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			ReportCorrupt(l.logger, l.Name(), id, err)
			continue
		}
		entries = append(entries, models.NewErrorLogEntry(l, id, e))
	}
	return entries, len(names), nil
}

// Purge deletes files whose error time is before cutoff.
func (l *XMLFileErrorLog) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	names, err := l.list()
	if err != nil {
		return 0, NewStoreError(l.Name(), "purge", err)
	}

	var removed int64
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		t, err := time.Parse(fileTimeLayout, errorFileName.FindStringSubmatch(name)[1])
		if err != nil || !t.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, NewStoreError(l.Name(), "purge", err)
		}
		removed++
	}
	return removed, nil
}

// list returns the names of well-formed error files in the directory.
func (l *XMLFileErrorLog) list() ([]string, error) {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !errorFileName.MatchString(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	return names, nil
}

func sequenceOf(name string) int64 {
	m := errorFileName.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	seq, _ := strconv.ParseInt(m[2], 10, 64)
	return seq
}

func readErrorFile(path string) (*models.Error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return codec.Decode(f)
}

// writeFileAtomic writes data to a temporary file in dir and renames it into place,
// so readers never observe a partial record.
func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".error-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
