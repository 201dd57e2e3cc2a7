// Package storage reads factor data from the on-disk archive layout:
//
//	<root>/<securityType>/<market>/factor_files/<permtick>.csv
//	<root>/<securityType>/<market>/factor_files/factor_files_<YYYYMMDD>.zip
//
// The zip archives cover a whole market at once, one <permtick>.csv entry
// per instrument.
package storage

import (
	"archive/zip"
	"bufio"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"alpha_sim/internal/models"
)

// Store resolves factor-file paths under a root data directory.
type Store struct {
	Root string
}

func NewStore(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) factorDir(securityType models.SecurityType, market string) string {
	return filepath.Join(s.Root, string(securityType), strings.ToLower(market), "factor_files")
}

// FactorFilePath is the flat per-instrument file for a permtick.
func (s *Store) FactorFilePath(securityType models.SecurityType, market, permtick string) string {
	return filepath.Join(s.factorDir(securityType, market), strings.ToLower(permtick)+".csv")
}

// ArchivePath is the dated whole-market archive.
func (s *Store) ArchivePath(securityType models.SecurityType, market string, date time.Time) string {
	name := fmt.Sprintf("factor_files_%s.zip", date.Format("20060102"))
	return filepath.Join(s.factorDir(securityType, market), name)
}

// FactorFileLines reads one instrument's factor file. The boolean reports
// whether the file exists; a missing file is not an error.
func (s *Store) FactorFileLines(securityType models.SecurityType, market, permtick string) ([]string, bool, error) {
	p := s.FactorFilePath(securityType, market, permtick)
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("opening factor file %s: %w", p, err)
	}
	defer f.Close()

	lines, err := readLines(f)
	if err != nil {
		return nil, true, fmt.Errorf("reading factor file %s: %w", p, err)
	}
	return lines, true, nil
}

// FactorArchive reads a dated market archive into permtick -> CSV lines. The
// boolean reports whether the archive exists for that date.
func (s *Store) FactorArchive(securityType models.SecurityType, market string, date time.Time) (map[string][]string, bool, error) {
	p := s.ArchivePath(securityType, market, date)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil, false, nil
	}

	r, err := zip.OpenReader(p)
	if err != nil {
		return nil, true, fmt.Errorf("opening factor archive %s: %w", p, err)
	}
	defer r.Close()

	out := make(map[string][]string, len(r.File))
	for _, entry := range r.File {
		name := path.Base(entry.Name)
		if !strings.HasSuffix(strings.ToLower(name), ".csv") {
			continue
		}
		permtick := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))

		rc, err := entry.Open()
		if err != nil {
			return nil, true, fmt.Errorf("opening archive entry %s in %s: %w", entry.Name, p, err)
		}
		lines, err := readLines(rc)
		rc.Close()
		if err != nil {
			return nil, true, fmt.Errorf("reading archive entry %s in %s: %w", entry.Name, p, err)
		}
		out[permtick] = lines
	}
	return out, true, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
